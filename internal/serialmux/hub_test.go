package serialmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub_BroadcastDropsForFullSubscribers(t *testing.T) {
	h := newHub(1)
	_, fast := h.subscribe()
	_, slow := h.subscribe()

	dropped, open := h.broadcast("a")
	assert.True(t, open)
	assert.Zero(t, dropped)
	assert.Equal(t, "a", <-fast)

	dropped, _ = h.broadcast("b")
	assert.Equal(t, 1, dropped, "slow still holds a")
	assert.Equal(t, "b", <-fast)
	assert.Equal(t, "a", <-slow)
}

func TestHub_Close(t *testing.T) {
	h := newHub(0)
	_, ch := h.subscribe()

	assert.True(t, h.close())
	assert.False(t, h.close(), "second close is a no-op")
	_, ok := <-ch
	assert.False(t, ok)

	_, late := h.subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")

	_, open := h.broadcast("x")
	assert.False(t, open)
}

func TestHub_Unsubscribe(t *testing.T) {
	h := newHub(1)
	id, ch := h.subscribe()
	h.unsubscribe(id)
	h.unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)
}
