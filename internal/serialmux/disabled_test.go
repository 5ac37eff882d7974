package serialmux

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledSerialMux_ChannelsCloseOnShutdown(t *testing.T) {
	d := NewDisabledSerialMux()
	id1, ch1 := d.Subscribe()
	_, ch2 := d.Subscribe()

	d.Unsubscribe(id1)
	_, ok := <-ch1
	assert.False(t, ok, "unsubscribe closes the channel")

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	select {
	case _, ok := <-ch2:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("close did not release the subscriber")
	}

	_, late := d.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestDisabledSerialMux_DiscardsCommands(t *testing.T) {
	d := NewDisabledSerialMux()
	require.NoError(t, d.Initialise())
	require.NoError(t, d.SendCommand("P 0.0000 0.0000"))
	require.NoError(t, d.SendCommand("H"))
	assert.Equal(t, uint64(2), d.Discarded())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Monitor(ctx), context.Canceled)
}

func TestDisabledSerialMux_AdminRoute(t *testing.T) {
	d := NewDisabledSerialMux()
	mux := http.NewServeMux()
	d.AttachAdminRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/send-command", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
