package serialmux

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceState_HandleEvent(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := NewDeviceState()
	d.now = func() time.Time { return fixed }

	require.NoError(t, d.HandleEvent("ok"))
	require.NoError(t, d.HandleEvent("ok"))
	require.NoError(t, d.HandleEvent("err bad pointer command"))
	require.NoError(t, d.HandleEvent(`{"status":"ready","moves":3}`))
	require.NoError(t, d.HandleEvent("garbage"))

	snap := d.Snapshot()
	assert.Equal(t, uint64(2), snap.Acks)
	assert.Equal(t, uint64(1), snap.Errors)
	assert.Equal(t, "err bad pointer command", snap.LastError)
	assert.Equal(t, "ready", snap.Status["status"])
	assert.Equal(t, 3.0, snap.Status["moves"])
	assert.Equal(t, fixed, snap.UpdatedAt)

	snap.Status["status"] = "mutated"
	assert.Equal(t, "ready", d.Snapshot().Status["status"], "snapshot is a copy")
}

func TestDeviceState_BadStatusLine(t *testing.T) {
	d := NewDeviceState()
	err := d.HandleEvent(`{"status": `)
	assert.Error(t, err)
}

func TestDeviceState_WatchLoopback(t *testing.T) {
	mux := NewLoopbackSerialMux()
	defer mux.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	d := NewDeviceState()
	watching := make(chan struct{})
	go func() {
		defer close(watching)
		d.Watch(ctx, mux)
	}()

	// Watch subscribes asynchronously; resend until a reply lands.
	require.Eventually(t, func() bool {
		_ = mux.SendCommand("P 0.2500 -0.5000")
		_ = mux.SendCommand("S?")
		snap := d.Snapshot()
		return snap.Acks > 0 && snap.Status["status"] == "ready"
	}, 2*time.Second, 20*time.Millisecond)

	snap := d.Snapshot()
	assert.Equal(t, 0.25, snap.Status["x"])
	assert.Equal(t, -0.5, snap.Status["y"])

	cancel()
	select {
	case <-watching:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
