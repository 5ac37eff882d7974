package serialmux

import (
	"context"
	"net/http"
	"sync/atomic"

	"tailscale.com/tsweb"
)

// DisabledSerialMux stands in when no pointer device is attached. Commands
// are counted and discarded. No lines ever arrive, but subscriber channels
// still close on Unsubscribe or Close so readers unblock at shutdown.
type DisabledSerialMux struct {
	hub       *hub
	discarded atomic.Uint64
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{hub: newHub(0)}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) { return d.hub.subscribe() }

func (d *DisabledSerialMux) Unsubscribe(id string) { d.hub.unsubscribe(id) }

func (d *DisabledSerialMux) SendCommand(string) error {
	d.discarded.Add(1)
	return nil
}

// Discarded returns how many commands were dropped.
func (d *DisabledSerialMux) Discarded() uint64 { return d.discarded.Load() }

func (d *DisabledSerialMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledSerialMux) Close() error {
	d.hub.close()
	return nil
}

func (d *DisabledSerialMux) Initialise() error { return nil }

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	tsweb.Debugger(mux).HandleFunc("send-command", "pointer device (not attached)", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no pointer device attached; start with -pointer", http.StatusServiceUnavailable)
	})
}
