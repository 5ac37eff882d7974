package serialmux

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/lense/internal/monitoring"
)

// DeviceState holds what the pointer device has most recently told us.
type DeviceState struct {
	mu        sync.Mutex
	status    map[string]any
	acks      uint64
	errors    uint64
	lastError string
	updatedAt time.Time
	now       func() time.Time
}

// DeviceSnapshot is a copy of DeviceState safe to hand to other goroutines.
type DeviceSnapshot struct {
	Status    map[string]any `json:"status,omitempty"`
	Acks      uint64         `json:"acks"`
	Errors    uint64         `json:"errors"`
	LastError string         `json:"last_error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

// NewDeviceState returns an empty state.
func NewDeviceState() *DeviceState {
	return &DeviceState{status: make(map[string]any), now: time.Now}
}

// Snapshot returns a copy of the current state.
func (d *DeviceState) Snapshot() DeviceSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	status := make(map[string]any, len(d.status))
	for k, v := range d.status {
		status[k] = v
	}
	return DeviceSnapshot{
		Status:    status,
		Acks:      d.acks,
		Errors:    d.errors,
		LastError: d.lastError,
		UpdatedAt: d.updatedAt,
	}
}

// HandleStatus merges a JSON status line into the state.
func (d *DeviceState) HandleStatus(payload string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %v", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range values {
		d.status[k] = v
	}
	d.updatedAt = d.now()
	return nil
}

// HandleEvent classifies one device line and updates the state.
func (d *DeviceState) HandleEvent(payload string) error {
	switch ClassifyPayload(payload) {
	case EventTypeAck:
		d.mu.Lock()
		d.acks++
		d.updatedAt = d.now()
		d.mu.Unlock()
	case EventTypeError:
		msg := strings.TrimSpace(payload)
		d.mu.Lock()
		d.errors++
		d.lastError = msg
		d.updatedAt = d.now()
		d.mu.Unlock()
		monitoring.Logf("[serial] device error: %s", msg)
	case EventTypeStatus:
		if err := d.HandleStatus(payload); err != nil {
			return fmt.Errorf("failed to handle status line: %v", err)
		}
	default:
		monitoring.Logf("[serial] unknown line: %s", payload)
	}
	return nil
}

// Watch subscribes to mux and feeds every line into d until ctx is done or
// the subscription is closed.
func (d *DeviceState) Watch(ctx context.Context, mux SerialMuxInterface) {
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := d.HandleEvent(line); err != nil {
				monitoring.Logf("[serial] %v", err)
			}
		}
	}
}
