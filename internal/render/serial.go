package render

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/lense/internal/geom"
	"github.com/banshee-data/lense/internal/monitoring"
)

// Commander sends one line to a device. serialmux.SerialMux satisfies it.
type Commander interface {
	SendCommand(string) error
}

// SerialTarget drives a physical pointer over a serial link. Placements are
// handed to a writer goroutine through a single-slot mailbox, so a slow port
// never blocks the refresh loop; intermediate positions are dropped.
type SerialTarget struct {
	dev      Commander
	minDelta float64

	mu      sync.Mutex
	pending *geom.Vec2
	wake    chan struct{}

	last    geom.Vec2
	sent    bool
	written atomic.Uint64
	skipped atomic.Uint64
	errLog  *monitoring.Throttle
}

// NewSerialTarget returns a target that sends "P <x> <y>" in NDC once the
// pointer has moved at least minDelta NDC units since the last write.
func NewSerialTarget(dev Commander, minDelta float64) *SerialTarget {
	return &SerialTarget{
		dev:      dev,
		minDelta: minDelta,
		wake:     make(chan struct{}, 1),
		errLog:   monitoring.NewThrottle(5 * time.Second),
	}
}

// SetPlacement queues p's NDC position for the writer.
func (s *SerialTarget) SetPlacement(p Placement) {
	ndc := p.NDC
	s.mu.Lock()
	s.pending = &ndc
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run writes queued positions until ctx is done.
func (s *SerialTarget) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			s.flush()
		}
	}
}

func (s *SerialTarget) flush() {
	s.mu.Lock()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()
	if p == nil {
		return
	}
	if s.sent && p.Dist(s.last) < s.minDelta {
		s.skipped.Add(1)
		return
	}
	if err := s.dev.SendCommand(PointerCommand(*p)); err != nil {
		s.errLog.Logf("[render] pointer write failed: %v", err)
		return
	}
	s.last = *p
	s.sent = true
	s.written.Add(1)
}

// Stats reports how many positions were written and how many were skipped
// as too small a move.
func (s *SerialTarget) Stats() (written, skipped uint64) {
	return s.written.Load(), s.skipped.Load()
}

// PointerCommand formats the device command for an NDC position.
func PointerCommand(ndc geom.Vec2) string {
	return fmt.Sprintf("P %.4f %.4f", ndc.X, ndc.Y)
}
