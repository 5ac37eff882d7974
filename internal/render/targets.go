package render

import (
	"sync"
	"time"

	"github.com/banshee-data/lense/internal/monitoring"
)

// Multi fans a placement out to several targets in order.
type Multi []Target

// SetPlacement forwards p to every target.
func (m Multi) SetPlacement(p Placement) {
	for _, t := range m {
		if t != nil {
			t.SetPlacement(p)
		}
	}
}

// MemoryTarget records placements. It is safe for concurrent use.
type MemoryTarget struct {
	mu         sync.Mutex
	placements []Placement
	// Limit caps the number of placements kept; 0 keeps all.
	Limit int
}

// SetPlacement records p, dropping the oldest entry once Limit is reached.
func (m *MemoryTarget) SetPlacement(p Placement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Limit > 0 && len(m.placements) >= m.Limit {
		copy(m.placements, m.placements[1:])
		m.placements = m.placements[:len(m.placements)-1]
	}
	m.placements = append(m.placements, p)
}

// Placements returns a copy of the recorded placements.
func (m *MemoryTarget) Placements() []Placement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Placement, len(m.placements))
	copy(out, m.placements)
	return out
}

// Last returns the most recent placement.
func (m *MemoryTarget) Last() (Placement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.placements) == 0 {
		return Placement{}, false
	}
	return m.placements[len(m.placements)-1], true
}

// LogTarget logs placements at most once per interval.
type LogTarget struct {
	throttle *monitoring.Throttle
}

// NewLogTarget returns a LogTarget emitting at most one line per interval.
func NewLogTarget(interval time.Duration) *LogTarget {
	return &LogTarget{throttle: monitoring.NewThrottle(interval)}
}

// SetPlacement logs p through the throttle.
func (l *LogTarget) SetPlacement(p Placement) {
	l.throttle.Logf("[render] lens at px=%s ndc=(%.3f, %.3f) viewport=%s",
		p.Pixel, p.NDC.X, p.NDC.Y, p.Viewport)
}
