package lense

import (
	"time"

	"github.com/banshee-data/lense/internal/geom"
)

// Detection is the record of one inference cycle.
type Detection struct {
	At       time.Time     `json:"at"`
	FrameSeq uint64        `json:"frame_seq"`
	Outcome  Outcome       `json:"outcome"`
	Keypoint geom.Vec2     `json:"keypoint"` // capture-frame pixels; zero unless tracked
	Target   geom.Vec2     `json:"target"`   // target after the cycle
	Latency  time.Duration `json:"latency"`
	Err      string        `json:"error,omitempty"`
}

// Sample is the record of one refresh.
type Sample struct {
	At       time.Time `json:"at"`
	Target   geom.Vec2 `json:"target"`
	Current  geom.Vec2 `json:"current"`
	Viewport geom.Size `json:"viewport"`
}

// Recorder receives pipeline events. Calls come from the loop that produced
// the event and must not block.
type Recorder interface {
	RecordDetection(Detection)
	RecordSample(Sample)
}

type nopRecorder struct{}

func (nopRecorder) RecordDetection(Detection) {}
func (nopRecorder) RecordSample(Sample)       {}

// ViewportSource reports the current viewport size in logical pixels.
type ViewportSource interface {
	Viewport() geom.Size
}

// FixedViewport is a viewport that never resizes.
type FixedViewport geom.Size

// Viewport returns the fixed size.
func (v FixedViewport) Viewport() geom.Size { return geom.Size(v) }
