package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/lense/internal/geom"
	"github.com/banshee-data/lense/internal/monitoring"
	"github.com/banshee-data/lense/internal/timeutil"
)

// Synthetic produces blank grey frames at a fixed rate. It stands in for a
// camera in dev mode and tests; pair it with a fixture estimator.
type Synthetic struct {
	Size geom.Size
	FPS  int
	// Deny makes Acquire fail as if camera access were refused.
	Deny  bool
	Clock timeutil.Clock
}

// NewSynthetic returns a Synthetic source of the given size at fps.
func NewSynthetic(size geom.Size, fps int) *Synthetic {
	return &Synthetic{Size: size, FPS: fps, Clock: timeutil.RealClock{}}
}

// Acquire starts the generator.
func (s *Synthetic) Acquire(ctx context.Context) (Stream, error) {
	if s.Deny {
		return nil, ErrPermissionDenied
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.Size.Valid() {
		return nil, fmt.Errorf("synthetic source: invalid frame size %s", s.Size)
	}
	fps := s.FPS
	if fps <= 0 {
		fps = 30
	}
	clock := s.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	size := s.Size
	pixels := make([]byte, size.Width*size.Height)
	for i := range pixels {
		pixels[i] = 0x80
	}

	monitoring.Logf("[capture] synthetic source %s at %d fps", size, fps)
	return newLiveStream(size, func(ctx context.Context, publish func(Frame)) {
		ticker := clock.NewTicker(time.Second / time.Duration(fps))
		defer ticker.Stop()

		var seq uint64
		publish(Frame{Seq: seq, CapturedAt: clock.Now(), Size: size, Format: FormatGray, Data: pixels})
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C():
				seq++
				publish(Frame{Seq: seq, CapturedAt: now, Size: size, Format: FormatGray, Data: pixels})
			}
		}
	}, nil), nil
}
