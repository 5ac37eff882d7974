package capture

import (
	"context"
	"sync"

	"github.com/banshee-data/lense/internal/geom"
)

// liveStream is the shared Stream implementation: a producer goroutine
// publishes frames into a single latest-frame slot.
type liveStream struct {
	size geom.Size

	mu     sync.RWMutex
	latest Frame
	have   bool

	readyOnce sync.Once
	ready     chan struct{}

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	release   func() error
	closeErr  error
}

// newLiveStream starts produce in its own goroutine. produce must return
// when ctx is cancelled. release, if non-nil, runs after the producer has
// exited.
func newLiveStream(size geom.Size, produce func(ctx context.Context, publish func(Frame)), release func() error) *liveStream {
	ctx, cancel := context.WithCancel(context.Background())
	s := &liveStream{
		size:    size,
		ready:   make(chan struct{}),
		cancel:  cancel,
		done:    make(chan struct{}),
		release: release,
	}
	go func() {
		defer close(s.done)
		produce(ctx, s.publish)
	}()
	return s
}

func (s *liveStream) publish(f Frame) {
	s.mu.Lock()
	s.latest = f
	s.have = true
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *liveStream) Latest() (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.have
}

func (s *liveStream) Ready() <-chan struct{} { return s.ready }

func (s *liveStream) Size() geom.Size { return s.size }

// Close is idempotent and waits for the producer to exit before releasing
// the underlying device.
func (s *liveStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		if s.release != nil {
			s.closeErr = s.release()
		}
	})
	return s.closeErr
}
