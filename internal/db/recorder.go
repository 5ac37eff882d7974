package db

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/lense/internal/lense"
	"github.com/banshee-data/lense/internal/monitoring"
	"github.com/banshee-data/lense/internal/timeutil"
)

// maxPending bounds the buffer if flushing stalls; newer records are
// dropped beyond it.
const maxPending = 100000

// SessionRecorder buffers pipeline events in memory and writes them to the
// database in batches, so the tracking loops never wait on disk.
type SessionRecorder struct {
	db       *DB
	session  string
	interval time.Duration
	clock    timeutil.Clock

	mu         sync.Mutex
	detections []lense.Detection
	samples    []lense.Sample
	dropped    int
}

var _ lense.Recorder = (*SessionRecorder)(nil)

// NewSessionRecorder creates s in the database and returns a recorder for
// it that flushes every interval once Run is started.
func NewSessionRecorder(db *DB, s *Session, interval time.Duration) (*SessionRecorder, error) {
	if err := db.CreateSession(s); err != nil {
		return nil, err
	}
	return &SessionRecorder{
		db:       db,
		session:  s.ID,
		interval: interval,
		clock:    timeutil.RealClock{},
	}, nil
}

// SessionID returns the session being recorded.
func (r *SessionRecorder) SessionID() string { return r.session }

// RecordDetection buffers d.
func (r *SessionRecorder) RecordDetection(d lense.Detection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.detections)+len(r.samples) >= maxPending {
		r.dropped++
		return
	}
	r.detections = append(r.detections, d)
}

// RecordSample buffers s.
func (r *SessionRecorder) RecordSample(s lense.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.detections)+len(r.samples) >= maxPending {
		r.dropped++
		return
	}
	r.samples = append(r.samples, s)
}

// Flush writes everything buffered so far.
func (r *SessionRecorder) Flush() error {
	r.mu.Lock()
	ds, ss, dropped := r.detections, r.samples, r.dropped
	r.detections, r.samples, r.dropped = nil, nil, 0
	r.mu.Unlock()

	if dropped > 0 {
		monitoring.Logf("[db] session %s: dropped %d records while the store was behind", r.session, dropped)
	}
	if err := r.db.InsertDetections(r.session, ds); err != nil {
		return err
	}
	return r.db.InsertSamples(r.session, ss)
}

// Run flushes on every interval until ctx is done, then flushes once more.
func (r *SessionRecorder) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := r.Flush(); err != nil {
				monitoring.Logf("[db] final flush for session %s failed: %v", r.session, err)
			}
			return
		case <-ticker.C():
			if err := r.Flush(); err != nil {
				monitoring.Logf("[db] flush for session %s failed: %v", r.session, err)
			}
		}
	}
}

// Close flushes remaining records and marks the session ended.
func (r *SessionRecorder) Close(finalState, errMsg string) error {
	if err := r.Flush(); err != nil {
		return err
	}
	return r.db.EndSession(r.session, r.clock.Now(), finalState, errMsg)
}
