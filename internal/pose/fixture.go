package pose

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/banshee-data/lense/internal/capture"
)

// FixtureLoader serves scripted estimates read from a JSON-lines file. Each
// line is one estimation result, a JSON array of hands:
//
//	[{"keypoints":[{"x":1,"y":2}, null, ...]}]
//
// A blank line or [] means no hand. A line containing only "error" makes
// that cycle fail with ErrInference. Lines beginning with # are skipped.
// Results cycle once the end of the file is reached.
type FixtureLoader struct {
	Path string
}

// Load parses the fixture file. A missing or unparsable file is a model
// load failure.
func (l FixtureLoader) Load(ctx context.Context, cfg ModelConfig) (Estimator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	steps, err := ParseFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, l.Path, err)
	}
	return NewFixtureEstimator(steps), nil
}

// FixtureStep is one scripted result.
type FixtureStep struct {
	Hands []HandEstimate
	Err   bool
}

// ParseFixtures parses the JSON-lines fixture format.
func ParseFixtures(data []byte) ([]FixtureStep, error) {
	var steps []FixtureStep
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(text, "#"):
			continue
		case text == "":
			steps = append(steps, FixtureStep{})
			continue
		case text == "error":
			steps = append(steps, FixtureStep{Err: true})
			continue
		}
		var hands []HandEstimate
		if err := json.Unmarshal([]byte(text), &hands); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		steps = append(steps, FixtureStep{Hands: hands})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no fixture steps")
	}
	return steps, nil
}

// FixtureEstimator replays steps in order, wrapping around at the end.
type FixtureEstimator struct {
	mu     sync.Mutex
	steps  []FixtureStep
	next   int
	calls  int
	closed bool
}

// NewFixtureEstimator returns an estimator cycling through steps.
func NewFixtureEstimator(steps []FixtureStep) *FixtureEstimator {
	return &FixtureEstimator{steps: steps}
}

// Estimate returns the next scripted step. The frame content is ignored.
func (e *FixtureEstimator) Estimate(ctx context.Context, frame capture.Frame) ([]HandEstimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("%w: estimator closed", ErrInference)
	}
	e.calls++
	if len(e.steps) == 0 {
		return nil, nil
	}
	step := e.steps[e.next]
	e.next = (e.next + 1) % len(e.steps)
	if step.Err {
		return nil, fmt.Errorf("%w: scripted failure for frame %d", ErrInference, frame.Seq)
	}
	return step.Hands, nil
}

// Calls reports how many estimations have been requested.
func (e *FixtureEstimator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Closed reports whether Close has been called.
func (e *FixtureEstimator) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close marks the estimator closed.
func (e *FixtureEstimator) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}
