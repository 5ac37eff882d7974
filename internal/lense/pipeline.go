package lense

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/lense/internal/capture"
	"github.com/banshee-data/lense/internal/config"
	"github.com/banshee-data/lense/internal/geom"
	"github.com/banshee-data/lense/internal/monitoring"
	"github.com/banshee-data/lense/internal/pose"
	"github.com/banshee-data/lense/internal/render"
	"github.com/banshee-data/lense/internal/timeutil"
)

// ErrAlreadyRunning is returned by RunInference when the pipeline has
// already been started.
var ErrAlreadyRunning = errors.New("inference loop already running")

// Config holds the tracking parameters fixed for the life of a Pipeline.
type Config struct {
	SmoothingAlpha float64
	KeypointIndex  int
	// Rest is where the lens sits before the first detection. Nil means
	// the viewport centre at construction.
	Rest              *geom.Vec2
	RefreshHz         int
	InferenceInterval time.Duration
	Model             pose.ModelConfig
	// SampleEvery records every Nth refresh; 0 records none.
	SampleEvery int
}

// DefaultConfig returns the stock tracking parameters.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a validated tuning file.
func ConfigFromTuning(t *config.TuningConfig) Config {
	c := Config{
		SmoothingAlpha:    t.GetSmoothingAlpha(),
		KeypointIndex:     t.GetKeypointIndex(),
		RefreshHz:         t.GetRefreshHz(),
		InferenceInterval: t.GetInferenceInterval(),
		Model: pose.ModelConfig{
			Model:        t.GetModel(),
			Runtime:      t.GetRuntime(),
			ModelType:    t.GetModelType(),
			MaxHands:     t.GetMaxHands(),
			SolutionPath: t.GetSolutionPath(),
		},
		SampleEvery: t.GetPositionEvery(),
	}
	if x, y, ok := t.GetRestPosition(); ok {
		c.Rest = &geom.Vec2{X: x, Y: y}
	}
	return c
}

// Validate checks the parameters a Pipeline depends on.
func (c Config) Validate() error {
	if _, err := NewSmoother(c.SmoothingAlpha); err != nil {
		return err
	}
	if c.KeypointIndex < 0 || c.KeypointIndex >= pose.NumLandmarks {
		return fmt.Errorf("keypoint index must be in [0, %d], got %d", pose.NumLandmarks-1, c.KeypointIndex)
	}
	if c.RefreshHz <= 0 {
		return fmt.Errorf("refresh rate must be positive, got %d", c.RefreshHz)
	}
	if c.InferenceInterval < 0 {
		return fmt.Errorf("inference interval must not be negative, got %s", c.InferenceInterval)
	}
	if c.SampleEvery < 0 {
		return fmt.Errorf("sample interval must not be negative, got %d", c.SampleEvery)
	}
	return c.Model.Validate()
}

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Source   capture.Source
	Loader   pose.Loader
	Target   render.Target // nil discards placements
	Viewport ViewportSource
	Recorder Recorder        // optional
	Clock    timeutil.Clock // defaults to the real clock
}

// Pipeline connects capture, inference, smoothing and rendering.
type Pipeline struct {
	cfg      Config
	source   capture.Source
	loader   pose.Loader
	viewport ViewportSource
	recorder Recorder
	clock    timeutil.Clock
	smoother Smoother
	rest     geom.Vec2

	state  atomic.Int32
	errMu  sync.Mutex
	fatal  error
	target PositionCell // written by the inference loop only
	shown  PositionCell // copy of current for observers

	// Owned by the refresh loop.
	binding  *render.Binding
	current  geom.Vec2
	refreshN uint64

	cycles          atomic.Uint64
	detections      atomic.Uint64
	misses          atomic.Uint64
	inferenceErrors atomic.Uint64
	refreshes       atomic.Uint64

	errLog *monitoring.Throttle
}

// New builds a pipeline in the Idle state. Target and current both start at
// the rest position.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Source == nil || deps.Loader == nil || deps.Viewport == nil {
		return nil, fmt.Errorf("source, loader and viewport are required")
	}
	smoother, _ := NewSmoother(cfg.SmoothingAlpha)
	p := &Pipeline{
		cfg:      cfg,
		source:   deps.Source,
		loader:   deps.Loader,
		viewport: deps.Viewport,
		recorder: deps.Recorder,
		clock:    deps.Clock,
		smoother: smoother,
		binding:  render.NewBinding(deps.Target),
		errLog:   monitoring.NewThrottle(5 * time.Second),
	}
	if p.recorder == nil {
		p.recorder = nopRecorder{}
	}
	if p.clock == nil {
		p.clock = timeutil.RealClock{}
	}
	if cfg.Rest != nil {
		p.rest = *cfg.Rest
	} else {
		p.rest = deps.Viewport.Viewport().Center()
	}
	p.current = p.rest
	p.target.Store(p.rest)
	p.shown.Store(p.rest)
	return p, nil
}

// State returns the lifecycle state.
func (p *Pipeline) State() State { return State(p.state.Load()) }

// Err returns the error that moved the pipeline to StateError, if any.
func (p *Pipeline) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.fatal
}

// Target returns the latest mapped detection, or the rest position.
func (p *Pipeline) Target() geom.Vec2 { return p.target.Load() }

// Current returns the most recently presented position.
func (p *Pipeline) Current() geom.Vec2 { return p.shown.Load() }

// Rest returns the rest position.
func (p *Pipeline) Rest() geom.Vec2 { return p.rest }

func (p *Pipeline) setState(s State) {
	old := State(p.state.Swap(int32(s)))
	if old != s {
		monitoring.Logf("[lense] %s -> %s", old, s)
	}
}

func (p *Pipeline) fail(err error) error {
	p.errMu.Lock()
	p.fatal = err
	p.errMu.Unlock()
	p.setState(StateError)
	monitoring.Logf("[lense] tracking disabled: %v", err)
	return err
}

// RunInference acquires the camera and model, then runs inference cycles
// until ctx is done. The stream and estimator are released before it
// returns. A camera or model failure moves the pipeline to StateError and
// is returned; cancellation returns nil.
func (p *Pipeline) RunInference(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateInitializing)) {
		return ErrAlreadyRunning
	}
	monitoring.Logf("[lense] %s -> %s", StateIdle, StateInitializing)

	stream, err := p.source.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			p.setState(StateIdle)
			return nil
		}
		return p.fail(fmt.Errorf("acquire camera: %w", err))
	}
	defer stream.Close()

	est, err := p.loader.Load(ctx, p.cfg.Model)
	if err != nil {
		if ctx.Err() != nil {
			p.setState(StateIdle)
			return nil
		}
		return p.fail(fmt.Errorf("load model %s: %w", p.cfg.Model.Model, err))
	}
	defer est.Close()

	select {
	case <-stream.Ready():
	case <-ctx.Done():
		p.setState(StateIdle)
		return nil
	}
	p.setState(StateTracking)
	defer p.setState(StateIdle)

	for {
		if frame, ok := stream.Latest(); ok {
			p.cycle(ctx, est, frame)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-p.clock.After(p.cfg.InferenceInterval):
		}
	}
}

// cycle runs one estimation and updates the target on a detection.
func (p *Pipeline) cycle(ctx context.Context, est pose.Estimator, frame capture.Frame) {
	start := p.clock.Now()
	hands, err := est.Estimate(ctx, frame)
	if err != nil && ctx.Err() != nil {
		return
	}
	p.cycles.Add(1)
	det := Detection{At: start, FrameSeq: frame.Seq, Latency: p.clock.Since(start)}

	switch {
	case err != nil:
		p.inferenceErrors.Add(1)
		p.errLog.Logf("[lense] inference failed on frame %d: %v", frame.Seq, err)
		det.Outcome = OutcomeError
		det.Err = err.Error()
	default:
		kp, outcome := SelectKeypoint(hands, p.cfg.KeypointIndex)
		det.Outcome = outcome
		if outcome != OutcomeTracked {
			break
		}
		pos := geom.Vec2{X: kp.X, Y: kp.Y}
		if !pos.Finite() {
			p.inferenceErrors.Add(1)
			p.errLog.Logf("[lense] inference failed on frame %d: %v: non-finite keypoint %s", frame.Seq, pose.ErrInference, pos)
			det.Outcome = OutcomeError
			det.Err = fmt.Sprintf("%v: non-finite keypoint %s", pose.ErrInference, pos)
			break
		}
		det.Keypoint = pos
		mapped, ok := MapToViewport(det.Keypoint, frame.Size, p.viewport.Viewport())
		if !ok {
			det.Outcome = OutcomeBadSize
			break
		}
		p.target.Store(mapped)
	}

	if det.Outcome == OutcomeTracked {
		p.detections.Add(1)
	} else if det.Outcome != OutcomeError {
		p.misses.Add(1)
	}
	det.Target = p.target.Load()
	p.recorder.RecordDetection(det)
}

// Refresh advances current one smoothing step toward the target and
// presents it. It must only be called from one goroutine at a time.
func (p *Pipeline) Refresh() geom.Vec2 {
	target := p.target.Load()
	p.current = p.smoother.Step(p.current, target)
	p.shown.Store(p.current)

	vp := p.viewport.Viewport()
	p.binding.Apply(p.current, vp)
	p.refreshes.Add(1)

	p.refreshN++
	if p.cfg.SampleEvery > 0 && p.refreshN%uint64(p.cfg.SampleEvery) == 0 {
		p.recorder.RecordSample(Sample{
			At:       p.clock.Now(),
			Target:   target,
			Current:  p.current,
			Viewport: vp,
		})
	}
	return p.current
}

// RunRefresh calls Refresh at RefreshHz until ctx is done.
func (p *Pipeline) RunRefresh(ctx context.Context) {
	ticker := p.clock.NewTicker(time.Second / time.Duration(p.cfg.RefreshHz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.Refresh()
		}
	}
}

// Run runs the refresh and inference loops until ctx is done. If setup
// fails the lens stays at its rest position until cancellation, and the
// setup error is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.RunRefresh(ctx)
	}()

	err := p.RunInference(ctx)
	if err != nil && !errors.Is(err, ErrAlreadyRunning) {
		<-ctx.Done()
	}
	cancel()
	wg.Wait()
	return err
}

// Status is a point-in-time snapshot of the pipeline.
type Status struct {
	State           State     `json:"state"`
	Error           string    `json:"error,omitempty"`
	ErrorKind       string    `json:"error_kind,omitempty"`
	Target          geom.Vec2 `json:"target"`
	Current         geom.Vec2 `json:"current"`
	Rest            geom.Vec2 `json:"rest"`
	Viewport        geom.Size `json:"viewport"`
	Cycles          uint64    `json:"cycles"`
	Detections      uint64    `json:"detections"`
	Misses          uint64    `json:"misses"`
	InferenceErrors uint64    `json:"inference_errors"`
	Refreshes       uint64    `json:"refreshes"`
}

// Status returns a snapshot safe to call from any goroutine.
func (p *Pipeline) Status() Status {
	s := Status{
		State:           p.State(),
		Target:          p.target.Load(),
		Current:         p.shown.Load(),
		Rest:            p.rest,
		Viewport:        p.viewport.Viewport(),
		Cycles:          p.cycles.Load(),
		Detections:      p.detections.Load(),
		Misses:          p.misses.Load(),
		InferenceErrors: p.inferenceErrors.Load(),
		Refreshes:       p.refreshes.Load(),
	}
	if err := p.Err(); err != nil {
		s.Error = err.Error()
		s.ErrorKind = ErrorKind(err)
	}
	return s
}

// ErrorKind names the class of a setup failure.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, capture.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, pose.ErrModelLoad):
		return "model_load"
	}
	return "setup"
}
