package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/lense/internal/geom"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// Defaults applied by the Get* accessors when a field is unset.
const (
	DefaultSmoothingAlpha  = 0.1
	DefaultCaptureWidth    = 640
	DefaultCaptureHeight   = 480
	DefaultKeypointIndex   = 12 // MediaPipe middle finger tip
	DefaultRefreshHz       = 60
	DefaultModel           = "mediapipe_hands"
	DefaultRuntime         = "mediapipe"
	DefaultModelType       = "full"
	DefaultMaxHands        = 1
	DefaultSolutionPath    = "https://cdn.jsdelivr.net/npm/@mediapipe/hands"
	DefaultFlushInterval   = 2 * time.Second
	DefaultPositionEvery   = 1
	DefaultPointerMinDelta = 0.005
)

// TuningConfig represents the root configuration for tracking parameters.
// Every field is optional: omitted fields fall back to the defaults above
// through the Get* accessors, so partial configs are safe.
type TuningConfig struct {
	// Smoothing
	SmoothingAlpha *float64 `json:"smoothing_alpha,omitempty"`
	RestX          *float64 `json:"rest_x,omitempty"` // viewport pixels; unset means viewport centre
	RestY          *float64 `json:"rest_y,omitempty"`

	// Capture frame logical size
	CaptureWidth  *int `json:"capture_width,omitempty"`
	CaptureHeight *int `json:"capture_height,omitempty"`

	// Keypoint selection
	KeypointIndex *int `json:"keypoint_index,omitempty"`

	// Loop pacing
	RefreshHz         *int    `json:"refresh_hz,omitempty"`
	InferenceInterval *string `json:"inference_interval,omitempty"` // duration string; unset means one refresh period

	// Model
	Model        *string `json:"model,omitempty"`
	Runtime      *string `json:"runtime,omitempty"`
	ModelType    *string `json:"model_type,omitempty"`
	MaxHands     *int    `json:"max_hands,omitempty"`
	SolutionPath *string `json:"solution_path,omitempty"`

	// Session recording
	FlushInterval *string `json:"flush_interval,omitempty"` // duration string like "2s"
	PositionEvery *int    `json:"position_every,omitempty"` // record every Nth refresh sample

	// Pointer device
	PointerMinDelta *float64 `json:"pointer_min_delta,omitempty"` // NDC units
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		SmoothingAlpha:  ptrFloat64(DefaultSmoothingAlpha),
		CaptureWidth:    ptrInt(DefaultCaptureWidth),
		CaptureHeight:   ptrInt(DefaultCaptureHeight),
		KeypointIndex:   ptrInt(DefaultKeypointIndex),
		RefreshHz:       ptrInt(DefaultRefreshHz),
		Model:           ptrString(DefaultModel),
		Runtime:         ptrString(DefaultRuntime),
		ModelType:       ptrString(DefaultModelType),
		MaxHands:        ptrInt(DefaultMaxHands),
		SolutionPath:    ptrString(DefaultSolutionPath),
		FlushInterval:   ptrString(DefaultFlushInterval.String()),
		PositionEvery:   ptrInt(DefaultPositionEvery),
		PointerMinDelta: ptrFloat64(DefaultPointerMinDelta),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/lense/ and deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SmoothingAlpha != nil {
		// alpha == 1 would snap current onto target
		if *c.SmoothingAlpha <= 0 || *c.SmoothingAlpha >= 1 {
			return fmt.Errorf("smoothing_alpha must be in (0, 1), got %f", *c.SmoothingAlpha)
		}
	}
	if c.CaptureWidth != nil && *c.CaptureWidth <= 0 {
		return fmt.Errorf("capture_width must be positive, got %d", *c.CaptureWidth)
	}
	if c.CaptureHeight != nil && *c.CaptureHeight <= 0 {
		return fmt.Errorf("capture_height must be positive, got %d", *c.CaptureHeight)
	}
	if c.KeypointIndex != nil && (*c.KeypointIndex < 0 || *c.KeypointIndex > 20) {
		return fmt.Errorf("keypoint_index must be between 0 and 20, got %d", *c.KeypointIndex)
	}
	if c.RefreshHz != nil && (*c.RefreshHz <= 0 || *c.RefreshHz > 1000) {
		return fmt.Errorf("refresh_hz must be between 1 and 1000, got %d", *c.RefreshHz)
	}
	if c.InferenceInterval != nil && *c.InferenceInterval != "" {
		d, err := time.ParseDuration(*c.InferenceInterval)
		if err != nil {
			return fmt.Errorf("invalid inference_interval '%s': %w", *c.InferenceInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("inference_interval must be non-negative, got %s", d)
		}
	}
	if c.MaxHands != nil && *c.MaxHands != 1 {
		// only the first hand is ever consumed
		return fmt.Errorf("max_hands must be 1, got %d", *c.MaxHands)
	}
	if c.ModelType != nil {
		switch *c.ModelType {
		case "full", "lite":
		default:
			return fmt.Errorf("model_type must be \"full\" or \"lite\", got %q", *c.ModelType)
		}
	}
	if c.FlushInterval != nil && *c.FlushInterval != "" {
		if _, err := time.ParseDuration(*c.FlushInterval); err != nil {
			return fmt.Errorf("invalid flush_interval '%s': %w", *c.FlushInterval, err)
		}
	}
	if c.PositionEvery != nil && *c.PositionEvery < 0 {
		return fmt.Errorf("position_every must be non-negative, got %d", *c.PositionEvery)
	}
	if c.PointerMinDelta != nil && *c.PointerMinDelta < 0 {
		return fmt.Errorf("pointer_min_delta must be non-negative, got %f", *c.PointerMinDelta)
	}
	if (c.RestX == nil) != (c.RestY == nil) {
		return fmt.Errorf("rest_x and rest_y must be set together")
	}
	return nil
}

// GetSmoothingAlpha returns the damping factor or the default.
func (c *TuningConfig) GetSmoothingAlpha() float64 {
	if c.SmoothingAlpha == nil {
		return DefaultSmoothingAlpha
	}
	return *c.SmoothingAlpha
}

// GetRestPosition returns the configured rest position and whether one is set.
func (c *TuningConfig) GetRestPosition() (x, y float64, ok bool) {
	if c.RestX == nil || c.RestY == nil {
		return 0, 0, false
	}
	return *c.RestX, *c.RestY, true
}

// GetCaptureWidth returns the capture frame width or the default.
func (c *TuningConfig) GetCaptureWidth() int {
	if c.CaptureWidth == nil {
		return DefaultCaptureWidth
	}
	return *c.CaptureWidth
}

// GetCaptureHeight returns the capture frame height or the default.
func (c *TuningConfig) GetCaptureHeight() int {
	if c.CaptureHeight == nil {
		return DefaultCaptureHeight
	}
	return *c.CaptureHeight
}

// GetCaptureSize returns the capture frame size.
func (c *TuningConfig) GetCaptureSize() geom.Size {
	return geom.Size{Width: c.GetCaptureWidth(), Height: c.GetCaptureHeight()}
}

// GetKeypointIndex returns the tracked keypoint index or the default.
func (c *TuningConfig) GetKeypointIndex() int {
	if c.KeypointIndex == nil {
		return DefaultKeypointIndex
	}
	return *c.KeypointIndex
}

// GetRefreshHz returns the headless refresh rate or the default.
func (c *TuningConfig) GetRefreshHz() int {
	if c.RefreshHz == nil {
		return DefaultRefreshHz
	}
	return *c.RefreshHz
}

// GetInferenceInterval returns the pause between inference cycles. An unset
// value means one refresh period.
func (c *TuningConfig) GetInferenceInterval() time.Duration {
	period := time.Second / time.Duration(c.GetRefreshHz())
	if c.InferenceInterval == nil || *c.InferenceInterval == "" {
		return period
	}
	d, err := time.ParseDuration(*c.InferenceInterval)
	if err != nil {
		return period // default on parse error
	}
	return d
}

// GetModel returns the model name or the default.
func (c *TuningConfig) GetModel() string {
	if c.Model == nil || *c.Model == "" {
		return DefaultModel
	}
	return *c.Model
}

// GetRuntime returns the model runtime or the default.
func (c *TuningConfig) GetRuntime() string {
	if c.Runtime == nil || *c.Runtime == "" {
		return DefaultRuntime
	}
	return *c.Runtime
}

// GetModelType returns the model detail level or the default.
func (c *TuningConfig) GetModelType() string {
	if c.ModelType == nil || *c.ModelType == "" {
		return DefaultModelType
	}
	return *c.ModelType
}

// GetMaxHands returns the maximum tracked hands or the default.
func (c *TuningConfig) GetMaxHands() int {
	if c.MaxHands == nil {
		return DefaultMaxHands
	}
	return *c.MaxHands
}

// GetSolutionPath returns the model asset location or the default.
func (c *TuningConfig) GetSolutionPath() string {
	if c.SolutionPath == nil || *c.SolutionPath == "" {
		return DefaultSolutionPath
	}
	return *c.SolutionPath
}

// GetFlushInterval parses and returns the FlushInterval as a time.Duration.
func (c *TuningConfig) GetFlushInterval() time.Duration {
	if c.FlushInterval == nil || *c.FlushInterval == "" {
		return DefaultFlushInterval
	}
	d, err := time.ParseDuration(*c.FlushInterval)
	if err != nil {
		return DefaultFlushInterval // default on parse error
	}
	return d
}

// GetPositionEvery returns the refresh sample decimation or the default.
// Zero disables position recording.
func (c *TuningConfig) GetPositionEvery() int {
	if c.PositionEvery == nil {
		return DefaultPositionEvery
	}
	return *c.PositionEvery
}

// GetPointerMinDelta returns the pointer device write threshold or the default.
func (c *TuningConfig) GetPointerMinDelta() float64 {
	if c.PointerMinDelta == nil {
		return DefaultPointerMinDelta
	}
	return *c.PointerMinDelta
}
