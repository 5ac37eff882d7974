// Package pose integrates hand-pose inference backends. An Estimator turns a
// captured frame into zero or more HandEstimates; an empty result is the
// normal "no hand" case and never an error.
package pose

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/lense/internal/capture"
)

var (
	// ErrModelLoad is returned (wrapped) when the backing model cannot be
	// initialised, e.g. the model assets cannot be fetched.
	ErrModelLoad = errors.New("pose model load failed")
	// ErrInference is returned (wrapped) for a single failed estimation,
	// e.g. a malformed frame or response.
	ErrInference = errors.New("pose inference failed")
)

// ModelConfig is fixed at initialisation.
type ModelConfig struct {
	Model        string `json:"model"`
	Runtime      string `json:"runtime"`
	ModelType    string `json:"model_type"`
	MaxHands     int    `json:"max_hands"`
	SolutionPath string `json:"solution_path"`
}

// DefaultModelConfig returns the MediaPipe Hands configuration tracking a
// single hand at full detail.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Model:        "mediapipe_hands",
		Runtime:      "mediapipe",
		ModelType:    "full",
		MaxHands:     1,
		SolutionPath: "https://cdn.jsdelivr.net/npm/@mediapipe/hands",
	}
}

// Validate checks the configuration before a load is attempted.
func (c ModelConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model name is required")
	}
	if c.MaxHands < 1 {
		return fmt.Errorf("max hands must be at least 1, got %d", c.MaxHands)
	}
	return nil
}

// Estimator runs inference on one frame at a time.
type Estimator interface {
	// Estimate blocks until inference completes. No timeout is imposed
	// beyond ctx.
	Estimate(ctx context.Context, frame capture.Frame) ([]HandEstimate, error)
	// Close releases the model.
	Close() error
}

// Loader initialises a model and returns an Estimator bound to it.
type Loader interface {
	Load(ctx context.Context, cfg ModelConfig) (Estimator, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, cfg ModelConfig) (Estimator, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, cfg ModelConfig) (Estimator, error) {
	return f(ctx, cfg)
}

// validateFrame rejects frames no backend can run on.
func validateFrame(f capture.Frame) error {
	if !f.Size.Valid() {
		return fmt.Errorf("%w: frame %d has invalid size %s", ErrInference, f.Seq, f.Size)
	}
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: frame %d has no data", ErrInference, f.Seq)
	}
	return nil
}
