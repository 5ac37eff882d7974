package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvOverrides are tuning values read from LENSE_* environment variables.
// Unset variables leave the corresponding pointer nil.
type EnvOverrides struct {
	SmoothingAlpha    *float64 `env:"LENSE_SMOOTHING_ALPHA"`
	KeypointIndex     *int     `env:"LENSE_KEYPOINT_INDEX"`
	RefreshHz         *int     `env:"LENSE_REFRESH_HZ"`
	InferenceInterval *string  `env:"LENSE_INFERENCE_INTERVAL"`
	ModelType         *string  `env:"LENSE_MODEL_TYPE"`
	SolutionPath      *string  `env:"LENSE_SOLUTION_PATH"`
	FlushInterval     *string  `env:"LENSE_FLUSH_INTERVAL"`

	// DBPath is the session database used by subcommands that take no flags.
	DBPath *string `env:"LENSE_DB"`
}

// DatabasePath returns the LENSE_DB override, or fallback when unset or empty.
func (o EnvOverrides) DatabasePath(fallback string) string {
	if o.DBPath == nil || *o.DBPath == "" {
		return fallback
	}
	return *o.DBPath
}

// ParseEnvOverrides loads overrides from the process environment.
func ParseEnvOverrides() (EnvOverrides, error) {
	var o EnvOverrides
	if err := env.Parse(&o); err != nil {
		return EnvOverrides{}, fmt.Errorf("parse env: %w", err)
	}
	return o, nil
}

// ApplyEnv copies every set override onto cfg and re-validates it.
func (c *TuningConfig) ApplyEnv(o EnvOverrides) error {
	if o.SmoothingAlpha != nil {
		c.SmoothingAlpha = o.SmoothingAlpha
	}
	if o.KeypointIndex != nil {
		c.KeypointIndex = o.KeypointIndex
	}
	if o.RefreshHz != nil {
		c.RefreshHz = o.RefreshHz
	}
	if o.InferenceInterval != nil {
		c.InferenceInterval = o.InferenceInterval
	}
	if o.ModelType != nil {
		c.ModelType = o.ModelType
	}
	if o.SolutionPath != nil {
		c.SolutionPath = o.SolutionPath
	}
	if o.FlushInterval != nil {
		c.FlushInterval = o.FlushInterval
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	return nil
}
