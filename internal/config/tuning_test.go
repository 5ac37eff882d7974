package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.SmoothingAlpha == nil || *cfg.SmoothingAlpha != 0.1 {
		t.Errorf("Expected SmoothingAlpha 0.1, got %v", cfg.SmoothingAlpha)
	}
	if cfg.KeypointIndex == nil || *cfg.KeypointIndex != 12 {
		t.Errorf("Expected KeypointIndex 12, got %v", cfg.KeypointIndex)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	if cfg.GetCaptureWidth() != 640 || cfg.GetCaptureHeight() != 480 {
		t.Errorf("capture size = %dx%d, want 640x480", cfg.GetCaptureWidth(), cfg.GetCaptureHeight())
	}
	if cfg.GetFlushInterval() != 2*time.Second {
		t.Errorf("GetFlushInterval() = %v, want 2s", cfg.GetFlushInterval())
	}
	if _, _, ok := cfg.GetRestPosition(); ok {
		t.Error("rest position should be unset by default")
	}
}

func TestEmptyConfigGettersFallBack(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetSmoothingAlpha(); got != DefaultSmoothingAlpha {
		t.Errorf("GetSmoothingAlpha() = %f, want %f", got, DefaultSmoothingAlpha)
	}
	if got := cfg.GetModel(); got != DefaultModel {
		t.Errorf("GetModel() = %q, want %q", got, DefaultModel)
	}
	if got := cfg.GetRuntime(); got != DefaultRuntime {
		t.Errorf("GetRuntime() = %q, want %q", got, DefaultRuntime)
	}
	if got := cfg.GetModelType(); got != "full" {
		t.Errorf("GetModelType() = %q, want full", got)
	}
	if got := cfg.GetMaxHands(); got != 1 {
		t.Errorf("GetMaxHands() = %d, want 1", got)
	}
	if got := cfg.GetSolutionPath(); got != DefaultSolutionPath {
		t.Errorf("GetSolutionPath() = %q", got)
	}
	if got := cfg.GetPositionEvery(); got != 1 {
		t.Errorf("GetPositionEvery() = %d, want 1", got)
	}
	if got := cfg.GetPointerMinDelta(); got != DefaultPointerMinDelta {
		t.Errorf("GetPointerMinDelta() = %f", got)
	}
	if got := cfg.GetCaptureSize(); got.Width != 640 || got.Height != 480 {
		t.Errorf("GetCaptureSize() = %s, want 640x480", got)
	}
}

func TestGetInferenceInterval(t *testing.T) {
	cfg := EmptyTuningConfig()
	if got, want := cfg.GetInferenceInterval(), time.Second/60; got != want {
		t.Errorf("default GetInferenceInterval() = %v, want %v", got, want)
	}

	cfg.RefreshHz = ptrInt(30)
	if got, want := cfg.GetInferenceInterval(), time.Second/30; got != want {
		t.Errorf("GetInferenceInterval() at 30Hz = %v, want %v", got, want)
	}

	cfg.InferenceInterval = ptrString("0s")
	if got := cfg.GetInferenceInterval(); got != 0 {
		t.Errorf("explicit zero interval = %v, want 0", got)
	}

	cfg.InferenceInterval = ptrString("garbage")
	if got, want := cfg.GetInferenceInterval(), time.Second/30; got != want {
		t.Errorf("unparseable interval = %v, want fallback %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{name: "empty", cfg: TuningConfig{}},
		{name: "alpha zero", cfg: TuningConfig{SmoothingAlpha: ptrFloat64(0)}, wantErr: true},
		{name: "alpha one snaps", cfg: TuningConfig{SmoothingAlpha: ptrFloat64(1)}, wantErr: true},
		{name: "alpha valid", cfg: TuningConfig{SmoothingAlpha: ptrFloat64(0.5)}},
		{name: "capture width", cfg: TuningConfig{CaptureWidth: ptrInt(0)}, wantErr: true},
		{name: "capture height", cfg: TuningConfig{CaptureHeight: ptrInt(-1)}, wantErr: true},
		{name: "keypoint out of schema", cfg: TuningConfig{KeypointIndex: ptrInt(21)}, wantErr: true},
		{name: "refresh zero", cfg: TuningConfig{RefreshHz: ptrInt(0)}, wantErr: true},
		{name: "bad inference interval", cfg: TuningConfig{InferenceInterval: ptrString("soon")}, wantErr: true},
		{name: "negative inference interval", cfg: TuningConfig{InferenceInterval: ptrString("-1s")}, wantErr: true},
		{name: "two hands", cfg: TuningConfig{MaxHands: ptrInt(2)}, wantErr: true},
		{name: "unknown model type", cfg: TuningConfig{ModelType: ptrString("heavy")}, wantErr: true},
		{name: "lite model type", cfg: TuningConfig{ModelType: ptrString("lite")}},
		{name: "bad flush", cfg: TuningConfig{FlushInterval: ptrString("x")}, wantErr: true},
		{name: "negative position every", cfg: TuningConfig{PositionEvery: ptrInt(-1)}, wantErr: true},
		{name: "negative pointer delta", cfg: TuningConfig{PointerMinDelta: ptrFloat64(-0.1)}, wantErr: true},
		{name: "half rest", cfg: TuningConfig{RestX: ptrFloat64(1)}, wantErr: true},
		{name: "full rest", cfg: TuningConfig{RestX: ptrFloat64(1), RestY: ptrFloat64(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "tuning.json")

	testJSON := `{
  "smoothing_alpha": 0.25,
  "capture_width": 1280,
  "rest_x": 10,
  "rest_y": 20
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}
	if cfg.GetSmoothingAlpha() != 0.25 {
		t.Errorf("GetSmoothingAlpha() = %f, want 0.25", cfg.GetSmoothingAlpha())
	}
	if cfg.GetCaptureWidth() != 1280 {
		t.Errorf("GetCaptureWidth() = %d, want 1280", cfg.GetCaptureWidth())
	}
	// omitted field keeps its default
	if cfg.GetCaptureHeight() != 480 {
		t.Errorf("GetCaptureHeight() = %d, want 480", cfg.GetCaptureHeight())
	}
	x, y, ok := cfg.GetRestPosition()
	if !ok || x != 10 || y != 20 {
		t.Errorf("GetRestPosition() = %v, %v, %v", x, y, ok)
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := LoadTuningConfig(filepath.Join(tmpDir, "config.yaml")); err == nil {
		t.Error("expected error for non-json extension")
	}
	if _, err := LoadTuningConfig(filepath.Join(tmpDir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTuningConfig(bad); err == nil {
		t.Error("expected error for malformed JSON")
	}

	invalid := filepath.Join(tmpDir, "invalid.json")
	if err := os.WriteFile(invalid, []byte(`{"smoothing_alpha": 2}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTuningConfig(invalid); err == nil {
		t.Error("expected validation error for alpha > 1")
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetSmoothingAlpha() != DefaultSmoothingAlpha {
		t.Errorf("defaults file alpha = %f, want %f", cfg.GetSmoothingAlpha(), DefaultSmoothingAlpha)
	}
	if cfg.GetKeypointIndex() != DefaultKeypointIndex {
		t.Errorf("defaults file keypoint = %d, want %d", cfg.GetKeypointIndex(), DefaultKeypointIndex)
	}
}
