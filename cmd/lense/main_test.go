package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lense/internal/capture"
	"github.com/banshee-data/lense/internal/config"
	"github.com/banshee-data/lense/internal/db"
	"github.com/banshee-data/lense/internal/fsutil"
	"github.com/banshee-data/lense/internal/geom"
	"github.com/banshee-data/lense/internal/httputil"
	"github.com/banshee-data/lense/internal/lense"
)

func TestParseFlags_Defaults(t *testing.T) {
	o, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, cameraWebcam, o.camera)
	assert.Equal(t, "localhost:50051", o.poseAddr)
	assert.Equal(t, geom.Size{Width: 1280, Height: 720}, o.viewportSize)
	assert.True(t, o.recording())
}

func TestParseFlags_DevMode(t *testing.T) {
	o, err := parseFlags([]string{"-dev", "-headless", "-viewport", "1920x1080"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, cameraSynthetic, o.camera)
	assert.Equal(t, "fixtures/hands.jsonl", o.fixture)
	assert.True(t, o.headless)
	assert.Equal(t, geom.Size{Width: 1920, Height: 1080}, o.viewportSize)

	o, err = parseFlags([]string{"-dev", "-camera", "denied", "-fixture", "other.jsonl"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, cameraDenied, o.camera, "explicit flags win over dev defaults")
	assert.Equal(t, "other.jsonl", o.fixture)
}

func TestParseFlags_Invalid(t *testing.T) {
	tests := [][]string{
		{"-camera", "polaroid"},
		{"-camera", "pcap"},
		{"-viewport", "wide"},
		{"-pose", ""},
		{"-pose-listen", ":0"},
		{"-fps", "0"},
		{"-pointer", "/dev/ttyACM0", "-framing", "9N1"},
		{"-pointer", "/dev/ttyACM0", "-baud", "1234"},
		{"-no-such-flag"},
	}
	for _, args := range tests {
		_, err := parseFlags(args, io.Discard)
		assert.Error(t, err, "%v", args)
	}
}

func TestParseFlags_NoRecord(t *testing.T) {
	o, err := parseFlags([]string{"-no-record"}, io.Discard)
	require.NoError(t, err)
	assert.False(t, o.recording())

	o, err = parseFlags([]string{"-db", ""}, io.Discard)
	require.NoError(t, err)
	assert.False(t, o.recording())
}

func TestNewSource(t *testing.T) {
	tuning := config.EmptyTuningConfig()

	o := &options{camera: cameraDenied, captureFPS: 30}
	_, err := newSource(o, tuning).Acquire(context.Background())
	assert.ErrorIs(t, err, capture.ErrPermissionDenied)

	o = &options{camera: cameraPcap, pcapPath: "x.pcap", captureFPS: 30}
	replay, ok := newSource(o, tuning).(*capture.PcapReplay)
	require.True(t, ok)
	assert.Equal(t, geom.Size{Width: 640, Height: 480}, replay.Size)

	o = &options{camera: cameraWebcam, device: 2, captureFPS: 15}
	cam, ok := newSource(o, tuning).(*capture.Webcam)
	require.True(t, ok)
	assert.Equal(t, 2, cam.Device)
}

func TestLoadTuning_Env(t *testing.T) {
	t.Setenv("LENSE_SMOOTHING_ALPHA", "0.3")
	tuning, err := loadTuning("")
	require.NoError(t, err)
	assert.Equal(t, 0.3, tuning.GetSmoothingAlpha())

	t.Setenv("LENSE_SMOOTHING_ALPHA", "1.5")
	_, err = loadTuning("")
	assert.Error(t, err)
}

func TestMigrateDBPath_Env(t *testing.T) {
	got, err := migrateDBPath()
	require.NoError(t, err)
	assert.Equal(t, defaultDBPath, got)

	t.Setenv("LENSE_DB", "/tmp/other.db")
	got, err = migrateDBPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", got)

	t.Setenv("LENSE_REFRESH_HZ", "fast")
	_, err = migrateDBPath()
	assert.Error(t, err, "malformed LENSE_* variables are reported")
}

func TestRunStatus(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"state":"error","error":"acquire camera: permission denied","error_kind":"permission_denied","viewport":{"width":800,"height":600},"cycles":0}`).
		AddErrorResponse(errors.New("connection refused"))

	var out bytes.Buffer
	require.NoError(t, runStatus(context.Background(), []string{"-addr", "localhost:9999"}, &out, mock))
	assert.Contains(t, out.String(), "state:      error")
	assert.Contains(t, out.String(), "permission_denied")
	assert.Contains(t, out.String(), "800x600")

	assert.Error(t, runStatus(context.Background(), nil, &out, mock))
}

func TestRunReport(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "lense.db")
	store, err := db.NewDB(dbPath)
	require.NoError(t, err)
	sess := &db.Session{Source: "synthetic"}
	require.NoError(t, store.CreateSession(sess))
	require.NoError(t, store.InsertSamples(sess.ID, []lense.Sample{
		{At: time.Unix(100, 0), Target: geom.Vec2{X: 10}, Current: geom.Vec2{X: 1}, Viewport: geom.Size{Width: 100, Height: 100}},
		{At: time.Unix(101, 0), Target: geom.Vec2{X: 10}, Current: geom.Vec2{X: 1.9}, Viewport: geom.Size{Width: 100, Height: 100}},
	}))
	require.NoError(t, store.Close())

	fsys := fsutil.NewMemoryFileSystem()
	outDir := filepath.Join(os.TempDir(), "lense-report-test")
	var out bytes.Buffer
	require.NoError(t, runReport([]string{"-db", dbPath, "-out", outDir}, &out, fsys))
	assert.Contains(t, out.String(), filepath.Join(outDir, sess.ID, "trajectory.png"))
	assert.True(t, fsys.Exists(filepath.Join(outDir, sess.ID, "summary.json")))

	assert.Error(t, runReport([]string{"-db", dbPath, "-out", outDir, "missing"}, &out, fsys))
	assert.Error(t, runReport([]string{"-db", dbPath, "-out", "/proc/x"}, &out, fsys))
}
