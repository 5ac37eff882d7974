package api

import (
	"bytes"
	"image/png"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lense/internal/config"
	"github.com/banshee-data/lense/internal/db"
	"github.com/banshee-data/lense/internal/geom"
	"github.com/banshee-data/lense/internal/lense"
	"github.com/banshee-data/lense/internal/monitoring"
	"github.com/banshee-data/lense/internal/serialmux"
	"github.com/banshee-data/lense/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

type stubStatus lense.Status

func (s stubStatus) Status() lense.Status { return lense.Status(s) }

var tracking = stubStatus{
	State:      lense.StateTracking,
	Target:     geom.Vec2{X: 960, Y: 540},
	Current:    geom.Vec2{X: 900, Y: 500},
	Viewport:   geom.Size{Width: 1920, Height: 1080},
	Cycles:     12,
	Detections: 9,
}

func newSessionDB(t *testing.T) (*db.DB, string) {
	t.Helper()
	d, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	s := &db.Session{Source: "synthetic", Viewport: geom.Size{Width: 800, Height: 600}}
	require.NoError(t, d.CreateSession(s))

	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, d.InsertDetections(s.ID, []lense.Detection{
		{At: at, Outcome: lense.OutcomeTracked, Target: geom.Vec2{X: 100}, Latency: 10 * time.Millisecond},
		{At: at.Add(time.Second), Outcome: lense.OutcomeNoHand, Target: geom.Vec2{X: 100}, Latency: 20 * time.Millisecond},
	}))
	var samples []lense.Sample
	cur := geom.Vec2{}
	for i := 0; i < 20; i++ {
		cur = cur.Add(geom.Vec2{X: 100}.Sub(cur).Scale(0.1))
		samples = append(samples, lense.Sample{
			At:       at.Add(time.Duration(i) * 16 * time.Millisecond),
			Target:   geom.Vec2{X: 100},
			Current:  cur,
			Viewport: geom.Size{Width: 800, Height: 600},
		})
	}
	require.NoError(t, d.InsertSamples(s.ID, samples))
	return d, s.ID
}

func TestStatus(t *testing.T) {
	device := serialmux.NewDeviceState()
	device.HandleEvent("ok")
	mux := NewServer(tracking, nil, WithDevice(device), WithSession(func() string { return "abc" })).ServeMux()

	rec := testutil.Serve(mux, http.MethodGet, "/api/status")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got StatusResponse
	testutil.DecodeJSON(t, rec, &got)
	assert.Equal(t, lense.StateTracking, got.State)
	assert.Equal(t, geom.Vec2{X: 960, Y: 540}, got.Target)
	assert.Equal(t, uint64(12), got.Cycles)
	assert.Equal(t, "abc", got.Session)
	require.NotNil(t, got.Device)
	assert.Equal(t, uint64(1), got.Device.Acks)

	rec = testutil.Serve(mux, http.MethodPost, "/api/status")
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestConfig_DefaultsFilled(t *testing.T) {
	tuning := config.EmptyTuningConfig()
	alpha := 0.25
	tuning.SmoothingAlpha = &alpha
	mux := NewServer(tracking, tuning).ServeMux()

	rec := testutil.Serve(mux, http.MethodGet, "/api/config")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got ConfigResponse
	testutil.DecodeJSON(t, rec, &got)
	assert.Equal(t, 0.25, got.SmoothingAlpha)
	assert.Equal(t, config.DefaultKeypointIndex, got.KeypointIndex)
	assert.Equal(t, config.DefaultRefreshHz, got.RefreshHz)
	assert.Equal(t, config.DefaultModel, got.Model)
}

func TestVersion(t *testing.T) {
	rec := testutil.Serve(NewServer(tracking, nil).ServeMux(), http.MethodGet, "/api/version")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var got map[string]string
	testutil.DecodeJSON(t, rec, &got)
	assert.Contains(t, got, "version")
}

func TestSessions_NoDB(t *testing.T) {
	mux := NewServer(tracking, nil).ServeMux()
	for _, path := range []string{"/api/sessions", "/api/sessions/x", "/api/sessions/x/trajectory.png"} {
		rec := testutil.Serve(mux, http.MethodGet, path)
		testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)
	}
}

func TestSessions(t *testing.T) {
	d, id := newSessionDB(t)
	mux := NewServer(tracking, nil, WithDB(d)).ServeMux()

	rec := testutil.Serve(mux, http.MethodGet, "/api/sessions")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var list []db.Session
	testutil.DecodeJSON(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	rec = testutil.Serve(mux, http.MethodGet, "/api/sessions?limit=bad")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = testutil.Serve(mux, http.MethodGet, "/api/sessions/"+id)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var got SessionResponse
	testutil.DecodeJSON(t, rec, &got)
	assert.Equal(t, "synthetic", got.Session.Source)
	assert.Equal(t, 2, got.Summary.Detections)
	assert.Equal(t, 1, got.Summary.Outcomes[lense.OutcomeTracked])
	assert.Equal(t, 20, got.Summary.Samples)
	assert.InDelta(t, 15, got.Summary.Latency.MeanMs, 1e-6)

	rec = testutil.Serve(mux, http.MethodGet, "/api/sessions/missing")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestTrajectory(t *testing.T) {
	d, id := newSessionDB(t)
	mux := NewServer(tracking, nil, WithDB(d)).ServeMux()

	rec := testutil.Serve(mux, http.MethodGet, "/api/sessions/"+id+"/trajectory.html")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Lens path")

	rec = testutil.Serve(mux, http.MethodGet, "/api/sessions/"+id+"/trajectory.png")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)

	empty := &db.Session{}
	require.NoError(t, d.CreateSession(empty))
	rec = testutil.Serve(mux, http.MethodGet, "/api/sessions/"+empty.ID+"/trajectory.html")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) { lines = append(lines, format) })
	defer monitoring.SetLogger(nil)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := testutil.Serve(h, http.MethodGet, "/x")
	testutil.AssertStatusCode(t, rec.Code, http.StatusTeapot)
	assert.Len(t, lines, 1)
	assert.Contains(t, statusCodeColor(http.StatusTeapot), "418")
	assert.Equal(t, "100", statusCodeColor(100))
}
