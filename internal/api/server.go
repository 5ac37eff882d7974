// Package api serves the tracker's JSON status and recorded session reports.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/lense/internal/config"
	"github.com/banshee-data/lense/internal/db"
	"github.com/banshee-data/lense/internal/httputil"
	"github.com/banshee-data/lense/internal/lense"
	"github.com/banshee-data/lense/internal/monitoring"
	"github.com/banshee-data/lense/internal/report"
	"github.com/banshee-data/lense/internal/serialmux"
	"github.com/banshee-data/lense/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// StatusSource reports the live pipeline state.
type StatusSource interface {
	Status() lense.Status
}

type Server struct {
	pipeline StatusSource
	tuning   *config.TuningConfig
	db       *db.DB
	device   *serialmux.DeviceState
	session  func() string
}

// Option configures optional Server backends.
type Option func(*Server)

// WithDB enables the session endpoints.
func WithDB(d *db.DB) Option { return func(s *Server) { s.db = d } }

// WithDevice reports the pointer device state in /api/status.
func WithDevice(d *serialmux.DeviceState) Option { return func(s *Server) { s.device = d } }

// WithSession reports the ID of the session currently being recorded.
func WithSession(id func() string) Option { return func(s *Server) { s.session = id } }

func NewServer(p StatusSource, tuning *config.TuningConfig, opts ...Option) *Server {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	s := &Server{pipeline: p, tuning: tuning}
	for _, o := range opts {
		o(s)
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.showSession)
	mux.HandleFunc("GET /api/sessions/{id}/trajectory.html", s.trajectoryHTML)
	mux.HandleFunc("GET /api/sessions/{id}/trajectory.png", s.trajectoryPNG)
	return mux
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	lense.Status
	Session string                    `json:"session,omitempty"`
	Device  *serialmux.DeviceSnapshot `json:"device,omitempty"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	resp := StatusResponse{Status: s.pipeline.Status()}
	if s.session != nil {
		resp.Session = s.session()
	}
	if s.device != nil {
		snap := s.device.Snapshot()
		resp.Device = &snap
	}
	httputil.WriteJSONOK(w, resp)
}

// ConfigResponse is the effective tuning, with defaults filled in.
type ConfigResponse struct {
	SmoothingAlpha      float64 `json:"smoothing_alpha"`
	CaptureWidth        int     `json:"capture_width"`
	CaptureHeight       int     `json:"capture_height"`
	KeypointIndex       int     `json:"keypoint_index"`
	RefreshHz           int     `json:"refresh_hz"`
	InferenceIntervalMs float64 `json:"inference_interval_ms"`
	Model               string  `json:"model"`
	Runtime             string  `json:"runtime"`
	ModelType           string  `json:"model_type"`
	MaxHands            int     `json:"max_hands"`
	SolutionPath        string  `json:"solution_path"`
	FlushIntervalMs     float64 `json:"flush_interval_ms"`
	PositionEvery       int     `json:"position_every"`
	PointerMinDelta     float64 `json:"pointer_min_delta"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	c := s.tuning
	httputil.WriteJSONOK(w, ConfigResponse{
		SmoothingAlpha:      c.GetSmoothingAlpha(),
		CaptureWidth:        c.GetCaptureWidth(),
		CaptureHeight:       c.GetCaptureHeight(),
		KeypointIndex:       c.GetKeypointIndex(),
		RefreshHz:           c.GetRefreshHz(),
		InferenceIntervalMs: float64(c.GetInferenceInterval()) / float64(time.Millisecond),
		Model:               c.GetModel(),
		Runtime:             c.GetRuntime(),
		ModelType:           c.GetModelType(),
		MaxHands:            c.GetMaxHands(),
		SolutionPath:        c.GetSolutionPath(),
		FlushIntervalMs:     float64(c.GetFlushInterval()) / float64(time.Millisecond),
		PositionEvery:       c.GetPositionEvery(),
		PointerMinDelta:     c.GetPointerMinDelta(),
	})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.ServiceUnavailable(w, "session recording is disabled")
		return false
	}
	return true
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) || !s.requireDB(w) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}
	sessions, err := s.db.ListSessions(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list sessions: %v", err))
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

// SessionResponse is the body of GET /api/sessions/{id}.
type SessionResponse struct {
	Session *db.Session    `json:"session"`
	Summary report.Summary `json:"summary"`
}

// loadSession writes the error response itself and returns nil on failure.
func (s *Server) loadSession(w http.ResponseWriter, id string) *db.Session {
	if !s.requireDB(w) {
		return nil
	}
	sess, err := s.db.GetSession(id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("session %s not found", id))
		return nil
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return nil
	}
	return sess
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r.PathValue("id"))
	if sess == nil {
		return
	}
	ds, err := s.db.Detections(sess.ID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load detections: %v", err))
		return
	}
	ss, err := s.db.Samples(sess.ID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load samples: %v", err))
		return
	}
	httputil.WriteJSONOK(w, SessionResponse{Session: sess, Summary: report.Summarise(ds, ss)})
}

func (s *Server) sessionSamples(w http.ResponseWriter, r *http.Request) (*db.Session, []lense.Sample, bool) {
	sess := s.loadSession(w, r.PathValue("id"))
	if sess == nil {
		return nil, nil, false
	}
	ss, err := s.db.Samples(sess.ID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load samples: %v", err))
		return nil, nil, false
	}
	if len(ss) == 0 {
		httputil.NotFound(w, "no samples recorded for this session")
		return nil, nil, false
	}
	return sess, ss, true
}

func (s *Server) trajectoryHTML(w http.ResponseWriter, r *http.Request) {
	sess, ss, ok := s.sessionSamples(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteTrajectoryHTML(&buf, "session "+sess.ID, ss); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	httputil.WriteBody(w, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) trajectoryPNG(w http.ResponseWriter, r *http.Request) {
	sess, ss, ok := s.sessionSamples(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteTrajectoryPNG(&buf, "session "+sess.ID, ss); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	httputil.WriteBody(w, "image/png", buf.Bytes())
}
