package db

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/lense/internal/geom"
	"github.com/banshee-data/lense/internal/lense"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// Session describes one tracking run.
type Session struct {
	ID             string     `json:"id"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Source         string     `json:"source"`
	Model          string     `json:"model"`
	Viewport       geom.Size  `json:"viewport"`
	SmoothingAlpha float64    `json:"smoothing_alpha"`
	KeypointIndex  int        `json:"keypoint_index"`
	FinalState     string     `json:"final_state,omitempty"`
	Error          string     `json:"error,omitempty"`
}

func toUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnix(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}

// CreateSession inserts s, assigning a new ID when s.ID is empty.
func (db *DB) CreateSession(s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	_, err := db.Exec(`INSERT INTO sessions (
			session_id, started_unix, source, model, viewport_width, viewport_height,
			smoothing_alpha, keypoint_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, toUnix(s.StartedAt), s.Source, s.Model, s.Viewport.Width, s.Viewport.Height,
		s.SmoothingAlpha, s.KeypointIndex,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// EndSession marks a session finished.
func (db *DB) EndSession(id string, endedAt time.Time, finalState, errMsg string) error {
	res, err := db.Exec(`UPDATE sessions SET ended_unix = ?, final_state = ?, error = ? WHERE session_id = ?`,
		toUnix(endedAt), finalState, errMsg, id)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("end session %s: %w", id, ErrNotFound)
	}
	return nil
}

const sessionColumns = `session_id, started_unix, ended_unix, source, model, viewport_width,
	viewport_height, smoothing_alpha, keypoint_index, final_state, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		s       Session
		started float64
		ended   sql.NullFloat64
	)
	if err := row.Scan(&s.ID, &started, &ended, &s.Source, &s.Model, &s.Viewport.Width,
		&s.Viewport.Height, &s.SmoothingAlpha, &s.KeypointIndex, &s.FinalState, &s.Error); err != nil {
		return s, err
	}
	s.StartedAt = fromUnix(started)
	if ended.Valid {
		t := fromUnix(ended.Float64)
		s.EndedAt = &t
	}
	return s, nil
}

// GetSession returns one session.
func (db *DB) GetSession(id string) (*Session, error) {
	s, err := scanSession(db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions returns the most recent sessions first.
func (db *DB) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+sessionColumns+` FROM sessions ORDER BY started_unix DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// InsertDetections appends detections to a session in one transaction.
func (db *DB) InsertDetections(sessionID string, ds []lense.Detection) error {
	if len(ds) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO detections (
			session_id, at_unix, frame_seq, outcome, keypoint_x, keypoint_y,
			target_x, target_y, latency_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range ds {
		if _, err := stmt.Exec(sessionID, toUnix(d.At), int64(d.FrameSeq), string(d.Outcome),
			d.Keypoint.X, d.Keypoint.Y, d.Target.X, d.Target.Y,
			float64(d.Latency)/float64(time.Millisecond), d.Err); err != nil {
			return fmt.Errorf("insert detection: %w", err)
		}
	}
	return tx.Commit()
}

// InsertSamples appends refresh samples to a session in one transaction.
func (db *DB) InsertSamples(sessionID string, ss []lense.Sample) error {
	if len(ss) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO positions (
			session_id, at_unix, target_x, target_y, current_x, current_y,
			viewport_width, viewport_height
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range ss {
		if _, err := stmt.Exec(sessionID, toUnix(s.At), s.Target.X, s.Target.Y,
			s.Current.X, s.Current.Y, s.Viewport.Width, s.Viewport.Height); err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
	}
	return tx.Commit()
}

// Detections returns a session's detections in time order.
func (db *DB) Detections(sessionID string) ([]lense.Detection, error) {
	rows, err := db.Query(`SELECT at_unix, frame_seq, outcome, keypoint_x, keypoint_y,
			target_x, target_y, latency_ms, error
		FROM detections WHERE session_id = ? ORDER BY at_unix, detection_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lense.Detection
	for rows.Next() {
		var (
			d         lense.Detection
			at        float64
			seq       int64
			outcome   string
			latencyMs float64
		)
		if err := rows.Scan(&at, &seq, &outcome, &d.Keypoint.X, &d.Keypoint.Y,
			&d.Target.X, &d.Target.Y, &latencyMs, &d.Err); err != nil {
			return nil, err
		}
		d.At = fromUnix(at)
		d.FrameSeq = uint64(seq)
		d.Outcome = lense.Outcome(outcome)
		d.Latency = time.Duration(latencyMs * float64(time.Millisecond))
		out = append(out, d)
	}
	return out, rows.Err()
}

// Samples returns a session's refresh samples in time order.
func (db *DB) Samples(sessionID string) ([]lense.Sample, error) {
	rows, err := db.Query(`SELECT at_unix, target_x, target_y, current_x, current_y,
			viewport_width, viewport_height
		FROM positions WHERE session_id = ? ORDER BY at_unix, position_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lense.Sample
	for rows.Next() {
		var (
			s  lense.Sample
			at float64
		)
		if err := rows.Scan(&at, &s.Target.X, &s.Target.Y, &s.Current.X, &s.Current.Y,
			&s.Viewport.Width, &s.Viewport.Height); err != nil {
			return nil, err
		}
		s.At = fromUnix(at)
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and everything recorded in it.
func (db *DB) DeleteSession(id string) error {
	res, err := db.Exec(`DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}
