package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/lense/internal/fsutil"
	"github.com/banshee-data/lense/internal/lense"
	"github.com/banshee-data/lense/internal/security"
)

// SessionReport is written to summary.json.
type SessionReport struct {
	Session interface{} `json:"session"`
	Summary Summary     `json:"summary"`
}

// Export writes summary.json, and trajectory.html and trajectory.png when
// samples exist, into dir/<id>. It returns the written paths.
func Export(fsys fsutil.FileSystem, dir, id string, session interface{}, ds []lense.Detection, ss []lense.Sample) ([]string, error) {
	out := filepath.Join(dir, security.SanitizeFilename(id))
	if err := fsys.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(out, name)
		if err := fsys.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	summary, err := json.MarshalIndent(SessionReport{Session: session, Summary: Summarise(ds, ss)}, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := write("summary.json", append(summary, '\n')); err != nil {
		return written, err
	}
	if len(ss) == 0 {
		return written, nil
	}

	title := "session " + id
	var buf bytes.Buffer
	if err := WriteTrajectoryHTML(&buf, title, ss); err != nil {
		return written, err
	}
	if err := write("trajectory.html", buf.Bytes()); err != nil {
		return written, err
	}
	buf.Reset()
	if err := WriteTrajectoryPNG(&buf, title, ss); err != nil {
		return written, err
	}
	if err := write("trajectory.png", buf.Bytes()); err != nil {
		return written, err
	}
	return written, nil
}
