package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/banshee-data/lense/internal/db"
	"github.com/banshee-data/lense/internal/fsutil"
	"github.com/banshee-data/lense/internal/report"
	"github.com/banshee-data/lense/internal/security"
)

// runReport exports a recorded session's summary and trajectory charts.
func runReport(args []string, out io.Writer, fsys fsutil.FileSystem) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(out)
	dbPath := fs.String("db", defaultDBPath, "Session database path")
	outDir := fs.String("out", "reports", "Directory to write the report into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := security.ValidateExportPath(*outDir); err != nil {
		return err
	}

	store, err := db.OpenDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open session database: %w", err)
	}
	defer store.Close()

	var id string
	switch fs.NArg() {
	case 0:
		sessions, err := store.ListSessions(1)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			return fmt.Errorf("no sessions recorded in %s", *dbPath)
		}
		id = sessions[0].ID
	case 1:
		id = fs.Arg(0)
	default:
		return fmt.Errorf("usage: lense report [-db path] [-out dir] [session-id]")
	}

	sess, err := store.GetSession(id)
	if err != nil {
		return err
	}
	ds, err := store.Detections(id)
	if err != nil {
		return err
	}
	ss, err := store.Samples(id)
	if err != nil {
		return err
	}
	paths, err := report.Export(fsys, *outDir, id, sess, ds, ss)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(out, p)
	}
	return nil
}
