package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/lense/internal/api"
	"github.com/banshee-data/lense/internal/httputil"
)

// runStatus prints the status of a running instance.
func runStatus(ctx context.Context, args []string, out io.Writer, hc httputil.HTTPClient) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(out)
	addr := fs.String("addr", "localhost:8080", "Address of a running lense API")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var st api.StatusResponse
	if err := httputil.NewClient(*addr, hc).GetJSON(ctx, "/api/status", &st); err != nil {
		return err
	}
	fmt.Fprintf(out, "state:      %s\n", st.State)
	if st.Error != "" {
		fmt.Fprintf(out, "error:      %s (%s)\n", st.Error, st.ErrorKind)
	}
	fmt.Fprintf(out, "viewport:   %s\n", st.Viewport)
	fmt.Fprintf(out, "target:     %s\n", st.Target)
	fmt.Fprintf(out, "current:    %s\n", st.Current)
	fmt.Fprintf(out, "cycles:     %d (detections %d, misses %d, errors %d)\n",
		st.Cycles, st.Detections, st.Misses, st.InferenceErrors)
	if st.Session != "" {
		fmt.Fprintf(out, "session:    %s\n", st.Session)
	}
	if st.Device != nil {
		fmt.Fprintf(out, "pointer:    %d acks, %d errors\n", st.Device.Acks, st.Device.Errors)
	}
	return nil
}
