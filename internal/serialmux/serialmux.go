// Package serialmux drives the physical lens pointer over a serial line.
// One reader fans device lines out to any number of subscribers while
// commands from the render loop and the admin pages share the write side.
package serialmux

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"tailscale.com/tsweb"
)

var (
	ErrWriteFailed = errors.New("failed to write to serial port")
	// ErrInvalidCommand rejects commands that would be split into several
	// lines on the wire.
	ErrInvalidCommand = errors.New("invalid pointer command")
)

//go:embed templates/*
var adminTemplateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-command.html.tmpl"))

// subscriberBuffer is how many lines a slow subscriber may fall behind
// before it starts missing lines.
const subscriberBuffer = 64

// SerialMuxInterface is implemented by SerialMux and DisabledSerialMux.
type SerialMuxInterface interface {
	// Subscribe returns an ID and a channel of device lines.
	Subscribe() (string, chan string)
	// Unsubscribe closes and forgets the channel with the given ID.
	Unsubscribe(string)
	// SendCommand writes one command line to the device.
	SendCommand(string) error
	// Monitor reads device lines until ctx is done or the port fails.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the serial port.
	Close() error
	// Initialise puts the device into a known state.
	Initialise() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

var (
	_ SerialMuxInterface = (*SerialMux[SerialPorter])(nil)
	_ SerialMuxInterface = (*DisabledSerialMux)(nil)
)

// Stats counts traffic on the pointer line.
type Stats struct {
	CommandsSent uint64 `json:"commands_sent"`
	LinesRead    uint64 `json:"lines_read"`
	LinesDropped uint64 `json:"lines_dropped"`
}

// SerialMux multiplexes one serial port between a reader and many
// subscribers.
type SerialMux[T SerialPorter] struct {
	port      T
	hub       *hub
	commandMu sync.Mutex

	sent    atomic.Uint64
	read    atomic.Uint64
	dropped atomic.Uint64
}

// NewSerialMux creates a SerialMux instance backed by the given port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{port: port, hub: newHub(subscriberBuffer)}
}

func (s *SerialMux[T]) Subscribe() (string, chan string) { return s.hub.subscribe() }

func (s *SerialMux[T]) Unsubscribe(id string) { s.hub.unsubscribe(id) }

// Stats returns the traffic counters.
func (s *SerialMux[T]) Stats() Stats {
	return Stats{
		CommandsSent: s.sent.Load(),
		LinesRead:    s.read.Load(),
		LinesDropped: s.dropped.Load(),
	}
}

// InitCommands are sent by Initialise, in order.
var InitCommands = []string{
	"AX", // reset to factory defaults
	"E0", // disable command echo
	"OJ", // report status as JSON
	"H",  // move the pointer home (viewport centre)
	"S?", // request a status line
}

// Initialise resets the pointer device and selects the output modes we can
// parse.
func (s *SerialMux[T]) Initialise() error {
	for _, command := range InitCommands {
		if err := s.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}
	return nil
}

// SendCommand writes command followed by a newline. A trailing newline is
// accepted; embedded ones are not.
func (s *SerialMux[T]) SendCommand(command string) error {
	command = strings.TrimSuffix(command, "\n")
	if command == "" || strings.ContainsAny(command, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}
	line := []byte(command + "\n")

	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	n, err := s.port.Write(line)
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	s.sent.Add(1)
	return nil
}

// Monitor reads lines from the device and hands them to subscribers. It
// returns ctx.Err() on cancellation, nil at EOF or after Close, and the
// read error otherwise.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)
	lines := make(chan string)
	scanErr := make(chan error, 1)

	// the blocking scan.Scan will not interfere with our outer loop awaiting
	// lines & context cancellation.
	go func() {
		defer close(lines)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scan.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			s.read.Add(1)
			dropped, open := s.hub.broadcast(line)
			if !open {
				return nil
			}
			s.dropped.Add(uint64(dropped))
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.hub.close()
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("send-command", "send a command to the pointer device", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := sendCommandTemplate.Execute(buf, InitCommands); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	})

	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, ErrInvalidCommand) {
				code = http.StatusBadRequest
			}
			http.Error(w, err.Error(), code)
			return
		}
		fmt.Fprintf(w, "Wrote command %q to pointer device", command)
	})

	debug.HandleFunc("pointer-stats", "pointer line traffic counters", func(w http.ResponseWriter, r *http.Request) {
		st := s.Stats()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "commands sent: %d\nlines read:    %d\nlines dropped: %d\n", st.CommandsSent, st.LinesRead, st.LinesDropped)
	})

	// Server-Sent Events stream of lines coming from the device.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, adminTemplateFS, "templates/tail.js")
	})
}
