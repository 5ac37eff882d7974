package serialmux

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

var errPortClosed = errors.New("serial port closed")

// LoopbackPort emulates a pointer device: every command written to it is
// answered with "ok", and "S?" additionally with a JSON status line
// reporting the last pointer position. It lets dev mode run the whole
// serial path without hardware. Replies are dropped if nobody reads them.
type LoopbackPort struct {
	mu     sync.Mutex
	r      *io.PipeReader
	w      *io.PipeWriter
	out    chan string
	done   chan struct{}
	buf    []byte
	x, y   string
	moves  int
	closed bool
}

// NewLoopbackPort returns an open loopback device.
func NewLoopbackPort() *LoopbackPort {
	r, w := io.Pipe()
	l := &LoopbackPort{
		r:    r,
		w:    w,
		out:  make(chan string, 64),
		done: make(chan struct{}),
		x:    "0",
		y:    "0",
	}
	go l.pump()
	return l
}

// NewLoopbackSerialMux wraps a new LoopbackPort in a SerialMux.
func NewLoopbackSerialMux() *SerialMux[*LoopbackPort] {
	return NewSerialMux(NewLoopbackPort())
}

func (l *LoopbackPort) pump() {
	for {
		select {
		case <-l.done:
			return
		case line := <-l.out:
			if _, err := io.WriteString(l.w, line+"\n"); err != nil {
				return
			}
		}
	}
}

func (l *LoopbackPort) Read(p []byte) (int, error) { return l.r.Read(p) }

// Write accepts newline-terminated commands and queues replies.
func (l *LoopbackPort) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, errPortClosed
	}
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		cmd := strings.TrimSpace(string(l.buf[:i]))
		l.buf = l.buf[i+1:]
		for _, r := range l.reply(cmd) {
			select {
			case l.out <- r:
			default:
			}
		}
	}
	return len(p), nil
}

// Moves reports how many pointer commands the device accepted.
func (l *LoopbackPort) Moves() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.moves
}

func (l *LoopbackPort) reply(cmd string) []string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "P":
		if len(fields) != 3 {
			return []string{"err bad pointer command"}
		}
		l.x, l.y = fields[1], fields[2]
		l.moves++
	case "H":
		l.x, l.y = "0", "0"
	case "S?":
		return []string{"ok", fmt.Sprintf(`{"status":"ready","x":%s,"y":%s,"moves":%d}`, l.x, l.y, l.moves)}
	}
	return []string{"ok"}
}

// Close closes the device; reads then return io.EOF.
func (l *LoopbackPort) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.done)
	return l.w.Close()
}

// TestableSerialPort is an in-memory SerialPorter for tests. Reads drain
// data queued with AddReadData. Writes are captured for GetWrittenData.
type TestableSerialPort struct {
	mu    sync.Mutex
	ready *sync.Cond
	in    bytes.Buffer
	out   bytes.Buffer

	// ReadError and WriteError fail the next Read or Write once.
	ReadError  error
	WriteError error
	// BlockReads makes Read wait for data instead of returning io.EOF.
	BlockReads bool
	Closed     bool
}

func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.ready = sync.NewCond(&p.mu)
	return p
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ReadError; err != nil {
		p.ReadError = nil
		return 0, err
	}
	for p.BlockReads && !p.Closed && p.in.Len() == 0 {
		p.ready.Wait()
	}
	if p.Closed {
		return 0, errPortClosed
	}
	return p.in.Read(b)
}

func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Closed {
		return 0, errPortClosed
	}
	if err := p.WriteError; err != nil {
		p.WriteError = nil
		return 0, err
	}
	return p.out.Write(b)
}

func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	p.ready.Broadcast()
	return nil
}

// AddReadData queues data for Read and wakes a blocked reader.
func (p *TestableSerialPort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.Write(data)
	p.ready.Signal()
}

// GetWrittenData returns a copy of everything written so far.
func (p *TestableSerialPort) GetWrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.out.Bytes())
}
