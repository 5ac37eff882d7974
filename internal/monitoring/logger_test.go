package monitoring

import (
	"fmt"
	"testing"
	"time"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op that must not call the previous logger
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}

func TestThrottle(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	now := time.Unix(0, 0)
	th := NewThrottle(time.Second)
	th.now = func() time.Time { return now }

	if !th.Logf("inference failed: %v", "bad frame") {
		t.Fatal("first line should be emitted")
	}
	now = now.Add(100 * time.Millisecond)
	if th.Logf("inference failed: %v", "bad frame") {
		t.Fatal("line inside interval should be suppressed")
	}
	th.Logf("inference failed: %v", "bad frame")

	now = now.Add(time.Second)
	if !th.Logf("inference failed: %v", "bad frame") {
		t.Fatal("line after interval should be emitted")
	}

	want := []string{
		"inference failed: bad frame",
		"inference failed: bad frame (2 similar suppressed)",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %q, want %d", len(lines), lines, len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
