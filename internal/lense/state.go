package lense

import (
	"fmt"
	"sync/atomic"

	"github.com/banshee-data/lense/internal/geom"
)

// State is the tracking lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateTracking
	// StateError is terminal: the camera or model could not be set up.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateTracking:
		return "tracking"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, error) {
	for s := StateIdle; s <= StateError; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return StateIdle, fmt.Errorf("unknown state %q", name)
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// PositionCell holds a position written by one goroutine and read by
// others without locking. The zero value reads as the origin.
type PositionCell struct {
	p atomic.Pointer[geom.Vec2]
}

// NewPositionCell returns a cell holding v.
func NewPositionCell(v geom.Vec2) *PositionCell {
	c := &PositionCell{}
	c.Store(v)
	return c
}

// Load returns the latest stored position.
func (c *PositionCell) Load() geom.Vec2 {
	if p := c.p.Load(); p != nil {
		return *p
	}
	return geom.Vec2{}
}

// Store replaces the position.
func (c *PositionCell) Store(v geom.Vec2) {
	c.p.Store(&v)
}
