// Package capture acquires live video frames from a camera device, a
// recorded pcap of camera traffic, or a synthetic generator.
//
// A Stream always exposes the most recent frame; there is no "next frame"
// pull API. Consumers read whatever frame is current when they need one.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/lense/internal/geom"
)

// ErrPermissionDenied is returned (wrapped) by Acquire when camera access is
// refused or no capture device exists.
var ErrPermissionDenied = errors.New("camera permission denied or no device available")

// Format describes the encoding of Frame.Data.
type Format string

const (
	FormatBGR  Format = "bgr24"
	FormatJPEG Format = "jpeg"
	FormatGray Format = "gray8"
)

// Frame is one captured video image. Frames are produced by a Stream and
// borrowed by consumers; Data must not be modified.
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	Size       geom.Size
	Format     Format
	Data       []byte
}

// Source opens a live frame stream.
type Source interface {
	// Acquire requests access to the device and starts producing frames.
	// The returned Stream must be closed to release the device.
	Acquire(ctx context.Context) (Stream, error)
}

// Stream is a continuously updated live frame.
type Stream interface {
	// Latest returns the most recent frame, or false before the first one.
	Latest() (Frame, bool)
	// Ready is closed once the first frame is available.
	Ready() <-chan struct{}
	// Size is the logical frame size fixed at acquisition time.
	Size() geom.Size
	// Close stops the producer and releases the device.
	Close() error
}
