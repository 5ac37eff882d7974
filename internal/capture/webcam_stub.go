//go:build !gocv
// +build !gocv

package capture

import (
	"context"
	"fmt"
)

// Acquire is a stub implementation when OpenCV support is disabled.
// Build with -tags=gocv to enable camera capture.
func (w *Webcam) Acquire(ctx context.Context) (Stream, error) {
	return nil, fmt.Errorf("%w: webcam support not enabled: rebuild with -tags=gocv", ErrPermissionDenied)
}
