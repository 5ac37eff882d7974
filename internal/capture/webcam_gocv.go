//go:build gocv
// +build gocv

package capture

import (
	"context"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/banshee-data/lense/internal/monitoring"
)

// Acquire opens the camera device and starts a reader goroutine that keeps
// the latest frame current.
func (w *Webcam) Acquire(ctx context.Context) (Stream, error) {
	vc, err := gocv.OpenVideoCapture(w.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: open camera %d: %v", ErrPermissionDenied, w.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: camera %d did not open", ErrPermissionDenied, w.Device)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(w.Size.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(w.Size.Height))
	if w.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(w.FPS))
	}
	monitoring.Logf("[capture] camera %d opened at %s", w.Device, w.Size)

	return newLiveStream(w.Size, func(ctx context.Context, publish func(Frame)) {
		img := gocv.NewMat()
		defer img.Close()
		scaled := gocv.NewMat()
		defer scaled.Close()
		target := image.Pt(w.Size.Width, w.Size.Height)

		var seq uint64
		for ctx.Err() == nil {
			if ok := vc.Read(&img); !ok || img.Empty() {
				// device hiccup; give it a moment before retrying
				select {
				case <-ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
				}
				continue
			}
			src := img
			if img.Cols() != w.Size.Width || img.Rows() != w.Size.Height {
				gocv.Resize(img, &scaled, target, 0, 0, gocv.InterpolationLinear)
				src = scaled
			}
			publish(Frame{
				Seq:        seq,
				CapturedAt: time.Now(),
				Size:       w.Size,
				Format:     FormatBGR,
				Data:       src.ToBytes(),
			})
			seq++
		}
	}, vc.Close), nil
}
