package capture

import "github.com/banshee-data/lense/internal/geom"

// Webcam captures from a local camera device through OpenCV. The real
// implementation is only compiled with -tags gocv.
type Webcam struct {
	Device int
	Size   geom.Size
	FPS    int
}
