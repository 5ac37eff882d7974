// Package window presents the lens in a desktop window. The window's size
// is the viewport, and its tick drives the refresh loop.
package window

import (
	"errors"
	"image/color"
	"sync"

	"github.com/banshee-data/lense/internal/geom"
	"github.com/banshee-data/lense/internal/render"
)

// ErrUnsupported is returned by Run on builds without a window backend.
var ErrUnsupported = errors.New("window: not supported in this build")

// Refresher advances the displayed position by one step.
type Refresher interface {
	Refresh() geom.Vec2
}

// Config controls the window.
type Config struct {
	Title string
	// Size is the initial window size.
	Size geom.Size
	// TPS is the refresh rate the window ticks at.
	TPS int
	// LensSize is the lens diameter as a fraction of the viewport height.
	LensSize float64
	Fill     color.Color
	Outline  color.Color
}

// DefaultConfig returns a 1280x720 window ticking at 60 Hz.
func DefaultConfig() Config {
	return Config{
		Title:    "lense",
		Size:     geom.Size{Width: 1280, Height: 720},
		TPS:      60,
		LensSize: 0.2,
		Fill:     color.RGBA{R: 0x40, G: 0x90, B: 0xff, A: 0x60},
		Outline:  color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xc0},
	}
}

// Lens is the window-side state shared between the pipeline and the draw
// call: it reports the viewport and receives placements.
type Lens struct {
	mu        sync.Mutex
	viewport  geom.Size
	placement render.Placement
	placed    bool
	size      float64
}

var (
	_ render.Target = (*Lens)(nil)
)

// NewLens returns a Lens for a viewport of the given size. size is the
// diameter as a fraction of the viewport height.
func NewLens(vp geom.Size, size float64) *Lens {
	if size <= 0 {
		size = DefaultConfig().LensSize
	}
	return &Lens{viewport: vp, size: size}
}

// Viewport returns the current window size.
func (l *Lens) Viewport() geom.Size {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewport
}

// Resize records a new window size. Invalid sizes are ignored.
func (l *Lens) Resize(vp geom.Size) {
	if !vp.Valid() {
		return
	}
	l.mu.Lock()
	l.viewport = vp
	l.mu.Unlock()
}

// SetPlacement stores the latest placement for the next draw.
func (l *Lens) SetPlacement(p render.Placement) {
	l.mu.Lock()
	l.placement = p
	l.placed = true
	l.mu.Unlock()
}

// Ellipse returns the lens centre and radii in pixels. The footprint scale
// keeps rx equal to ry on any viewport. ok is false before the first
// placement.
func (l *Lens) Ellipse() (centre geom.Vec2, rx, ry float64, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.placed || !l.placement.Viewport.Valid() {
		return geom.Vec2{}, 0, 0, false
	}
	p := l.placement
	// radius in NDC is size, NDC spans 2 per axis
	rx = p.Scale.X * l.size * float64(p.Viewport.Width) / 2
	ry = p.Scale.Y * l.size * float64(p.Viewport.Height) / 2
	return p.Pixel, rx, ry, true
}
