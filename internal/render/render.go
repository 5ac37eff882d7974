// Package render binds the smoothed lens position to whatever presents it:
// a desktop window, a physical pointer device, a log, or a test recorder.
package render

import (
	"github.com/banshee-data/lense/internal/geom"
)

// Placement is where the lens sits for one refresh.
type Placement struct {
	// Pixel is the position in viewport pixels, origin top-left, y down.
	Pixel geom.Vec2 `json:"pixel"`
	// NDC is the position in normalized device coordinates, origin at the
	// viewport centre, y up, both axes in [-1, 1] inside the viewport.
	NDC geom.Vec2 `json:"ndc"`
	// Scale is the footprint scale that keeps the lens circular.
	Scale geom.Vec2 `json:"scale"`
	// Viewport is the size Pixel and NDC were computed against.
	Viewport geom.Size `json:"viewport"`
}

// Target is a screen-anchored element that accepts a new placement every
// refresh. SetPlacement is called from the refresh loop only and must not
// block.
type Target interface {
	SetPlacement(Placement)
}

// TargetFunc adapts a function to the Target interface.
type TargetFunc func(Placement)

// SetPlacement calls f.
func (f TargetFunc) SetPlacement(p Placement) { f(p) }

// Project converts a viewport pixel position to normalized device
// coordinates: x' = 2x/Vw - 1, y' = 1 - 2y/Vh.
func Project(p geom.Vec2, vp geom.Size) (geom.Vec2, bool) {
	if !vp.Valid() {
		return geom.Vec2{}, false
	}
	return geom.Vec2{
		X: 2*p.X/float64(vp.Width) - 1,
		Y: 1 - 2*p.Y/float64(vp.Height),
	}, true
}

// Unproject is the inverse of Project.
func Unproject(ndc geom.Vec2, vp geom.Size) geom.Vec2 {
	return geom.Vec2{
		X: (ndc.X + 1) * float64(vp.Width) / 2,
		Y: (1 - ndc.Y) * float64(vp.Height) / 2,
	}
}

// FootprintScale returns (1/aspect, 1). NDC stretches with the viewport, so
// a unit circle drawn with this scale stays round on non-square viewports.
func FootprintScale(vp geom.Size) geom.Vec2 {
	a := vp.Aspect()
	if a == 0 {
		return geom.Vec2{X: 1, Y: 1}
	}
	return geom.Vec2{X: 1 / a, Y: 1}
}

// Binding applies positions to a Target.
type Binding struct {
	target Target
	last   Placement
	n      uint64
}

// NewBinding returns a binding for t. A nil target discards placements.
func NewBinding(t Target) *Binding {
	if t == nil {
		t = Discard
	}
	return &Binding{target: t}
}

// Apply computes the placement for current in vp and hands it to the
// target. It returns false, without touching the target, when vp is not a
// valid size.
func (b *Binding) Apply(current geom.Vec2, vp geom.Size) (Placement, bool) {
	ndc, ok := Project(current, vp)
	if !ok {
		return Placement{}, false
	}
	p := Placement{
		Pixel:    current,
		NDC:      ndc,
		Scale:    FootprintScale(vp),
		Viewport: vp,
	}
	b.target.SetPlacement(p)
	b.last = p
	b.n++
	return p, true
}

// Last returns the most recent placement and how many have been applied.
func (b *Binding) Last() (Placement, uint64) {
	return b.last, b.n
}

// Discard is a Target that drops every placement.
var Discard Target = TargetFunc(func(Placement) {})
