package lense

import (
	"fmt"

	"github.com/banshee-data/lense/internal/geom"
	"github.com/banshee-data/lense/internal/pose"
)

// Outcome classifies one inference cycle.
type Outcome string

const (
	// OutcomeTracked: the keypoint was found and the target moved.
	OutcomeTracked Outcome = "tracked"
	// OutcomeNoHand: the estimator returned no hands.
	OutcomeNoHand Outcome = "no_hand"
	// OutcomeNoKeypoint: the first hand lacked the tracked keypoint.
	OutcomeNoKeypoint Outcome = "no_keypoint"
	// OutcomeBadSize: the frame or viewport size was not positive.
	OutcomeBadSize Outcome = "bad_size"
	// OutcomeError: inference failed.
	OutcomeError Outcome = "error"
)

// SelectKeypoint picks keypoint index of the first hand. Further hands are
// ignored.
func SelectKeypoint(hands []pose.HandEstimate, index int) (pose.Keypoint, Outcome) {
	if len(hands) == 0 {
		return pose.Keypoint{}, OutcomeNoHand
	}
	kp, ok := hands[0].Keypoint(index)
	if !ok {
		return pose.Keypoint{}, OutcomeNoKeypoint
	}
	return kp, OutcomeTracked
}

// MapToViewport scales a capture-frame position into viewport pixels,
// (x*Vw/W, y*Vh/H). Axes scale independently, so a frame and viewport of
// different aspect ratios distort rather than letterbox. ok is false for a
// non-positive size or a non-finite result.
func MapToViewport(p geom.Vec2, frame, viewport geom.Size) (geom.Vec2, bool) {
	if !frame.Valid() || !viewport.Valid() {
		return geom.Vec2{}, false
	}
	mapped := geom.Vec2{
		X: p.X * float64(viewport.Width) / float64(frame.Width),
		Y: p.Y * float64(viewport.Height) / float64(frame.Height),
	}
	if !mapped.Finite() {
		return geom.Vec2{}, false
	}
	return mapped, true
}

// Smoother applies first-order exponential smoothing.
type Smoother struct {
	alpha float64
}

// NewSmoother returns a smoother with coefficient alpha, which must lie
// strictly between 0 and 1.
func NewSmoother(alpha float64) (Smoother, error) {
	if !(alpha > 0 && alpha < 1) {
		return Smoother{}, fmt.Errorf("smoothing alpha must be in (0, 1), got %v", alpha)
	}
	return Smoother{alpha: alpha}, nil
}

// Alpha returns the coefficient.
func (s Smoother) Alpha() float64 { return s.alpha }

// Step returns current moved alpha of the way toward target.
func (s Smoother) Step(current, target geom.Vec2) geom.Vec2 {
	return current.Add(target.Sub(current).Scale(s.alpha))
}
