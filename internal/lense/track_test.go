package lense

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lense/internal/geom"
	"github.com/banshee-data/lense/internal/pose"
)

func handWith(index int, x, y float64) pose.HandEstimate {
	kps := make([]*pose.Keypoint, pose.NumLandmarks)
	kps[index] = &pose.Keypoint{X: x, Y: y}
	return pose.HandEstimate{Keypoints: kps}
}

func TestSelectKeypoint(t *testing.T) {
	tip := pose.MiddleFingerTip
	tests := []struct {
		name    string
		hands   []pose.HandEstimate
		want    Outcome
		wantPos geom.Vec2
	}{
		{name: "no hands", hands: nil, want: OutcomeNoHand},
		{name: "empty slice", hands: []pose.HandEstimate{}, want: OutcomeNoHand},
		{name: "keypoint present", hands: []pose.HandEstimate{handWith(tip, 10, 20)}, want: OutcomeTracked, wantPos: geom.Vec2{X: 10, Y: 20}},
		{name: "keypoint absent", hands: []pose.HandEstimate{handWith(pose.Wrist, 1, 1)}, want: OutcomeNoKeypoint},
		{name: "short keypoint list", hands: []pose.HandEstimate{{Keypoints: []*pose.Keypoint{{X: 1, Y: 1}}}}, want: OutcomeNoKeypoint},
		{
			name:  "only the first hand counts",
			hands: []pose.HandEstimate{handWith(pose.Wrist, 1, 1), handWith(tip, 5, 5)},
			want:  OutcomeNoKeypoint,
		},
		{
			name:    "second hand ignored when first has it",
			hands:   []pose.HandEstimate{handWith(tip, 3, 4), handWith(tip, 5, 5)},
			want:    OutcomeTracked,
			wantPos: geom.Vec2{X: 3, Y: 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kp, got := SelectKeypoint(tt.hands, tip)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantPos, geom.Vec2{X: kp.X, Y: kp.Y})
		})
	}
}

func TestMapToViewport(t *testing.T) {
	frame := geom.Size{Width: 640, Height: 480}
	vp := geom.Size{Width: 1920, Height: 1080}

	got, ok := MapToViewport(geom.Vec2{X: 320, Y: 240}, frame, vp)
	require.True(t, ok)
	assert.Equal(t, geom.Vec2{X: 960, Y: 540}, got)

	got, ok = MapToViewport(geom.Vec2{X: 0, Y: 480}, frame, vp)
	require.True(t, ok)
	assert.Equal(t, geom.Vec2{X: 0, Y: 1080}, got, "axes scale independently")

	for _, sizes := range [][2]geom.Size{
		{{Width: 0, Height: 480}, vp},
		{frame, {Width: 1920, Height: -1}},
		{{}, {}},
	} {
		_, ok := MapToViewport(geom.Vec2{X: 1, Y: 1}, sizes[0], sizes[1])
		assert.False(t, ok, "frame %s viewport %s", sizes[0], sizes[1])
	}

	for _, p := range []geom.Vec2{{X: math.NaN(), Y: 1}, {X: 1, Y: math.Inf(-1)}, {X: math.MaxFloat64, Y: 1}} {
		_, ok := MapToViewport(p, frame, vp)
		assert.False(t, ok, "position %v", p)
	}
}

func TestMapToViewport_CentreMapsToCentre(t *testing.T) {
	for _, frame := range []geom.Size{{Width: 640, Height: 480}, {Width: 1280, Height: 720}, {Width: 7, Height: 3}} {
		for _, vp := range []geom.Size{{Width: 1920, Height: 1080}, {Width: 800, Height: 800}, {Width: 3, Height: 11}} {
			got, ok := MapToViewport(frame.Center(), frame, vp)
			require.True(t, ok)
			assert.InDelta(t, vp.Center().X, got.X, 1e-9)
			assert.InDelta(t, vp.Center().Y, got.Y, 1e-9)
		}
	}
}

func TestNewSmoother_RejectsOutOfRange(t *testing.T) {
	for _, a := range []float64{0, 1, -0.1, 1.5, math.NaN(), math.Inf(1)} {
		_, err := NewSmoother(a)
		assert.Error(t, err, "alpha %v", a)
	}
	s, err := NewSmoother(0.25)
	require.NoError(t, err)
	assert.Equal(t, 0.25, s.Alpha())
}

func TestSmoother_FixedPoint(t *testing.T) {
	s, _ := NewSmoother(0.3)
	p := geom.Vec2{X: 12.5, Y: -4}
	assert.Equal(t, p, s.Step(p, p))
}

func TestSmoother_ZeroToHundred(t *testing.T) {
	s, _ := NewSmoother(0.1)
	cur := geom.Vec2{}
	target := geom.Vec2{X: 100, Y: 100}

	cur = s.Step(cur, target)
	assert.InDelta(t, 10, cur.X, 1e-9)
	assert.InDelta(t, 10, cur.Y, 1e-9)

	cur = s.Step(cur, target)
	assert.InDelta(t, 19, cur.X, 1e-9)
	assert.InDelta(t, 19, cur.Y, 1e-9)
}

func TestSmoother_MonotoneConvergenceNeverSnaps(t *testing.T) {
	// Ten steps keep the remaining gap well above float64 resolution.
	for _, alpha := range []float64{0.01, 0.1, 0.5, 0.9} {
		s, _ := NewSmoother(alpha)
		target := geom.Vec2{X: 1000, Y: -250}
		cur := geom.Vec2{X: -30, Y: 400}
		prev := cur.Dist(target)
		for i := 0; i < 10; i++ {
			cur = s.Step(cur, target)
			d := cur.Dist(target)
			assert.Less(t, d, prev, "alpha %v step %d", alpha, i)
			assert.Greater(t, d, 0.0, "alpha %v step %d snapped to target", alpha, i)
			prev = d
		}
	}
}

func TestPositionCell(t *testing.T) {
	var c PositionCell
	assert.Equal(t, geom.Vec2{}, c.Load())
	c.Store(geom.Vec2{X: 1, Y: 2})
	assert.Equal(t, geom.Vec2{X: 1, Y: 2}, c.Load())
	assert.Equal(t, geom.Vec2{X: 3}, NewPositionCell(geom.Vec2{X: 3}).Load())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "tracking", StateTracking.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "state(9)", State(9).String())
	b, err := StateTracking.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "tracking", string(b))
}

func TestParseState(t *testing.T) {
	for s := StateIdle; s <= StateError; s++ {
		var got State
		require.NoError(t, got.UnmarshalText([]byte(s.String())))
		assert.Equal(t, s, got)
	}
	_, err := ParseState("sleeping")
	assert.Error(t, err)
}
