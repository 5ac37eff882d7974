package pose

// Hand landmark indices of the MediaPipe Hands keypoint schema. Detectors
// return keypoints in this order; an index is only meaningful for models
// that document this schema.
const (
	Wrist           = 0
	ThumbCMC        = 1
	ThumbMCP        = 2
	ThumbIP         = 3
	ThumbTip        = 4
	IndexFingerMCP  = 5
	IndexFingerPIP  = 6
	IndexFingerDIP  = 7
	IndexFingerTip  = 8
	MiddleFingerMCP = 9
	MiddleFingerPIP = 10
	MiddleFingerDIP = 11
	MiddleFingerTip = 12
	RingFingerMCP   = 13
	RingFingerPIP   = 14
	RingFingerDIP   = 15
	RingFingerTip   = 16
	PinkyMCP        = 17
	PinkyPIP        = 18
	PinkyDIP        = 19
	PinkyTip        = 20
	NumLandmarks    = 21
)

var landmarkNames = [NumLandmarks]string{
	"wrist",
	"thumb_cmc", "thumb_mcp", "thumb_ip", "thumb_tip",
	"index_finger_mcp", "index_finger_pip", "index_finger_dip", "index_finger_tip",
	"middle_finger_mcp", "middle_finger_pip", "middle_finger_dip", "middle_finger_tip",
	"ring_finger_mcp", "ring_finger_pip", "ring_finger_dip", "ring_finger_tip",
	"pinky_finger_mcp", "pinky_finger_pip", "pinky_finger_dip", "pinky_finger_tip",
}

// LandmarkName returns the schema name for index i, or "" if out of range.
func LandmarkName(i int) string {
	if i < 0 || i >= NumLandmarks {
		return ""
	}
	return landmarkNames[i]
}

// LandmarkIndex returns the schema index for a landmark name.
func LandmarkIndex(name string) (int, bool) {
	for i, n := range landmarkNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Keypoint is one landmark position in capture-frame pixels.
type Keypoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Name  string  `json:"name,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// HandEstimate is one detected hand. Keypoints are ordered by the landmark
// schema; a nil entry means the detector did not report that landmark.
type HandEstimate struct {
	Keypoints  []*Keypoint `json:"keypoints"`
	Handedness string      `json:"handedness,omitempty"`
	Score      float64     `json:"score,omitempty"`
}

// Keypoint returns landmark i and whether it is present.
func (h HandEstimate) Keypoint(i int) (Keypoint, bool) {
	if i < 0 || i >= len(h.Keypoints) || h.Keypoints[i] == nil {
		return Keypoint{}, false
	}
	return *h.Keypoints[i], true
}
