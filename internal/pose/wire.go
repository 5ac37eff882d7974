package pose

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/banshee-data/lense/internal/capture"
	"github.com/banshee-data/lense/internal/geom"
	"google.golang.org/protobuf/types/known/structpb"
)

// The HandPose protocol carries google.protobuf.Struct messages in both
// directions. The helpers below convert between them and the typed
// structures at the boundary so nothing past this file sees loose values.

func modelConfigToStruct(cfg ModelConfig) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"model":         cfg.Model,
		"runtime":       cfg.Runtime,
		"model_type":    cfg.ModelType,
		"max_hands":     cfg.MaxHands,
		"solution_path": cfg.SolutionPath,
	})
}

func modelConfigFromStruct(s *structpb.Struct) ModelConfig {
	f := s.GetFields()
	return ModelConfig{
		Model:        f["model"].GetStringValue(),
		Runtime:      f["runtime"].GetStringValue(),
		ModelType:    f["model_type"].GetStringValue(),
		MaxHands:     int(f["max_hands"].GetNumberValue()),
		SolutionPath: f["solution_path"].GetStringValue(),
	}
}

func frameToStruct(fr capture.Frame) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"seq":         fr.Seq,
		"captured_at": fr.CapturedAt.UTC().Format(time.RFC3339Nano),
		"width":       fr.Size.Width,
		"height":      fr.Size.Height,
		"format":      string(fr.Format),
		"data":        fr.Data,
	})
}

func frameFromStruct(s *structpb.Struct) (capture.Frame, error) {
	f := s.GetFields()
	fr := capture.Frame{
		Seq:    uint64(f["seq"].GetNumberValue()),
		Size:   geom.Size{Width: int(f["width"].GetNumberValue()), Height: int(f["height"].GetNumberValue())},
		Format: capture.Format(f["format"].GetStringValue()),
	}
	if ts := f["captured_at"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return fr, fmt.Errorf("captured_at: %w", err)
		}
		fr.CapturedAt = t
	}
	data, err := base64.StdEncoding.DecodeString(f["data"].GetStringValue())
	if err != nil {
		return fr, fmt.Errorf("data: %w", err)
	}
	fr.Data = data
	return fr, nil
}

func handsToStruct(hands []HandEstimate) (*structpb.Struct, error) {
	list := make([]any, 0, len(hands))
	for _, h := range hands {
		kps := make([]any, len(h.Keypoints))
		for i, kp := range h.Keypoints {
			if kp == nil {
				continue
			}
			m := map[string]any{"x": kp.X, "y": kp.Y}
			if kp.Name != "" {
				m["name"] = kp.Name
			}
			if kp.Score != 0 {
				m["score"] = kp.Score
			}
			kps[i] = m
		}
		hand := map[string]any{"keypoints": kps}
		if h.Handedness != "" {
			hand["handedness"] = h.Handedness
		}
		if h.Score != 0 {
			hand["score"] = h.Score
		}
		list = append(list, hand)
	}
	return structpb.NewStruct(map[string]any{"hands": list})
}

// handsFromStruct decodes an EstimateHands response. A missing or null
// "hands" field is an empty result.
func handsFromStruct(s *structpb.Struct) ([]HandEstimate, error) {
	v, ok := s.GetFields()["hands"]
	if !ok || isNull(v) {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("hands: expected list")
	}
	hands := make([]HandEstimate, 0, len(list.GetValues()))
	for i, hv := range list.GetValues() {
		hs := hv.GetStructValue()
		if hs == nil {
			return nil, fmt.Errorf("hands[%d]: expected object", i)
		}
		hand, err := handFromStruct(hs)
		if err != nil {
			return nil, fmt.Errorf("hands[%d]: %w", i, err)
		}
		hands = append(hands, hand)
	}
	return hands, nil
}

func handFromStruct(s *structpb.Struct) (HandEstimate, error) {
	f := s.GetFields()
	hand := HandEstimate{
		Handedness: f["handedness"].GetStringValue(),
		Score:      f["score"].GetNumberValue(),
	}
	kv, ok := f["keypoints"]
	if !ok || isNull(kv) {
		return hand, nil
	}
	list := kv.GetListValue()
	if list == nil {
		return hand, fmt.Errorf("keypoints: expected list")
	}
	hand.Keypoints = make([]*Keypoint, len(list.GetValues()))
	for i, v := range list.GetValues() {
		if isNull(v) {
			continue
		}
		ks := v.GetStructValue()
		if ks == nil {
			return hand, fmt.Errorf("keypoints[%d]: expected object or null", i)
		}
		kf := ks.GetFields()
		x, okX := number(kf["x"])
		y, okY := number(kf["y"])
		if !okX || !okY {
			return hand, fmt.Errorf("keypoints[%d]: x and y must be numbers", i)
		}
		if !(geom.Vec2{X: x, Y: y}).Finite() {
			return hand, fmt.Errorf("keypoints[%d]: non-finite position (%g, %g)", i, x, y)
		}
		hand.Keypoints[i] = &Keypoint{
			X:     x,
			Y:     y,
			Name:  kf["name"].GetStringValue(),
			Score: kf["score"].GetNumberValue(),
		}
	}
	return hand, nil
}

func isNull(v *structpb.Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.GetKind().(*structpb.Value_NullValue)
	return ok
}

func number(v *structpb.Value) (float64, bool) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	return n.NumberValue, true
}
