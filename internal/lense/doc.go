// Package lense keeps an on-screen lens on a fingertip.
//
// Two loops share one value. The inference loop pulls the latest camera
// frame, runs hand-pose estimation, selects the tracked keypoint of the
// first hand and maps it from capture-frame pixels into viewport pixels,
// storing the result as the target. The refresh loop runs once per display
// refresh, moves the current position a fixed fraction of the way toward the
// target and hands it to the render binding. The refresh loop never waits on
// inference: a slow or failing model only means the target stops moving.
package lense
