package ai

import "posewatch/internal/model"

const (
	// MinVisibleKeypoints is how many parts must clear the threshold to count as a pose.
	MinVisibleKeypoints = 3
	// smoothingFactor is the weight of the current frame in the moving average.
	smoothingFactor = 0.5
)

// tracker turns raw per-part keypoints into poses across frames. The
// detection threshold applies when nothing was tracked on the previous
// frame, the tracking threshold otherwise.
type tracker struct {
	smooth    bool
	detection float64
	tracking  float64
	previous  []model.Landmark
}

func newTracker(smooth bool, detection, tracking float64) *tracker {
	return &tracker{smooth: smooth, detection: detection, tracking: tracking}
}

func (t *tracker) threshold() float64 {
	if t.previous != nil {
		return t.tracking
	}
	return t.detection
}

func (t *tracker) update(keypoints []model.Landmark) []model.Pose {
	threshold := t.threshold()

	current := make([]model.Landmark, len(keypoints))
	copy(current, keypoints)

	if t.smooth && len(t.previous) == len(current) {
		for i := range current {
			prev := t.previous[i]
			if prev.Visibility < threshold || current[i].Visibility < threshold {
				continue
			}
			current[i].X = smoothingFactor*current[i].X + (1-smoothingFactor)*prev.X
			current[i].Y = smoothingFactor*current[i].Y + (1-smoothingFactor)*prev.Y
		}
	}

	var (
		visible []model.Landmark
		score   float64
	)
	for _, kp := range current {
		if kp.Visibility >= threshold {
			visible = append(visible, kp)
			score += kp.Visibility
		}
	}

	if len(visible) < MinVisibleKeypoints {
		t.previous = nil
		return nil
	}

	t.previous = current
	return []model.Pose{{Landmarks: visible, Score: score / float64(len(visible))}}
}
