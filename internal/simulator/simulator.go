// Package simulator generates synthetic inference messages for exercising
// the push detector modes without a camera.
package simulator

import (
	"context"
	"math"
	"math/rand"
	"time"

	"posewatch/internal/dto"
	"posewatch/internal/model"
)

// skeleton is a standing person in normalized coordinates, COCO part order.
var skeleton = []model.Landmark{
	{X: 0.50, Y: 0.15}, {X: 0.50, Y: 0.25}, // nose, neck
	{X: 0.42, Y: 0.26}, {X: 0.38, Y: 0.38}, {X: 0.36, Y: 0.50}, // right arm
	{X: 0.58, Y: 0.26}, {X: 0.62, Y: 0.38}, {X: 0.64, Y: 0.50}, // left arm
	{X: 0.45, Y: 0.52}, {X: 0.44, Y: 0.70}, {X: 0.44, Y: 0.88}, // right leg
	{X: 0.55, Y: 0.52}, {X: 0.56, Y: 0.70}, {X: 0.56, Y: 0.88}, // left leg
	{X: 0.48, Y: 0.13}, {X: 0.52, Y: 0.13}, // eyes
	{X: 0.46, Y: 0.15}, {X: 0.54, Y: 0.15}, // ears
}

// Options control the generated stream.
type Options struct {
	Width, Height int
	Rate          float64 // messages per second
	Present       int     // consecutive frames with a person
	Absent        int     // consecutive empty frames
	Jitter        float64 // landmark noise, normalized
	Seed          int64
}

// Stream emits messages at opts.Rate until ctx is done. A person walks
// across the frame for Present frames, then the scene is empty for Absent
// frames.
func Stream(ctx context.Context, opts Options) <-chan dto.InferenceMessage {
	out := make(chan dto.InferenceMessage)
	go func() {
		defer close(out)

		ticker := time.NewTicker(time.Duration(float64(time.Second) / opts.Rate))
		defer ticker.Stop()

		rng := rand.New(rand.NewSource(opts.Seed))
		frame := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				msg := Frame(frame, opts, rng)
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
				frame++
			}
		}
	}()
	return out
}

// Frame builds the message for frame number n.
func Frame(n int, opts Options, rng *rand.Rand) dto.InferenceMessage {
	msg := dto.InferenceMessage{
		Type:      dto.InferenceTypePose,
		Width:     opts.Width,
		Height:    opts.Height,
		Timestamp: time.Now().UnixMilli(),
		Poses:     []model.Pose{},
	}

	cycle := opts.Present + opts.Absent
	if cycle == 0 {
		return msg
	}
	step := n % cycle
	if step >= opts.Present {
		return msg
	}

	// walk from left to right while present
	offset := -0.3 + 0.6*float64(step)/math.Max(1, float64(opts.Present-1))
	landmarks := make([]model.Landmark, len(skeleton))
	for i, p := range skeleton {
		landmarks[i] = model.Landmark{
			X:          clamp(p.X + offset + rng.NormFloat64()*opts.Jitter),
			Y:          clamp(p.Y + rng.NormFloat64()*opts.Jitter),
			Visibility: 0.9,
		}
	}
	msg.Poses = append(msg.Poses, model.Pose{Landmarks: landmarks, Score: 0.9})
	return msg
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
