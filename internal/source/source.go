// Package source delivers inference results from a pose detector, whether the
// detector is polled frame by frame or pushes results on its own.
package source

import (
	"context"
	"errors"
	"image"
	"time"

	"posewatch/internal/model"
)

var (
	// ErrClosed is returned when delivering to or streaming from a closed source.
	ErrClosed = errors.New("source closed")
	// ErrAlreadyStreaming is returned when Results is called twice on the same source.
	ErrAlreadyStreaming = errors.New("source already streaming")
)

// Result is the inference result for one video frame.
type Result struct {
	Poses    []model.Pose
	Width    int
	Height   int
	Frame    image.Image // nil when the frame was captured elsewhere
	Captured time.Time
	Err      error // per-frame inference failure
}

// HasLandmarks reports whether at least one pose carries a non-empty landmark set.
func (r Result) HasLandmarks() bool {
	for _, pose := range r.Poses {
		if len(pose.Landmarks) > 0 {
			return true
		}
	}
	return false
}

// Source is a stream of inference results, one per frame.
type Source interface {
	// Results starts the stream. The channel is closed when ctx is done or the source is closed.
	Results(ctx context.Context) (<-chan Result, error)
	Close() error
}
