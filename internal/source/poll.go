package source

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"posewatch/internal/model"
)

// readErrorDelay spaces out polls while the camera keeps failing.
const readErrorDelay = 100 * time.Millisecond

// FrameReader supplies video frames. Returned frames must stay valid after release.
type FrameReader interface {
	Read() (img image.Image, release func(), err error)
}

// PoseEstimator runs the pose model on one frame.
type PoseEstimator interface {
	EstimatePoses(ctx context.Context, img image.Image) ([]model.Pose, error)
}

// PollSource pulls a frame, awaits its inference and immediately polls again.
type PollSource struct {
	frames    FrameReader
	estimator PoseEstimator
	clock     clock.Clock

	mu        sync.Mutex
	streaming bool
	closed    chan struct{}
	closeOnce sync.Once
}

// NewPollSource creates a pull-style source over a camera and a detector.
func NewPollSource(frames FrameReader, estimator PoseEstimator, clk clock.Clock) *PollSource {
	if clk == nil {
		clk = clock.New()
	}
	return &PollSource{
		frames:    frames,
		estimator: estimator,
		clock:     clk,
		closed:    make(chan struct{}),
	}
}

func (s *PollSource) Results(ctx context.Context) (<-chan Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.closed:
		return nil, ErrClosed
	default:
	}
	if s.streaming {
		return nil, ErrAlreadyStreaming
	}
	s.streaming = true

	out := make(chan Result)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			default:
			}

			res := s.poll(ctx)

			select {
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			case out <- res:
			}

			if res.Frame == nil && res.Err != nil {
				select {
				case <-ctx.Done():
					return
				case <-s.closed:
					return
				case <-s.clock.After(readErrorDelay):
				}
			}
		}
	}()

	return out, nil
}

func (s *PollSource) poll(ctx context.Context) Result {
	img, release, err := s.frames.Read()
	if err != nil {
		return Result{Captured: s.clock.Now(), Err: fmt.Errorf("failed to read frame: %w", err)}
	}
	if release != nil {
		defer release()
	}

	bounds := img.Bounds()
	res := Result{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Frame:    img,
		Captured: s.clock.Now(),
	}

	poses, err := s.estimator.EstimatePoses(ctx, img)
	if err != nil {
		res.Err = fmt.Errorf("pose estimation failed: %w", err)
		return res
	}
	res.Poses = poses
	return res
}

func (s *PollSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
