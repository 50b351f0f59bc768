package source

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"posewatch/internal/model"
)

type fakeReader struct {
	frames []image.Image
	errs   []error
	calls  int
}

func (r *fakeReader) Read() (image.Image, func(), error) {
	i := r.calls
	r.calls++
	if i < len(r.errs) && r.errs[i] != nil {
		return nil, nil, r.errs[i]
	}
	return r.frames[i%len(r.frames)], func() {}, nil
}

type fakeEstimator struct {
	poses []model.Pose
	err   error
}

func (e *fakeEstimator) EstimatePoses(ctx context.Context, img image.Image) ([]model.Pose, error) {
	return e.poses, e.err
}

func receive(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for result")
	}
	return Result{}
}

func TestPollSource_EmitsFrameSizeAndPoses(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 640, 480))
	poses := []model.Pose{{Landmarks: []model.Landmark{{X: 0.5, Y: 0.5}}}}

	src := NewPollSource(&fakeReader{frames: []image.Image{frame}}, &fakeEstimator{poses: poses}, clock.NewMock())
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, err := src.Results(ctx)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}

	res := receive(t, results)
	if res.Err != nil {
		t.Fatalf("Unexpected error: %v", res.Err)
	}
	if res.Width != 640 || res.Height != 480 {
		t.Errorf("Unexpected size %dx%d", res.Width, res.Height)
	}
	if len(res.Poses) != 1 {
		t.Errorf("Expected 1 pose, got %d", len(res.Poses))
	}
	if res.Frame != frame {
		t.Error("Expected the captured frame on the result")
	}
}

func TestPollSource_InferenceErrorKeepsStreaming(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 10, 10))
	estimator := &fakeEstimator{err: errors.New("model not loaded")}

	src := NewPollSource(&fakeReader{frames: []image.Image{frame}}, estimator, clock.NewMock())
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, err := src.Results(ctx)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		res := receive(t, results)
		if res.Err == nil {
			t.Fatalf("Expected inference error on result %d", i)
		}
		if res.Width != 10 {
			t.Errorf("Expected frame size on failed result, got %d", res.Width)
		}
	}
}

func TestPollSource_ReadErrorWaitsBeforeNextPoll(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 10, 10))
	reader := &fakeReader{
		frames: []image.Image{frame},
		errs:   []error{errors.New("camera gone")},
	}
	mock := clock.NewMock()

	src := NewPollSource(reader, &fakeEstimator{}, mock)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, err := src.Results(ctx)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}

	if res := receive(t, results); res.Err == nil {
		t.Fatal("Expected read error")
	}

	select {
	case <-results:
		t.Fatal("Polled again before the error delay elapsed")
	case <-time.After(50 * time.Millisecond):
	}

	mock.Add(readErrorDelay)
	if res := receive(t, results); res.Err != nil {
		t.Fatalf("Unexpected error after recovery: %v", res.Err)
	}
}

func TestPollSource_CancelClosesStream(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 10, 10))
	src := NewPollSource(&fakeReader{frames: []image.Image{frame}}, &fakeEstimator{}, clock.NewMock())

	ctx, cancel := context.WithCancel(context.Background())
	results, err := src.Results(ctx)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-results:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Stream did not close after cancel")
		}
	}
}
