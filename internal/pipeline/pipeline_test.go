package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"posewatch/internal/alert"
	"posewatch/internal/geometry"
	"posewatch/internal/logger"
	"posewatch/internal/metrics"
	"posewatch/internal/model"
	"posewatch/internal/source"
)

type fakeOverlay struct {
	mu       sync.Mutex
	clears   int
	boxes    []geometry.Box
	commits  int
	failNext bool
}

func (o *fakeOverlay) Clear(width, height int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clears++
	o.boxes = nil
}

func (o *fakeOverlay) StrokeRect(box geometry.Box) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.boxes = append(o.boxes, box)
}

func (o *fakeOverlay) Commit(res source.Result) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commits++
	if o.failNext {
		o.failNext = false
		return errors.New("encode failed")
	}
	return nil
}

type fakeObserver struct {
	mu    sync.Mutex
	calls []int
}

func (o *fakeObserver) OnTrigger(at time.Time, poses int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, poses)
}

type harness struct {
	pipeline *Pipeline
	overlay  *fakeOverlay
	observer *fakeObserver
	limiter  *alert.Limiter
	clock    *clock.Mock
	metrics  *metrics.Metrics

	mu     sync.Mutex
	played int
}

func newHarness(t *testing.T, src source.Source, enabled bool) *harness {
	t.Helper()

	log, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(log.Close)

	h := &harness{
		overlay:  &fakeOverlay{},
		observer: &fakeObserver{},
		limiter:  alert.NewLimiter(alert.DefaultCooldown, enabled),
		clock:    clock.NewMock(),
		metrics:  metrics.New(),
	}
	scheduler := alert.NewScheduler(h.clock, 3, 2*time.Second, func(int) error {
		h.mu.Lock()
		h.played++
		h.mu.Unlock()
		return nil
	}, nil)

	h.pipeline = New(src, h.overlay, h.limiter, scheduler, log,
		WithClock(h.clock), WithMetrics(h.metrics), WithObserver(h.observer))
	return h
}

func personPose() model.Pose {
	return model.Pose{Landmarks: []model.Landmark{{X: 0.2, Y: 0.3}, {X: 0.8, Y: 0.1}, {X: 0.5, Y: 0.9}}}
}

func TestHandleResult_NoLandmarkSets(t *testing.T) {
	h := newHarness(t, source.NewPushSource(1), true)

	h.pipeline.HandleResult(source.Result{Width: 100, Height: 200})
	h.pipeline.HandleResult(source.Result{Width: 100, Height: 200, Poses: []model.Pose{{}}})

	if len(h.overlay.boxes) != 0 {
		t.Errorf("Expected no boxes, got %v", h.overlay.boxes)
	}
	if h.overlay.clears != 2 || h.overlay.commits != 2 {
		t.Errorf("Expected 2 clears and commits, got %d/%d", h.overlay.clears, h.overlay.commits)
	}
	if _, ok := h.limiter.LastTrigger(); ok {
		t.Error("Rate limiter should not have been consulted")
	}
	if h.metrics.TriggersAccepted.Load()+h.metrics.TriggersRefused.Load() != 0 {
		t.Error("No trigger attempt expected")
	}
}

func TestHandleResult_DrawsBoxesAndTriggersOnce(t *testing.T) {
	h := newHarness(t, source.NewPushSource(1), true)

	h.pipeline.HandleResult(source.Result{
		Width:  100,
		Height: 200,
		Poses:  []model.Pose{personPose(), {}, personPose()},
	})

	if len(h.overlay.boxes) != 2 {
		t.Fatalf("Expected 2 boxes, got %d", len(h.overlay.boxes))
	}
	want := geometry.Box{X: 20, Y: 20, W: 60, H: 160}
	got := h.overlay.boxes[0]
	if got.Rect() != want.Rect() {
		t.Errorf("Box = %+v, expected %+v", got, want)
	}

	if len(h.observer.calls) != 1 || h.observer.calls[0] != 2 {
		t.Errorf("Expected one trigger with 2 poses, got %v", h.observer.calls)
	}
	if h.metrics.TriggersAccepted.Load() != 1 {
		t.Errorf("Expected 1 accepted trigger, got %d", h.metrics.TriggersAccepted.Load())
	}

	h.clock.Add(4 * time.Second)
	h.pipeline.WaitBursts()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.played != 3 {
		t.Errorf("Expected 3 notifications, got %d", h.played)
	}
}

func TestHandleResult_CooldownBetweenBursts(t *testing.T) {
	h := newHarness(t, source.NewPushSource(1), true)
	res := source.Result{Width: 640, Height: 480, Poses: []model.Pose{personPose()}}

	h.pipeline.HandleResult(res)
	h.clock.Add(1000 * time.Millisecond)
	h.pipeline.HandleResult(res)
	h.clock.Add(4001 * time.Millisecond)
	h.pipeline.HandleResult(res)

	if got := h.metrics.TriggersAccepted.Load(); got != 2 {
		t.Errorf("Expected 2 accepted triggers, got %d", got)
	}
	if got := h.metrics.TriggersRefused.Load(); got != 1 {
		t.Errorf("Expected 1 refused trigger, got %d", got)
	}

	h.clock.Add(10 * time.Second)
	h.pipeline.WaitBursts()
}

func TestHandleResult_DisabledAlertsStillDraw(t *testing.T) {
	h := newHarness(t, source.NewPushSource(1), false)

	h.pipeline.HandleResult(source.Result{Width: 640, Height: 480, Poses: []model.Pose{personPose()}})

	if len(h.overlay.boxes) != 1 {
		t.Errorf("Expected 1 box, got %d", len(h.overlay.boxes))
	}
	if len(h.observer.calls) != 0 {
		t.Errorf("Expected no trigger while disabled, got %v", h.observer.calls)
	}
}

func TestHandleResult_InferenceErrorIsSwallowed(t *testing.T) {
	h := newHarness(t, source.NewPushSource(1), true)

	h.pipeline.HandleResult(source.Result{Err: errors.New("bad frame")})
	if h.overlay.commits != 1 {
		t.Errorf("Failed frame should still publish the cleared overlay, got %d commits", h.overlay.commits)
	}
	h.pipeline.HandleResult(source.Result{Width: 640, Height: 480, Poses: []model.Pose{personPose()}})

	if got := h.metrics.InferenceErrors.Load(); got != 1 {
		t.Errorf("Expected 1 inference error, got %d", got)
	}
	if got := h.metrics.TriggersAccepted.Load(); got != 1 {
		t.Errorf("Frame after the failure should still trigger, got %d", got)
	}

	h.clock.Add(5 * time.Second)
	h.pipeline.WaitBursts()
}

func TestHandleResult_FailedFrameClearsPreviousBoxes(t *testing.T) {
	h := newHarness(t, source.NewPushSource(1), true)

	h.pipeline.HandleResult(source.Result{Width: 640, Height: 480, Poses: []model.Pose{personPose()}})
	if len(h.overlay.boxes) != 1 || h.overlay.commits != 1 {
		t.Fatalf("Expected 1 box committed, got %d boxes and %d commits", len(h.overlay.boxes), h.overlay.commits)
	}

	for i := 0; i < 3; i++ {
		h.pipeline.HandleResult(source.Result{Width: 640, Height: 480, Err: errors.New("pose network not initialized")})
	}

	if len(h.overlay.boxes) != 0 {
		t.Errorf("Expected the overlay to be empty after failed frames, got %d boxes", len(h.overlay.boxes))
	}
	if h.overlay.commits != 4 {
		t.Errorf("Expected every frame to be committed, got %d commits", h.overlay.commits)
	}

	h.clock.Add(5 * time.Second)
	h.pipeline.WaitBursts()
}

func TestHandleResult_OverlayFailureIsCounted(t *testing.T) {
	h := newHarness(t, source.NewPushSource(1), true)
	h.overlay.failNext = true

	h.pipeline.HandleResult(source.Result{Width: 640, Height: 480})

	if got := h.metrics.OverlayErrors.Load(); got != 1 {
		t.Errorf("Expected 1 overlay error, got %d", got)
	}
}

func TestRun_ConsumesUntilSourceCloses(t *testing.T) {
	src := source.NewPushSource(8)
	h := newHarness(t, src, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.pipeline.Run(ctx) }()

	for i := 0; i < 3; i++ {
		if err := src.Deliver(ctx, source.Result{Width: 640, Height: 480}); err != nil {
			t.Fatalf("Deliver failed: %v", err)
		}
	}

	deadline := time.After(time.Second)
	for h.metrics.FramesProcessed.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("Processed %d frames, expected 3", h.metrics.FramesProcessed.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	src.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the source closed")
	}
}
