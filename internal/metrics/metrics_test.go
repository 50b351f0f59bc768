package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_ExposesCounters(t *testing.T) {
	m := New()
	m.FramesProcessed.Add(3)
	m.TriggersAccepted.Add(1)
	m.ActiveViewers.Store(2)
	m.FramesDropped.Add(5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		"posewatch_frames_processed_total 3",
		"posewatch_alert_triggers_accepted_total 1",
		"posewatch_active_viewers 2",
		"posewatch_viewer_frames_dropped_total 5",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in metrics output", want)
		}
	}
}

func TestUpdateFrameLatency(t *testing.T) {
	m := New()
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	m.UpdateFrameLatency(now, now.Add(-40*time.Millisecond))
	if got := m.FrameLatencyMs.Load(); got != 40 {
		t.Errorf("Expected 40ms, got %d", got)
	}

	m.UpdateFrameLatency(now, now.Add(time.Second))
	if got := m.FrameLatencyMs.Load(); got != 0 {
		t.Errorf("Expected clamped 0ms, got %d", got)
	}

	m.UpdateFrameLatency(now, time.Time{})
	if got := m.FrameLatencyMs.Load(); got != 0 {
		t.Errorf("Zero capture time should be ignored, got %d", got)
	}
}
