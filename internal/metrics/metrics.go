package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame pipeline
	FramesProcessed atomic.Uint64
	InferenceErrors atomic.Uint64
	PosesDetected   atomic.Uint64
	BoxesDrawn      atomic.Uint64
	OverlayErrors   atomic.Uint64

	// Alerts
	TriggersAccepted atomic.Uint64
	TriggersRefused  atomic.Uint64
	SoundsPlayed     atomic.Uint64
	SoundErrors      atomic.Uint64

	// Latency tracking
	FrameLatencyMs   atomic.Uint64
	ProcessLatencyMs atomic.Uint64

	// Viewers
	ActiveViewers atomic.Int64
	FramesDropped atomic.Uint64

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	counters := []struct {
		name  string
		help  string
		value *atomic.Uint64
	}{
		{"posewatch_frames_processed_total", "Total inference results handled by the pipeline", &m.FramesProcessed},
		{"posewatch_inference_errors_total", "Total per-frame inference failures", &m.InferenceErrors},
		{"posewatch_poses_detected_total", "Total non-empty landmark sets detected", &m.PosesDetected},
		{"posewatch_boxes_drawn_total", "Total bounding boxes drawn", &m.BoxesDrawn},
		{"posewatch_overlay_errors_total", "Total overlay render failures", &m.OverlayErrors},
		{"posewatch_alert_triggers_accepted_total", "Total detections that started an alert burst", &m.TriggersAccepted},
		{"posewatch_alert_triggers_refused_total", "Total detections refused by the alert gate", &m.TriggersRefused},
		{"posewatch_sounds_played_total", "Total alert sounds played to completion", &m.SoundsPlayed},
		{"posewatch_sound_errors_total", "Total alert sound fetch, decode or playback failures", &m.SoundErrors},
		{"posewatch_frame_latency_ms", "Latency between frame capture and pipeline handling in milliseconds", &m.FrameLatencyMs},
		{"posewatch_viewer_frames_dropped_total", "Total frame messages dropped because viewers were too slow", &m.FramesDropped},
		{"posewatch_process_latency_ms", "Pipeline processing time of the last frame in milliseconds", &m.ProcessLatencyMs},
	}

	for _, c := range counters {
		value := c.value
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: c.name,
				Help: c.help,
			},
			func() float64 { return float64(value.Load()) },
		))
	}

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "posewatch_active_viewers",
			Help: "Number of connected viewers",
		},
		func() float64 { return float64(m.ActiveViewers.Load()) },
	))
}

// UpdateFrameLatency records the delay since the frame was captured.
func (m *Metrics) UpdateFrameLatency(now, captureTime time.Time) {
	if captureTime.IsZero() {
		return
	}
	latency := now.Sub(captureTime).Milliseconds()
	if latency < 0 {
		latency = 0
	}
	m.FrameLatencyMs.Store(uint64(latency))
}

// UpdateProcessLatency records how long the last frame took to handle.
func (m *Metrics) UpdateProcessLatency(duration time.Duration) {
	m.ProcessLatencyMs.Store(uint64(duration.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
