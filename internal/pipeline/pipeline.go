// Package pipeline runs the per-frame loop: clear the overlay, box every
// landmark set, gate the alert and start a notification burst.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"posewatch/internal/alert"
	"posewatch/internal/geometry"
	"posewatch/internal/logger"
	"posewatch/internal/metrics"
	"posewatch/internal/source"
)

// Overlay receives the boxes drawn for one inference result.
type Overlay interface {
	Clear(width, height int)
	StrokeRect(box geometry.Box)
	Commit(res source.Result) error
}

// TriggerObserver is told about every accepted trigger.
type TriggerObserver interface {
	OnTrigger(at time.Time, poses int)
}

// Pipeline consumes inference results from a source, draws their boxes and
// raises alerts.
type Pipeline struct {
	source    source.Source
	overlay   Overlay
	limiter   *alert.Limiter
	scheduler *alert.Scheduler
	logger    *logger.Logger

	observer TriggerObserver
	metrics  *metrics.Metrics
	clock    clock.Clock

	bursts sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for trigger timestamps.
func WithClock(clk clock.Clock) Option {
	return func(p *Pipeline) { p.clock = clk }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithObserver registers an observer for accepted triggers.
func WithObserver(o TriggerObserver) Option {
	return func(p *Pipeline) { p.observer = o }
}

// New creates a Pipeline. The limiter is the session's alert state.
func New(src source.Source, overlay Overlay, limiter *alert.Limiter, scheduler *alert.Scheduler, logger *logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:    src,
		overlay:   overlay,
		limiter:   limiter,
		scheduler: scheduler,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.clock == nil {
		p.clock = clock.New()
	}
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	return p
}

// Run consumes results until the source ends or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	results, err := p.source.Results(ctx)
	if err != nil {
		return fmt.Errorf("failed to start result source: %w", err)
	}

	p.logger.Info("🎬 Frame pipeline started")
	for res := range results {
		p.HandleResult(res)
	}
	p.logger.Info("🛑 Frame pipeline stopped")
	return nil
}

// HandleResult processes one inference result.
func (p *Pipeline) HandleResult(res source.Result) {
	start := p.clock.Now()
	p.metrics.FramesProcessed.Add(1)
	p.metrics.UpdateFrameLatency(start, res.Captured)
	defer func() { p.metrics.UpdateProcessLatency(p.clock.Since(start)) }()

	p.overlay.Clear(res.Width, res.Height)

	if res.Err != nil {
		p.metrics.InferenceErrors.Add(1)
		p.logger.Error("Detection error: %v", res.Err)
		p.commit(res)
		return
	}

	sets := 0
	for _, pose := range res.Poses {
		if len(pose.Landmarks) == 0 {
			continue
		}
		box, err := geometry.BoundingBox(pose.Landmarks, res.Width, res.Height)
		if err != nil {
			continue
		}
		p.overlay.StrokeRect(box)
		sets++
	}

	if sets > 0 {
		p.metrics.PosesDetected.Add(uint64(sets))
		p.metrics.BoxesDrawn.Add(uint64(sets))
		p.trigger(sets)
	}

	p.commit(res)
}

// commit publishes the overlay, which is empty for failed frames.
func (p *Pipeline) commit(res source.Result) {
	if err := p.overlay.Commit(res); err != nil {
		p.metrics.OverlayErrors.Add(1)
		p.logger.Warning("Failed to render overlay: %v", err)
	}
}

// trigger is called once per result containing at least one landmark set.
func (p *Pipeline) trigger(sets int) {
	now := p.clock.Now()
	if !p.limiter.TryTrigger(now) {
		p.metrics.TriggersRefused.Add(1)
		return
	}

	p.metrics.TriggersAccepted.Add(1)
	p.logger.Info("🚨 %d pose(s) detected, starting alert burst", sets)

	burst := p.scheduler.Fire()
	p.bursts.Add(1)
	go func() {
		defer p.bursts.Done()
		burst.Wait()
	}()

	if p.observer != nil {
		p.observer.OnTrigger(now, sets)
	}
}

// WaitBursts blocks until every scheduled notification has run.
func (p *Pipeline) WaitBursts() {
	p.bursts.Wait()
}
