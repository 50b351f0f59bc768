package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"posewatch/internal/alert"
	"posewatch/internal/config"
	"posewatch/internal/logger"
	"posewatch/internal/metrics"
	"posewatch/internal/pipeline"
	"posewatch/internal/repository/sqlite"
	"posewatch/internal/route"
	"posewatch/internal/service/activity"
	"posewatch/internal/service/ai"
	"posewatch/internal/service/camera"
	"posewatch/internal/service/overlay"
	"posewatch/internal/service/websocket"
	"posewatch/internal/sound"
	"posewatch/internal/source"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	logger   *logger.Logger
	clock    clock.Clock
	metrics  *metrics.Metrics
	db       *sqlite.DB
	hub      *websocket.HubService
	activity *activity.Service
	limiter  *alert.Limiter
	player   *sound.Player
	speaker  *sound.MalgoSpeaker
	cameras  *camera.Service
	detector *ai.DetectorService
	source   source.Source
	push     *source.PushSource
	pipeline *pipeline.Pipeline
	server   *http.Server
	wg       sync.WaitGroup
}

// NewApp loads the configuration and builds the application on the wall clock.
func NewApp() (*App, error) {
	cfg := config.Load()
	return New(cfg, logger.NewLogger(cfg), clock.New())
}

// New wires every component for the configured detector mode. Failing to
// open the camera is an error.
func New(cfg *config.Config, log *logger.Logger, clk clock.Clock) (*App, error) {
	a := &App{
		config:  cfg,
		logger:  log,
		clock:   clk,
		metrics: metrics.New(),
		limiter: alert.NewLimiter(cfg.AlertCooldown, cfg.AlertsEnabled),
	}

	db, err := sqlite.New(cfg.ActivityDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log: %w", err)
	}
	a.db = db

	a.hub = websocket.NewHubService(log, a.metrics)
	a.activity = activity.NewService(sqlite.NewAlertEventRepository(db), a.hub, cfg.ActivityLimit, log)
	a.player = sound.NewPlayer(sound.NewFetcher(cfg.SoundURL, &http.Client{Timeout: cfg.SoundTimeout}), a.newSpeaker(), cfg.SoundTimeout, log)
	a.player.SetVolume(cfg.SoundVolume)

	if err := a.setupSource(); err != nil {
		a.close()
		return nil, err
	}

	scheduler := alert.NewScheduler(clk, cfg.NotificationCount, cfg.NotificationInterval, a.playAlert, a.alertFailed)
	renderer := overlay.NewRenderer(a.hub, cfg.DetectorMode == config.DetectorModeDNN && cfg.SelfieMode)
	a.pipeline = pipeline.New(a.source, renderer, a.limiter, scheduler, log,
		pipeline.WithClock(clk),
		pipeline.WithMetrics(a.metrics),
		pipeline.WithObserver(a.activity),
	)

	services := route.Services{
		Config:   cfg,
		Logger:   log,
		Limiter:  a.limiter,
		Hub:      a.hub,
		Activity: a.activity,
		Metrics:  a.metrics,
		Push:     a.push,
	}
	if a.cameras != nil {
		services.Cameras = a.cameras
	}
	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           route.SetupRoutes(services),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

func (a *App) newSpeaker() sound.Speaker {
	if a.config.AudioBackend == "none" {
		return sound.LogSpeaker{Logger: a.logger}
	}

	speaker, err := sound.NewMalgoSpeaker(a.logger)
	if err != nil {
		a.logger.Warning("Audio output unavailable, alerts will only be logged: %v", err)
		return sound.LogSpeaker{Logger: a.logger}
	}
	a.speaker = speaker
	return speaker
}

func (a *App) setupSource() error {
	switch a.config.DetectorMode {
	case config.DetectorModeDNN:
		a.cameras = camera.NewService(a.logger)
		if err := a.cameras.Open(a.config.CameraDevice); err != nil {
			return fmt.Errorf("camera access failed: %w", err)
		}
		a.detector = ai.NewDetectorService(a.config, a.logger)
		a.source = source.NewPollSource(a.cameras, a.detector, a.clock)

	case config.DetectorModeZMQ:
		a.source = source.NewZMQSource(a.config.ZMQEndpoint, a.logger, a.clock)

	case config.DetectorModeWebsocket:
		a.push = source.NewPushSource(source.DefaultPushBuffer)
		a.source = a.push

	default:
		return fmt.Errorf("unknown detector mode %q", a.config.DetectorMode)
	}
	return nil
}

// playAlert is the notification action: one alert sound, end to end.
func (a *App) playAlert(k int) error {
	if err := a.player.Play(context.Background()); err != nil {
		return err
	}
	a.metrics.SoundsPlayed.Add(1)
	a.activity.OnPlayed(k)
	return nil
}

func (a *App) alertFailed(k int, err error) {
	a.metrics.SoundErrors.Add(1)
	a.logger.Error("Alert sound %d failed: %v", k+1, err)
	a.activity.OnFailed(k, err)
}

// Handler returns the HTTP handler of the UI surface.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves until ctx is cancelled, the HTTP server fails or the result
// source ends, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.hub.Run(ctx)
	}()

	pipelineErr := make(chan error, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		pipelineErr <- a.pipeline.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	fmt.Printf("🚀 Pose Alert Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🎯 Detector: %s\n", a.config.DetectorMode)
	fmt.Printf("🔔 Alerts: %v (cooldown %v)\n", a.limiter.Enabled(), a.config.AlertCooldown)
	fmt.Printf("🔊 Sound: %s\n", a.config.SoundURL)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	case err := <-pipelineErr:
		if err != nil {
			runErr = err
		} else {
			a.logger.Warning("Result source ended, shutting down")
		}
	}

	cancel()
	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (a *App) shutdown() error {
	a.logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.server.Shutdown(shutdownCtx)

	if cerr := a.source.Close(); cerr != nil {
		a.logger.Warning("Failed to close result source: %v", cerr)
	}
	a.wg.Wait()

	// Pending notifications still play.
	a.pipeline.WaitBursts()

	a.close()
	a.logger.Info("Server stopped")
	return err
}

func (a *App) close() {
	if a.cameras != nil {
		a.cameras.Close()
	}
	if a.detector != nil {
		a.detector.Close()
	}
	if a.speaker != nil {
		if err := a.speaker.Close(); err != nil {
			a.logger.Warning("Failed to close audio output: %v", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
