// Package sound plays the alert sound: fetch, decode, play.
package sound

import (
	"context"
	"fmt"
	"time"

	"posewatch/internal/logger"
)

// Speaker plays decoded audio once, returning when playback has finished.
type Speaker interface {
	Play(ctx context.Context, pcm *PCM) error
}

// Player runs one alert sound end to end.
type Player struct {
	fetcher *Fetcher
	speaker Speaker
	timeout time.Duration
	volume  float64
	logger  *logger.Logger
}

// NewPlayer creates a Player. A zero timeout disables the per-play deadline.
func NewPlayer(fetcher *Fetcher, speaker Speaker, timeout time.Duration, logger *logger.Logger) *Player {
	return &Player{
		fetcher: fetcher,
		speaker: speaker,
		timeout: timeout,
		logger:  logger,
	}
}

// SetVolume enables peak normalization at the given volume in (0,1].
// Zero plays the asset at its recorded level.
func (p *Player) SetVolume(volume float64) {
	p.volume = volume
}

// Play fetches the asset fresh, decodes it and plays it to completion.
func (p *Player) Play(ctx context.Context) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	data, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch alert sound: %w", err)
	}

	var pcm *PCM
	if p.volume > 0 {
		pcm, err = DecodeNormalized(data, p.volume)
	} else {
		pcm, err = Decode(data)
	}
	if err != nil {
		return fmt.Errorf("decode alert sound: %w", err)
	}

	if err := p.speaker.Play(ctx, pcm); err != nil {
		return fmt.Errorf("play alert sound: %w", err)
	}
	return nil
}

// LogSpeaker only logs what would have been played.
type LogSpeaker struct {
	Logger *logger.Logger
}

func (s LogSpeaker) Play(ctx context.Context, pcm *PCM) error {
	s.Logger.Info("🔔 Alert sound (%d Hz, %d ch, %v)", pcm.SampleRate, pcm.Channels, pcm.Duration())
	return ctx.Err()
}
