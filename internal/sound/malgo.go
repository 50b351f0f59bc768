package sound

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"posewatch/internal/logger"
)

// drainDelay lets the device flush its last period before it is stopped.
const drainDelay = 150 * time.Millisecond

// MalgoSpeaker plays PCM on the default output device. One audio context is
// shared by every playback; concurrent plays open independent devices.
type MalgoSpeaker struct {
	ctx    *malgo.AllocatedContext
	logger *logger.Logger
}

// NewMalgoSpeaker initializes the shared audio context.
func NewMalgoSpeaker(logger *logger.Logger) (*MalgoSpeaker, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Info("audio: %s", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	return &MalgoSpeaker{ctx: ctx, logger: logger}, nil
}

func (s *MalgoSpeaker) Play(ctx context.Context, pcm *PCM) error {
	if len(pcm.Data) == 0 {
		return nil
	}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = uint32(pcm.Channels)
	config.SampleRate = uint32(pcm.SampleRate)
	config.Alsa.NoMMap = 1

	var (
		offset int
		once   sync.Once
		done   = make(chan struct{})
	)
	onSamples := func(output, _ []byte, _ uint32) {
		n := copy(output, pcm.Data[offset:])
		offset += n
		for i := n; i < len(output); i++ {
			output[i] = 0
		}
		if offset >= len(pcm.Data) {
			once.Do(func() { close(done) })
		}
	}

	device, err := malgo.InitDevice(s.ctx.Context, config, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		return fmt.Errorf("failed to open playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		_ = device.Stop()
		return ctx.Err()
	}

	select {
	case <-time.After(drainDelay):
	case <-ctx.Done():
	}
	return device.Stop()
}

// Close releases the shared audio context.
func (s *MalgoSpeaker) Close() error {
	if err := s.ctx.Uninit(); err != nil {
		return err
	}
	s.ctx.Free()
	return nil
}
