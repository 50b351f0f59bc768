// Package camera captures frames from a local video input.
package camera

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/pion/mediadevices"
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	"posewatch/internal/logger"
)

var (
	// ErrNoCamera is returned when no video input could be opened.
	ErrNoCamera = errors.New("no camera available")
	// ErrNotOpen is returned by Read before Open or after Close.
	ErrNotOpen = errors.New("camera not open")
)

// Device is one selectable video input.
type Device struct {
	ID    string
	Label string
}

// Service owns the active camera stream. Switching devices tears down the
// current stream before opening the next one.
type Service struct {
	mu       sync.RWMutex
	track    mediadevices.Track
	reader   video.Reader
	deviceID string
	width    int
	height   int
	logger   *logger.Logger
}

func NewService(logger *logger.Logger) *Service {
	mediadevicescamera.Initialize()
	return &Service{logger: logger}
}

// Devices lists the available video inputs.
func (s *Service) Devices() []Device {
	return videoInputs(mediadevices.EnumerateDevices())
}

func videoInputs(infos []mediadevices.MediaDeviceInfo) []Device {
	devices := []Device{}
	for _, info := range infos {
		if info.Kind != mediadevices.VideoInput {
			continue
		}
		label := info.Label
		if parts := strings.Split(label, mediadevicescamera.LabelSeparator); len(parts) > 0 && parts[0] != "" {
			label = parts[0]
		}
		devices = append(devices, Device{ID: info.DeviceID, Label: label})
	}
	return devices
}

func constraints(deviceID string) mediadevices.MediaStreamConstraints {
	return mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			if deviceID != "" {
				c.DeviceID = prop.StringExact(deviceID)
			}
			c.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatI420,
				frame.FormatYUY2,
				frame.FormatUYVY,
				frame.FormatMJPEG,
				frame.FormatNV12,
				frame.FormatRGBA,
			}
			c.Width = prop.IntRanged{Min: 0, Ideal: 640, Max: 4096}
			c.Height = prop.IntRanged{Min: 0, Ideal: 480, Max: 2160}
		},
	}
}

// Open starts streaming from deviceID, or from the default device when it
// is empty, and reads one frame to learn the native resolution.
func (s *Service) Open(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	stream, err := mediadevices.GetUserMedia(constraints(deviceID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoCamera, err)
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return ErrNoCamera
	}
	for _, extra := range tracks[1:] {
		extra.Close()
	}

	videoTrack, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		tracks[0].Close()
		return fmt.Errorf("%w: unexpected track type %T", ErrNoCamera, tracks[0])
	}

	// Frames are copied so they outlive the release callback.
	reader := videoTrack.NewReader(true)
	img, release, err := reader.Read()
	if release != nil {
		release()
	}
	if err != nil {
		videoTrack.Close()
		return fmt.Errorf("failed to read first frame: %w", err)
	}

	s.track = videoTrack
	s.reader = reader
	s.deviceID = deviceID
	s.width = img.Bounds().Dx()
	s.height = img.Bounds().Dy()

	name := deviceID
	if name == "" {
		name = "default"
	}
	s.logger.Info("📷 Camera %s opened at %dx%d", name, s.width, s.height)
	return nil
}

// Switch re-establishes the stream on another device. On failure the
// previous stream is already closed.
func (s *Service) Switch(deviceID string) error {
	if err := s.Open(deviceID); err != nil {
		s.logger.Error("Failed to switch camera to %s: %v", deviceID, err)
		return err
	}
	return nil
}

// Read returns the next frame.
func (s *Service) Read() (image.Image, func(), error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.reader == nil {
		return nil, nil, ErrNotOpen
	}
	return s.reader.Read()
}

// Current returns the selected device id, empty for the default device.
func (s *Service) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID
}

// Size returns the native resolution of the open stream.
func (s *Service) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *Service) closeLocked() {
	if s.track != nil {
		if err := s.track.Close(); err != nil {
			s.logger.Warning("Failed to close camera track: %v", err)
		}
	}
	s.track = nil
	s.reader = nil
	s.width = 0
	s.height = 0
}
