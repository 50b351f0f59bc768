package ai

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"posewatch/internal/config"
	"posewatch/internal/logger"
	"posewatch/internal/model"
)

const (
	// InputSize is the square network input used by OpenPose style models.
	InputSize = 368
	// KeypointCount is the number of COCO body part heatmaps read from the output.
	KeypointCount = 18
)

// ErrNetNotInitialized is returned by every call when the model failed to load.
var ErrNetNotInitialized = errors.New("pose network not initialized")

type DetectorService struct {
	net        gocv.Net
	ready      bool
	modelPath  string
	configPath string
	selfie     bool
	tracker    *tracker
	mu         sync.Mutex
	logger     *logger.Logger
}

// NewDetectorService creates a pose detector from the configured model files.
// A model that cannot be loaded is logged; EstimatePoses then fails per frame.
func NewDetectorService(config *config.Config, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		modelPath:  config.ModelPath,
		configPath: config.ConfigPath,
		selfie:     config.SelfieMode,
		tracker:    newTracker(config.SmoothLandmarks, config.MinDetectionConfidence, config.MinTrackingConfidence),
		logger:     logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize pose network: %v", err)
		return service
	}

	return service
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)

	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)

	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.ready = true
	s.logger.Info("Pose network initialized successfully")
	return nil
}

// Ready reports whether the model is loaded.
func (s *DetectorService) Ready() bool {
	return s.ready
}

// EstimatePoses runs the network on one frame and returns the detected poses
// with landmarks normalized to the frame size. In selfie mode the frame is
// mirrored first, so landmarks are in mirrored coordinates.
func (s *DetectorService) EstimatePoses(ctx context.Context, img image.Image) ([]model.Pose, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil, ErrNetNotInitialized
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	if s.selfie {
		gocv.Flip(mat, &mat, 1)
	}

	keypoints, err := s.forward(mat)
	if err != nil {
		return nil, err
	}
	return s.tracker.update(keypoints), nil
}

// forward returns the best location of every body part heatmap, with the
// heatmap peak as visibility.
func (s *DetectorService) forward(mat gocv.Mat) ([]model.Landmark, error) {
	blob := gocv.BlobFromImage(mat, 1.0/255, image.Pt(InputSize, InputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	s.net.SetInput(blob, "")

	output := s.net.Forward("")
	defer output.Close()

	// Output layout: [1, parts, rows, cols]
	size := output.Size()
	if len(size) != 4 || size[1] < KeypointCount {
		return nil, fmt.Errorf("unexpected network output shape %v", size)
	}
	rows, cols := size[2], size[3]

	keypoints := make([]model.Landmark, KeypointCount)
	for i := 0; i < KeypointCount; i++ {
		heatmap, err := output.FromPtr(rows, cols, gocv.MatTypeCV32F, 0, i)
		if err != nil {
			return nil, fmt.Errorf("failed to read heatmap %d: %w", i, err)
		}
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(heatmap)
		heatmap.Close()

		keypoints[i] = model.Landmark{
			X:          (float64(maxLoc.X) + 0.5) / float64(cols),
			Y:          (float64(maxLoc.Y) + 0.5) / float64(rows),
			Visibility: float64(maxVal),
		}
	}
	return keypoints, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}
	s.ready = false
	return s.net.Close()
}
