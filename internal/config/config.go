package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Detector delivery modes.
const (
	DetectorModeDNN       = "dnn"
	DetectorModeZMQ       = "zmq"
	DetectorModeWebsocket = "websocket"
)

type Config struct {
	Port            int
	Password        string // empty disables the login gate
	StaticDirectory string
	LogDirectory    string

	// Alerts
	AlertsEnabled        bool
	AlertCooldown        time.Duration
	NotificationCount    int
	NotificationInterval time.Duration
	SoundURL             string
	SoundTimeout         time.Duration
	SoundVolume          float64 // 0 keeps the recorded level
	AudioBackend         string // "malgo" or "none"

	// Detector
	DetectorMode           string
	ModelPath              string
	ConfigPath             string
	SelfieMode             bool
	SmoothLandmarks        bool
	MinDetectionConfidence float64
	MinTrackingConfidence  float64
	ZMQEndpoint            string

	// Camera
	CameraDevice string

	// Activity log
	ActivityDatabase string
	ActivityLimit    int
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:            getEnvAsInt("PORT", 8080),
		Password:        getEnv("PASSWORD", ""),
		StaticDirectory: getEnv("STATIC_DIR", filepath.Join(".", "static")),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),

		AlertsEnabled:        getEnvAsBool("ALERTS_ENABLED", true),
		AlertCooldown:        getEnvAsMillis("ALERT_COOLDOWN_MS", 5000),
		NotificationCount:    getEnvAsInt("NOTIFICATION_COUNT", 3),
		NotificationInterval: getEnvAsMillis("NOTIFICATION_INTERVAL_MS", 2000),
		SoundURL:             getEnv("SOUND_URL", filepath.Join(".", "static", "sound.wav")),
		SoundTimeout:         getEnvAsMillis("SOUND_TIMEOUT_MS", 15000),
		SoundVolume:          getEnvAsFloat("SOUND_VOLUME", 0),
		AudioBackend:         strings.ToLower(getEnv("AUDIO_BACKEND", "malgo")),

		DetectorMode:           strings.ToLower(getEnv("DETECTOR_MODE", DetectorModeDNN)),
		ModelPath:              getEnv("MODEL_PATH", filepath.Join(".", "models", "pose_iter_440000.caffemodel")),
		ConfigPath:             getEnv("CONFIG_PATH", filepath.Join(".", "models", "pose_deploy_linevec.prototxt")),
		SelfieMode:             getEnvAsBool("SELFIE_MODE", true),
		SmoothLandmarks:        getEnvAsBool("SMOOTH_LANDMARKS", true),
		MinDetectionConfidence: getEnvAsFloat("MIN_DETECTION_CONFIDENCE", 0.5),
		MinTrackingConfidence:  getEnvAsFloat("MIN_TRACKING_CONFIDENCE", 0.5),
		ZMQEndpoint:            getEnv("ZMQ_ENDPOINT", "tcp://127.0.0.1:5556"),

		CameraDevice: getEnv("CAMERA_DEVICE", ""),

		ActivityDatabase: getEnv("ACTIVITY_DB", ":memory:"),
		ActivityLimit:    getEnvAsInt("ACTIVITY_LIMIT", 50),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil && floatValue >= 0 && floatValue <= 1 {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue int64) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return time.Duration(defaultValue) * time.Millisecond
}
