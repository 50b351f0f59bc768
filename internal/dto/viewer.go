package dto

import (
	"posewatch/internal/geometry"
	"posewatch/internal/model"
)

// Viewer message types broadcast over /api/view.
const (
	MessageFrame    = "frame"
	MessageAlert    = "alert"
	MessageActivity = "activity"
	MessageCamera   = "camera"
)

// FrameMessage carries the overlay of one frame and, when the frame was
// captured locally, the annotated JPEG encoded as base64.
type FrameMessage struct {
	Type   string         `json:"type"`
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Boxes  []geometry.Box `json:"boxes"`
	Image  string         `json:"image,omitempty"`
}

// AlertState describes the alert toggle.
type AlertState struct {
	Type        string `json:"type,omitempty"`
	Enabled     bool   `json:"enabled"`
	Label       string `json:"label"`
	CooldownMs  int64  `json:"cooldownMs"`
	LastTrigger string `json:"lastTrigger,omitempty"`
}

// ActivityMessage announces a new activity log entry.
type ActivityMessage struct {
	Type  string           `json:"type"`
	Event model.AlertEvent `json:"event"`
}

// CameraInfo is one selectable video input.
type CameraInfo struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// CameraMessage announces that a camera stream is ready at its native resolution.
type CameraMessage struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
