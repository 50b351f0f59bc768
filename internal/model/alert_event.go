package model

import "time"

// Alert event kinds recorded in the activity log.
const (
	EventTriggered = "triggered"
	EventPlayed    = "played"
	EventFailed    = "failed"
	EventToggled   = "toggled"
)

// AlertEvent represents one activity log record.
type AlertEvent struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	Poses     int       `json:"poses"`
	CreatedAt time.Time `json:"createdAt"`
}
