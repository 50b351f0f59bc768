package repository

import "posewatch/internal/model"

// AlertEventRepository defines the interface for activity log operations.
type AlertEventRepository interface {
	// Create operations
	Insert(event *model.AlertEvent) (int64, error)

	// Read operations
	Recent(limit int) ([]model.AlertEvent, error)
	CountByKind() (map[string]int, error)

	// Delete operations
	DeleteAll() error
}
