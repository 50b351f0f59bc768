package sqlite

import (
	"fmt"
	"time"

	"posewatch/internal/model"
)

// AlertEventRepository implements repository.AlertEventRepository for SQLite.
type AlertEventRepository struct {
	db *DB
}

// NewAlertEventRepository creates a new SQLite alert event repository.
func NewAlertEventRepository(db *DB) *AlertEventRepository {
	return &AlertEventRepository{db: db}
}

// Insert adds a new event and fills in its ID. A zero CreatedAt is set to now.
func (r *AlertEventRepository) Insert(event *model.AlertEvent) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	result, err := r.db.Conn().Exec(`
		INSERT INTO alert_events (kind, detail, poses, created_at)
		VALUES (?, ?, ?, ?)
	`, event.Kind, event.Detail, event.Poses, event.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read alert event id: %w", err)
	}
	event.ID = id
	return id, nil
}

// Recent returns up to limit events, newest first.
func (r *AlertEventRepository) Recent(limit int) ([]model.AlertEvent, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, kind, detail, poses, created_at
		FROM alert_events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert events: %w", err)
	}
	defer rows.Close()

	events := []model.AlertEvent{}
	for rows.Next() {
		var event model.AlertEvent
		if err := rows.Scan(&event.ID, &event.Kind, &event.Detail, &event.Poses, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// CountByKind returns the number of events of each kind.
func (r *AlertEventRepository) CountByKind() (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT kind, COUNT(*) FROM alert_events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count alert events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan alert event count: %w", err)
		}
		counts[kind] = count
	}

	return counts, rows.Err()
}

// DeleteAll clears the activity log.
func (r *AlertEventRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM alert_events`); err != nil {
		return fmt.Errorf("failed to delete alert events: %w", err)
	}
	return nil
}
