// Package activity keeps the session's alert activity log and announces new
// entries to viewers.
package activity

import (
	"fmt"
	"time"

	"posewatch/internal/dto"
	"posewatch/internal/logger"
	"posewatch/internal/model"
	"posewatch/internal/repository"
)

// Broadcaster delivers messages to connected viewers.
type Broadcaster interface {
	BroadcastJSON(v any) error
}

type Service struct {
	repo   repository.AlertEventRepository
	hub    Broadcaster
	limit  int
	logger *logger.Logger
}

// NewService creates the activity log. limit caps how many entries Recent returns.
func NewService(repo repository.AlertEventRepository, hub Broadcaster, limit int, logger *logger.Logger) *Service {
	if limit <= 0 {
		limit = 50
	}
	return &Service{repo: repo, hub: hub, limit: limit, logger: logger}
}

// Record stores an event and broadcasts it.
func (s *Service) Record(kind, detail string, poses int, at time.Time) (*model.AlertEvent, error) {
	event := &model.AlertEvent{
		Kind:      kind,
		Detail:    detail,
		Poses:     poses,
		CreatedAt: at,
	}
	if _, err := s.repo.Insert(event); err != nil {
		return nil, fmt.Errorf("failed to record %s event: %w", kind, err)
	}

	if err := s.hub.BroadcastJSON(dto.ActivityMessage{Type: dto.MessageActivity, Event: *event}); err != nil {
		s.logger.Warning("Failed to broadcast activity: %v", err)
	}
	return event, nil
}

func (s *Service) record(kind, detail string, poses int) {
	if _, err := s.Record(kind, detail, poses, time.Now()); err != nil {
		s.logger.Error("%v", err)
	}
}

// OnTrigger records an accepted alert trigger.
func (s *Service) OnTrigger(at time.Time, poses int) {
	if _, err := s.Record(model.EventTriggered, fmt.Sprintf("%d pose(s) detected", poses), poses, at); err != nil {
		s.logger.Error("%v", err)
	}
}

// OnPlayed records the k-th notification of a burst playing to completion.
func (s *Service) OnPlayed(k int) {
	s.record(model.EventPlayed, fmt.Sprintf("notification %d played", k+1), 0)
}

// OnFailed records a notification that could not be played.
func (s *Service) OnFailed(k int, err error) {
	s.record(model.EventFailed, fmt.Sprintf("notification %d failed: %v", k+1, err), 0)
}

// OnToggled records the alert toggle.
func (s *Service) OnToggled(enabled bool) {
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	s.record(model.EventToggled, "alerts "+state, 0)
}

// Recent returns the newest entries. A limit outside (0, max] uses the configured maximum.
func (s *Service) Recent(limit int) ([]model.AlertEvent, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	return s.repo.Recent(limit)
}

// Summary counts entries by kind.
func (s *Service) Summary() (map[string]int, error) {
	return s.repo.CountByKind()
}

// Clear empties the log.
func (s *Service) Clear() error {
	if err := s.repo.DeleteAll(); err != nil {
		return err
	}
	s.logger.Info("Activity log cleared")
	return nil
}
