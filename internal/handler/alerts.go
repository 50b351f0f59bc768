package handler

import (
	"net/http"
	"time"

	"posewatch/internal/alert"
	"posewatch/internal/dto"
	"posewatch/internal/logger"
)

// Broadcaster delivers messages to connected viewers.
type Broadcaster interface {
	BroadcastJSON(v any) error
}

// ToggleRecorder is told about every alert toggle.
type ToggleRecorder interface {
	OnToggled(enabled bool)
}

// AlertState builds the alert toggle description sent to clients.
func AlertState(limiter *alert.Limiter) dto.AlertState {
	enabled := limiter.Enabled()
	state := dto.AlertState{
		Type:       dto.MessageAlert,
		Enabled:    enabled,
		Label:      alert.Label(enabled),
		CooldownMs: limiter.Cooldown().Milliseconds(),
	}
	if last, ok := limiter.LastTrigger(); ok {
		state.LastTrigger = last.Format(time.RFC3339Nano)
	}
	return state
}

// GetAlertsHandler handles GET /api/alerts.
func GetAlertsHandler(limiter *alert.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, AlertState(limiter))
	}
}

// ToggleAlertsHandler handles POST /api/alerts/toggle: flips the alert flag,
// records it and pushes the new state to every viewer.
func ToggleAlertsHandler(limiter *alert.Limiter, hub Broadcaster, recorder ToggleRecorder, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}

		enabled := limiter.Toggle()
		logger.Info("%s", alert.Label(enabled))
		recorder.OnToggled(enabled)

		state := AlertState(limiter)
		if err := hub.BroadcastJSON(state); err != nil {
			logger.Warning("Failed to broadcast alert state: %v", err)
		}
		writeJSON(w, http.StatusOK, state)
	}
}
