package handler

import (
	"net/http"

	"posewatch/internal/logger"
	"posewatch/internal/model"
)

// ActivityLog is the session's alert activity log.
type ActivityLog interface {
	Recent(limit int) ([]model.AlertEvent, error)
	Summary() (map[string]int, error)
	Clear() error
}

type activityResponse struct {
	Events []model.AlertEvent `json:"events"`
	Counts map[string]int     `json:"counts"`
}

// ListActivityHandler handles GET /api/activity?limit=.
func ListActivityHandler(activity ActivityLog, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}

		events, err := activity.Recent(atoiDefault(r.URL.Query().Get("limit"), 0))
		if err != nil {
			logger.Error("Error querying activity: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		counts, err := activity.Summary()
		if err != nil {
			logger.Error("Error counting activity: %v", err)
			counts = map[string]int{}
		}

		writeJSON(w, http.StatusOK, activityResponse{Events: events, Counts: counts})
	}
}

// ClearActivityHandler handles POST /api/activity/clear.
func ClearActivityHandler(activity ActivityLog, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		if err := activity.Clear(); err != nil {
			logger.Error("Error clearing activity: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
