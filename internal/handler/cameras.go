package handler

import (
	"net/http"

	"posewatch/internal/dto"
	"posewatch/internal/logger"
	"posewatch/internal/service/camera"
)

// CameraController selects the local video input.
type CameraController interface {
	Devices() []camera.Device
	Switch(deviceID string) error
	Current() string
	Size() (int, int)
}

// ListCamerasHandler handles GET /api/cameras. Without a local camera the
// list is empty.
func ListCamerasHandler(cameras CameraController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}

		list := []dto.CameraInfo{}
		if cameras != nil {
			current := cameras.Current()
			for _, d := range cameras.Devices() {
				list = append(list, dto.CameraInfo{ID: d.ID, Label: d.Label, Selected: d.ID == current})
			}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// SelectCameraHandler handles POST /api/cameras/select?id=.
func SelectCameraHandler(cameras CameraController, hub Broadcaster, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		if cameras == nil {
			http.Error(w, "No local camera in this detector mode", http.StatusConflict)
			return
		}

		id := r.URL.Query().Get("id")
		if err := cameras.Switch(id); err != nil {
			http.Error(w, "Failed to open camera", http.StatusInternalServerError)
			return
		}

		width, height := cameras.Size()
		msg := dto.CameraMessage{Type: dto.MessageCamera, ID: id, Width: width, Height: height}
		if err := hub.BroadcastJSON(msg); err != nil {
			logger.Warning("Failed to broadcast camera change: %v", err)
		}
		writeJSON(w, http.StatusOK, msg)
	}
}
