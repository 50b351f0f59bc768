package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"posewatch/internal/alert"
	"posewatch/internal/logger"
	"posewatch/internal/source"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// maxDetectorMessage bounds one pushed inference message.
const maxDetectorMessage = 1 << 20

// ViewerHub registers viewer connections for broadcasts.
type ViewerHub interface {
	Register(client *websocket.Conn)
	Unregister(client *websocket.Conn)
}

// ViewWebsocketHandler handles viewer connections over WebSocket. The
// current alert state is sent first, then the viewer joins the hub.
func ViewWebsocketHandler(hub ViewerHub, limiter *alert.Limiter, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		if err := connection.WriteJSON(AlertState(limiter)); err != nil {
			logger.Error("Failed to send alert state: %v", err)
			connection.Close()
			return
		}

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Error("Viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}

// DetectorWebsocketHandler accepts inference results pushed by an external
// detector as JSON messages and hands them to the push source.
func DetectorWebsocketHandler(push *source.PushSource, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()
		connection.SetReadLimit(maxDetectorMessage)

		logger.Info("Detector connected from %s", r.RemoteAddr)

		for {
			messageType, payload, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Detector disconnected")
				} else {
					logger.Error("Detector disconnected with error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			res, err := source.DecodeJSON(payload, time.Now())
			if err != nil {
				logger.Warning("Skipping detector message: %v", err)
				continue
			}
			if err := push.Deliver(r.Context(), res); err != nil {
				logger.Warning("Detector stream closed: %v", err)
				return
			}
		}
	}
}
