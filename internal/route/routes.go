package route

import (
	"net/http"
	"os"
	"path/filepath"

	"posewatch/internal/alert"
	"posewatch/internal/config"
	"posewatch/internal/handler"
	"posewatch/internal/logger"
	"posewatch/internal/metrics"
	"posewatch/internal/middleware"
	"posewatch/internal/service/activity"
	"posewatch/internal/service/websocket"
	"posewatch/internal/source"
)

// Services are the components exposed over HTTP.
type Services struct {
	Config   *config.Config
	Logger   *logger.Logger
	Limiter  *alert.Limiter
	Hub      *websocket.HubService
	Activity *activity.Service
	Metrics  *metrics.Metrics
	Cameras  handler.CameraController // nil when frames are not captured locally
	Push     *source.PushSource       // set in websocket detector mode
}

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(s Services) http.Handler {
	mux := http.NewServeMux()
	cfg := s.Config

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	// API endpoints
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(s.Hub, s.Limiter, s.Logger))
	mux.HandleFunc("/api/alerts", handler.GetAlertsHandler(s.Limiter))
	mux.HandleFunc("/api/alerts/toggle", handler.ToggleAlertsHandler(s.Limiter, s.Hub, s.Activity, s.Logger))
	mux.HandleFunc("/api/cameras", handler.ListCamerasHandler(s.Cameras))
	mux.HandleFunc("/api/cameras/select", handler.SelectCameraHandler(s.Cameras, s.Hub, s.Logger))
	mux.HandleFunc("/api/activity", handler.ListActivityHandler(s.Activity, s.Logger))
	mux.HandleFunc("/api/activity/clear", handler.ClearActivityHandler(s.Activity, s.Logger))
	if s.Push != nil {
		mux.HandleFunc("/api/detector", handler.DetectorWebsocketHandler(s.Push, s.Logger))
	}

	mux.Handle("/metrics", s.Metrics.Handler())

	// Log endpoints
	mux.HandleFunc("/logs/info", handler.ShowLogsHandler(s.Logger, logger.InfoFile))
	mux.HandleFunc("/logs/warning", handler.ShowLogsHandler(s.Logger, logger.WarningFile))
	mux.HandleFunc("/logs/error", handler.ShowLogsHandler(s.Logger, logger.ErrorFile))

	mux.HandleFunc("/logs/info/clear", handler.ClearLogsHandler(s.Logger, logger.InfoFile))
	mux.HandleFunc("/logs/warning/clear", handler.ClearLogsHandler(s.Logger, logger.WarningFile))
	mux.HandleFunc("/logs/error/clear", handler.ClearLogsHandler(s.Logger, logger.ErrorFile))

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, s.Logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /login -> <static>/login.html
	mux.HandleFunc("/", dynamicHTMLHandler(cfg.StaticDirectory))

	// Apply middleware
	return middleware.AuthMiddleware(cfg.Password, mux)
}
