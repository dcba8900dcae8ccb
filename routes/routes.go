package routes

import (
	"racebeacon/internal/handlers"
	"racebeacon/internal/middleware"
	"racebeacon/pkg/logger"
	"racebeacon/pkg/websocket"

	"github.com/gin-gonic/gin"
)

type Options struct {
	AllowedOrigins []string
	WebSocketPath  string
}

// SetupRoutes builds the router: health, the read-only API and the
// websocket upgrade endpoint.
func SetupRoutes(statusHandler *handlers.StatusHandler, wsHandler *websocket.Handler, log *logger.Logger, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RecoveryMiddleware(log))
	r.Use(middleware.LoggingMiddleware(log))
	r.Use(middleware.CORSMiddleware(opts.AllowedOrigins))

	r.GET("/health", statusHandler.Health)

	api := r.Group("/api/v1")
	{
		api.GET("/routes", statusHandler.GetRoutes)
		api.GET("/status", statusHandler.GetStatus)
		api.GET("/emergencies", statusHandler.ListEmergencies)
		api.GET("/emergencies/:id", statusHandler.GetEmergency)
	}

	path := opts.WebSocketPath
	if path == "" {
		path = "/ws"
	}
	r.GET(path, wsHandler.HandleWebSocket)

	return r
}
