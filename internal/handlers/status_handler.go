package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"racebeacon/internal/models"
	"racebeacon/internal/utils"

	"github.com/gin-gonic/gin"
)

// StateReader is the read-only slice of the engine the HTTP surface needs.
type StateReader interface {
	Stats() models.SystemStatus
	ActiveSnapshot() map[string]*models.Emergency
	Emergency(emergencyID string) (*models.Emergency, bool)
}

type ConnectionCounter interface {
	ConnectionCount() int
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type StatusHandler struct {
	state       StateReader
	connections ConnectionCounter
	routes      models.RouteConfig
	checks      map[string]HealthCheck
	version     string
}

func NewStatusHandler(state StateReader, connections ConnectionCounter, routes models.RouteConfig, version string) *StatusHandler {
	return &StatusHandler{
		state:       state,
		connections: connections,
		routes:      routes,
		checks:      make(map[string]HealthCheck),
		version:     version,
	}
}

// AddHealthCheck registers a dependency probe reported by Health.
func (h *StatusHandler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

func (h *StatusHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	healthy := true
	dependencies := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			healthy = false
			dependencies[name] = err.Error()
			continue
		}
		dependencies[name] = "ok"
	}

	body := gin.H{
		"status":       "healthy",
		"service":      utils.AppName,
		"version":      h.version,
		"dependencies": dependencies,
		"timestamp":    time.Now().Unix(),
	}
	if !healthy {
		body["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (h *StatusHandler) GetRoutes(c *gin.Context) {
	utils.SuccessResponseWithMeta(c, "Routes retrieved", h.routes, &utils.Meta{Count: len(h.routes)})
}

func (h *StatusHandler) GetStatus(c *gin.Context) {
	status := h.state.Stats()
	status.Connections = h.connections.ConnectionCount()
	utils.SuccessResponse(c, "Status retrieved", status)
}

// ListEmergencies returns active emergencies, oldest first.
func (h *StatusHandler) ListEmergencies(c *gin.Context) {
	active := h.state.ActiveSnapshot()

	emergencies := make([]*models.Emergency, 0, len(active))
	for _, emergency := range active {
		emergencies = append(emergencies, emergency)
	}
	sort.Slice(emergencies, func(i, j int) bool {
		if !emergencies[i].RaisedAt.Equal(emergencies[j].RaisedAt) {
			return emergencies[i].RaisedAt.Before(emergencies[j].RaisedAt)
		}
		return emergencies[i].ID < emergencies[j].ID
	})

	utils.SuccessResponseWithMeta(c, "Emergencies retrieved", emergencies, &utils.Meta{Count: len(emergencies)})
}

func (h *StatusHandler) GetEmergency(c *gin.Context) {
	emergency, ok := h.state.Emergency(c.Param("id"))
	if !ok {
		utils.NotFoundResponse(c, "Emergency")
		return
	}
	utils.SuccessResponse(c, "Emergency retrieved", emergency)
}
