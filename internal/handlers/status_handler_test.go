package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"racebeacon/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubState struct {
	status      models.SystemStatus
	emergencies map[string]*models.Emergency
}

func (s *stubState) Stats() models.SystemStatus { return s.status }

func (s *stubState) ActiveSnapshot() map[string]*models.Emergency { return s.emergencies }

func (s *stubState) Emergency(id string) (*models.Emergency, bool) {
	emergency, ok := s.emergencies[id]
	return emergency, ok
}

type stubCounter int

func (c stubCounter) ConnectionCount() int { return int(c) }

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Meta   *struct {
		Count int `json:"count"`
	} `json:"meta"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func setupRouter(h *StatusHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/routes", h.GetRoutes)
	router.GET("/status", h.GetStatus)
	router.GET("/emergencies", h.ListEmergencies)
	router.GET("/emergencies/:id", h.GetEmergency)
	return router
}

func get(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func newFixture() *StatusHandler {
	base := time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	state := &stubState{
		status: models.SystemStatus{Participants: 12, Staff: 3, ActiveEmergencies: 2},
		emergencies: map[string]*models.Emergency{
			"em_b": {ID: "em_b", Status: models.EmergencyStatusRaised, RaisedAt: base.Add(time.Minute)},
			"em_a": {ID: "em_a", Status: models.EmergencyStatusResponding, RaisedAt: base},
		},
	}
	return NewStatusHandler(state, stubCounter(9), models.DefaultRoutes(), "1.0.0")
}

func TestHealth(t *testing.T) {
	h := newFixture()
	router := setupRouter(h)

	w, body := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body.Status)

	h.AddHealthCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })
	w, body = get(t, router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", body.Status)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestGetRoutes(t *testing.T) {
	w, body := get(t, setupRouter(newFixture()), "/routes")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, body.Meta)
	assert.Equal(t, 3, body.Meta.Count)

	var routes models.RouteConfig
	require.NoError(t, json.Unmarshal(body.Data, &routes))
	assert.Len(t, routes["red"], 3)
}

func TestGetStatusIncludesConnections(t *testing.T) {
	_, body := get(t, setupRouter(newFixture()), "/status")

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.Equal(t, 12, status.Participants)
	assert.Equal(t, 9, status.Connections)
}

func TestListEmergenciesOldestFirst(t *testing.T) {
	_, body := get(t, setupRouter(newFixture()), "/emergencies")

	var emergencies []models.Emergency
	require.NoError(t, json.Unmarshal(body.Data, &emergencies))
	require.Len(t, emergencies, 2)
	assert.Equal(t, "em_a", emergencies[0].ID)
	assert.Equal(t, "em_b", emergencies[1].ID)
	assert.Equal(t, 2, body.Meta.Count)
}

func TestGetEmergency(t *testing.T) {
	router := setupRouter(newFixture())

	w, body := get(t, router, "/emergencies/em_b")
	require.Equal(t, http.StatusOK, w.Code)
	var emergency models.Emergency
	require.NoError(t, json.Unmarshal(body.Data, &emergency))
	assert.Equal(t, models.EmergencyStatusRaised, emergency.Status)

	w, body = get(t, router, "/emergencies/em_missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}
