package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"racebeacon/internal/handlers"
	"racebeacon/internal/models"
	"racebeacon/internal/repositories/memory"
	"racebeacon/internal/services"
	"racebeacon/pkg/logger"
	"racebeacon/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, wsPath string) (*gin.Engine, *services.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Discard()

	engine := services.NewEngine(memory.NewSessionRepository(), memory.NewEmergencyRepository(), log)
	hub := websocket.NewHub(log)
	dispatcher := services.NewDispatcher(engine, hub, nil, models.DefaultRoutes(), log)
	status := handlers.NewStatusHandler(engine, hub, models.DefaultRoutes(), "test")
	ws := websocket.NewHandler(hub, dispatcher, websocket.DefaultConfig(), log)

	return SetupRoutes(status, ws, log, Options{WebSocketPath: wsPath}), engine
}

func TestSetupRoutesServesReadOnlyAPI(t *testing.T) {
	router, engine := newTestRouter(t, "")

	_, _, err := engine.Register("conn-1", models.RoleParticipant, models.SessionFields{})
	require.NoError(t, err)
	change, err := engine.Raise("conn-1", models.NewLocation(22.4, 114.1), "cramp")
	require.NoError(t, err)

	for _, path := range []string{"/health", "/api/v1/routes", "/api/v1/status", "/api/v1/emergencies", "/api/v1/emergencies/" + change.Emergency.ID} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}
}

func TestSetupRoutesWebSocketPath(t *testing.T) {
	router, _ := newTestRouter(t, "/live")

	// A plain GET is not an upgrade; gorilla answers 400 but the route exists.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
