package memory

import (
	"testing"
	"time"

	"racebeacon/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository(t *testing.T) {
	repo := NewSessionRepository()

	_, ok := repo.Get("conn-a")
	assert.False(t, ok)

	repo.Save(&models.Session{ID: "conn-a", Role: models.RoleParticipant})
	repo.Save(&models.Session{ID: "conn-b", Role: models.RoleStaff})
	assert.Equal(t, 2, repo.Count())
	assert.Len(t, repo.List(), 2)

	session, ok := repo.Get("conn-a")
	require.True(t, ok)
	assert.Equal(t, models.RoleParticipant, session.Role)

	deleted, ok := repo.Delete("conn-a")
	require.True(t, ok)
	assert.Equal(t, "conn-a", deleted.ID)
	assert.Equal(t, 1, repo.Count())

	_, ok = repo.Delete("conn-a")
	assert.False(t, ok)
}

func TestEmergencyRepositoryIndexesByRaiser(t *testing.T) {
	repo := NewEmergencyRepository()
	now := time.Now()

	repo.Save(&models.Emergency{ID: "em-1", RaisedBy: "runner", RaisedAt: now})
	repo.Save(&models.Emergency{ID: "em-2", RaisedBy: "runner", RaisedAt: now})
	repo.Save(&models.Emergency{ID: "em-3", RaisedBy: "other", RaisedAt: now})

	assert.Len(t, repo.List(), 3)
	assert.Len(t, repo.ListByRaiser("runner"), 2)
	assert.Len(t, repo.ListByRaiser("other"), 1)
	assert.Empty(t, repo.ListByRaiser("nobody"))

	_, ok := repo.Delete("em-1")
	require.True(t, ok)
	byRaiser := repo.ListByRaiser("runner")
	require.Len(t, byRaiser, 1)
	assert.Equal(t, "em-2", byRaiser[0].ID)

	_, ok = repo.Delete("em-1")
	assert.False(t, ok)
}

func TestEmergencyRepositoryReindexesOnRaiserChange(t *testing.T) {
	repo := NewEmergencyRepository()

	repo.Save(&models.Emergency{ID: "em-1", RaisedBy: "runner"})
	repo.Save(&models.Emergency{ID: "em-1", RaisedBy: "other"})

	assert.Empty(t, repo.ListByRaiser("runner"))
	assert.Len(t, repo.ListByRaiser("other"), 1)
	assert.Len(t, repo.List(), 1)
}
