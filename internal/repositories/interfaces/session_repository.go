package interfaces

import (
	"racebeacon/internal/models"
)

// SessionRepository stores live sessions keyed by connection identifier.
// Implementations are not required to be safe for concurrent use: the engine
// serializes every access under its own lock.
type SessionRepository interface {
	Get(id string) (*models.Session, bool)
	Save(session *models.Session)
	Delete(id string) (*models.Session, bool)
	List() []*models.Session
	Count() int
}
