package interfaces

import (
	"context"

	"racebeacon/internal/models"
)

// EmergencyRepository stores emergencies keyed by emergency identifier,
// including terminal ones until they are purged. Same concurrency contract as
// SessionRepository.
type EmergencyRepository interface {
	Get(id string) (*models.Emergency, bool)
	Save(emergency *models.Emergency)
	Delete(id string) (*models.Emergency, bool)
	List() []*models.Emergency
	ListByRaiser(sessionID string) []*models.Emergency
}

// EmergencyArchive receives terminal emergencies before they are purged from
// memory.
type EmergencyArchive interface {
	Archive(ctx context.Context, emergencies []*models.Emergency) error
}
