package memory

import (
	"racebeacon/internal/models"
	"racebeacon/internal/repositories/interfaces"
)

type emergencyRepository struct {
	emergencies map[string]*models.Emergency
	// raiser session id -> emergency ids
	byRaiser map[string]map[string]struct{}
}

func NewEmergencyRepository() interfaces.EmergencyRepository {
	return &emergencyRepository{
		emergencies: make(map[string]*models.Emergency),
		byRaiser:    make(map[string]map[string]struct{}),
	}
}

func (r *emergencyRepository) Get(id string) (*models.Emergency, bool) {
	emergency, ok := r.emergencies[id]
	return emergency, ok
}

func (r *emergencyRepository) Save(emergency *models.Emergency) {
	if previous, ok := r.emergencies[emergency.ID]; ok && previous.RaisedBy != emergency.RaisedBy {
		r.unindex(previous)
	}
	r.emergencies[emergency.ID] = emergency

	ids, ok := r.byRaiser[emergency.RaisedBy]
	if !ok {
		ids = make(map[string]struct{})
		r.byRaiser[emergency.RaisedBy] = ids
	}
	ids[emergency.ID] = struct{}{}
}

func (r *emergencyRepository) Delete(id string) (*models.Emergency, bool) {
	emergency, ok := r.emergencies[id]
	if !ok {
		return nil, false
	}
	delete(r.emergencies, id)
	r.unindex(emergency)
	return emergency, true
}

func (r *emergencyRepository) List() []*models.Emergency {
	emergencies := make([]*models.Emergency, 0, len(r.emergencies))
	for _, emergency := range r.emergencies {
		emergencies = append(emergencies, emergency)
	}
	return emergencies
}

func (r *emergencyRepository) ListByRaiser(sessionID string) []*models.Emergency {
	ids := r.byRaiser[sessionID]
	emergencies := make([]*models.Emergency, 0, len(ids))
	for id := range ids {
		if emergency, ok := r.emergencies[id]; ok {
			emergencies = append(emergencies, emergency)
		}
	}
	return emergencies
}

func (r *emergencyRepository) unindex(emergency *models.Emergency) {
	ids, ok := r.byRaiser[emergency.RaisedBy]
	if !ok {
		return
	}
	delete(ids, emergency.ID)
	if len(ids) == 0 {
		delete(r.byRaiser, emergency.RaisedBy)
	}
}
