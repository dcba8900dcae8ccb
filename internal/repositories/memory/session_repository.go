package memory

import (
	"racebeacon/internal/models"
	"racebeacon/internal/repositories/interfaces"
)

type sessionRepository struct {
	sessions map[string]*models.Session
}

func NewSessionRepository() interfaces.SessionRepository {
	return &sessionRepository{
		sessions: make(map[string]*models.Session),
	}
}

func (r *sessionRepository) Get(id string) (*models.Session, bool) {
	session, ok := r.sessions[id]
	return session, ok
}

func (r *sessionRepository) Save(session *models.Session) {
	r.sessions[session.ID] = session
}

func (r *sessionRepository) Delete(id string) (*models.Session, bool) {
	session, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return session, ok
}

func (r *sessionRepository) List() []*models.Session {
	sessions := make([]*models.Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

func (r *sessionRepository) Count() int {
	return len(r.sessions)
}
