package services

import (
	"fmt"

	"racebeacon/internal/models"
	"racebeacon/internal/utils"
)

// Register creates the session for connectionID, or updates it in place when
// the connection already registered with the same role. created reports
// whether a new record was made. A role change is rejected, including after
// the session was evicted while its connection stayed open.
func (e *Engine) Register(connectionID string, role models.Role, fields models.SessionFields) (*models.Session, bool, error) {
	if !role.IsValid() {
		return nil, false, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()

	if pinned, ok := e.roles[connectionID]; ok && pinned != role {
		return nil, false, fmt.Errorf("%w: connection %s is registered as %s", ErrRoleMismatch, connectionID, pinned)
	}

	if existing, ok := e.sessions.Get(connectionID); ok {
		if existing.Role != role {
			return nil, false, fmt.Errorf("%w: connection %s is registered as %s", ErrRoleMismatch, connectionID, existing.Role)
		}
		fields.Apply(existing)
		existing.LastUpdate = now
		return existing.Clone(), false, nil
	}

	session := &models.Session{
		ID:         connectionID,
		Role:       role,
		JoinedAt:   now,
		LastUpdate: now,
	}
	if role == models.RoleStaff {
		session.DisplayName = utils.PlaceholderName(utils.StaffNamePrefix, connectionID)
		session.Staff = models.DefaultStaffProfile()
	} else {
		session.DisplayName = utils.PlaceholderName(utils.ParticipantNamePrefix, connectionID)
	}
	fields.Apply(session)

	e.sessions.Save(session)
	e.roles[connectionID] = role

	e.log.LogPresenceEvent(connectionID, "session_registered", map[string]interface{}{
		"role":         role,
		"display_name": session.DisplayName,
	})

	return session.Clone(), true, nil
}

// UpdateLocation moves the session and applies any extra status fields.
func (e *Engine) UpdateLocation(connectionID string, lat, lng float64, fields models.SessionFields) (*models.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions.Get(connectionID)
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, connectionID)
	}

	fields.Location = models.NewLocation(lat, lng)
	fields.Apply(session)
	session.LastUpdate = e.now()

	return session.Clone(), nil
}

// UpdateStaffStatus changes staff-only fields without touching the location.
func (e *Engine) UpdateStaffStatus(connectionID string, fields models.SessionFields) (*models.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions.Get(connectionID)
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, connectionID)
	}
	if !session.IsStaff() {
		return nil, fmt.Errorf("%w: session %s is not staff", ErrRoleMismatch, connectionID)
	}

	fields.Location = nil
	fields.DisplayName = nil
	fields.Apply(session)
	session.LastUpdate = e.now()

	return session.Clone(), nil
}

// Remove deletes the session without touching emergencies. Removing an
// unknown connection is a no-op.
func (e *Engine) Remove(connectionID string) (*models.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions.Delete(connectionID)
	if !ok {
		return nil, false
	}
	return session.Clone(), true
}

func (e *Engine) Session(connectionID string) (*models.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions.Get(connectionID)
	if !ok {
		return nil, false
	}
	return session.Clone(), true
}

// Snapshot returns a point-in-time view of every session except
// excludingConnectionID, ordered by join time.
func (e *Engine) Snapshot(excludingConnectionID string) []models.SessionView {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.snapshot(excludingConnectionID)
}

// InitialData builds the get_initial_data payload under one lock. Staff see
// every active emergency, participants only their own.
func (e *Engine) InitialData(connectionID string, routes models.RouteConfig) models.InitialData {
	e.mu.Lock()
	defer e.mu.Unlock()

	data := models.InitialData{
		Participants: []models.SessionView{},
		Staff:        []models.SessionView{},
		Emergencies:  make(map[string]*models.Emergency),
		Routes:       routes,
	}

	for _, view := range e.snapshot(connectionID) {
		if view.Role == models.RoleStaff {
			data.Staff = append(data.Staff, view)
		} else {
			data.Participants = append(data.Participants, view)
		}
	}

	self, registered := e.sessions.Get(connectionID)
	if registered {
		view := self.View()
		data.Self = &view
	}

	for _, emergency := range e.emergencies.List() {
		if !emergency.IsActive() {
			continue
		}
		if registered && (self.IsStaff() || emergency.RaisedBy == connectionID) {
			data.Emergencies[emergency.ID] = emergency.Clone()
		}
	}

	return data
}

func (e *Engine) snapshot(excludingConnectionID string) []models.SessionView {
	sessions := e.sessions.List()
	sortSessions(sessions)

	views := make([]models.SessionView, 0, len(sessions))
	for _, session := range sessions {
		if session.ID == excludingConnectionID {
			continue
		}
		views = append(views, session.View())
	}
	return views
}
