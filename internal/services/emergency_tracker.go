package services

import (
	"fmt"
	"sort"
	"time"

	"racebeacon/internal/models"
	"racebeacon/internal/utils"
)

// Average speeds used to estimate staff arrival times.
var transportSpeedKMH = map[models.TransportMode]float64{
	models.TransportModeWalk:      5,
	models.TransportModeBike:      15,
	models.TransportModeScooter:   20,
	models.TransportModeCar:       30,
	models.TransportModeAmbulance: 40,
}

// NearbyStaff is a staff member who could respond to an emergency.
type NearbyStaff struct {
	SessionID     string               `json:"session_id"`
	DisplayName   string               `json:"display_name"`
	TransportMode models.TransportMode `json:"transport_mode"`
	HasFirstAid   bool                 `json:"has_first_aid"`
	DistanceKM    float64              `json:"distance_km"`
	ETAMinutes    int                  `json:"eta_minutes"`
}

// Raise opens an emergency for a registered participant. location overrides
// the session's last known position when non-nil. A participant holds at most
// one active emergency; a second raise is rejected.
func (e *Engine) Raise(sessionID string, location *models.Location, description string) (EmergencyChange, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions.Get(sessionID)
	if !ok {
		return EmergencyChange{}, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if session.Role != models.RoleParticipant {
		return EmergencyChange{}, fmt.Errorf("%w: only participants raise emergencies", ErrUnauthorized)
	}
	if e.hasActiveRaised(sessionID) {
		return EmergencyChange{}, fmt.Errorf("%w: session %s already has an active emergency", ErrInvalidTransition, sessionID)
	}

	if location == nil {
		location = session.Location
	}

	now := e.now()
	emergency := &models.Emergency{
		ID:          e.newID(),
		RaisedBy:    sessionID,
		RaiserName:  session.DisplayName,
		Location:    location.Clone(),
		Description: description,
		Status:      models.EmergencyStatusRaised,
		RaisedAt:    now,
	}
	e.emergencies.Save(emergency)

	session.EmergencyActive = true
	session.LastUpdate = now

	e.log.LogEmergencyEvent(emergency.ID, "raised", map[string]interface{}{
		"session_id": sessionID,
	})

	return EmergencyChange{
		Emergency: emergency.Clone(),
		Raiser:    session.Clone(),
	}, nil
}

// Acknowledge assigns a staff member to a Raised emergency. A second
// acknowledgement is rejected so an emergency is never double-assigned.
func (e *Engine) Acknowledge(emergencyID, staffSessionID string) (EmergencyChange, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	emergency, ok := e.emergencies.Get(emergencyID)
	if !ok {
		return EmergencyChange{}, fmt.Errorf("%w: emergency %s", ErrNotFound, emergencyID)
	}
	if emergency.Status.IsTerminal() {
		return EmergencyChange{}, fmt.Errorf("%w: emergency %s is %s", ErrAlreadyTerminal, emergencyID, emergency.Status)
	}

	staff, ok := e.sessions.Get(staffSessionID)
	if !ok || !staff.IsStaff() {
		return EmergencyChange{}, fmt.Errorf("%w: session %s is not registered staff", ErrUnauthorized, staffSessionID)
	}

	if emergency.Status != models.EmergencyStatusRaised {
		return EmergencyChange{}, fmt.Errorf("%w: emergency %s is already %s", ErrInvalidTransition, emergencyID, emergency.Status)
	}

	now := e.now()
	emergency.Status = models.EmergencyStatusResponding
	emergency.AssignedStaff = staff.ID
	emergency.AssignedName = staff.DisplayName
	emergency.AcknowledgedAt = &now

	staff.Staff.Availability = models.AvailabilityResponding

	e.log.LogEmergencyEvent(emergencyID, "acknowledged", map[string]interface{}{
		"staff_session_id": staff.ID,
	})

	change := EmergencyChange{
		Emergency: emergency.Clone(),
		Staff:     staff.Clone(),
	}
	if raiser, ok := e.sessions.Get(emergency.RaisedBy); ok {
		change.Raiser = raiser.Clone()
	}
	return change, nil
}

// Resolve closes an emergency. Resolving a closed emergency returns
// ErrAlreadyTerminal, distinct from ErrNotFound, so callers can treat a
// double resolve as benign.
func (e *Engine) Resolve(emergencyID, resolvedBy string) (EmergencyChange, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	emergency, ok := e.emergencies.Get(emergencyID)
	if !ok {
		return EmergencyChange{}, fmt.Errorf("%w: emergency %s", ErrNotFound, emergencyID)
	}
	if emergency.Status.IsTerminal() {
		return EmergencyChange{}, fmt.Errorf("%w: emergency %s is %s", ErrAlreadyTerminal, emergencyID, emergency.Status)
	}

	return e.close(emergency, models.EmergencyStatusResolved, resolvedBy, ""), nil
}

// Cancel lets the raiser withdraw an emergency. Any other session is
// rejected regardless of state.
func (e *Engine) Cancel(emergencyID, requestingSessionID string) (EmergencyChange, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	emergency, ok := e.emergencies.Get(emergencyID)
	if !ok {
		return EmergencyChange{}, fmt.Errorf("%w: emergency %s", ErrNotFound, emergencyID)
	}
	if emergency.RaisedBy != requestingSessionID {
		return EmergencyChange{}, fmt.Errorf("%w: only the raiser may cancel emergency %s", ErrUnauthorized, emergencyID)
	}
	if emergency.Status.IsTerminal() {
		return EmergencyChange{}, fmt.Errorf("%w: emergency %s is %s", ErrAlreadyTerminal, emergencyID, emergency.Status)
	}

	return e.close(emergency, models.EmergencyStatusCancelled, requestingSessionID, ""), nil
}

// AutoResolveFor closes every active emergency raised by sessionID.
func (e *Engine) AutoResolveFor(sessionID string) []EmergencyChange {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.autoResolveFor(sessionID, models.AutoResolveDisconnected)
}

// AutoResolveStale closes every active emergency raised more than maxAge ago.
func (e *Engine) AutoResolveStale(maxAge time.Duration) []EmergencyChange {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.autoResolveStale(e.now(), maxAge)
}

// ActiveSnapshot returns every non-terminal emergency keyed by id.
func (e *Engine) ActiveSnapshot() map[string]*models.Emergency {
	e.mu.Lock()
	defer e.mu.Unlock()

	active := make(map[string]*models.Emergency)
	for _, emergency := range e.emergencies.List() {
		if emergency.IsActive() {
			active[emergency.ID] = emergency.Clone()
		}
	}
	return active
}

func (e *Engine) Emergency(emergencyID string) (*models.Emergency, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	emergency, ok := e.emergencies.Get(emergencyID)
	if !ok {
		return nil, false
	}
	return emergency.Clone(), true
}

// NearbyStaff lists available staff sharing their location, closest first.
func (e *Engine) NearbyStaff(location *models.Location, limit int) []NearbyStaff {
	if location == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var nearby []NearbyStaff
	for _, session := range e.sessions.List() {
		if !session.IsStaff() || session.Location == nil || session.Staff == nil {
			continue
		}
		if !session.Staff.ShareLocation || session.Staff.Availability != models.AvailabilityAvailable {
			continue
		}
		distance := utils.CalculateDistance(location.Lat, location.Lng, session.Location.Lat, session.Location.Lng)
		nearby = append(nearby, NearbyStaff{
			SessionID:     session.ID,
			DisplayName:   session.DisplayName,
			TransportMode: session.Staff.TransportMode,
			HasFirstAid:   session.Staff.HasFirstAid,
			DistanceKM:    distance,
			ETAMinutes:    utils.EstimateETAMinutes(distance, transportSpeedKMH[session.Staff.TransportMode]),
		})
	}

	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceKM < nearby[j].DistanceKM
	})
	if limit > 0 && len(nearby) > limit {
		nearby = nearby[:limit]
	}
	return nearby
}

// close moves emergency to a terminal status and releases the raiser and the
// assigned staff. Must be called with mu held.
func (e *Engine) close(emergency *models.Emergency, status models.EmergencyStatus, by, reason string) EmergencyChange {
	now := e.now()
	emergency.Status = status
	emergency.ResolvedAt = &now
	emergency.ResolvedBy = by
	emergency.AutoResolveCause = reason

	change := EmergencyChange{Emergency: emergency.Clone()}

	if raiser, ok := e.sessions.Get(emergency.RaisedBy); ok {
		raiser.EmergencyActive = e.hasActiveRaised(raiser.ID)
		change.Raiser = raiser.Clone()
	}

	if emergency.AssignedStaff != "" {
		if staff, ok := e.sessions.Get(emergency.AssignedStaff); ok && staff.Staff != nil {
			if !e.hasActiveAssignment(staff.ID) {
				staff.Staff.Availability = models.AvailabilityAvailable
			}
			change.Staff = staff.Clone()
		}
	}

	details := map[string]interface{}{
		"status": status,
		"by":     by,
	}
	if reason != "" {
		details["reason"] = reason
	}
	e.log.LogEmergencyEvent(emergency.ID, "closed", details)

	return change
}

func (e *Engine) autoResolveFor(sessionID, reason string) []EmergencyChange {
	var changes []EmergencyChange
	for _, emergency := range e.emergencies.ListByRaiser(sessionID) {
		if emergency.IsActive() {
			changes = append(changes, e.close(emergency, models.EmergencyStatusAutoResolved, "system", reason))
		}
	}
	return changes
}

func (e *Engine) autoResolveStale(now time.Time, maxAge time.Duration) []EmergencyChange {
	cutoff := now.Add(-maxAge)
	var changes []EmergencyChange
	for _, emergency := range e.emergencies.List() {
		if !emergency.IsActive() || !emergency.RaisedAt.Before(cutoff) {
			continue
		}
		target := emergency
		e.guard("expire_emergency", target.ID, func() {
			changes = append(changes, e.close(target, models.EmergencyStatusAutoResolved, "system", models.AutoResolveExpired))
		})
	}
	return changes
}

func (e *Engine) hasActiveRaised(sessionID string) bool {
	for _, emergency := range e.emergencies.ListByRaiser(sessionID) {
		if emergency.IsActive() {
			return true
		}
	}
	return false
}

func (e *Engine) hasActiveAssignment(staffSessionID string) bool {
	for _, emergency := range e.emergencies.List() {
		if emergency.IsActive() && emergency.AssignedStaff == staffSessionID {
			return true
		}
	}
	return false
}
