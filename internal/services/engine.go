package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"racebeacon/internal/models"
	"racebeacon/internal/repositories/interfaces"
	"racebeacon/internal/utils"
	"racebeacon/pkg/logger"
)

// Engine owns the session registry and the emergency tracker. Both stores
// sit behind a single mutex so operations touching sessions and emergencies
// together are atomic, and snapshots never observe a torn state.
//
// Every method returns deep copies; nothing handed out aliases stored records.
type Engine struct {
	mu          sync.Mutex
	sessions    interfaces.SessionRepository
	emergencies interfaces.EmergencyRepository
	// roles pins the role chosen by a connection's first registration. It
	// outlives a staleness eviction and is dropped on disconnect.
	roles       map[string]models.Role
	now         func() time.Time
	newID       func() string
	log         *logger.Logger
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func WithEmergencyIDGenerator(newID func() string) EngineOption {
	return func(e *Engine) {
		e.newID = newID
	}
}

func NewEngine(
	sessions interfaces.SessionRepository,
	emergencies interfaces.EmergencyRepository,
	log *logger.Logger,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		sessions:    sessions,
		emergencies: emergencies,
		roles:       make(map[string]models.Role),
		now:         time.Now,
		newID:       utils.GenerateEmergencyID,
		log:         log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EmergencyChange is the outcome of an emergency transition together with the
// sessions whose flags changed because of it. Raiser and Staff are nil when
// the referenced session is gone or was not touched.
type EmergencyChange struct {
	Emergency *models.Emergency
	Raiser    *models.Session
	Staff     *models.Session
}

// Departure describes a session removed by disconnect or eviction.
type Departure struct {
	Session      *models.Session
	AutoResolved []EmergencyChange
}

// SweepResult is everything one reaper pass changed.
type SweepResult struct {
	Departed []Departure
	Expired  []EmergencyChange
	Purged   []*models.Emergency
}

// Disconnect removes the session and auto-resolves every active emergency it
// raised, in one critical section. The connection's role pin is released. A
// disconnect for an unknown connection returns ok=false.
func (e *Engine) Disconnect(sessionID string) (Departure, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.roles, sessionID)
	return e.depart(sessionID, models.AutoResolveDisconnected)
}

// Sweep runs one staleness pass at time now: sessions whose last update is
// strictly older than now-sessionTimeout are evicted, active emergencies older
// than emergencyMaxAge are auto-resolved, and terminal emergencies closed more
// than retention ago are purged. A zero retention disables purging. A failure
// on one record is logged and the pass continues.
func (e *Engine) Sweep(now time.Time, sessionTimeout, emergencyMaxAge, retention time.Duration) SweepResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result SweepResult

	cutoff := now.Add(-sessionTimeout)
	for _, session := range e.sessions.List() {
		if !session.LastUpdate.Before(cutoff) {
			continue
		}
		id := session.ID
		e.guard("evict_session", id, func() {
			if departure, ok := e.depart(id, models.AutoResolveStale); ok {
				result.Departed = append(result.Departed, departure)
			}
		})
	}

	result.Expired = e.autoResolveStale(now, emergencyMaxAge)

	if retention > 0 {
		purgeBefore := now.Add(-retention)
		for _, emergency := range e.emergencies.List() {
			if !emergency.Status.IsTerminal() || emergency.ResolvedAt == nil || !emergency.ResolvedAt.Before(purgeBefore) {
				continue
			}
			id := emergency.ID
			e.guard("purge_emergency", id, func() {
				if purged, ok := e.emergencies.Delete(id); ok {
					result.Purged = append(result.Purged, purged)
				}
			})
		}
	}

	return result
}

// Stats returns aggregate counts; Connections is left for the gateway to fill.
func (e *Engine) Stats() models.SystemStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := models.SystemStatus{Timestamp: e.now().Unix()}
	for _, session := range e.sessions.List() {
		if session.IsStaff() {
			status.Staff++
		} else {
			status.Participants++
		}
	}
	for _, emergency := range e.emergencies.List() {
		if emergency.IsActive() {
			status.ActiveEmergencies++
		}
	}
	return status
}

// depart must be called with mu held.
func (e *Engine) depart(sessionID, reason string) (Departure, bool) {
	session, ok := e.sessions.Delete(sessionID)
	if !ok {
		return Departure{}, false
	}

	departure := Departure{
		Session:      session.Clone(),
		AutoResolved: e.autoResolveFor(sessionID, reason),
	}

	e.log.LogPresenceEvent(sessionID, "session_removed", map[string]interface{}{
		"role":          session.Role,
		"reason":        reason,
		"auto_resolved": len(departure.AutoResolved),
	})

	return departure, true
}

// guard isolates one record of a sweep so a panic cannot abort the pass.
func (e *Engine) guard(op, id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(map[string]interface{}{
				"operation": op,
				"record_id": id,
				"panic":     fmt.Sprint(r),
			}).Error("Sweep skipped malformed record")
		}
	}()
	fn()
}

func sortSessions(sessions []*models.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].JoinedAt.Equal(sessions[j].JoinedAt) {
			return sessions[i].JoinedAt.Before(sessions[j].JoinedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
}
