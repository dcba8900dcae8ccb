package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"racebeacon/internal/models"
	"racebeacon/internal/repositories/memory"
	"racebeacon/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	var mu sync.Mutex
	seq := 0
	engine := NewEngine(
		memory.NewSessionRepository(),
		memory.NewEmergencyRepository(),
		logger.Discard(),
		WithClock(clock.Now),
		WithEmergencyIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("em-%d", seq)
		}),
	)
	return engine, clock
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func registerParticipant(t *testing.T, e *Engine, id string, lat, lng float64) *models.Session {
	t.Helper()
	session, created, err := e.Register(id, models.RoleParticipant, models.SessionFields{Location: models.NewLocation(lat, lng)})
	require.NoError(t, err)
	require.True(t, created)
	return session
}

func registerStaff(t *testing.T, e *Engine, id string, fields models.SessionFields) *models.Session {
	t.Helper()
	session, created, err := e.Register(id, models.RoleStaff, fields)
	require.NoError(t, err)
	require.True(t, created)
	return session
}

func TestRegisterAssignsPlaceholderNames(t *testing.T) {
	engine, clock := newTestEngine(t)

	participant, created, err := engine.Register("conn-a", models.RoleParticipant, models.SessionFields{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, strings.HasPrefix(participant.DisplayName, "Runner-"))
	assert.Nil(t, participant.Staff)
	assert.Equal(t, clock.Now(), participant.JoinedAt)

	staff, _, err := engine.Register("conn-b", models.RoleStaff, models.SessionFields{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(staff.DisplayName, "Staff-"))
	require.NotNil(t, staff.Staff)
	assert.Equal(t, models.TransportModeWalk, staff.Staff.TransportMode)
	assert.True(t, staff.Staff.ShareLocation)
	assert.Equal(t, models.AvailabilityAvailable, staff.Staff.Availability)
}

func TestRegisterTwiceUpdatesInPlace(t *testing.T) {
	engine, clock := newTestEngine(t)
	registerParticipant(t, engine, "conn-a", 1, 1)

	clock.Advance(time.Minute)
	session, created, err := engine.Register("conn-a", models.RoleParticipant, models.SessionFields{DisplayName: strPtr("Alice")})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Alice", session.DisplayName)
	assert.Equal(t, models.NewLocation(1, 1), session.Location)
	assert.Equal(t, clock.Now(), session.LastUpdate)
	assert.Len(t, engine.Snapshot(""), 1)
}

func TestRegisterRejectsRoleChange(t *testing.T) {
	engine, _ := newTestEngine(t)
	registerParticipant(t, engine, "conn-a", 1, 1)

	_, _, err := engine.Register("conn-a", models.RoleStaff, models.SessionFields{})
	assert.ErrorIs(t, err, ErrRoleMismatch)
}

func TestRegisterKeepsRoleAcrossEviction(t *testing.T) {
	engine, clock := newTestEngine(t)
	registerStaff(t, engine, "conn-a", models.SessionFields{})

	result := engine.Sweep(clock.Now().Add(time.Hour), 300*time.Second, 2*time.Hour, 0)
	require.Len(t, result.Departed, 1)

	_, _, err := engine.Register("conn-a", models.RoleParticipant, models.SessionFields{})
	assert.ErrorIs(t, err, ErrRoleMismatch)

	registerStaff(t, engine, "conn-a", models.SessionFields{})

	// A real disconnect frees the identifier.
	_, ok := engine.Disconnect("conn-a")
	require.True(t, ok)
	registerParticipant(t, engine, "conn-a", 1, 1)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, _, err := engine.Register("conn-a", models.Role("marshal"), models.SessionFields{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateLocation(t *testing.T) {
	engine, clock := newTestEngine(t)
	registerParticipant(t, engine, "conn-a", 1, 1)

	clock.Advance(30 * time.Second)
	session, err := engine.UpdateLocation("conn-a", 2.5, 3.5, models.SessionFields{})
	require.NoError(t, err)
	assert.Equal(t, models.NewLocation(2.5, 3.5), session.Location)
	assert.Equal(t, clock.Now(), session.LastUpdate)

	_, err = engine.UpdateLocation("missing", 1, 1, models.SessionFields{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateLocationIgnoresStaffFieldsForParticipants(t *testing.T) {
	engine, _ := newTestEngine(t)
	registerParticipant(t, engine, "conn-a", 1, 1)

	mode := models.TransportModeCar
	session, err := engine.UpdateLocation("conn-a", 1, 2, models.SessionFields{TransportMode: &mode})
	require.NoError(t, err)
	assert.Nil(t, session.Staff)
}

func TestUpdateStaffStatus(t *testing.T) {
	engine, _ := newTestEngine(t)
	registerStaff(t, engine, "staff-1", models.SessionFields{Location: models.NewLocation(1, 1)})
	registerParticipant(t, engine, "conn-a", 1, 1)

	mode := models.TransportModeBike
	session, err := engine.UpdateStaffStatus("staff-1", models.SessionFields{
		TransportMode: &mode,
		HasFirstAid:   boolPtr(true),
		ShareLocation: boolPtr(false),
		Location:      models.NewLocation(50, 50),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransportModeBike, session.Staff.TransportMode)
	assert.True(t, session.Staff.HasFirstAid)
	assert.False(t, session.Staff.ShareLocation)
	assert.Equal(t, models.NewLocation(1, 1), session.Location, "status updates never move the session")

	_, err = engine.UpdateStaffStatus("conn-a", models.SessionFields{})
	assert.ErrorIs(t, err, ErrRoleMismatch)
}

func TestSnapshotExcludesSelfAndHidesPrivateStaff(t *testing.T) {
	engine, clock := newTestEngine(t)
	registerParticipant(t, engine, "conn-a", 1, 1)
	clock.Advance(time.Second)
	registerStaff(t, engine, "staff-public", models.SessionFields{Location: models.NewLocation(2, 2)})
	clock.Advance(time.Second)
	registerStaff(t, engine, "staff-private", models.SessionFields{
		Location:      models.NewLocation(3, 3),
		ShareLocation: boolPtr(false),
	})

	views := engine.Snapshot("conn-a")
	require.Len(t, views, 2)
	assert.Equal(t, "staff-public", views[0].SessionID)
	assert.Equal(t, models.NewLocation(2, 2), views[0].Location)
	assert.Equal(t, "staff-private", views[1].SessionID)
	assert.Nil(t, views[1].Location)

	all := engine.Snapshot("")
	require.Len(t, all, 3)
	assert.Equal(t, "conn-a", all[0].SessionID, "ordered by join time")
}

func TestSnapshotOfEmptyRegistry(t *testing.T) {
	engine, _ := newTestEngine(t)

	views := engine.Snapshot("conn-a")
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestReturnedSessionsAreCopies(t *testing.T) {
	engine, _ := newTestEngine(t)
	session := registerParticipant(t, engine, "conn-a", 1, 1)

	session.DisplayName = "mutated"
	session.Location.Lat = 80

	stored, ok := engine.Session("conn-a")
	require.True(t, ok)
	assert.NotEqual(t, "mutated", stored.DisplayName)
	assert.Equal(t, 1.0, stored.Location.Lat)
}

func TestRemoveIsNoOpForUnknownConnection(t *testing.T) {
	engine, _ := newTestEngine(t)
	registerParticipant(t, engine, "conn-a", 1, 1)

	_, ok := engine.Remove("missing")
	assert.False(t, ok)

	removed, ok := engine.Remove("conn-a")
	require.True(t, ok)
	assert.Equal(t, "conn-a", removed.ID)
	assert.Empty(t, engine.Snapshot(""))
}

func TestInitialDataVisibility(t *testing.T) {
	engine, _ := newTestEngine(t)
	registerParticipant(t, engine, "conn-a", 1, 1)
	registerParticipant(t, engine, "conn-b", 2, 2)
	registerStaff(t, engine, "staff-1", models.SessionFields{Location: models.NewLocation(1.01, 1.01)})

	raisedA, err := engine.Raise("conn-a", nil, "")
	require.NoError(t, err)
	raisedB, err := engine.Raise("conn-b", nil, "")
	require.NoError(t, err)

	routes := models.DefaultRoutes()

	forA := engine.InitialData("conn-a", routes)
	require.NotNil(t, forA.Self)
	assert.Equal(t, "conn-a", forA.Self.SessionID)
	assert.Len(t, forA.Participants, 1)
	assert.Len(t, forA.Staff, 1)
	assert.Contains(t, forA.Emergencies, raisedA.Emergency.ID)
	assert.NotContains(t, forA.Emergencies, raisedB.Emergency.ID)
	assert.Equal(t, routes, forA.Routes)

	forStaff := engine.InitialData("staff-1", routes)
	assert.Len(t, forStaff.Participants, 2)
	assert.Empty(t, forStaff.Staff)
	assert.Len(t, forStaff.Emergencies, 2)

	forUnknown := engine.InitialData("nobody", routes)
	assert.Nil(t, forUnknown.Self)
	assert.Empty(t, forUnknown.Emergencies)
	assert.Len(t, forUnknown.Participants, 2)
}

func TestStats(t *testing.T) {
	engine, _ := newTestEngine(t)
	registerParticipant(t, engine, "conn-a", 1, 1)
	registerParticipant(t, engine, "conn-b", 1, 1)
	registerStaff(t, engine, "staff-1", models.SessionFields{})

	_, err := engine.Raise("conn-a", nil, "")
	require.NoError(t, err)

	status := engine.Stats()
	assert.Equal(t, 2, status.Participants)
	assert.Equal(t, 1, status.Staff)
	assert.Equal(t, 1, status.ActiveEmergencies)
	assert.Zero(t, status.Connections)
}

func TestDisconnectAutoResolvesRaisedEmergencies(t *testing.T) {
	engine, _ := newTestEngine(t)
	registerParticipant(t, engine, "conn-a", 1, 1)
	registerStaff(t, engine, "staff-1", models.SessionFields{})

	raised, err := engine.Raise("conn-a", nil, "")
	require.NoError(t, err)
	_, err = engine.Acknowledge(raised.Emergency.ID, "staff-1")
	require.NoError(t, err)

	departure, ok := engine.Disconnect("conn-a")
	require.True(t, ok)
	assert.Equal(t, "conn-a", departure.Session.ID)
	require.Len(t, departure.AutoResolved, 1)

	change := departure.AutoResolved[0]
	assert.Equal(t, models.EmergencyStatusAutoResolved, change.Emergency.Status)
	assert.Equal(t, models.AutoResolveDisconnected, change.Emergency.AutoResolveCause)
	assert.Nil(t, change.Raiser, "raiser is already gone")
	require.NotNil(t, change.Staff)
	assert.Equal(t, models.AvailabilityAvailable, change.Staff.Staff.Availability)

	_, ok = engine.Disconnect("conn-a")
	assert.False(t, ok, "second disconnect is a no-op")
}

func TestDisconnectOfStaffLeavesRespondingEmergency(t *testing.T) {
	engine, _ := newTestEngine(t)
	registerParticipant(t, engine, "conn-a", 1, 1)
	registerStaff(t, engine, "staff-1", models.SessionFields{})

	raised, err := engine.Raise("conn-a", nil, "")
	require.NoError(t, err)
	_, err = engine.Acknowledge(raised.Emergency.ID, "staff-1")
	require.NoError(t, err)

	departure, ok := engine.Disconnect("staff-1")
	require.True(t, ok)
	assert.Empty(t, departure.AutoResolved)

	emergency, ok := engine.Emergency(raised.Emergency.ID)
	require.True(t, ok)
	assert.Equal(t, models.EmergencyStatusResponding, emergency.Status)
}

func TestSweepEvictsStrictlyOlderSessions(t *testing.T) {
	engine, clock := newTestEngine(t)
	timeout := 300 * time.Second

	registerParticipant(t, engine, "old", 1, 1)
	clock.Advance(100 * time.Second)
	registerParticipant(t, engine, "boundary", 1, 1)
	clock.Advance(50 * time.Second)
	registerParticipant(t, engine, "fresh", 1, 1)

	// At this instant "boundary" was last updated exactly timeout ago and
	// must survive.
	result := engine.Sweep(clock.Now().Add(timeout-50*time.Second), timeout, time.Hour, 0)

	require.Len(t, result.Departed, 1)
	assert.Equal(t, "old", result.Departed[0].Session.ID)

	ids := []string{}
	for _, view := range engine.Snapshot("") {
		ids = append(ids, view.SessionID)
	}
	assert.ElementsMatch(t, []string{"boundary", "fresh"}, ids)
}

func TestSweepExpiresOldEmergencies(t *testing.T) {
	engine, clock := newTestEngine(t)
	registerParticipant(t, engine, "conn-a", 1, 1)

	raised, err := engine.Raise("conn-a", nil, "")
	require.NoError(t, err)

	result := engine.Sweep(clock.Now().Add(time.Hour), time.Hour*2, time.Hour, 0)
	assert.Empty(t, result.Expired, "exactly max age is not expired")

	result = engine.Sweep(clock.Now().Add(time.Hour+time.Second), time.Hour*2, time.Hour, 0)
	require.Len(t, result.Expired, 1)
	assert.Equal(t, raised.Emergency.ID, result.Expired[0].Emergency.ID)
	assert.Equal(t, models.AutoResolveExpired, result.Expired[0].Emergency.AutoResolveCause)
	require.NotNil(t, result.Expired[0].Raiser)
	assert.False(t, result.Expired[0].Raiser.EmergencyActive)
}

func TestSweepPurgesTerminalEmergenciesAfterRetention(t *testing.T) {
	engine, clock := newTestEngine(t)
	registerParticipant(t, engine, "conn-a", 1, 1)

	raised, err := engine.Raise("conn-a", nil, "")
	require.NoError(t, err)
	_, err = engine.Cancel(raised.Emergency.ID, "conn-a")
	require.NoError(t, err)

	retention := 24 * time.Hour
	result := engine.Sweep(clock.Now().Add(time.Hour), 48*time.Hour, time.Hour, retention)
	assert.Empty(t, result.Purged)

	result = engine.Sweep(clock.Now().Add(retention+time.Second), 48*time.Hour, time.Hour, retention)
	require.Len(t, result.Purged, 1)
	assert.Equal(t, raised.Emergency.ID, result.Purged[0].ID)

	_, ok := engine.Emergency(raised.Emergency.ID)
	assert.False(t, ok)
}

func TestSweepWithZeroRetentionKeepsTerminalEmergencies(t *testing.T) {
	engine, clock := newTestEngine(t)
	registerParticipant(t, engine, "conn-a", 1, 1)

	raised, err := engine.Raise("conn-a", nil, "")
	require.NoError(t, err)
	_, err = engine.Resolve(raised.Emergency.ID, "conn-a")
	require.NoError(t, err)

	result := engine.Sweep(clock.Now().Add(30*24*time.Hour), 365*24*time.Hour, time.Hour, 0)
	assert.Empty(t, result.Purged)
}

func TestConcurrentAcknowledgeAssignsOneStaff(t *testing.T) {
	for round := 0; round < 50; round++ {
		engine, _ := newTestEngine(t)
		registerParticipant(t, engine, "runner", 1, 1)
		registerStaff(t, engine, "medic-1", models.SessionFields{})
		registerStaff(t, engine, "medic-2", models.SessionFields{})
		raised, err := engine.Raise("runner", nil, "")
		require.NoError(t, err)

		staff := []string{"medic-1", "medic-2"}
		errs := make([]error, len(staff))
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i, id := range staff {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				<-start
				_, errs[i] = engine.Acknowledge(raised.Emergency.ID, id)
			}(i, id)
		}
		close(start)
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
				continue
			}
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
		require.Equal(t, 1, winners)

		responding := 0
		for _, id := range staff {
			session, ok := engine.Session(id)
			require.True(t, ok)
			if session.Staff.Availability == models.AvailabilityResponding {
				responding++
			}
		}
		assert.Equal(t, 1, responding)

		emergency, ok := engine.Emergency(raised.Emergency.ID)
		require.True(t, ok)
		assert.Equal(t, models.EmergencyStatusResponding, emergency.Status)
		assert.Contains(t, staff, emergency.AssignedStaff)
	}
}

func TestConcurrentOperationsKeepStateConsistent(t *testing.T) {
	engine, _ := newTestEngine(t)
	registerStaff(t, engine, "staff-1", models.SessionFields{Location: models.NewLocation(1, 1)})

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			_, _, err := engine.Register(id, models.RoleParticipant, models.SessionFields{Location: models.NewLocation(1, 1)})
			assert.NoError(t, err)
			_, err = engine.UpdateLocation(id, 1.001, 1.001, models.SessionFields{})
			assert.NoError(t, err)

			raised, err := engine.Raise(id, nil, "cramp")
			assert.NoError(t, err)
			_, _ = engine.Acknowledge(raised.Emergency.ID, "staff-1")
			engine.Snapshot(id)
			engine.ActiveSnapshot()
			if i%2 == 0 {
				engine.Disconnect(id)
			}
		}(i)
	}
	wg.Wait()

	status := engine.Stats()
	assert.Equal(t, workers/2, status.Participants)
	assert.Equal(t, workers/2, status.ActiveEmergencies)

	for _, emergency := range engine.ActiveSnapshot() {
		session, ok := engine.Session(emergency.RaisedBy)
		require.True(t, ok, "active emergency %s references a live raiser", emergency.ID)
		assert.True(t, session.EmergencyActive)
	}
}
