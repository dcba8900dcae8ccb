package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"racebeacon/internal/models"
	"racebeacon/internal/validators"
	"racebeacon/pkg/logger"
)

const defaultNearbyStaffLimit = 5

// Dispatcher maps inbound client events onto the engine and turns every
// resulting state change into outbound notifications. It is the only place
// that decides who hears about what.
type Dispatcher struct {
	engine        *Engine
	broadcaster   Broadcaster
	notifications *NotificationService
	routes        models.RouteConfig
	log           *logger.Logger
}

func NewDispatcher(
	engine *Engine,
	broadcaster Broadcaster,
	notifications *NotificationService,
	routes models.RouteConfig,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		engine:        engine,
		broadcaster:   broadcaster,
		notifications: notifications,
		routes:        routes,
		log:           log,
	}
}

// HandleConnect greets a freshly assigned connection.
func (d *Dispatcher) HandleConnect(connectionID string) {
	d.broadcaster.Notify(models.NewOutboundEvent(models.EventConnected, map[string]interface{}{
		"connection_id": connectionID,
		"server_time":   time.Now().Unix(),
	}), ToConnection(connectionID))
}

// HandleDisconnect removes the session, auto-resolves its emergencies and
// tells everyone it left. Safe to call for a connection that never
// registered.
func (d *Dispatcher) HandleDisconnect(connectionID string) {
	departure, ok := d.engine.Disconnect(connectionID)
	if !ok {
		return
	}
	d.AnnounceDeparture(departure)
}

// HandleEvent processes one inbound event. A failure is reported to the
// requesting connection as an error event and returned for logging; it never
// affects other connections.
func (d *Dispatcher) HandleEvent(connectionID, eventType string, data json.RawMessage) error {
	err := d.dispatch(connectionID, eventType, data)
	if err != nil {
		d.broadcaster.Notify(models.NewOutboundEvent(models.EventError, models.ErrorPayload{
			Code:    ErrorCode(err),
			Message: err.Error(),
			Event:   eventType,
		}), ToConnection(connectionID))
	}
	return err
}

func (d *Dispatcher) dispatch(connectionID, eventType string, data json.RawMessage) error {
	switch eventType {
	case models.EventRegisterUser:
		return d.register(connectionID, models.RoleParticipant, data)
	case models.EventRegisterStaff:
		return d.register(connectionID, models.RoleStaff, data)
	case models.EventUserLocationUpdate:
		return d.updateLocation(connectionID, models.RoleParticipant, data)
	case models.EventStaffLocationUpdate:
		return d.updateLocation(connectionID, models.RoleStaff, data)
	case models.EventUpdateStaffStatus:
		return d.updateStaffStatus(connectionID, data)
	case models.EventEmergencyRequest:
		return d.raiseEmergency(connectionID, data)
	case models.EventStaffRespondEmergency:
		return d.acknowledgeEmergency(connectionID, data)
	case models.EventResolveEmergency:
		return d.resolveEmergency(connectionID, data)
	case models.EventCancelEmergency:
		return d.cancelEmergency(connectionID, data)
	case models.EventGetInitialData:
		d.broadcaster.Notify(models.NewOutboundEvent(models.EventInitialData, d.engine.InitialData(connectionID, d.routes)), ToConnection(connectionID))
		return nil
	default:
		return fmt.Errorf("%w: unknown event %q", ErrValidation, eventType)
	}
}

func (d *Dispatcher) register(connectionID string, role models.Role, data json.RawMessage) error {
	var payload models.RegisterPayload
	if err := d.decode(data, &payload); err != nil {
		return err
	}
	location, err := optionalLocation(payload.Lat, payload.Lng)
	if err != nil {
		return err
	}

	fields := models.SessionFields{
		DisplayName:   payload.Name,
		Location:      location,
		TransportMode: (*models.TransportMode)(payload.TransportMode),
		HasFirstAid:   payload.HasFirstAid,
		ShareLocation: payload.ShareLocation,
	}

	session, created, err := d.engine.Register(connectionID, role, fields)
	if err != nil {
		return err
	}

	d.broadcaster.Notify(models.NewOutboundEvent(models.EventRegistrationSuccess, map[string]interface{}{
		"session": session,
		"created": created,
	}), ToConnection(connectionID))

	if !created {
		d.announceSessionUpdate(session)
		return nil
	}

	d.broadcaster.JoinRoom(connectionID, role.Room())

	joined := models.EventUserJoined
	if role == models.RoleStaff {
		joined = models.EventStaffJoined
	}
	d.broadcaster.Notify(models.NewOutboundEvent(joined, session.View()), ToAllExcept(connectionID))
	return nil
}

func (d *Dispatcher) updateLocation(connectionID string, role models.Role, data json.RawMessage) error {
	var payload models.LocationUpdatePayload
	if err := d.decode(data, &payload); err != nil {
		return err
	}

	current, ok := d.engine.Session(connectionID)
	if !ok {
		return fmt.Errorf("%w: connection %s must register before sending updates", ErrNotFound, connectionID)
	}
	if current.Role != role {
		return fmt.Errorf("%w: connection %s is registered as %s", ErrRoleMismatch, connectionID, current.Role)
	}

	var fields models.SessionFields
	if role == models.RoleStaff {
		fields = staffFields(payload.TransportMode, payload.HasFirstAid, payload.ShareLocation, payload.Availability)
	}

	session, err := d.engine.UpdateLocation(connectionID, *payload.Lat, *payload.Lng, fields)
	if err != nil {
		return err
	}

	d.announceSessionUpdate(session)
	return nil
}

func (d *Dispatcher) updateStaffStatus(connectionID string, data json.RawMessage) error {
	var payload models.StaffStatusPayload
	if err := d.decode(data, &payload); err != nil {
		return err
	}

	session, err := d.engine.UpdateStaffStatus(connectionID, staffFields(payload.TransportMode, payload.HasFirstAid, payload.ShareLocation, payload.Availability))
	if err != nil {
		return err
	}

	d.announceSessionUpdate(session)
	return nil
}

func (d *Dispatcher) raiseEmergency(connectionID string, data json.RawMessage) error {
	var payload models.EmergencyRequestPayload
	if err := d.decode(data, &payload); err != nil {
		return err
	}
	location, err := optionalLocation(payload.Lat, payload.Lng)
	if err != nil {
		return err
	}

	change, err := d.engine.Raise(connectionID, location, payload.Description)
	if err != nil {
		return err
	}

	d.broadcaster.Notify(models.NewOutboundEvent(models.EventEmergencyConfirmed, map[string]interface{}{
		"emergency": change.Emergency,
	}), ToConnection(connectionID))

	d.broadcaster.Notify(models.NewOutboundEvent(models.EventEmergencyAlert, map[string]interface{}{
		"emergency":    change.Emergency,
		"nearby_staff": d.engine.NearbyStaff(change.Emergency.Location, defaultNearbyStaffLimit),
	}), ToRoom(models.RoleStaff.Room()))

	d.announceSessionUpdate(change.Raiser)
	d.notify(change.Emergency)
	return nil
}

func (d *Dispatcher) acknowledgeEmergency(connectionID string, data json.RawMessage) error {
	var payload models.EmergencyRefPayload
	if err := d.decode(data, &payload); err != nil {
		return err
	}

	change, err := d.engine.Acknowledge(payload.EmergencyID, connectionID)
	if err != nil {
		return err
	}

	d.AnnounceEmergency(models.EventEmergencyResponse, change)
	return nil
}

func (d *Dispatcher) resolveEmergency(connectionID string, data json.RawMessage) error {
	var payload models.EmergencyRefPayload
	if err := d.decode(data, &payload); err != nil {
		return err
	}

	change, err := d.engine.Resolve(payload.EmergencyID, connectionID)
	if err != nil {
		return err
	}

	d.AnnounceEmergency(models.EventEmergencyResolved, change)
	return nil
}

func (d *Dispatcher) cancelEmergency(connectionID string, data json.RawMessage) error {
	var payload models.EmergencyRefPayload
	if err := d.decode(data, &payload); err != nil {
		return err
	}

	change, err := d.engine.Cancel(payload.EmergencyID, connectionID)
	if err != nil {
		return err
	}

	d.AnnounceEmergency(models.EventEmergencyCancelled, change)
	return nil
}

// AnnounceEmergency sends an emergency transition to the staff room and the
// raiser, then re-announces any session whose flags changed.
func (d *Dispatcher) AnnounceEmergency(eventType string, change EmergencyChange) {
	payload := map[string]interface{}{
		"emergency": change.Emergency,
	}
	if change.Staff != nil {
		payload["staff"] = change.Staff.View()
	}
	event := models.NewOutboundEvent(eventType, payload)

	d.broadcaster.Notify(event, ToRoom(models.RoleStaff.Room()))
	if change.Raiser != nil {
		d.broadcaster.Notify(event, ToConnection(change.Raiser.ID))
	}

	d.announceSessionUpdate(change.Raiser)
	d.announceSessionUpdate(change.Staff)
	d.notify(change.Emergency)
}

// AnnounceDeparture tells every connection a session is gone, followed by the
// emergencies that were auto-resolved with it. The connection leaves its role
// room first: an evicted socket may still be open and must stop receiving
// role-scoped traffic.
func (d *Dispatcher) AnnounceDeparture(departure Departure) {
	session := departure.Session
	d.broadcaster.LeaveRoom(session.ID, session.Role.Room())

	left := models.EventUserLeft
	if session.IsStaff() {
		left = models.EventStaffLeft
	}

	d.broadcaster.Notify(models.NewOutboundEvent(left, map[string]interface{}{
		"session_id":   session.ID,
		"role":         session.Role,
		"display_name": session.DisplayName,
	}), ToAll())

	for _, change := range departure.AutoResolved {
		d.AnnounceEmergency(models.EventEmergencyResolved, change)
	}
}

// AnnounceStatus broadcasts aggregate counts to every connection.
func (d *Dispatcher) AnnounceStatus(status models.SystemStatus) {
	d.broadcaster.Notify(models.NewOutboundEvent(models.EventSystemStatus, status), ToAll())
}

func (d *Dispatcher) announceSessionUpdate(session *models.Session) {
	if session == nil {
		return
	}
	updated := models.EventUserLocationUpdated
	if session.IsStaff() {
		updated = models.EventStaffLocationUpdated
	}
	d.broadcaster.Notify(models.NewOutboundEvent(updated, session.View()), ToAllExcept(session.ID))
}

func (d *Dispatcher) notify(emergency *models.Emergency) {
	if d.notifications != nil {
		d.notifications.Enqueue(emergency)
	}
}

// decode unmarshals and validates an inbound payload. An absent payload is
// treated as an empty object.
func (d *Dispatcher) decode(data json.RawMessage, dest interface{}) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, dest); err != nil {
			return fmt.Errorf("%w: malformed payload: %v", ErrValidation, err)
		}
	}
	if err := validators.ValidateStruct(dest); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func optionalLocation(lat, lng *float64) (*models.Location, error) {
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, fmt.Errorf("%w: lat and lng must be sent together", ErrValidation)
	}
	return models.NewLocation(*lat, *lng), nil
}

func staffFields(mode *string, firstAid, share *bool, availability *string) models.SessionFields {
	return models.SessionFields{
		TransportMode: (*models.TransportMode)(mode),
		HasFirstAid:   firstAid,
		ShareLocation: share,
		Availability:  (*models.Availability)(availability),
	}
}
