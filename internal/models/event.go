package models

// Inbound event types (client to server).
const (
	EventRegisterUser          = "register_user"
	EventRegisterStaff         = "register_staff"
	EventUserLocationUpdate    = "user_location_update"
	EventStaffLocationUpdate   = "staff_location_update"
	EventEmergencyRequest      = "emergency_request"
	EventStaffRespondEmergency = "staff_respond_emergency"
	EventResolveEmergency      = "resolve_emergency"
	EventCancelEmergency       = "cancel_emergency"
	EventGetInitialData        = "get_initial_data"
	EventUpdateStaffStatus     = "update_staff_status"
)

// Outbound event types (server to clients).
const (
	EventConnected            = "connected"
	EventRegistrationSuccess  = "registration_success"
	EventUserJoined           = "user_joined"
	EventStaffJoined          = "staff_joined"
	EventUserLeft             = "user_left"
	EventStaffLeft            = "staff_left"
	EventUserLocationUpdated  = "user_location_updated"
	EventStaffLocationUpdated = "staff_location_updated"
	EventEmergencyAlert       = "emergency_alert"
	EventEmergencyConfirmed   = "emergency_confirmed"
	EventEmergencyResponse    = "emergency_response"
	EventEmergencyResolved    = "emergency_resolved"
	EventEmergencyCancelled   = "emergency_cancelled"
	EventInitialData          = "initial_data"
	EventSystemStatus         = "system_status"
	EventError                = "error"
)

// OutboundEvent is a transport-agnostic notification; the gateway owns the
// wire encoding.
type OutboundEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewOutboundEvent(eventType string, data interface{}) OutboundEvent {
	return OutboundEvent{Type: eventType, Data: data}
}

type RegisterPayload struct {
	Name          *string  `json:"name" validate:"omitempty,max=64"`
	Lat           *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
	Lng           *float64 `json:"lng" validate:"omitempty,min=-180,max=180"`
	TransportMode *string  `json:"transport_mode" validate:"omitempty,transport_mode"`
	HasFirstAid   *bool    `json:"has_first_aid"`
	ShareLocation *bool    `json:"share_location"`
}

type LocationUpdatePayload struct {
	Lat           *float64 `json:"lat" validate:"required,min=-90,max=90"`
	Lng           *float64 `json:"lng" validate:"required,min=-180,max=180"`
	TransportMode *string  `json:"transport_mode" validate:"omitempty,transport_mode"`
	HasFirstAid   *bool    `json:"has_first_aid"`
	ShareLocation *bool    `json:"share_location"`
	Availability  *string  `json:"availability" validate:"omitempty,availability"`
}

type StaffStatusPayload struct {
	TransportMode *string `json:"transport_mode" validate:"omitempty,transport_mode"`
	HasFirstAid   *bool   `json:"has_first_aid"`
	ShareLocation *bool   `json:"share_location"`
	Availability  *string `json:"availability" validate:"omitempty,availability"`
}

type EmergencyRequestPayload struct {
	Description string   `json:"description" validate:"max=500"`
	Lat         *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
	Lng         *float64 `json:"lng" validate:"omitempty,min=-180,max=180"`
}

type EmergencyRefPayload struct {
	EmergencyID string `json:"emergency_id" validate:"required,max=64"`
}

// ErrorPayload is the rejection sent back to the requesting connection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// InitialData is the full filtered snapshot sent on get_initial_data.
type InitialData struct {
	Self         *SessionView          `json:"self,omitempty"`
	Participants []SessionView         `json:"participants"`
	Staff        []SessionView         `json:"staff"`
	Emergencies  map[string]*Emergency `json:"emergencies"`
	Routes       RouteConfig           `json:"routes"`
}

// SystemStatus carries aggregate counts for the status endpoint and the
// periodic system_status broadcast.
type SystemStatus struct {
	Participants      int   `json:"participants"`
	Staff             int   `json:"staff"`
	ActiveEmergencies int   `json:"active_emergencies"`
	Connections       int   `json:"connections"`
	Timestamp         int64 `json:"timestamp"`
}
