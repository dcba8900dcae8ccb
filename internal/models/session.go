package models

import (
	"time"
)

type Role string
type TransportMode string
type Availability string

const (
	RoleParticipant Role = "participant"
	RoleStaff       Role = "staff"

	TransportModeWalk      TransportMode = "walk"
	TransportModeBike      TransportMode = "bike"
	TransportModeScooter   TransportMode = "scooter"
	TransportModeCar       TransportMode = "car"
	TransportModeAmbulance TransportMode = "ambulance"

	AvailabilityAvailable  Availability = "available"
	AvailabilityResponding Availability = "responding"
)

func (m TransportMode) IsValid() bool {
	switch m {
	case TransportModeWalk, TransportModeBike, TransportModeScooter, TransportModeCar, TransportModeAmbulance:
		return true
	}
	return false
}

func (a Availability) IsValid() bool {
	return a == AvailabilityAvailable || a == AvailabilityResponding
}

// Room returns the broadcast room every session of this role joins.
func (r Role) Room() string {
	if r == RoleStaff {
		return "staff"
	}
	return "participants"
}

func (r Role) IsValid() bool {
	return r == RoleParticipant || r == RoleStaff
}

// StaffProfile holds the fields only staff sessions carry.
type StaffProfile struct {
	TransportMode TransportMode `json:"transport_mode"`
	HasFirstAid   bool          `json:"has_first_aid"`
	ShareLocation bool          `json:"share_location"`
	Availability  Availability  `json:"availability"`
}

func DefaultStaffProfile() *StaffProfile {
	return &StaffProfile{
		TransportMode: TransportModeWalk,
		ShareLocation: true,
		Availability:  AvailabilityAvailable,
	}
}

// Session is the server-side record of one connected participant or staff
// member. ID is the connection identifier assigned by the gateway.
type Session struct {
	ID              string        `json:"session_id"`
	Role            Role          `json:"role"`
	DisplayName     string        `json:"display_name"`
	Location        *Location     `json:"location,omitempty"`
	Staff           *StaffProfile `json:"staff,omitempty"`
	EmergencyActive bool          `json:"emergency_active"`
	JoinedAt        time.Time     `json:"joined_at"`
	LastUpdate      time.Time     `json:"last_update"`
}

func (s *Session) IsStaff() bool {
	return s.Role == RoleStaff
}

// Clone deep-copies the session so callers never share mutable state with
// the registry.
func (s *Session) Clone() *Session {
	c := *s
	c.Location = s.Location.Clone()
	if s.Staff != nil {
		staff := *s.Staff
		c.Staff = &staff
	}
	return &c
}

// SessionView is the projection of a Session sent to other clients.
type SessionView struct {
	SessionID       string        `json:"session_id"`
	Role            Role          `json:"role"`
	DisplayName     string        `json:"display_name"`
	Location        *Location     `json:"location,omitempty"`
	TransportMode   TransportMode `json:"transport_mode,omitempty"`
	HasFirstAid     bool          `json:"has_first_aid,omitempty"`
	ShareLocation   *bool         `json:"share_location,omitempty"`
	Availability    Availability  `json:"availability,omitempty"`
	EmergencyActive bool          `json:"emergency_active"`
	LastUpdate      int64         `json:"last_update"`
}

// View projects the session for peers. Staff who opted out of location
// sharing are projected without a location.
func (s *Session) View() SessionView {
	v := SessionView{
		SessionID:       s.ID,
		Role:            s.Role,
		DisplayName:     s.DisplayName,
		Location:        s.Location.Clone(),
		EmergencyActive: s.EmergencyActive,
		LastUpdate:      s.LastUpdate.Unix(),
	}
	if s.Staff != nil {
		share := s.Staff.ShareLocation
		v.TransportMode = s.Staff.TransportMode
		v.HasFirstAid = s.Staff.HasFirstAid
		v.ShareLocation = &share
		v.Availability = s.Staff.Availability
		if !share {
			v.Location = nil
		}
	}
	return v
}

// SessionFields carries the optional fields of a registration or update.
// Nil pointers leave the current value untouched.
type SessionFields struct {
	DisplayName   *string
	Location      *Location
	TransportMode *TransportMode
	HasFirstAid   *bool
	ShareLocation *bool
	Availability  *Availability
}

// Apply merges the fields into the session. Staff-only fields are ignored for
// participants.
func (f SessionFields) Apply(s *Session) {
	if f.DisplayName != nil && *f.DisplayName != "" {
		s.DisplayName = *f.DisplayName
	}
	if f.Location != nil {
		s.Location = f.Location.Clone()
	}
	if s.Staff == nil {
		return
	}
	if f.TransportMode != nil {
		s.Staff.TransportMode = *f.TransportMode
	}
	if f.HasFirstAid != nil {
		s.Staff.HasFirstAid = *f.HasFirstAid
	}
	if f.ShareLocation != nil {
		s.Staff.ShareLocation = *f.ShareLocation
	}
	if f.Availability != nil {
		s.Staff.Availability = *f.Availability
	}
}
