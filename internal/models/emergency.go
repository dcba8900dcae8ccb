package models

import (
	"time"
)

type EmergencyStatus string

const (
	EmergencyStatusRaised       EmergencyStatus = "raised"
	EmergencyStatusResponding   EmergencyStatus = "responding"
	EmergencyStatusResolved     EmergencyStatus = "resolved"
	EmergencyStatusCancelled    EmergencyStatus = "cancelled"
	EmergencyStatusAutoResolved EmergencyStatus = "auto_resolved"
)

// IsTerminal reports whether no further transition is permitted.
func (s EmergencyStatus) IsTerminal() bool {
	switch s {
	case EmergencyStatusResolved, EmergencyStatusCancelled, EmergencyStatusAutoResolved:
		return true
	}
	return false
}

// Reasons recorded on auto-resolution.
const (
	AutoResolveDisconnected = "raiser_disconnected"
	AutoResolveExpired      = "expired"
	AutoResolveStale        = "raiser_stale"
)

// Emergency is an alert raised by a participant. Session references are weak:
// the emergency may outlive both the raiser and the assigned staff member.
type Emergency struct {
	ID               string          `json:"emergency_id" bson:"_id"`
	RaisedBy         string          `json:"raised_by" bson:"raised_by"`
	RaiserName       string          `json:"raiser_name" bson:"raiser_name"`
	Location         *Location       `json:"location,omitempty" bson:"location,omitempty"`
	Description      string          `json:"description" bson:"description"`
	Status           EmergencyStatus `json:"status" bson:"status"`
	AssignedStaff    string          `json:"assigned_staff,omitempty" bson:"assigned_staff,omitempty"`
	AssignedName     string          `json:"assigned_staff_name,omitempty" bson:"assigned_staff_name,omitempty"`
	ResolvedBy       string          `json:"resolved_by,omitempty" bson:"resolved_by,omitempty"`
	AutoResolveCause string          `json:"auto_resolve_reason,omitempty" bson:"auto_resolve_reason,omitempty"`
	RaisedAt         time.Time       `json:"raised_at" bson:"raised_at"`
	AcknowledgedAt   *time.Time      `json:"acknowledged_at,omitempty" bson:"acknowledged_at,omitempty"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
}

func (e *Emergency) IsActive() bool {
	return !e.Status.IsTerminal()
}

func (e *Emergency) Clone() *Emergency {
	c := *e
	c.Location = e.Location.Clone()
	if e.AcknowledgedAt != nil {
		t := *e.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	if e.ResolvedAt != nil {
		t := *e.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}
