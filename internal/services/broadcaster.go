package services

import (
	"racebeacon/internal/models"
)

type ScopeKind int

const (
	ScopeAll ScopeKind = iota
	ScopeAllExcept
	ScopeRoom
	ScopeConnection
)

// Scope selects the connections a notification is delivered to.
type Scope struct {
	Kind         ScopeKind
	ConnectionID string
	Room         string
}

func ToAll() Scope {
	return Scope{Kind: ScopeAll}
}

func ToAllExcept(connectionID string) Scope {
	return Scope{Kind: ScopeAllExcept, ConnectionID: connectionID}
}

func ToRoom(room string) Scope {
	return Scope{Kind: ScopeRoom, Room: room}
}

func ToConnection(connectionID string) Scope {
	return Scope{Kind: ScopeConnection, ConnectionID: connectionID}
}

// Broadcaster fans events out to connected clients. Delivery is
// fire-and-forget: a slow or vanished client never blocks the caller.
// Privacy filtering happens before Notify is called.
type Broadcaster interface {
	Notify(event models.OutboundEvent, scope Scope)
	JoinRoom(connectionID, room string)
	LeaveRoom(connectionID, room string)
	ConnectionCount() int
}
