package utils

import "time"

// Application Constants
const (
	AppName = "RaceBeacon"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Error messages
	ErrInternalServer = "Internal server error"

	// Presence
	PlaceholderSuffixLength  = 6
	ParticipantNamePrefix    = "Runner"
	StaffNamePrefix          = "Staff"
	DefaultSweepInterval     = 60 * time.Second
	DefaultSessionTimeout    = 300 * time.Second
	DefaultEmergencyMaxAge   = time.Hour
	DefaultTerminalRetention = 24 * time.Hour

	// Redis keys and channels
	RedisStatusKey         = "racebeacon:status"
	RedisEmergencyChannel  = "racebeacon:emergencies"
	RedisStaffLocationsKey = "racebeacon:staff:locations"
)
