package config

import (
	"time"

	"racebeacon/internal/utils"
)

// PresenceConfig drives the reaper.
type PresenceConfig struct {
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	EmergencyMaxAge   time.Duration `yaml:"emergency_max_age"`
	TerminalRetention time.Duration `yaml:"terminal_retention"`
	BroadcastStatus   bool          `yaml:"broadcast_status"`
}

func loadPresenceConfig() *PresenceConfig {
	return &PresenceConfig{
		SweepInterval:     getEnvAsDuration("PRESENCE_SWEEP_INTERVAL", utils.DefaultSweepInterval),
		SessionTimeout:    getEnvAsDuration("PRESENCE_SESSION_TIMEOUT", utils.DefaultSessionTimeout),
		EmergencyMaxAge:   getEnvAsDuration("PRESENCE_EMERGENCY_MAX_AGE", utils.DefaultEmergencyMaxAge),
		TerminalRetention: getEnvAsDuration("PRESENCE_TERMINAL_RETENTION", utils.DefaultTerminalRetention),
		BroadcastStatus:   getEnvAsBool("PRESENCE_BROADCAST_STATUS", true),
	}
}
