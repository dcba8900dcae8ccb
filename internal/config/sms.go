package config

import (
	"time"
)

const (
	SMSProviderTwilio = "twilio"
	SMSProviderSNS    = "sns"
)

// SMSConfig configures coordinator alerting.
type SMSConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Provider    string        `yaml:"provider"`
	Recipients  []string      `yaml:"recipients"`
	QueueSize   int           `yaml:"queue_size"`
	SendTimeout time.Duration `yaml:"send_timeout"`
	Twilio      *TwilioConfig `yaml:"twilio"`
	AWS         *AWSSNSConfig `yaml:"aws"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

type AWSSNSConfig struct {
	Region   string `yaml:"region"`
	SenderID string `yaml:"sender_id"`
}

func loadSMSConfig() *SMSConfig {
	return &SMSConfig{
		Enabled:     getEnvAsBool("SMS_ENABLED", false),
		Provider:    getEnv("SMS_PROVIDER", SMSProviderTwilio),
		Recipients:  getEnvAsSlice("SMS_COORDINATOR_NUMBERS", []string{}),
		QueueSize:   getEnvAsInt("NOTIFICATION_QUEUE_SIZE", 64),
		SendTimeout: getEnvAsDuration("NOTIFICATION_SEND_TIMEOUT", 10*time.Second),
		Twilio: &TwilioConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		},
		AWS: &AWSSNSConfig{
			Region:   getEnv("AWS_REGION", "us-east-1"),
			SenderID: getEnv("SMS_SENDER_ID", "RaceBeacon"),
		},
	}
}
