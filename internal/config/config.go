package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"racebeacon/internal/validators"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       *AppConfig       `yaml:"app"`
	Log       *LogConfig       `yaml:"log"`
	WebSocket *WebSocketConfig `yaml:"websocket"`
	Presence  *PresenceConfig  `yaml:"presence"`
	Routes    *RoutesConfig    `yaml:"routes"`
	Redis     *RedisConfig     `yaml:"redis"`
	Database  *DatabaseConfig  `yaml:"database"`
	SMS       *SMSConfig       `yaml:"sms"`
}

type AppConfig struct {
	Name            string        `yaml:"name"`
	Version         string        `yaml:"version"`
	Environment     string        `yaml:"environment"`
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	ReportCaller bool   `yaml:"report_caller"`
}

// Load reads .env (when present), the environment, and finally the YAML
// file named by CONFIG_FILE, whose keys override the environment.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	config := &Config{
		App:       loadAppConfig(),
		Log:       loadLogConfig(),
		WebSocket: loadWebSocketConfig(),
		Presence:  loadPresenceConfig(),
		Routes:    loadRoutesConfig(),
		Redis:     loadRedisConfig(),
		Database:  loadDatabaseConfig(),
		SMS:       loadSMSConfig(),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.overlay(path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port %d out of range", c.App.Port))
	}
	if c.Presence.SweepInterval <= 0 {
		errs = append(errs, errors.New("presence.sweep_interval must be positive"))
	}
	if c.Presence.SessionTimeout <= 0 {
		errs = append(errs, errors.New("presence.session_timeout must be positive"))
	}
	if c.Presence.EmergencyMaxAge <= 0 {
		errs = append(errs, errors.New("presence.emergency_max_age must be positive"))
	}
	if c.Presence.TerminalRetention < 0 {
		errs = append(errs, errors.New("presence.terminal_retention must not be negative"))
	}
	if c.SMS.Enabled {
		switch c.SMS.Provider {
		case SMSProviderTwilio, SMSProviderSNS:
		default:
			errs = append(errs, fmt.Errorf("sms.provider %q must be %s or %s", c.SMS.Provider, SMSProviderTwilio, SMSProviderSNS))
		}
		if len(c.SMS.Recipients) == 0 {
			errs = append(errs, errors.New("sms.recipients must not be empty when sms is enabled"))
		}
		for _, number := range c.SMS.Recipients {
			if !validators.IsValidPhone(number) {
				errs = append(errs, fmt.Errorf("sms.recipients: %q is not an E.164 number", number))
			}
		}
	}

	return errors.Join(errs...)
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Name:            getEnv("APP_NAME", "RaceBeacon"),
		Version:         getEnv("APP_VERSION", "1.0.0"),
		Environment:     getEnv("APP_ENV", "development"),
		Port:            getEnvAsInt("APP_PORT", 8080),
		Host:            getEnv("APP_HOST", "0.0.0.0"),
		ShutdownTimeout: getEnvAsDuration("APP_SHUTDOWN_TIMEOUT", 15*time.Second),
		AllowedOrigins:  getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

func loadLogConfig() *LogConfig {
	return &LogConfig{
		Level:        getEnv("LOG_LEVEL", "info"),
		Format:       getEnv("LOG_FORMAT", "json"),
		Output:       getEnv("LOG_OUTPUT", "stdout"),
		ReportCaller: getEnvAsBool("LOG_REPORT_CALLER", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
