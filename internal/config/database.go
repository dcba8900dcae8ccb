package config

import (
	"time"
)

// DatabaseConfig configures the optional emergency history archive.
type DatabaseConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	MaxPoolSize    int           `yaml:"max_pool_size"`
	MinPoolSize    int           `yaml:"min_pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	SocketTimeout  time.Duration `yaml:"socket_timeout"`
	AutoMigrate    bool          `yaml:"auto_migrate"`
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Enabled:        getEnvAsBool("MONGODB_ENABLED", false),
		URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		Database:       getEnv("MONGODB_DATABASE", "racebeacon"),
		MaxPoolSize:    getEnvAsInt("MONGODB_MAX_POOL_SIZE", 20),
		MinPoolSize:    getEnvAsInt("MONGODB_MIN_POOL_SIZE", 1),
		ConnectTimeout: getEnvAsDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
		SocketTimeout:  getEnvAsDuration("MONGODB_SOCKET_TIMEOUT", 30*time.Second),
		AutoMigrate:    getEnvAsBool("MONGODB_AUTO_MIGRATE", true),
	}
}
