// Package config loads runtime settings from the environment and an
// optional YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the application reads at startup.
type Config struct {
	AppPort string

	DBDriver    string // "sqlite" or "postgres"
	DatabaseDSN string

	RemoteBaseURL  string
	RemoteResource string
	RemoteTimeout  time.Duration

	PhotoDir    string
	RabbitMQURL string // empty disables event publication

	LogLevel  string
	LogFormat string
	LogOutput string
	LogFile   string

	BootstrapUsername string
	BootstrapPassword string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "fieldreport.db")
	v.SetDefault("REMOTE_BASE_URL", "https://jsonplaceholder.typicode.com")
	v.SetDefault("REMOTE_RESOURCE", "posts")
	v.SetDefault("REMOTE_TIMEOUT", 30*time.Second)
	v.SetDefault("PHOTO_DIR", "photos")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("LOG_FILE", "fieldreport.log")
	v.SetDefault("BOOTSTRAP_USERNAME", "user")
	v.SetDefault("BOOTSTRAP_PASSWORD", "user")
}

// Load reads configuration from environment variables and, when path is
// not empty, from the YAML file at path. Environment variables win.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:           v.GetString("APP_PORT"),
		DBDriver:          strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN:       v.GetString("DATABASE_DSN"),
		RemoteBaseURL:     strings.TrimRight(v.GetString("REMOTE_BASE_URL"), "/"),
		RemoteResource:    strings.Trim(v.GetString("REMOTE_RESOURCE"), "/"),
		RemoteTimeout:     v.GetDuration("REMOTE_TIMEOUT"),
		PhotoDir:          v.GetString("PHOTO_DIR"),
		RabbitMQURL:       v.GetString("RABBITMQ_URL"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
		LogOutput:         v.GetString("LOG_OUTPUT"),
		LogFile:           v.GetString("LOG_FILE"),
		BootstrapUsername: v.GetString("BOOTSTRAP_USERNAME"),
		BootstrapPassword: v.GetString("BOOTSTRAP_PASSWORD"),
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN must not be empty")
	}
	if cfg.RemoteTimeout <= 0 {
		return nil, fmt.Errorf("REMOTE_TIMEOUT must be positive, got %s", cfg.RemoteTimeout)
	}

	return cfg, nil
}
