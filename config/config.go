// Package config provides configuration loading for the contribution server.
package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Legislation LegislationConfig `yaml:"legislation"`
	Log         LogConfig         `yaml:"log"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	// Port is the TCP port to listen on (default: 8080)
	Port int `yaml:"port"`
	// AllowedOrigins lists the CORS origins accepted by the API
	AllowedOrigins []string `yaml:"allowed_origins"`
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures persistence
type DatabaseConfig struct {
	// Path is the SQLite file (":memory:" for a throwaway database)
	Path string `yaml:"path"`
}

// LegislationConfig configures the legislation loaded at startup
type LegislationConfig struct {
	// File is a YAML or JSON legislation document imported on startup (optional)
	File string `yaml:"file"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Development switches to the human-readable console encoder
	Development bool `yaml:"development"`
}

// SchedulerConfig configures the month-close scheduler
type SchedulerConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:8080"},
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/contributions.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			CheckInterval: time.Hour,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Scheduler.Enabled && c.Scheduler.CheckInterval <= 0 {
		return fmt.Errorf("scheduler.check_interval must be positive")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load returns the defaults when path is empty, the file otherwise.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFromFile(path)
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if len(other.Server.AllowedOrigins) > 0 {
		c.Server.AllowedOrigins = other.Server.AllowedOrigins
	}
	if other.Server.ShutdownTimeout != 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}
	if other.Database.Path != "" {
		c.Database.Path = other.Database.Path
	}
	if other.Legislation.File != "" {
		c.Legislation.File = other.Legislation.File
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Development {
		c.Log.Development = true
	}
	if other.Scheduler.CheckInterval != 0 {
		c.Scheduler.CheckInterval = other.Scheduler.CheckInterval
	}
}
