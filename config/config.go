// Package config loads the pipeline server configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the pipeline server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Engine   EngineConfig   `yaml:"engine"`
	Exec     ExecConfig     `yaml:"exec"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DatabaseConfig holds the PostgreSQL connection string.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// EngineConfig tunes graph execution.
type EngineConfig struct {
	DedupeFrontier bool          `yaml:"dedupe_frontier"`
	MaxWaves       int           `yaml:"max_waves"`
	ScriptTimeout  time.Duration `yaml:"script_timeout"`
}

// ExecConfig holds configuration for pipeline requests.
type ExecConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":8080",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			ScriptTimeout: 5 * time.Second,
		},
		Exec: ExecConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// Load reads configuration from a file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("PIPELINE_ADDR"); val != "" {
		cfg.Server.Address = val
	}
	if val := os.Getenv("DATABASE_URL"); val != "" {
		cfg.Database.URL = val
	}
	if val := os.Getenv("PIPELINE_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}

	if val := os.Getenv("PIPELINE_EXEC_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("PIPELINE_EXEC_TIMEOUT: %w", err)
		}
		cfg.Exec.Timeout = d
	}
	if val := os.Getenv("PIPELINE_SCRIPT_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("PIPELINE_SCRIPT_TIMEOUT: %w", err)
		}
		cfg.Engine.ScriptTimeout = d
	}
	if val := os.Getenv("PIPELINE_DEDUPE_FRONTIER"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("PIPELINE_DEDUPE_FRONTIER: %w", err)
		}
		cfg.Engine.DedupeFrontier = b
	}
	return nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return fmt.Errorf("server configuration: address is required")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine configuration: %w", err)
	}
	if c.Exec.Timeout < 0 {
		return fmt.Errorf("exec configuration: timeout must not be negative")
	}
	return nil
}

// Validate checks the log level.
func (c *LoggingConfig) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid level %q: %w", c.Level, err)
	}
	return nil
}

// Validate checks the engine limits. Zero means unlimited.
func (c *EngineConfig) Validate() error {
	if c.MaxWaves < 0 {
		return fmt.Errorf("max_waves must not be negative")
	}
	if c.ScriptTimeout < 0 {
		return fmt.Errorf("script_timeout must not be negative")
	}
	return nil
}

// Logger builds the zap logger described by the logging section.
func (c *LoggingConfig) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
