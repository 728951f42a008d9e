// Package config resolves the service configuration from environment
// variables. Every knob has a default suitable for local development; the
// CARFIN_* variables override them in deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	// KeepAliveInterval is the idle-gap bound on session streams: a
	// keep-alive frame goes out whenever no event was sent for this long.
	KeepAliveInterval time.Duration
}

// BusConfig holds event bus delivery settings.
type BusConfig struct {
	PerSubscriberBuffer int
	SessionReapGrace    time.Duration
}

// OrchestratorConfig bounds recommendation runs.
type OrchestratorConfig struct {
	RunnerDeadline time.Duration
}

// FusionConfig bounds the result merge.
type FusionConfig struct {
	TopK          int
	PerSourceTake int
}

// Config is the full resolved service configuration.
type Config struct {
	Server       ServerConfig
	Bus          BusConfig
	Orchestrator OrchestratorConfig
	Fusion       FusionConfig
	LogLevel     string
}

// Load resolves configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:              getEnvOrDefault("CARFIN_HOST", "0.0.0.0"),
			AllowedOrigins:    splitCSV(getEnvOrDefault("CARFIN_CORS_ORIGINS", "http://localhost:3000")),
			KeepAliveInterval: 30 * time.Second,
		},
		Bus: BusConfig{
			PerSubscriberBuffer: 256,
			SessionReapGrace:    5 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			RunnerDeadline: 10 * time.Second,
		},
		Fusion: FusionConfig{
			TopK:          10,
			PerSourceTake: 3,
		},
		LogLevel: getEnvOrDefault("CARFIN_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.Server.Port, err = getEnvInt("CARFIN_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.Server.KeepAliveInterval, err = getEnvDuration("CARFIN_KEEPALIVE_INTERVAL", cfg.Server.KeepAliveInterval); err != nil {
		return nil, err
	}
	if cfg.Bus.PerSubscriberBuffer, err = getEnvInt("CARFIN_SUBSCRIBER_BUFFER", cfg.Bus.PerSubscriberBuffer); err != nil {
		return nil, err
	}
	if cfg.Bus.SessionReapGrace, err = getEnvDuration("CARFIN_SESSION_REAP_GRACE", cfg.Bus.SessionReapGrace); err != nil {
		return nil, err
	}
	if cfg.Orchestrator.RunnerDeadline, err = getEnvDuration("CARFIN_RUNNER_DEADLINE", cfg.Orchestrator.RunnerDeadline); err != nil {
		return nil, err
	}
	if cfg.Fusion.TopK, err = getEnvInt("CARFIN_FUSION_TOP_K", cfg.Fusion.TopK); err != nil {
		return nil, err
	}
	if cfg.Fusion.PerSourceTake, err = getEnvInt("CARFIN_FUSION_PER_SOURCE_TAKE", cfg.Fusion.PerSourceTake); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Server.KeepAliveInterval <= 0 {
		return fmt.Errorf("keep-alive interval must be positive")
	}
	if c.Bus.PerSubscriberBuffer < 1 {
		return fmt.Errorf("subscriber buffer must be at least 1")
	}
	if c.Bus.SessionReapGrace < 0 {
		return fmt.Errorf("session reap grace must not be negative")
	}
	if c.Orchestrator.RunnerDeadline <= 0 {
		return fmt.Errorf("runner deadline must be positive")
	}
	if c.Fusion.TopK < 1 {
		return fmt.Errorf("fusion top-k must be at least 1")
	}
	if c.Fusion.PerSourceTake < 1 {
		return fmt.Errorf("fusion per-source take must be at least 1")
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
