// Package config loads the server configuration from YAML with environment
// overrides, and watches the file for live changes to hub limits.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/erilali/wshub/internal/hub"
	"github.com/erilali/wshub/internal/logger"
	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultPath            = "config.yaml"
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultSubjectPrefix   = "wshub"
)

// Config is the full process configuration.
type Config struct {
	Server ServerConfig     `yaml:"server"`
	Hub    HubConfig        `yaml:"hub"`
	NATS   NATSConfig       `yaml:"nats"`
	Log    logger.LogConfig `yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address for the HTTP API and WebSocket endpoint.
	Addr string `yaml:"addr"`

	// ShutdownTimeout bounds graceful shutdown of the HTTP server and hub.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// HubConfig mirrors hub.Config.
type HubConfig struct {
	// MaxClients caps concurrent registrations. 0 means unlimited.
	MaxClients int `yaml:"max_clients"`

	// SendTimeout is how long a broadcast waits on a full client queue
	// before treating the client as dead.
	SendTimeout time.Duration `yaml:"send_timeout"`

	SendBuffer     int  `yaml:"send_buffer"`
	MaxMessageSize int  `yaml:"max_message_size"`
	ExcludeSender  bool `yaml:"exclude_sender"`
	Welcome        bool `yaml:"welcome"`
}

// NATSConfig configures the optional event feed. An empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Options converts the section to the hub's own configuration type.
func (c HubConfig) Options() hub.Config {
	return hub.Config{
		MaxClients:     c.MaxClients,
		SendTimeout:    c.SendTimeout,
		SendBuffer:     c.SendBuffer,
		MaxMessageSize: c.MaxMessageSize,
		ExcludeSender:  c.ExcludeSender,
		Welcome:        c.Welcome,
	}
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	h := hub.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Hub: HubConfig{
			MaxClients:     h.MaxClients,
			SendTimeout:    h.SendTimeout,
			SendBuffer:     h.SendBuffer,
			MaxMessageSize: h.MaxMessageSize,
			ExcludeSender:  h.ExcludeSender,
			Welcome:        h.Welcome,
		},
		NATS: NATSConfig{
			SubjectPrefix: DefaultSubjectPrefix,
		},
		Log: logger.DefaultLogConfig(),
	}
}

// applyEnv overrides file values with SERVER_ADDR, NATS_URL, HUB_MAX_CLIENTS,
// HUB_SEND_TIMEOUT and LOG_LEVEL when they are set.
func applyEnv(cfg *Config) error {
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.NATS.URL = url
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if v := os.Getenv("HUB_MAX_CLIENTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HUB_MAX_CLIENTS %q: %w", v, err)
		}
		cfg.Hub.MaxClients = n
	}
	if v := os.Getenv("HUB_SEND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HUB_SEND_TIMEOUT %q: %w", v, err)
		}
		cfg.Hub.SendTimeout = d
	}
	return nil
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if cfg.Hub.MaxClients < 0 {
		return fmt.Errorf("hub.max_clients must not be negative")
	}
	if cfg.Hub.SendTimeout <= 0 {
		return fmt.Errorf("hub.send_timeout must be positive")
	}
	if cfg.Hub.SendBuffer < 1 {
		return fmt.Errorf("hub.send_buffer must be at least 1")
	}
	if cfg.Hub.MaxMessageSize < 0 {
		return fmt.Errorf("hub.max_message_size must not be negative")
	}
	return nil
}
