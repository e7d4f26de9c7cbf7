// Package config holds runtime configuration for the gangplank bridge.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults for tunables that have no required input.
const (
	DefaultQueueCapacity = 1024
	DefaultInboundRate   = 10.0
	DefaultInboundBurst  = 20
)

// Config holds all settings the bridge needs. The port is the single
// required input; a zero port disables the bridge entirely.
type Config struct {
	// Port is the loopback TCP port to listen on. 0 disables the bridge.
	Port int `json:"port"`

	// QueueCapacity bounds each peer's outbound frame queue. When a queue
	// is full the oldest frame is dropped so the host never blocks.
	QueueCapacity int `json:"queue_capacity"`

	// InboundRate and InboundBurst throttle prompt injection per peer.
	InboundRate  float64 `json:"inbound_rate"`
	InboundBurst int     `json:"inbound_burst"`

	// Agent card identity served at /.well-known/agent-card.json.
	AgentName        string `json:"agent_name"`
	AgentDescription string `json:"agent_description"`
	AgentVersion     string `json:"agent_version"`

	// Logging
	LogDir   string `json:"log_dir"`
	LogJSON  bool   `json:"log_json"`
	LogDebug bool   `json:"log_debug"`
}

// Default returns the baseline configuration. The port is deliberately 0:
// callers must opt in to exposing the session.
func Default() Config {
	return Config{
		Port:             0,
		QueueCapacity:    DefaultQueueCapacity,
		InboundRate:      DefaultInboundRate,
		InboundBurst:     DefaultInboundBurst,
		AgentName:        "gangplank",
		AgentDescription: "Interactive session bridge for a terminal agent",
		AgentVersion:     "0.1.0",
	}
}

// FromEnv applies environment overrides on top of cfg.
// GANGPLANK_PORT sets the port; GANGPLANK_QUEUE sets the queue capacity.
func FromEnv(cfg Config) (Config, error) {
	if v := os.Getenv("GANGPLANK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid GANGPLANK_PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("GANGPLANK_QUEUE"); v != "" {
		capacity, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid GANGPLANK_QUEUE %q: %w", v, err)
		}
		cfg.QueueCapacity = capacity
	}
	return cfg, nil
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue capacity %d out of range", c.QueueCapacity)
	}
	return nil
}

// Enabled reports whether the bridge should run at all.
func (c Config) Enabled() bool {
	return c.Port > 0
}

// Addr returns the loopback listen address for the configured port.
func (c Config) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.Port)
}
