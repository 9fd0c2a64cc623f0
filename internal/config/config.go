package config

import (
	"fmt"
	"strings"
)

// Agent names accepted by --agent.
const (
	AgentRandom = "random"
	AgentGreedy = "greedy"
)

// Config holds all collector configuration
type Config struct {
	// Rollout settings
	Agent       string `mapstructure:"agent"`
	GUI         bool   `mapstructure:"gui"`
	MaxSteps    int    `mapstructure:"max_steps"`
	NumEpisodes int    `mapstructure:"num_episodes"`
	Run         string `mapstructure:"run"`
	Seed        int64  `mapstructure:"seed"`

	// Output layout
	LogRoot     string `mapstructure:"log_root"`
	ImageFormat string `mapstructure:"image_format"`
	ImageWidth  int    `mapstructure:"image_width"`
	ImageHeight int    `mapstructure:"image_height"`

	// Simulator; empty address selects the built-in kinematic arm
	SimAddr  string  `mapstructure:"sim_addr"`
	StepRate float64 `mapstructure:"step_rate"`

	// Optional sinks
	StatusAddr  string `mapstructure:"status_addr"`
	NATSURL     string `mapstructure:"nats_url"`
	NATSSubject string `mapstructure:"nats_subject"`
	DatabaseURL string `mapstructure:"database_url"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Agent:       AgentRandom,
		MaxSteps:    50,
		NumEpisodes: 100,
		LogRoot:     "logs",
		ImageFormat: "png",
		ImageWidth:  160,
		ImageHeight: 120,
		NATSSubject: "rollouts.episodes",
		LogLevel:    "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Run == "" {
		return fmt.Errorf("run is required")
	}
	if strings.ContainsAny(c.Run, `/\`) || c.Run == "." || c.Run == ".." {
		return fmt.Errorf("run %q must be a single directory name", c.Run)
	}
	switch c.Agent {
	case AgentRandom, AgentGreedy:
	default:
		return fmt.Errorf("unknown agent type [%s]", c.Agent)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive")
	}
	if c.NumEpisodes < 0 {
		return fmt.Errorf("num_episodes must not be negative")
	}
	if c.LogRoot == "" {
		return fmt.Errorf("log_root is required")
	}
	switch c.ImageFormat {
	case "png", "jpg":
	default:
		return fmt.Errorf("image_format must be png or jpg, got %q", c.ImageFormat)
	}
	if c.ImageWidth <= 0 || c.ImageHeight <= 0 {
		return fmt.Errorf("image dimensions must be positive")
	}
	if c.StepRate < 0 {
		return fmt.Errorf("step_rate must not be negative")
	}
	return nil
}

// SimServerConfig configures `gather serve-sim`.
type SimServerConfig struct {
	Port     int    `mapstructure:"port"`
	Seed     int64  `mapstructure:"seed"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// DefaultSimServer returns the serve-sim defaults.
func DefaultSimServer() *SimServerConfig {
	return &SimServerConfig{
		Port:     50051,
		LogLevel: "info",
	}
}

// Validate checks if the configuration is valid
func (c *SimServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	return nil
}
