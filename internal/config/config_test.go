package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRequiresRun(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run is required")

	cfg.Run = "t1"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownAgent(t *testing.T) {
	cfg := Default()
	cfg.Run = "t1"
	cfg.Agent = "ppo"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent type [ppo]")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "greedy agent", mutate: func(c *Config) { c.Agent = AgentGreedy }},
		{name: "jpg images", mutate: func(c *Config) { c.ImageFormat = "jpg" }},
		{name: "zero episodes", mutate: func(c *Config) { c.NumEpisodes = 0 }},
		{name: "nested run", mutate: func(c *Config) { c.Run = "a/b" }, wantErr: true},
		{name: "zero max steps", mutate: func(c *Config) { c.MaxSteps = 0 }, wantErr: true},
		{name: "gif images", mutate: func(c *Config) { c.ImageFormat = "gif" }, wantErr: true},
		{name: "empty width", mutate: func(c *Config) { c.ImageWidth = 0 }, wantErr: true},
		{name: "negative rate", mutate: func(c *Config) { c.StepRate = -1 }, wantErr: true},
		{name: "empty log root", mutate: func(c *Config) { c.LogRoot = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Run = "t1"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSimServerValidate(t *testing.T) {
	cfg := DefaultSimServer()
	assert.NoError(t, cfg.Validate())

	cfg.Port = 0
	assert.Error(t, cfg.Validate())
	cfg.Port = 70000
	assert.Error(t, cfg.Validate())
}
