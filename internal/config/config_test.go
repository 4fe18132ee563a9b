package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "softlight-cli", cfg.Logger.ServiceName)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, int64(1280), cfg.Browser.ViewportWidth)
	assert.Equal(t, 60*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 100, cfg.Agent.MaxSteps)
	assert.Equal(t, 4, cfg.Agent.MaxActionsPerStep)
	assert.Equal(t, 3, cfg.Agent.MaxFailures)
	assert.Equal(t, 40000, cfg.Agent.SerializerMaxLen)
	assert.Equal(t, 100*time.Millisecond, cfg.Agent.PausePollInterval)

	assert.NoError(t, cfg.Validate())
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("agent.max_steps", 25)
	v.Set("browser.headless", false)
	v.Set("llm.api_key", "test-key")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Agent.MaxSteps)
	assert.False(t, cfg.Browser.Headless)

	// Default model entries are synthesized with the shared key.
	fast := cfg.LLM.ModelConfig(cfg.LLM.DefaultFastModel)
	assert.Equal(t, "test-key", fast.APIKey)
	assert.Equal(t, ProviderGemini, fast.Provider)
}

func TestValidateRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max steps", func(c *Config) { c.Agent.MaxSteps = 0 }},
		{"zero action cap", func(c *Config) { c.Agent.MaxActionsPerStep = 0 }},
		{"zero failure budget", func(c *Config) { c.Agent.MaxFailures = 0 }},
		{"zero serializer bound", func(c *Config) { c.Agent.SerializerMaxLen = 0 }},
		{"zero stall window", func(c *Config) { c.Agent.StallWindow = 0 }},
		{"zero viewport", func(c *Config) { c.Browser.ViewportHeight = 0 }},
		{"zero timeout", func(c *Config) { c.Browser.ActionTimeout = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestModelConfigFallback(t *testing.T) {
	cfg := LLMConfig{Models: map[string]LLMModelConfig{
		"tuned": {Provider: ProviderGemini, APIKey: "k", MaxTokens: 2048},
	}}

	mc := cfg.ModelConfig("tuned")
	assert.Equal(t, "tuned", mc.Model)
	assert.Equal(t, 2048, mc.MaxTokens)

	mc = cfg.ModelConfig("unknown-model")
	assert.Equal(t, "unknown-model", mc.Model)
	assert.Equal(t, ProviderGemini, mc.Provider)
}

func TestFlagMutators(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetBrowserHeadless(false)
	cfg.SetAgentMaxSteps(7)
	cfg.SetAgentUseVision(true)
	cfg.SetLoggerLevel("debug")

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 7, cfg.Agent.MaxSteps)
	assert.True(t, cfg.Agent.UseVision)
	assert.Equal(t, "debug", cfg.Logger.Level)
}
