// Package config defines the typed application configuration. The value is
// constructed once at startup from viper and passed explicitly into each
// component constructor; there is no ambient global.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration object.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
}

// -- Mutators used by CLI flag overrides --

func (c *Config) SetBrowserHeadless(b bool)   { c.Browser.Headless = b }
func (c *Config) SetAgentMaxSteps(n int)      { c.Agent.MaxSteps = n }
func (c *Config) SetAgentUseVision(b bool)    { c.Agent.UseVision = b }
func (c *Config) SetLoggerLevel(level string) { c.Logger.Level = level }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	DisableCache      bool          `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	ViewportWidth     int64         `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int64         `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	Args              []string      `mapstructure:"args" yaml:"args"`
}

// AgentConfig holds the step loop budgets and serializer bounds.
type AgentConfig struct {
	MaxSteps          int           `mapstructure:"max_steps" yaml:"max_steps"`
	MaxActionsPerStep int           `mapstructure:"max_actions_per_step" yaml:"max_actions_per_step"`
	MaxFailures       int           `mapstructure:"max_failures" yaml:"max_failures"`
	HistoryLookback   int           `mapstructure:"history_lookback" yaml:"history_lookback"`
	UseVision         bool          `mapstructure:"use_vision" yaml:"use_vision"`
	SerializerMaxLen  int           `mapstructure:"serializer_max_len" yaml:"serializer_max_len"`
	StallWindow       int           `mapstructure:"stall_window" yaml:"stall_window"`
	StallThreshold    int           `mapstructure:"stall_threshold" yaml:"stall_threshold"`
	PausePollInterval time.Duration `mapstructure:"pause_poll_interval" yaml:"pause_poll_interval"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig configures the model routing logic.
type LLMConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// ModelConfig returns the configuration for a named model, falling back to a
// bare entry that inherits the shared API key when none is declared.
func (l LLMConfig) ModelConfig(name string) LLMModelConfig {
	if cfg, ok := l.Models[name]; ok {
		if cfg.Model == "" {
			cfg.Model = name
		}
		return cfg
	}
	return LLMModelConfig{Provider: ProviderGemini, Model: name}
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider       LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model          string            `mapstructure:"model" yaml:"model"`
	APIKey         string            `mapstructure:"api_key" yaml:"-"`
	Endpoint       string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout     time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature    float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP           float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK           int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens      int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMin float64           `mapstructure:"requests_per_min" yaml:"requests_per_min"`
	SafetyFilters  map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "softlight-cli")
	v.SetDefault("logger.log_file", "softlight.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", false)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.action_timeout", "15s")
	v.SetDefault("browser.post_load_wait", "500ms")

	// -- Agent --
	v.SetDefault("agent.max_steps", 100)
	v.SetDefault("agent.max_actions_per_step", 4)
	v.SetDefault("agent.max_failures", 3)
	v.SetDefault("agent.history_lookback", 10)
	v.SetDefault("agent.use_vision", false)
	v.SetDefault("agent.serializer_max_len", 40000)
	v.SetDefault("agent.stall_window", 10)
	v.SetDefault("agent.stall_threshold", 2)
	v.SetDefault("agent.pause_poll_interval", "100ms")

	// -- LLM --
	v.SetDefault("llm.default_fast_model", "gemini-2.5-flash")
	v.SetDefault("llm.default_powerful_model", "gemini-2.5-pro")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("llm.api_key", "SOFTLIGHT_LLM_API_KEY", "GEMINI_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Propagate a shared API key into model entries that omit one.
	if key := v.GetString("llm.api_key"); key != "" {
		for name, mc := range cfg.LLM.Models {
			if mc.APIKey == "" {
				mc.APIKey = key
				cfg.LLM.Models[name] = mc
			}
		}
		if cfg.LLM.Models == nil {
			cfg.LLM.Models = make(map[string]LLMModelConfig)
		}
		for _, name := range []string{cfg.LLM.DefaultFastModel, cfg.LLM.DefaultPowerfulModel} {
			if _, ok := cfg.LLM.Models[name]; !ok && name != "" {
				cfg.LLM.Models[name] = LLMModelConfig{
					Provider: ProviderGemini,
					Model:    name,
					APIKey:   key,
				}
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be a positive integer")
	}
	if c.Agent.MaxActionsPerStep <= 0 {
		return fmt.Errorf("agent.max_actions_per_step must be a positive integer")
	}
	if c.Agent.MaxFailures <= 0 {
		return fmt.Errorf("agent.max_failures must be a positive integer")
	}
	if c.Agent.SerializerMaxLen <= 0 {
		return fmt.Errorf("agent.serializer_max_len must be a positive integer")
	}
	if c.Agent.StallWindow <= 0 || c.Agent.StallThreshold <= 0 {
		return fmt.Errorf("agent.stall_window and agent.stall_threshold must be positive integers")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive")
	}
	if c.Browser.NavigationTimeout <= 0 || c.Browser.ActionTimeout <= 0 {
		return fmt.Errorf("browser timeouts must be positive durations")
	}
	return nil
}
