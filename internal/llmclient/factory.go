package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
	"github.com/xkilldash9x/softlight-cli/internal/config"
)

// NewClient builds a single provider client from a model configuration.
func NewClient(cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	switch provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", provider, config.ProviderGemini)
	}
}

// NewRouterFromConfig wires the fast and powerful tier clients declared in
// the LLM configuration into a router.
func NewRouterFromConfig(cfg config.LLMConfig, logger *zap.Logger) (*LLMRouter, error) {
	fastClient, err := NewClient(cfg.ModelConfig(cfg.DefaultFastModel), logger)
	if err != nil {
		return nil, fmt.Errorf("building fast tier client: %w", err)
	}
	powerfulClient, err := NewClient(cfg.ModelConfig(cfg.DefaultPowerfulModel), logger)
	if err != nil {
		return nil, fmt.Errorf("building powerful tier client: %w", err)
	}
	return NewLLMRouter(logger, fastClient, powerfulClient)
}
