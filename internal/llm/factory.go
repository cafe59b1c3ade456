package llm

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/claimdesk/internal/config"
)

const (
	defaultOllamaURL     = "http://localhost:11434/v1"
	defaultOpenRouterURL = "https://openrouter.ai/api/v1"
)

// NewProvider builds the provider selected in cfg, wrapped in a rate
// limiter. It returns nil, nil when no provider is configured so callers
// fall back to deterministic text.
func NewProvider(cfg *config.Config) (Provider, error) {
	var p Provider
	switch cfg.Provider {
	case config.ProviderNone, "":
		return nil, nil

	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(cfg.Provider))
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is not set", config.APIKeyEnvVar(cfg.Provider))
		}
		if cfg.BaseURL != "" {
			p = NewCompatibleProvider("openai", cfg.BaseURL, apiKey, cfg.Model)
		} else {
			p = NewOpenAIProvider(apiKey, cfg.Model)
		}

	case config.ProviderOpenRouter:
		apiKey := os.Getenv(config.APIKeyEnvVar(cfg.Provider))
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is not set", config.APIKeyEnvVar(cfg.Provider))
		}
		p = NewCompatibleProvider("openrouter", orDefault(cfg.BaseURL, defaultOpenRouterURL), apiKey, cfg.Model)

	case config.ProviderOllama:
		host := cfg.BaseURL
		if host == "" {
			if env := os.Getenv("OLLAMA_HOST"); env != "" {
				host = env + "/v1"
			}
		}
		p = NewCompatibleProvider("ollama", orDefault(host, defaultOllamaURL), "ollama", cfg.Model)

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider)
	}

	if cfg.RequestsPerMinute > 0 {
		p = NewRateLimitedProvider(p, cfg.RequestsPerMinute)
	}
	return p, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
