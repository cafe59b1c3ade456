package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const envPrefix = "CLAIMDESK_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (CLAIMDESK_*). Nested keys use a double
// underscore: CLAIMDESK_RULES__QUARTERLY_THRESHOLD -> rules.quarterly_threshold.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderNone:       true,
	ProviderOpenAI:     true,
	ProviderOllama:     true,
	ProviderOpenRouter: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of none, openai, ollama, openrouter", c.Provider)
	}
	if c.Provider != ProviderNone && c.Model == "" {
		return fmt.Errorf("model is required when a provider is configured")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be non-negative")
	}
	if c.EnhanceTimeoutSec <= 0 {
		return fmt.Errorf("enhance_timeout_seconds must be positive")
	}

	r := c.Rules
	if r.WaitingPeriodDays < 0 || r.SubmissionWindowDays <= 0 {
		return fmt.Errorf("rules: waiting_period_days must be >= 0 and submission_window_days > 0")
	}
	if r.QuarterlyThreshold < 0 {
		return fmt.Errorf("rules: quarterly_threshold must be non-negative")
	}
	if r.PrivateInvoiceCutoff <= 0 {
		return fmt.Errorf("rules: private_invoice_cutoff must be positive")
	}
	if r.MaxHospitalDays <= 0 || r.HospitalDailyRate <= 0 {
		return fmt.Errorf("rules: max_hospital_days and hospital_daily_rate must be positive")
	}
	if r.MaternityPayout <= 0 || r.DefaultPayoutCap <= 0 {
		return fmt.Errorf("rules: maternity_payout and default_payout_cap must be positive")
	}
	if r.FollowUpWordLimit < 0 {
		return fmt.Errorf("rules: follow_up_word_limit must be non-negative")
	}
	if r.SessionHistoryCap <= 0 {
		return fmt.Errorf("rules: session_history_cap must be positive")
	}
	if r.MaxMessageLength <= 0 {
		return fmt.Errorf("rules: max_message_length must be positive")
	}
	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}
