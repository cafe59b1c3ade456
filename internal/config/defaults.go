package config

import (
	"time"

	"github.com/ziadkadry99/claimdesk/internal/rules"
)

// defaultModels maps each provider to the model used when none is configured.
var defaultModels = map[ProviderType]string{
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderOllama:     "llama3",
	ProviderOpenRouter: "openai/gpt-4o-mini",
}

// DefaultModel returns the default model for the given provider.
func DefaultModel(provider ProviderType) string {
	return defaultModels[provider]
}

// DefaultConfig returns a Config with sensible defaults. No LLM provider is
// configured, so the pipeline runs fully deterministic out of the box.
func DefaultConfig() *Config {
	p := rules.DefaultPolicy()
	return &Config{
		Provider:          ProviderNone,
		RequestsPerMinute: 60,
		EnhanceTimeoutSec: 30,
		DataDir:           ".claimdesk",
		Server: ServerConfig{
			Port: 8080,
		},
		Rules: RulesConfig{
			WaitingPeriodDays:    p.WaitingPeriodDays,
			SubmissionWindowDays: p.SubmissionWindowDays,
			QuarterlyThreshold:   p.QuarterlyThreshold,
			PrivateInvoiceCutoff: p.PrivateInvoiceCutoff,
			MaxHospitalDays:      p.MaxHospitalDays,
			HospitalDailyRate:    p.HospitalDailyRate,
			MaternityPayout:      p.MaternityPayout,
			DefaultPayoutCap:     p.DefaultPayoutCap,
			FollowUpWordLimit:    8,
			SessionHistoryCap:    50,
			MaxMessageLength:     2000,
		},
	}
}

// Policy converts the rules section into the calculator policy.
func (r RulesConfig) Policy() rules.Policy {
	return rules.Policy{
		WaitingPeriodDays:    r.WaitingPeriodDays,
		SubmissionWindowDays: r.SubmissionWindowDays,
		QuarterlyThreshold:   r.QuarterlyThreshold,
		PrivateInvoiceCutoff: r.PrivateInvoiceCutoff,
		MaxHospitalDays:      r.MaxHospitalDays,
		HospitalDailyRate:    r.HospitalDailyRate,
		MaternityPayout:      r.MaternityPayout,
		DefaultPayoutCap:     r.DefaultPayoutCap,
	}
}

// EnhanceTimeout returns the per-call deadline for LLM enhancement.
func (c *Config) EnhanceTimeout() time.Duration {
	return time.Duration(c.EnhanceTimeoutSec) * time.Second
}
