package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ProviderNone, cfg.Provider)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 150.0, cfg.Rules.QuarterlyThreshold)
	assert.Equal(t, 1000.0, cfg.Rules.PrivateInvoiceCutoff)
	assert.Equal(t, 8, cfg.Rules.FollowUpWordLimit)
	assert.Equal(t, 50, cfg.Rules.SessionHistoryCap)
	assert.Equal(t, 84, cfg.Rules.WaitingPeriodDays)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.claimdesk.yml")

	original := DefaultConfig()
	original.Provider = ProviderOpenAI
	original.Model = "gpt-4o"
	original.DataDir = "var/claims"
	original.Rules.QuarterlyThreshold = 200
	original.Rules.FollowUpWordLimit = 5

	require.NoError(t, original.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, original.Provider, loaded.Provider)
	assert.Equal(t, original.Model, loaded.Model)
	assert.Equal(t, original.DataDir, loaded.DataDir)
	assert.Equal(t, 200.0, loaded.Rules.QuarterlyThreshold)
	assert.Equal(t, 5, loaded.Rules.FollowUpWordLimit)
	assert.Equal(t, original.Rules.MaxHospitalDays, loaded.Rules.MaxHospitalDays)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	require.NoError(t, err, "missing file should yield defaults")
	assert.Equal(t, ProviderNone, cfg.Provider)
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yml")
	require.NoError(t, DefaultConfig().Save(path))

	t.Setenv("CLAIMDESK_PROVIDER", "ollama")
	t.Setenv("CLAIMDESK_RULES__PRIVATE_INVOICE_CUTOFF", "1500")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, loaded.Provider)
	assert.Equal(t, "llama3", loaded.Model, "model falls back to the provider default")
	assert.Equal(t, 1500.0, loaded.Rules.PrivateInvoiceCutoff)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"invalid provider", func(c *Config) { c.Provider = "anthropic" }, true},
		{"empty provider", func(c *Config) { c.Provider = "" }, true},
		{"provider without model", func(c *Config) { c.Provider = ProviderOpenAI; c.Model = "" }, true},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, true},
		{"zero timeout", func(c *Config) { c.EnhanceTimeoutSec = 0 }, true},
		{"negative threshold", func(c *Config) { c.Rules.QuarterlyThreshold = -1 }, true},
		{"zero cutoff", func(c *Config) { c.Rules.PrivateInvoiceCutoff = 0 }, true},
		{"zero history cap", func(c *Config) { c.Rules.SessionHistoryCap = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
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

func TestRulesPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules.MaxHospitalDays = 30
	p := cfg.Rules.Policy()
	assert.Equal(t, 30, p.MaxHospitalDays)
	assert.Equal(t, cfg.Rules.HospitalDailyRate, p.HospitalDailyRate)
}

func TestAPIKeyEnvVar(t *testing.T) {
	assert.Equal(t, "OPENAI_API_KEY", APIKeyEnvVar(ProviderOpenAI))
	assert.Equal(t, "OPENROUTER_API_KEY", APIKeyEnvVar(ProviderOpenRouter))
	assert.Equal(t, "", APIKeyEnvVar(ProviderOllama))
}
