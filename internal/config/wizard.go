package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and saves the result
// to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to claimdesk! Let's configure adjudication.")
	fmt.Println()

	cfg := DefaultConfig()

	providerPrompt := promptui.Select{
		Label: "Reasoning enhancement provider",
		Items: []string{
			"none       (deterministic reasoning only)",
			"openai",
			"ollama",
			"openrouter",
		},
	}
	idx, _, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	providers := []ProviderType{ProviderNone, ProviderOpenAI, ProviderOllama, ProviderOpenRouter}
	cfg.Provider = providers[idx]

	if cfg.Provider != ProviderNone {
		modelPrompt := promptui.Prompt{
			Label:   "Model",
			Default: DefaultModel(cfg.Provider),
		}
		if cfg.Model, err = modelPrompt.Run(); err != nil {
			return nil, fmt.Errorf("model: %w", err)
		}
	}

	dataPrompt := promptui.Prompt{
		Label:   "Data directory (SQLite database)",
		Default: cfg.DataDir,
	}
	if cfg.DataDir, err = dataPrompt.Run(); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	thresholdPrompt := promptui.Prompt{
		Label:    "Quarterly receipts threshold (EUR)",
		Default:  strconv.FormatFloat(cfg.Rules.QuarterlyThreshold, 'f', 2, 64),
		Validate: validateAmount,
	}
	thresholdStr, err := thresholdPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}
	cfg.Rules.QuarterlyThreshold, _ = strconv.ParseFloat(thresholdStr, 64)

	cutoffPrompt := promptui.Prompt{
		Label:    "Private hospital invoice cutoff (EUR)",
		Default:  strconv.FormatFloat(cfg.Rules.PrivateInvoiceCutoff, 'f', 2, 64),
		Validate: validateAmount,
	}
	cutoffStr, err := cutoffPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("cutoff: %w", err)
	}
	cfg.Rules.PrivateInvoiceCutoff, _ = strconv.ParseFloat(cutoffStr, 64)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running claimdesk serve.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validateAmount(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if v < 0 {
		return fmt.Errorf("must be non-negative")
	}
	return nil
}
