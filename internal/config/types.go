package config

// ProviderType identifies an LLM provider. All supported providers speak
// the OpenAI chat completions protocol.
type ProviderType string

const (
	ProviderNone       ProviderType = "none"
	ProviderOpenAI     ProviderType = "openai"
	ProviderOllama     ProviderType = "ollama"
	ProviderOpenRouter ProviderType = "openrouter"
)

// Config is the top-level claimdesk configuration, corresponding to .claimdesk.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	BaseURL           string       `yaml:"base_url" koanf:"base_url"`
	RequestsPerMinute int          `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	EnhanceTimeoutSec int          `yaml:"enhance_timeout_seconds" koanf:"enhance_timeout_seconds"`
	DataDir           string       `yaml:"data_dir" koanf:"data_dir"`
	Server            ServerConfig `yaml:"server" koanf:"server"`
	Rules             RulesConfig  `yaml:"rules" koanf:"rules"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// RulesConfig holds the adjudication constants that operators may override.
type RulesConfig struct {
	WaitingPeriodDays    int     `yaml:"waiting_period_days" koanf:"waiting_period_days"`
	SubmissionWindowDays int     `yaml:"submission_window_days" koanf:"submission_window_days"`
	QuarterlyThreshold   float64 `yaml:"quarterly_threshold" koanf:"quarterly_threshold"`
	PrivateInvoiceCutoff float64 `yaml:"private_invoice_cutoff" koanf:"private_invoice_cutoff"`
	MaxHospitalDays      int     `yaml:"max_hospital_days" koanf:"max_hospital_days"`
	HospitalDailyRate    float64 `yaml:"hospital_daily_rate" koanf:"hospital_daily_rate"`
	MaternityPayout      float64 `yaml:"maternity_payout" koanf:"maternity_payout"`
	DefaultPayoutCap     float64 `yaml:"default_payout_cap" koanf:"default_payout_cap"`
	FollowUpWordLimit    int     `yaml:"follow_up_word_limit" koanf:"follow_up_word_limit"`
	SessionHistoryCap    int     `yaml:"session_history_cap" koanf:"session_history_cap"`
	MaxMessageLength     int     `yaml:"max_message_length" koanf:"max_message_length"`
}
