package cmd

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/adjudication"
	"github.com/ziadkadry99/claimdesk/internal/audit"
	"github.com/ziadkadry99/claimdesk/internal/config"
	"github.com/ziadkadry99/claimdesk/internal/db"
	"github.com/ziadkadry99/claimdesk/internal/ledger"
	"github.com/ziadkadry99/claimdesk/internal/llm"
	"github.com/ziadkadry99/claimdesk/internal/notifications"
	"github.com/ziadkadry99/claimdesk/internal/sessions"
)

// app bundles the stores and pipeline every command works against.
type app struct {
	cfg      *config.Config
	db       *db.DB
	ledger   *ledger.Store
	sessions *sessions.Store
	audit    *audit.Store
	alerts   *notifications.Store
	notifier *notifications.Dispatcher
	pipeline *adjudication.Pipeline
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `claimdesk init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// openApp loads config, opens the database and wires the pipeline. When an
// LLM provider is configured it enhances reasoning, hints routes and
// answers follow-ups; otherwise the pipeline stays deterministic. Operator
// alerts are always recorded but only delivered while the server runs.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(cfg.DataDir, "claimdesk.db")
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	policy := cfg.Rules.Policy()
	a := &app{
		cfg:      cfg,
		db:       database,
		ledger:   ledger.NewStore(database, policy),
		sessions: sessions.NewStore(database, cfg.Rules.SessionHistoryCap),
		audit:    audit.NewStore(database),
		alerts:   notifications.NewStore(database),
	}
	a.notifier = notifications.NewDispatcher(a.alerts, logger.Named("notifications"))

	a.pipeline = adjudication.NewPipeline(a.ledger, a.sessions, adjudication.Config{
		Policy:            policy,
		FollowUpWordLimit: cfg.Rules.FollowUpWordLimit,
		MaxMessageLength:  cfg.Rules.MaxMessageLength,
	}, logger.Named("pipeline"))
	a.pipeline.SetAuditLog(a.audit)
	a.pipeline.SetNotifier(a.notifier)

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	if provider != nil {
		enhancer := adjudication.NewLLMEnhancer(provider, cfg.Model, cfg.EnhanceTimeout(), logger.Named("llm"))
		a.pipeline.SetEnhancer(enhancer)
		a.pipeline.SetRouteSuggester(enhancer)
		a.pipeline.SetAnswerer(enhancer)
		logger.Info("LLM enhancement enabled",
			zap.String("provider", string(cfg.Provider)),
			zap.String("model", cfg.Model))
	}

	logger.Debug("database opened", zap.String("path", dbPath))
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
