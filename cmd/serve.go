package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"grimm.is/headmod/internal/api"
	"grimm.is/headmod/internal/compile"
	"grimm.is/headmod/internal/config"
	"grimm.is/headmod/internal/engine"
	"grimm.is/headmod/internal/events"
	"grimm.is/headmod/internal/logging"
	"grimm.is/headmod/internal/metrics"
	"grimm.is/headmod/internal/state"
	"grimm.is/headmod/internal/syncer"
)

// RunServe wires and runs the full daemon: state store, change-event hub,
// sync service, and HTTP API. It blocks until SIGINT or SIGTERM.
func RunServe(configFile string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	logging.SetDefault(logger)

	store, err := state.NewSQLiteStore(state.DefaultOptions(cfg.State.Path))
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer store.Close()

	profiles, err := state.NewProfileBucket(store)
	if err != nil {
		return fmt.Errorf("preparing profile bucket: %w", err)
	}
	settings, err := state.NewSettingsBucket(store)
	if err != nil {
		return fmt.Errorf("preparing settings bucket: %w", err)
	}
	ruleIDs, err := state.NewRuleIDBucket(store)
	if err != nil {
		return fmt.Errorf("preparing rule id bucket: %w", err)
	}
	ruleErrors, err := state.NewRuleErrorBucket(store)
	if err != nil {
		return fmt.Errorf("preparing rule error bucket: %w", err)
	}

	eng := metrics.InstrumentEngine(newEngine(cfg.Engine, logger))
	hub := events.NewHub()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	adapter := events.NewStoreAdapter(hub, store)
	go adapter.Run(ctx)

	collector := metrics.NewCollector(eng, logger, 30*time.Second)
	go collector.Run(ctx)

	srv := api.NewServer(api.ServerOptions{
		Config:     cfg,
		Store:      store,
		Profiles:   profiles,
		Settings:   settings,
		RuleIDs:    ruleIDs,
		RuleErrors: ruleErrors,
		Engine:     eng,
		Hub:        hub,
		Logger:     logger,
	})

	orch := syncer.NewOrchestrator(eng, ruleIDs, ruleErrors, hub, srv.WSManagerRef(),
		logger, nil, compile.Options{
			NativeResourceTypeBehavior: cfg.Engine.NativeResourceTypeBehavior,
		})
	svc := syncer.NewService(orch, profiles, settings, hub, logger, cfg.Cooldown())
	srv.SetSyncService(svc)

	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		svc.Run(ctx)
	}()

	err = srv.Run(ctx)
	<-syncDone
	if err != nil {
		return fmt.Errorf("api server: %w", err)
	}
	logger.Info("daemon stopped")
	return nil
}

func newLogger(cfg *config.LoggingConfig) *logging.Logger {
	lc := logging.DefaultConfig()
	switch cfg.Level {
	case "debug":
		lc.Level = logging.LevelDebug
	case "warn":
		lc.Level = logging.LevelWarn
	case "error":
		lc.Level = logging.LevelError
	}
	lc.JSON = cfg.Format == "json"
	return logging.New(lc)
}

func newEngine(cfg *config.EngineConfig, logger *logging.Logger) engine.Engine {
	if cfg.Endpoint == "" {
		logger.Warn("no engine endpoint configured, using in-process memory engine")
		return engine.NewMemoryEngine()
	}
	return engine.NewHTTPEngine(cfg.Endpoint)
}
