// Package api exposes the daemon over HTTP: profile CRUD, power and
// selection settings, engine rule inspection, archive import/export, and a
// websocket feed that pushes state changes to connected UIs.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/headmod/internal/clock"
	"grimm.is/headmod/internal/config"
	"grimm.is/headmod/internal/engine"
	"grimm.is/headmod/internal/events"
	"grimm.is/headmod/internal/logging"
	"grimm.is/headmod/internal/ratelimit"
	"grimm.is/headmod/internal/state"
	"grimm.is/headmod/internal/syncer"
)

// Import is expensive: it snapshots the store and replaces the whole
// profile set. Cap how often a single client can trigger it.
const (
	importRateLimit    = 10
	importRateInterval = time.Minute
)

// ServerConfig holds HTTP server timeouts.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
}

// DefaultServerConfig returns the default server timeouts.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
		MaxBodyBytes:      10 << 20,
	}
}

// Server handles API requests.
type Server struct {
	cfg        *config.Config
	store      state.Store
	profiles   *state.ProfileBucket
	settings   *state.SettingsBucket
	ruleIDs    *state.RuleIDBucket
	ruleErrors *state.RuleErrorBucket
	engine     engine.Engine
	hub        *events.Hub
	sync       *syncer.Service
	wsManager  *WSManager
	limiter    *ratelimit.Limiter
	logger     *logging.Logger
	startTime  time.Time

	mux *http.ServeMux
}

// ServerOptions holds dependencies for the API server.
type ServerOptions struct {
	Config     *config.Config
	Store      state.Store
	Profiles   *state.ProfileBucket
	Settings   *state.SettingsBucket
	RuleIDs    *state.RuleIDBucket
	RuleErrors *state.RuleErrorBucket
	Engine     engine.Engine
	Hub        *events.Hub
	Sync       *syncer.Service
	Logger     *logging.Logger
}

// NewServer creates a new API server with the provided options.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		cfg:        cfg,
		store:      opts.Store,
		profiles:   opts.Profiles,
		settings:   opts.Settings,
		ruleIDs:    opts.RuleIDs,
		ruleErrors: opts.RuleErrors,
		engine:     opts.Engine,
		hub:        opts.Hub,
		sync:       opts.Sync,
		limiter:    ratelimit.NewLimiter(),
		logger:     logger.WithComponent("api"),
		startTime:  clock.Now(),
	}
	s.wsManager = NewWSManager(cfg.API.CORSOrigins, logger)
	s.initRoutes()
	return s
}

// WSManagerRef exposes the websocket manager so the daemon can hand it to
// the syncer as the cross-context messenger.
func (s *Server) WSManagerRef() *WSManager {
	return s.wsManager
}

// SetSyncService attaches the sync service after construction. The server
// creates the websocket messenger the syncer needs, so the two are wired in
// this order: server, then syncer, then this call.
func (s *Server) SetSyncService(sync *syncer.Service) {
	s.sync = sync
}

// Run serves HTTP until the context is cancelled; the websocket event
// forwarder runs alongside it.
func (s *Server) Run(ctx context.Context) error {
	go s.wsManager.ForwardEvents(ctx, s.hub)
	s.limiter.StartCleanup(5*time.Minute, 30*time.Minute, ctx.Done())

	sc := DefaultServerConfig()
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: sc.ReadHeaderTimeout,
		ReadTimeout:       sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
		IdleTimeout:       sc.IdleTimeout,
		MaxHeaderBytes:    sc.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("api listening", "addr", s.cfg.Listen)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Handler returns the full middleware-wrapped handler, exported for tests.
func (s *Server) Handler() http.Handler {
	return AccessLogger(s.logger, http.MaxBytesHandler(s.mux, DefaultServerConfig().MaxBodyBytes))
}

func (s *Server) initRoutes() {
	mux := http.NewServeMux()
	s.mux = mux

	// Health check endpoints (public, for monitoring)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReadiness)

	// Daemon status
	mux.HandleFunc("GET /api/status", s.handleStatus)

	// Profiles
	mux.HandleFunc("GET /api/profiles", s.handleListProfiles)
	mux.HandleFunc("POST /api/profiles", s.handleCreateProfile)
	mux.HandleFunc("GET /api/profiles/{id}", s.handleGetProfile)
	mux.HandleFunc("PUT /api/profiles/{id}", s.handleUpdateProfile)
	mux.HandleFunc("DELETE /api/profiles/{id}", s.handleDeleteProfile)

	// Settings
	mux.HandleFunc("GET /api/power", s.handleGetPower)
	mux.HandleFunc("PUT /api/power", s.handleSetPower)
	mux.HandleFunc("GET /api/selected-profile", s.handleGetSelected)
	mux.HandleFunc("PUT /api/selected-profile", s.handleSetSelected)

	// Engine rule inspection
	mux.HandleFunc("GET /api/rules", s.handleEngineRules)
	mux.HandleFunc("GET /api/rules/ids", s.handleRuleIDs)
	mux.HandleFunc("GET /api/rules/errors", s.handleRuleErrors)
	mux.HandleFunc("POST /api/rules/reinitialize", s.handleReinitialize)

	// Archive
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)

	// Logs
	mux.HandleFunc("GET /api/logs", s.handleLogs)

	// Websockets
	mux.HandleFunc("GET /api/ws", s.handleWS)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())
}
