// Package main provides the adaptive risk daemon that runs all
// continuous components together:
// - Signal feed (continuous): websocket updates → debounce scheduler
// - Refresh (debounced): recompute decisions linked to moved signals
// - Snapshots (scheduled): cron portfolio aggregation
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"risklab/internal/audit"
	"risklab/internal/config"
	"risklab/internal/domain"
	"risklab/internal/learning"
	"risklab/internal/metrics"
	"risklab/internal/observability"
	"risklab/internal/orchestrator"
	"risklab/internal/refresh"
	"risklab/internal/registry"
	"risklab/internal/signalfeed"
	"risklab/internal/simulation"
	"risklab/internal/storage"
	chstore "risklab/internal/storage/clickhouse"
	"risklab/internal/storage/memory"
	"risklab/internal/storage/migrations"
	pgstore "risklab/internal/storage/postgres"
)

// Server holds all components of the daemon.
type Server struct {
	// Configuration
	cfg         *config.Config
	tenant      string
	portfolioID string
	feedMode    string

	// Stores
	stores *allStores

	// Components
	feed       signalfeed.Feed
	registry   *registry.Registry
	controller *refresh.Controller
	scheduler  *refresh.Scheduler
	cron       *cron.Cron
	logger     *zap.Logger

	// State
	mu              sync.Mutex
	started         time.Time
	lastRefreshPass time.Time
	lastSnapshot    time.Time
	snapshotRunning bool

	// Stats
	signalUpdates int
	refreshPasses int
	snapshotRuns  int
}

// allStores holds the storage implementations the daemon needs.
type allStores struct {
	decisionStore storage.DecisionStore
	documentStore storage.DocumentStore
	snapshotStore storage.PortfolioSnapshotStore
	archiveStore  storage.SimulationArchiveStore
	traceStore    storage.TraceStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("RISKD_CONFIG"), "Path to YAML config file")
	tenant := flag.String("tenant", envOr("RISKD_TENANT", "demo"), "Tenant whose decisions this daemon refreshes")
	portfolioID := flag.String("portfolio-id", envOr("RISKD_PORTFOLIO_ID", "portfolio-main"), "Portfolio for scheduled snapshots")
	fixturesPath := flag.String("fixtures", "", "Optional JSON fixture file; decisions are seeded at startup")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage regardless of configured DSNs")
	migrate := flag.Bool("migrate", false, "Apply embedded schema migrations at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores. Each backend follows its DSN; -use-memory forces the
	// in-memory fallback for both.
	stores, cleanup, err := createStores(ctx, cfg, *useMemory, *migrate)
	if err != nil {
		logger.Fatal("failed to create stores", zap.Error(err))
	}
	defer cleanup()

	// Seed fixture decisions so refresh passes have work in a fresh store
	if *fixturesPath != "" {
		seeded, err := seedDecisions(ctx, *fixturesPath, stores.decisionStore)
		if err != nil {
			logger.Fatal("failed to seed fixtures", zap.Error(err))
		}
		logger.Info("seeded fixture decisions", zap.Int("count", seeded))
	}

	// Create feed. Follows endpoint presence: websocket when configured,
	// stub otherwise.
	var feed signalfeed.Feed
	feedMode := "stub"
	if cfg.Feed.Endpoint != "" {
		wsCfg := signalfeed.DefaultWSFeedConfig()
		wsCfg.Logger = logger
		wsFeed, err := signalfeed.NewWSFeed(ctx, cfg.Feed.Endpoint, &wsCfg)
		if err != nil {
			logger.Fatal("failed to connect signal feed", zap.Error(err))
		}
		feed = wsFeed
		feedMode = "websocket"
	} else {
		logger.Warn("no feed endpoint configured, using stub feed")
		feed = signalfeed.NewStubFeed(nil)
	}

	// Create components
	sink := audit.NewZapSink(logger)
	reg := registry.NewRegistry(stores.decisionStore, stores.documentStore)
	runner := simulation.NewRunner(simulation.RunnerOptions{
		DecisionStore: stores.decisionStore,
		DocumentStore: stores.documentStore,
		ArchiveStore:  stores.archiveStore,
		Logger:        logger,
	})
	tracker := learning.NewTracker(learning.TrackerOptions{
		Traces: stores.traceStore,
		Audit:  sink,
		Logger: logger,
	})
	controller := refresh.NewController(refresh.ControllerOptions{
		Registry:             reg,
		Runner:               runner,
		Tracker:              tracker,
		Audit:                sink,
		EligibilityThreshold: cfg.Refresh.EligibilityThreshold,
		BatchSize:            cfg.Refresh.BatchSize,
		Logger:               logger,
	})

	// Create server
	server := &Server{
		cfg:         cfg,
		tenant:      *tenant,
		portfolioID: *portfolioID,
		feedMode:    feedMode,
		stores:      stores,
		feed:        feed,
		registry:    reg,
		controller:  controller,
		logger:      logger,
		started:     time.Now(),
	}

	// Debounce scheduler drives refresh passes
	scheduler, err := refresh.NewScheduler(refresh.SchedulerOptions{
		Window:  cfg.Refresh.Debounce,
		Process: server.processUpdates,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("failed to create scheduler", zap.Error(err))
	}
	server.scheduler = scheduler

	// Cron drives portfolio snapshots
	cronRunner := cron.New(cron.WithSeconds())
	if _, err := cronRunner.AddFunc(cfg.Snapshot.Cron, func() { server.runSnapshot(ctx) }); err != nil {
		logger.Fatal("invalid snapshot cron spec", zap.String("spec", cfg.Snapshot.Cron), zap.Error(err))
	}
	server.cron = cronRunner

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(cfg.Metrics.Addr)

	// Run the daemon
	err = server.Run(ctx)
	done <- err
	cancel()

	// Drain components in reverse dependency order
	scheduler.Stop()
	cronRunner.Stop()
	if cerr := feed.Close(); cerr != nil {
		logger.Warn("feed close", zap.Error(cerr))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("daemon error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

// envOr returns the environment value for key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newLogger builds a production logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// createStores creates the storage implementations. Postgres serves the
// transactional stores and ClickHouse the analytical ones; a missing DSN
// falls back to memory for that backend.
func createStores(ctx context.Context, cfg *config.Config, useMemory, migrate bool) (*allStores, func(), error) {
	stores := &allStores{
		decisionStore: memory.NewDecisionStore(),
		documentStore: memory.NewDocumentStore(),
		snapshotStore: memory.NewPortfolioSnapshotStore(),
		archiveStore:  memory.NewSimulationArchiveStore(),
		traceStore:    memory.NewTraceStore(),
	}
	if useMemory {
		return stores, func() {}, nil
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.Postgres.DSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)
		if migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		stores.decisionStore = pgstore.NewDecisionStore(pool)
		stores.documentStore = pgstore.NewDocumentStore(pool)
	}

	if cfg.ClickHouse.DSN != "" {
		var conn *chstore.Conn
		var err error
		if migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickHouse.DSN)
		}
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		cleanups = append(cleanups, func() { conn.Close() })
		stores.snapshotStore = chstore.NewPortfolioSnapshotStore(conn)
		stores.archiveStore = chstore.NewSimulationArchiveStore(conn)
		stores.traceStore = chstore.NewTraceStore(conn)
	}

	return stores, cleanup, nil
}

// seedDecisions inserts fixture decisions, leaving existing ids untouched.
// Guardrails and outcomes in the fixture file are ignored; the daemon only
// refreshes simulations.
func seedDecisions(ctx context.Context, path string, decisions storage.DecisionStore) (int, error) {
	fixtures, err := orchestrator.LoadFixtures(path)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, d := range fixtures.Decisions {
		if err := decisions.Insert(ctx, d); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			return inserted, fmt.Errorf("insert decision %s: %w", d.ID, err)
		}
		inserted++
	}
	return inserted, nil
}

// Run starts the daemon components and blocks until the context is
// cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting riskd",
		zap.String("tenant", s.tenant),
		zap.String("portfolio_id", s.portfolioID),
		zap.String("feed_mode", s.feedMode),
		zap.Duration("debounce", s.cfg.Refresh.Debounce),
		zap.String("snapshot_cron", s.cfg.Snapshot.Cron),
	)

	errCh := make(chan error, 1)

	// Pump feed updates into the scheduler in background
	go func() {
		err := s.runFeedPump(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("feed pump: %w", err)
		}
	}()

	s.cron.Start()
	defer s.cron.Stop()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runFeedPump subscribes to all signals and forwards updates into the
// debounce scheduler.
func (s *Server) runFeedPump(ctx context.Context) error {
	ch, err := s.feed.Subscribe(ctx, nil)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("signal feed subscribed")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-ch:
			if !ok {
				return fmt.Errorf("signal feed channel closed")
			}
			observability.RecordFeedUpdate()
			s.scheduler.Ingest([]domain.SignalUpdate{update})

			s.mu.Lock()
			s.signalUpdates++
			s.mu.Unlock()
		}
	}
}

// processUpdates runs one refresh pass over a coalesced signal batch.
// Invoked by the scheduler once the debounce window closes.
func (s *Server) processUpdates(ctx context.Context, updates []domain.SignalUpdate) {
	start := time.Now()
	observability.RecordSignalUpdates(len(updates))

	result, err := s.controller.Process(ctx, updates)
	if err != nil {
		s.logger.Error("refresh pass failed", zap.Error(err))
		observability.RecordRefreshPass("error", time.Since(start).Seconds(), 0, 0)
		return
	}

	observability.RecordRefreshPass("success", time.Since(start).Seconds(), result.Refreshed, result.Failed)
	observability.DefaultMetrics.LastSuccessfulRefresh.SetToCurrentTime()

	s.mu.Lock()
	s.lastRefreshPass = time.Now()
	s.refreshPasses++
	s.mu.Unlock()

	s.logger.Info("refresh pass completed",
		zap.String("pass_id", result.PassID),
		zap.Int("signals", len(updates)),
		zap.Int("eligible", result.Eligible),
		zap.Int("refreshed", result.Refreshed),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// runSnapshot aggregates the tenant's latest simulation results into one
// portfolio snapshot. Invoked by cron.
func (s *Server) runSnapshot(ctx context.Context) {
	s.mu.Lock()
	if s.snapshotRunning {
		s.mu.Unlock()
		s.logger.Info("snapshot already running, skipping")
		return
	}
	s.snapshotRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.snapshotRunning = false
		s.mu.Unlock()
	}()

	start := time.Now()

	rows, err := s.collectPortfolioRows(ctx)
	if err != nil {
		s.logger.Error("collect portfolio rows", zap.Error(err))
		return
	}
	if len(rows) == 0 {
		s.logger.Info("no simulated decisions, skipping snapshot")
		return
	}

	aggregator := metrics.NewPortfolioAggregator(s.stores.snapshotStore).WithLogger(s.logger)
	snapshot, err := aggregator.Update(ctx, s.tenant, s.portfolioID, rows)
	if err != nil {
		s.logger.Error("snapshot failed", zap.Error(err))
		return
	}

	observability.RecordSnapshot(time.Since(start).Seconds())
	observability.DefaultMetrics.LastSuccessfulSnapshot.SetToCurrentTime()

	s.mu.Lock()
	s.lastSnapshot = time.Now()
	s.snapshotRuns++
	s.mu.Unlock()

	s.logger.Info("portfolio snapshot appended",
		zap.String("snapshot_id", snapshot.ID),
		zap.Int("decisions", len(rows)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// collectPortfolioRows folds each decision's latest stored results into
// one portfolio row, using the highest-EV option. Decisions that were
// never simulated are skipped.
func (s *Server) collectPortfolioRows(ctx context.Context) ([]domain.DecisionMetrics, error) {
	decisions, err := s.registry.ListByTenant(ctx, s.tenant)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}

	rows := make([]domain.DecisionMetrics, 0, len(decisions))
	for _, d := range decisions {
		stored, err := s.registry.PriorResults(ctx, s.tenant, d.ID)
		if err != nil {
			s.logger.Debug("no prior results", zap.String("decision_id", d.ID), zap.Error(err))
			continue
		}
		if row, ok := leadingRow(d.ID, stored); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// leadingRow picks the highest-EV option as the decision's portfolio row.
func leadingRow(decisionID string, stored *simulation.StoredResults) (domain.DecisionMetrics, bool) {
	if stored == nil || len(stored.Results) == 0 {
		return domain.DecisionMetrics{}, false
	}
	best := stored.Results[0]
	for _, r := range stored.Results[1:] {
		if r.EV > best.EV {
			best = r
		}
	}
	return domain.DecisionMetrics{
		DecisionID: decisionID,
		EV:         best.EV,
		VaR95:      best.VaR95,
		CVaR95:     best.CVaR95,
	}, true
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("http server error", zap.Error(err))
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	Tenant          string    `json:"tenant"`
	PortfolioID     string    `json:"portfolio_id"`
	FeedMode        string    `json:"feed_mode"`
	SignalUpdates   int       `json:"signal_updates"`
	PendingSignals  int       `json:"pending_signals"`
	RefreshPasses   int       `json:"refresh_passes"`
	LastRefreshPass time.Time `json:"last_refresh_pass,omitempty"`
	SnapshotRuns    int       `json:"snapshot_runs"`
	LastSnapshot    time.Time `json:"last_snapshot,omitempty"`
	SnapshotRunning bool      `json:"snapshot_running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		Tenant:          s.tenant,
		PortfolioID:     s.portfolioID,
		FeedMode:        s.feedMode,
		SignalUpdates:   s.signalUpdates,
		PendingSignals:  s.scheduler.Pending(),
		RefreshPasses:   s.refreshPasses,
		LastRefreshPass: s.lastRefreshPass,
		SnapshotRuns:    s.snapshotRuns,
		LastSnapshot:    s.lastSnapshot,
		SnapshotRunning: s.snapshotRunning,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
