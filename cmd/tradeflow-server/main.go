package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tradeflow/internal/broker"
	"tradeflow/internal/config"
	"tradeflow/internal/engine"
	"tradeflow/internal/feed"
	"tradeflow/internal/httpapi"
	"tradeflow/internal/metrics"
	"tradeflow/internal/store"
	"tradeflow/internal/strategy"
	"tradeflow/internal/strategy/builtins"
	"tradeflow/internal/util"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfgPath := "config/tradeflow.yaml"
	if p := os.Getenv("TRADEFLOW_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	loc, err := time.LoadLocation(cfg.Risk.ResetTimezone)
	if err != nil {
		log.Fatalf("loading risk reset timezone %q: %v", cfg.Risk.ResetTimezone, err)
	}

	st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening sqlite store: %v", err)
	}
	defer st.Close()
	journal := store.NewFillJournal(cfg.Storage.DataDir)

	risk := engine.NewRiskManager(cfg.Risk.MaxOrderSize, cfg.Risk.DailyLossLimit, loc)
	reconciler := engine.NewReconciler(st, st, journal, risk, logger)

	var b broker.Broker
	switch cfg.Broker.Name {
	case "alpaca":
		b = broker.NewAlpacaBroker(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, logger)
	default:
		b = broker.NewSimulatorBroker(broker.SimulatorConfig{
			MinLatency:         time.Duration(cfg.Broker.MinLatencyMs) * time.Millisecond,
			MaxLatency:         time.Duration(cfg.Broker.MaxLatencyMs) * time.Millisecond,
			RejectRate:         cfg.Broker.RejectRate,
			SlippageBps:        cfg.Broker.SlippageBps,
			CommissionBps:      cfg.Broker.CommissionBps,
			MaxConcurrentFills: cfg.Broker.MaxConcurrentFills,
		}, reconciler.HandleFill, logger)
	}

	eng := engine.NewEngine(b, st, risk, logger)

	registry := strategy.NewRegistry()
	registry.Register(builtins.NewSMACross(cfg.Trading.ShortWindow, cfg.Trading.LongWindow, cfg.Trading.OrderSize))
	strat, ok := registry.Get(cfg.Trading.Strategy)
	if !ok {
		log.Fatalf("unknown strategy %q (have %v)", cfg.Trading.Strategy, registry.List())
	}

	hub := feed.NewHub(cfg.Feed.BufferSize)
	var provider feed.Provider
	switch cfg.Feed.Provider {
	case "ws":
		provider = feed.NewWSProvider(cfg.Feed.WSURL, cfg.Trading.AccountID, logger)
	default:
		provider = feed.NewStubProvider(cfg.Feed.Symbols, cfg.Trading.AccountID,
			time.Duration(cfg.Feed.IntervalMs)*time.Millisecond, time.Now().UnixNano())
	}

	runner := engine.NewRunner(hub, strat, st, eng, cfg.Trading.AccountID, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := provider.Run(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("feed provider stopped", "provider", provider.Name(), "error", err)
		}
		hub.Close()
	}()

	runnerDone := make(chan struct{})
	go func() {
		runner.Run(ctx, cfg.Feed.Symbols)
		close(runnerDone)
	}()

	metricsSrv := metrics.Serve(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort))

	api := httpapi.NewServer(st, st, st, reconciler, b.Name(), logger)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.Handler(),
	}
	go func() {
		logger.Info("api server listening", "addr", apiSrv.Addr, "broker", b.Name())
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown", "error", err)
	}

	<-runnerDone
	// Drain outstanding fill simulations so every accepted order reconciles
	// before the store closes.
	if err := b.Close(); err != nil {
		logger.Error("broker close", "error", err)
	}

	logPositions(logger, st, cfg.Trading.AccountID)
}

func logPositions(logger *slog.Logger, st store.PositionStore, accountID string) {
	positions, err := st.ListPositions(context.Background(), accountID)
	if err != nil {
		return
	}
	for _, p := range positions {
		logger.Info("open position at shutdown",
			"symbol", p.Symbol, "qty", p.Qty, "avg_entry", p.AvgEntryPrice)
	}
}
