// tradeflow-replay runs the full pipeline over a recorded tick file and
// prints a run summary. The broker is always the simulator.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"tradeflow/internal/broker"
	"tradeflow/internal/config"
	"tradeflow/internal/domain"
	"tradeflow/internal/engine"
	"tradeflow/internal/feed"
	"tradeflow/internal/store"
	"tradeflow/internal/strategy/builtins"
	"tradeflow/internal/util"
)

func main() {
	_ = godotenv.Load()

	tickFile := flag.String("ticks", "", "CSV tick file (timestamp,symbol,price)")
	delay := flag.Duration("delay", 0, "inter-tick delay (0 replays at full speed)")
	flag.Parse()

	if *tickFile == "" {
		fmt.Fprintln(os.Stderr, "usage: tradeflow-replay -ticks <file.csv> [-delay 10ms]")
		os.Exit(1)
	}

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

	sim := broker.NewSimulatorBroker(broker.SimulatorConfig{
		MinLatency:         time.Duration(cfg.Broker.MinLatencyMs) * time.Millisecond,
		MaxLatency:         time.Duration(cfg.Broker.MaxLatencyMs) * time.Millisecond,
		RejectRate:         cfg.Broker.RejectRate,
		SlippageBps:        cfg.Broker.SlippageBps,
		CommissionBps:      cfg.Broker.CommissionBps,
		MaxConcurrentFills: cfg.Broker.MaxConcurrentFills,
	}, reconciler.HandleFill, logger)

	eng := engine.NewEngine(sim, st, risk, logger)
	strat := builtins.NewSMACross(cfg.Trading.ShortWindow, cfg.Trading.LongWindow, cfg.Trading.OrderSize)

	hub := feed.NewHub(cfg.Feed.BufferSize)
	provider := feed.NewReplayProvider(*tickFile, cfg.Trading.AccountID, *delay)
	runner := engine.NewRunner(hub, strat, st, eng, cfg.Trading.AccountID, logger)

	ctx := context.Background()
	runnerDone := make(chan struct{})
	go func() {
		runner.Run(ctx, cfg.Feed.Symbols)
		close(runnerDone)
	}()

	start := time.Now()
	if err := provider.Run(ctx, hub); err != nil {
		log.Fatalf("replay: %v", err)
	}
	// Let in-flight ticks drain through the subscribers before closing.
	time.Sleep(100 * time.Millisecond)
	hub.Close()
	<-runnerDone

	// Every accepted order gets its fill before the summary.
	if err := sim.Close(); err != nil {
		log.Fatalf("draining simulator: %v", err)
	}

	printSummary(ctx, st, risk, time.Since(start), cfg.Trading.AccountID)
}

func printSummary(ctx context.Context, st *store.SQLiteStore, risk *engine.RiskManager, elapsed time.Duration, accountID string) {
	counts := make(map[domain.OrderStatus]int)
	for _, status := range []domain.OrderStatus{
		domain.OrderStatusPending, domain.OrderStatusSubmitted,
		domain.OrderStatusFilled, domain.OrderStatusRejected,
	} {
		orders, err := st.ListOrders(ctx, status)
		if err != nil {
			log.Fatalf("listing orders: %v", err)
		}
		counts[status] = len(orders)
	}

	fmt.Printf("replay finished in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  orders filled:    %d\n", counts[domain.OrderStatusFilled])
	fmt.Printf("  orders rejected:  %d\n", counts[domain.OrderStatusRejected])
	fmt.Printf("  orders pending:   %d\n", counts[domain.OrderStatusPending])
	fmt.Printf("  orders submitted: %d\n", counts[domain.OrderStatusSubmitted])
	fmt.Printf("  realized loss:    %.2f\n", risk.DailyRealizedLoss())

	positions, err := st.ListPositions(ctx, accountID)
	if err == nil && len(positions) > 0 {
		fmt.Println("  open positions:")
		for _, p := range positions {
			fmt.Printf("    %-6s qty=%-5d avg_entry=%.4f\n", p.Symbol, p.Qty, p.AvgEntryPrice)
		}
	}
}
