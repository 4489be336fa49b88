package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"tradeflow/internal/broker"
	"tradeflow/internal/domain"
	"tradeflow/internal/feed"
	"tradeflow/internal/metrics"
	"tradeflow/internal/store"
	"tradeflow/internal/strategy"
)

// Runner connects the tick feed to a strategy and dispatches its signals to
// the order manager. Each symbol gets its own subscription goroutine, so
// ticks stay ordered per instrument; strategy callbacks are serialized under
// a mutex because Strategy implementations keep unsynchronized state.
type Runner struct {
	hub       *feed.Hub
	strat     strategy.Strategy
	toggles   store.StrategyStore
	engine    *Engine
	accountID string
	logger    *slog.Logger

	mu sync.Mutex // serializes strat.OnTick across symbol goroutines
}

// NewRunner creates a Runner that trades on behalf of accountID.
func NewRunner(hub *feed.Hub, strat strategy.Strategy, toggles store.StrategyStore, eng *Engine, accountID string, logger *slog.Logger) *Runner {
	return &Runner{
		hub:       hub,
		strat:     strat,
		toggles:   toggles,
		engine:    eng,
		accountID: accountID,
		logger:    logger,
	}
}

// Run subscribes to each symbol and processes ticks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context, symbols []string) {
	var wg sync.WaitGroup
	for _, symbol := range symbols {
		ch, cancel := r.hub.Subscribe(symbol)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case tick, ok := <-ch:
					if !ok {
						return
					}
					r.onTick(ctx, tick)
				}
			}
		}()
	}
	wg.Wait()
}

func (r *Runner) onTick(ctx context.Context, tick domain.Tick) {
	r.mu.Lock()
	sig := r.strat.OnTick(ctx, tick)
	r.mu.Unlock()
	if sig == nil {
		return
	}
	metrics.SignalsTotal.WithLabelValues(sig.Symbol, string(sig.Side)).Inc()

	if !r.enabled(ctx) {
		r.logger.Debug("strategy disabled, dropping signal",
			"strategy", r.strat.Name(), "symbol", sig.Symbol, "side", sig.Side)
		return
	}

	accountID := tick.AccountID
	if accountID == "" {
		accountID = r.accountID
	}

	_, err := r.engine.SubmitOrder(ctx, accountID, sig)
	switch {
	case err == nil:
	case errors.Is(err, broker.ErrRejected):
		r.logger.Warn("broker rejected order", "symbol", sig.Symbol, "side", sig.Side)
	default:
		var rerr *RiskError
		if errors.As(err, &rerr) {
			r.logger.Warn("signal rejected by risk",
				"kind", rerr.Kind, "symbol", sig.Symbol, "side", sig.Side, "size", sig.Size)
			return
		}
		r.logger.Error("submitting order", "symbol", sig.Symbol, "side", sig.Side, "error", err)
	}
}

// enabled consults the persisted toggle for this strategy. A strategy with
// no toggle row yet is treated as enabled.
func (r *Runner) enabled(ctx context.Context) bool {
	toggle, err := r.toggles.GetStrategy(ctx, r.strat.Name())
	if errors.Is(err, store.ErrNotFound) {
		return true
	}
	if err != nil {
		r.logger.Error("reading strategy toggle", "strategy", r.strat.Name(), "error", err)
		return false
	}
	return toggle.Enabled
}
