package feed

import (
	"context"
	"math/rand"
	"time"

	"tradeflow/internal/domain"
)

// Compile-time interface check.
var _ Provider = (*StubProvider)(nil)

// StubProvider emits deterministic-ish random-walk ticks for a fixed symbol
// set. Useful for paper runs and offline work.
type StubProvider struct {
	symbols   []string
	accountID string
	interval  time.Duration
	rng       *rand.Rand
	prices    map[string]float64
}

// NewStubProvider creates a stub feed that emits one tick per symbol every
// interval, random-walking each price from a 100.0 starting point.
func NewStubProvider(symbols []string, accountID string, interval time.Duration, seed int64) *StubProvider {
	if interval <= 0 {
		interval = time.Second
	}
	prices := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		prices[sym] = 100.0
	}
	return &StubProvider{
		symbols:   symbols,
		accountID: accountID,
		interval:  interval,
		rng:       rand.New(rand.NewSource(seed)),
		prices:    prices,
	}
}

// Name returns "stub".
func (p *StubProvider) Name() string { return "stub" }

// Run publishes random-walk ticks until ctx is cancelled.
func (p *StubProvider) Run(ctx context.Context, hub *Hub) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			for _, sym := range p.symbols {
				step := (p.rng.Float64() - 0.5) * 2.0 // ±1.0
				price := p.prices[sym] + step
				if price < 1 {
					price = 1
				}
				p.prices[sym] = price
				hub.Publish(domain.Tick{
					Symbol:    sym,
					Price:     price,
					Timestamp: now,
					AccountID: p.accountID,
				})
			}
		}
	}
}
