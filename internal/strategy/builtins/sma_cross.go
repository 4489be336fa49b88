// Package builtins provides built-in strategy implementations that ship with
// the tradeflow pipeline.
package builtins

import (
	"context"
	"fmt"

	"tradeflow/internal/domain"
	"tradeflow/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It emits a
// buy signal when the short-period SMA crosses above the long-period SMA, and
// a sell signal when it crosses below. A tri-state regime (-1, 0, +1) per
// symbol suppresses re-emission while the regime is unchanged, so each
// crossing direction yields at most one signal.
type SMACross struct {
	shortPeriod int
	longPeriod  int
	orderSize   int
	series      map[string]*crossSeries
}

type crossSeries struct {
	prices     []float64 // trailing window, capped at longPeriod entries
	lastSignal int       // -1 bearish, 0 unset, +1 bullish
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods. Emitted signals carry orderSize as their size.
func NewSMACross(short, long, orderSize int) *SMACross {
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
		orderSize:   orderSize,
		series:      make(map[string]*crossSeries),
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// OnTick appends the tick price to the symbol's history and evaluates the
// crossover rule. It returns nil during warm-up (fewer than longPeriod
// prices) and while the regime is unchanged.
func (s *SMACross) OnTick(_ context.Context, tick domain.Tick) *domain.Signal {
	cs := s.series[tick.Symbol]
	if cs == nil {
		cs = &crossSeries{prices: make([]float64, 0, s.longPeriod)}
		s.series[tick.Symbol] = cs
	}

	cs.prices = append(cs.prices, tick.Price)
	if len(cs.prices) > s.longPeriod {
		cs.prices = cs.prices[len(cs.prices)-s.longPeriod:]
	}
	if len(cs.prices) < s.longPeriod {
		return nil // warm-up
	}

	shortMA := mean(cs.prices[len(cs.prices)-s.shortPeriod:])
	longMA := mean(cs.prices)

	switch {
	case shortMA > longMA && cs.lastSignal <= 0:
		cs.lastSignal = +1
		return s.signal(tick, domain.SideBuy, shortMA, longMA)
	case shortMA < longMA && cs.lastSignal >= 0:
		cs.lastSignal = -1
		return s.signal(tick, domain.SideSell, shortMA, longMA)
	}
	return nil
}

func (s *SMACross) signal(tick domain.Tick, side domain.Side, shortMA, longMA float64) *domain.Signal {
	return &domain.Signal{
		Symbol:      tick.Symbol,
		Side:        side,
		Size:        s.orderSize,
		Reason:      fmt.Sprintf("sma-cross %d/%d short=%.4f long=%.4f", s.shortPeriod, s.longPeriod, shortMA, longMA),
		MarketPrice: tick.Price,
	}
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
