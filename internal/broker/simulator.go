package broker

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"tradeflow/internal/domain"
	"tradeflow/internal/metrics"
	"tradeflow/internal/util"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// ErrClosed is returned by SubmitOrder after Close has been called.
var ErrClosed = errors.New("broker: simulator closed")

// SimulatorConfig holds the tunables for the fill simulator.
type SimulatorConfig struct {
	MinLatency         time.Duration // earliest a fill can arrive
	MaxLatency         time.Duration // latest a fill can arrive
	RejectRate         float64       // probability in [0,1] of synchronous rejection
	SlippageBps        float64       // adverse move applied to the fill price
	CommissionBps      float64       // commission folded into the fill price
	MaxConcurrentFills int           // bound on in-flight fill simulations
}

// SimulatorBroker implements the Broker interface for paper trading. Every
// accepted order produces exactly one fill, delivered asynchronously through
// the FillHandler after a randomized latency. Fill simulations run on a
// bounded pool so Close can drain them deterministically.
type SimulatorBroker struct {
	cfg     SimulatorConfig
	handler FillHandler
	logger  *slog.Logger

	sem  chan struct{}
	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	rng    *rand.Rand
	closed bool
}

// NewSimulatorBroker creates a SimulatorBroker that delivers fills to
// handler. A zero MaxConcurrentFills defaults to 16.
func NewSimulatorBroker(cfg SimulatorConfig, handler FillHandler, logger *slog.Logger) *SimulatorBroker {
	if cfg.MaxConcurrentFills <= 0 {
		cfg.MaxConcurrentFills = 16
	}
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency
	}
	return &SimulatorBroker{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		sem:     make(chan struct{}, cfg.MaxConcurrentFills),
		done:    make(chan struct{}),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// SubmitOrder acknowledges the order and schedules its fill simulation. It
// returns ErrRejected with probability RejectRate, and ErrClosed after Close.
func (b *SimulatorBroker) SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	select {
	case <-b.done:
		return nil, ErrClosed
	default:
	}

	if b.roll() < b.cfg.RejectRate {
		metrics.BrokerRejections.Inc()
		return nil, ErrRejected
	}

	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return nil, ErrClosed
	}

	// The closed check and the Add share the mutex so no goroutine is added
	// to the group after Close has started waiting on it.
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.sem
		return nil, ErrClosed
	}
	b.wg.Add(1)
	b.mu.Unlock()
	go b.simulateFill(*order)

	return order, nil
}

// Close drains all outstanding fill simulations and returns once every
// accepted order has had its fill delivered.
func (b *SimulatorBroker) Close() error {
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.done)
	})
	b.wg.Wait()
	return nil
}

func (b *SimulatorBroker) simulateFill(order domain.Order) {
	defer b.wg.Done()
	defer func() { <-b.sem }()

	// Close short-circuits the latency so shutdown drains instead of
	// waiting out every simulated delay.
	select {
	case <-time.After(b.latency()):
	case <-b.done:
	}

	fill := domain.Fill{
		OrderID:   order.ID,
		AccountID: order.AccountID,
		Symbol:    order.Symbol,
		Size:      order.Size,
		Side:      order.Side,
		Price:     b.fillPrice(order),
		FilledAt:  time.Now().UTC(),
	}

	// The submitting request's context is long gone by the time the fill
	// lands; delivery gets its own.
	ctx := context.Background()
	err := util.Retry(ctx, 3, 200*time.Millisecond, func() error {
		return b.handler(ctx, fill)
	})
	if err != nil {
		metrics.FillDeliveryFailures.Inc()
		b.logger.Error("fill delivery failed",
			"order_id", fill.OrderID,
			"symbol", fill.Symbol,
			"error", err)
	}
}

// fillPrice applies slippage and commission to the order's reference price.
// Both always move the price against the trader.
func (b *SimulatorBroker) fillPrice(order domain.Order) float64 {
	adverse := (b.cfg.SlippageBps + b.cfg.CommissionBps) / 10000.0
	if order.Side == domain.SideBuy {
		return order.Price * (1 + adverse)
	}
	return order.Price * (1 - adverse)
}

func (b *SimulatorBroker) latency() time.Duration {
	span := b.cfg.MaxLatency - b.cfg.MinLatency
	if span <= 0 {
		return b.cfg.MinLatency
	}
	b.mu.Lock()
	d := time.Duration(b.rng.Int63n(int64(span)))
	b.mu.Unlock()
	return b.cfg.MinLatency + d
}

func (b *SimulatorBroker) roll() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Float64()
}
