// Package engine coordinates order management, risk checking, and fill
// reconciliation across the trading pipeline.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tradeflow/internal/broker"
	"tradeflow/internal/domain"
	"tradeflow/internal/metrics"
	"tradeflow/internal/store"
)

// IdempotencyKey derives the deterministic key for a signal's logical
// intent. Two signals with the same account, symbol, side, and reason map to
// the same key and therefore to at most one order, across processes and
// restarts.
func IdempotencyKey(accountID string, sig *domain.Signal) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s", accountID, sig.Symbol, sig.Side, sig.Reason)
	return hex.EncodeToString(h.Sum(nil))
}

// Engine is the order manager. It turns cleared signals into persisted
// orders exactly once per idempotency key and forwards them to the broker.
type Engine struct {
	broker broker.Broker
	orders store.OrderStore
	risk   *RiskManager
	logger *slog.Logger
}

// NewEngine creates a new Engine wired with the given dependencies.
func NewEngine(b broker.Broker, orders store.OrderStore, risk *RiskManager, logger *slog.Logger) *Engine {
	return &Engine{
		broker: b,
		orders: orders,
		risk:   risk,
		logger: logger,
	}
}

// SubmitOrder processes a signal for the given account. The sequence is:
// dedupe on the idempotency key, risk check, persist as pending, submit to
// the broker, transition to submitted. A duplicate signal returns the
// existing order without touching the broker; concurrent duplicates are
// resolved by the store's atomic insert, and the loser of that race also
// skips the broker.
func (e *Engine) SubmitOrder(ctx context.Context, accountID string, sig *domain.Signal) (*domain.Order, error) {
	key := IdempotencyKey(accountID, sig)

	existing, err := e.orders.GetOrderByKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up idempotency key: %w", err)
	}

	if err := e.risk.Check(sig); err != nil {
		var rerr *RiskError
		if errors.As(err, &rerr) {
			metrics.RiskRejections.WithLabelValues(rerr.Kind).Inc()
		}
		return nil, err
	}

	meta, err := json.Marshal(sig)
	if err != nil {
		return nil, fmt.Errorf("encoding signal metadata: %w", err)
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:             uuid.NewString(),
		IdempotencyKey: key,
		AccountID:      accountID,
		Symbol:         sig.Symbol,
		Side:           sig.Side,
		Size:           sig.Size,
		Price:          sig.MarketPrice,
		Metadata:       string(meta),
		Status:         domain.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := e.orders.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("persisting order: %w", err)
	}
	if !created {
		// Lost the insert race: another call persisted this intent first.
		// Return its row; only the winner talks to the broker.
		return e.orders.GetOrderByKey(ctx, key)
	}

	if _, err := e.broker.SubmitOrder(ctx, order); err != nil {
		if errors.Is(err, broker.ErrRejected) {
			if _, terr := e.orders.TransitionOrder(ctx, order.ID,
				[]domain.OrderStatus{domain.OrderStatusPending}, domain.OrderStatusRejected); terr != nil {
				e.logger.Error("marking order rejected", "order_id", order.ID, "error", terr)
			}
			order.Status = domain.OrderStatusRejected
			return order, err
		}
		// Transient broker failure: the row stays pending for an operator
		// to resubmit or expire.
		return nil, fmt.Errorf("submitting order %s: %w", order.ID, err)
	}

	if _, err := e.orders.TransitionOrder(ctx, order.ID,
		[]domain.OrderStatus{domain.OrderStatusPending}, domain.OrderStatusSubmitted); err != nil {
		return nil, fmt.Errorf("marking order submitted: %w", err)
	}
	order.Status = domain.OrderStatusSubmitted

	metrics.OrdersSubmitted.WithLabelValues(order.Symbol, string(order.Side)).Inc()
	e.logger.Info("order submitted",
		"order_id", order.ID,
		"account_id", accountID,
		"symbol", order.Symbol,
		"side", order.Side,
		"size", order.Size,
		"broker", e.broker.Name())
	return order, nil
}
