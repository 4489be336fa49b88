package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tradeflow/internal/domain"
	"tradeflow/internal/metrics"
	"tradeflow/internal/store"
)

// ErrFillMismatch is returned when a delivery's identifying fields disagree
// with the order row it claims to fill.
var ErrFillMismatch = errors.New("fill does not match order")

// ErrOrderNotFillable is returned for a fill against an order whose status
// admits no fill, such as a rejected order.
var ErrOrderNotFillable = errors.New("order cannot fill in its current status")

// Reconciler applies fill events to order, position, and risk state. Fills
// match orders strictly by order id and may arrive out of submission order
// or more than once; applying the same fill twice is a no-op.
type Reconciler struct {
	orders  store.OrderStore
	fills   store.FillApplier
	journal *store.FillJournal
	risk    *RiskManager
	logger  *slog.Logger
}

// NewReconciler creates a Reconciler wired with the given dependencies. The
// journal may be nil to skip audit logging.
func NewReconciler(orders store.OrderStore, fills store.FillApplier, journal *store.FillJournal, risk *RiskManager, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		orders:  orders,
		fills:   fills,
		journal: journal,
		risk:    risk,
		logger:  logger,
	}
}

// HandleFill transitions the matched order to filled and updates the
// account's position and the day's realized loss. The transition and the
// position update commit atomically through the FillApplier, so a fill that
// fails partway leaves the order re-fillable by the broker's redelivery.
// A fill for an order that is already filled returns nil without side
// effects; a fill for an unknown order id is an error wrapping
// store.ErrNotFound.
func (r *Reconciler) HandleFill(ctx context.Context, fill domain.Fill) error {
	order, err := r.orders.GetOrder(ctx, fill.OrderID)
	if err != nil {
		return fmt.Errorf("fill for order %s: %w", fill.OrderID, err)
	}
	if order.Status == domain.OrderStatusFilled {
		return nil // replayed delivery
	}
	if err := matchOrder(order, fill); err != nil {
		return err
	}

	applied, entryPrice, err := r.fills.ApplyFill(ctx, fill,
		[]domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusSubmitted})
	if err != nil {
		return fmt.Errorf("applying fill for order %s: %w", fill.OrderID, err)
	}
	if !applied {
		// A concurrent delivery won the transition, or the order was
		// rejected before the fill arrived.
		current, err := r.orders.GetOrder(ctx, fill.OrderID)
		if err != nil {
			return err
		}
		if current.Status == domain.OrderStatusFilled {
			return nil
		}
		return fmt.Errorf("order %s in status %s: %w", fill.OrderID, current.Status, ErrOrderNotFillable)
	}

	r.risk.OnFill(fill, entryPrice)

	if r.journal != nil {
		if err := r.journal.Append(ctx, fill); err != nil {
			// The fill is applied; a journal failure must not unwind it.
			r.logger.Error("journaling fill", "order_id", fill.OrderID, "error", err)
		}
	}

	metrics.FillsTotal.WithLabelValues(fill.Symbol, string(fill.Side)).Inc()
	r.logger.Info("fill reconciled",
		"order_id", fill.OrderID,
		"symbol", fill.Symbol,
		"side", fill.Side,
		"size", fill.Size,
		"price", fill.Price)
	return nil
}

// matchOrder rejects deliveries whose account, symbol, side, or size
// disagree with the matched order row. The price is allowed to differ from
// the order's reference price (slippage).
func matchOrder(order *domain.Order, fill domain.Fill) error {
	if fill.AccountID != order.AccountID || fill.Symbol != order.Symbol ||
		fill.Side != order.Side || fill.Size != order.Size {
		return fmt.Errorf("order %s is %s %d %s for %s, fill is %s %d %s for %s: %w",
			order.ID, order.Side, order.Size, order.Symbol, order.AccountID,
			fill.Side, fill.Size, fill.Symbol, fill.AccountID, ErrFillMismatch)
	}
	return nil
}
