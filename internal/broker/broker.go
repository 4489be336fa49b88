// Package broker defines the Broker interface and provides implementations
// for executing orders: an asynchronous fill simulator for paper trading and
// an adapter for the Alpaca brokerage API.
package broker

import (
	"context"
	"errors"

	"tradeflow/internal/domain"
)

// ErrRejected is returned by SubmitOrder when the brokerage refuses the
// order. Callers should transition the order to rejected rather than retry.
var ErrRejected = errors.New("broker: order rejected")

// FillHandler receives execution confirmations. Delivery is at-least-once;
// implementations must tolerate replays of the same fill.
type FillHandler func(ctx context.Context, fill domain.Fill) error

// Broker abstracts brokerage operations for order execution. Implementations
// acknowledge synchronously; fills arrive later through a FillHandler or an
// external webhook.
type Broker interface {
	// Name returns the broker identifier (e.g. "alpaca", "simulator").
	Name() string

	// SubmitOrder sends an order to the brokerage for execution and returns
	// the acknowledged order.
	SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)

	// Close releases broker resources. For the simulator it drains all
	// outstanding fill simulations before returning.
	Close() error
}
