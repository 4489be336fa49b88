// Package store defines storage interfaces for persisting and retrieving
// domain objects such as orders, positions, accounts, and strategy toggles.
package store

import (
	"context"
	"errors"

	"tradeflow/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// OrderStore persists and retrieves order records. The idempotency key is
// unique for the lifetime of the store: CreateOrder never produces a second
// row for a key that already exists.
type OrderStore interface {
	// CreateOrder inserts a new order. It returns false with a nil error when
	// an order with the same idempotency key already exists; the insert and
	// the existence check are a single atomic operation.
	CreateOrder(ctx context.Context, order *domain.Order) (bool, error)

	// GetOrder retrieves a single order by its ID.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// GetOrderByKey retrieves a single order by its idempotency key.
	GetOrderByKey(ctx context.Context, key string) (*domain.Order, error)

	// ListOrders returns all orders matching the given status, or every order
	// when status is empty.
	ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)

	// TransitionOrder moves an order from one of the given statuses to the
	// target status. It returns false when the order exists but is not in any
	// of the from statuses, so callers can distinguish a duplicate transition
	// from a missing order.
	TransitionOrder(ctx context.Context, id string, from []domain.OrderStatus, to domain.OrderStatus) (bool, error)
}

// PositionStore persists and retrieves position records per account.
type PositionStore interface {
	// SavePosition inserts or updates the position for an account and symbol.
	SavePosition(ctx context.Context, pos *domain.Position) error

	// GetPosition retrieves the current position for an account and symbol.
	GetPosition(ctx context.Context, accountID, symbol string) (*domain.Position, error)

	// ListPositions returns all open positions for an account.
	ListPositions(ctx context.Context, accountID string) ([]domain.Position, error)

	// DeletePosition removes the position for an account and symbol.
	DeletePosition(ctx context.Context, accountID, symbol string) error
}

// FillApplier atomically marks an order filled and folds the fill into the
// account's position. Fills arrive concurrently from the broker's delivery
// pool, so the transition and the position read-modify-write must commit or
// fail as one unit.
type FillApplier interface {
	// ApplyFill transitions the order to filled when its current status is
	// in the from set and, in the same transaction, updates the position for
	// the fill's account and symbol. It returns whether the transition
	// applied and the average entry price in effect before the fill. When
	// applied is false nothing was changed.
	ApplyFill(ctx context.Context, fill domain.Fill, from []domain.OrderStatus) (applied bool, entryPrice float64, err error)
}

// StrategyStore persists the per-strategy enabled flags consulted by the
// runner before dispatching signals.
type StrategyStore interface {
	// SetStrategy inserts or updates the toggle for a strategy name.
	SetStrategy(ctx context.Context, name string, enabled bool) error

	// GetStrategy retrieves the toggle for a strategy name.
	GetStrategy(ctx context.Context, name string) (*domain.StrategyToggle, error)

	// ListStrategies returns all persisted toggles.
	ListStrategies(ctx context.Context) ([]domain.StrategyToggle, error)
}

// AccountStore persists opaque provisioned accounts.
type AccountStore interface {
	// CreateAccount inserts a new account record.
	CreateAccount(ctx context.Context, account *domain.Account) error

	// GetAccount retrieves an account by its ID.
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
}
