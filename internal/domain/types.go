// Package domain defines the core types shared across the trading pipeline:
// ticks, signals, orders, fills, positions, and account records.
package domain

import "time"

// Side is the direction of a signal, order, or fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the lifecycle state of a persisted order. Transitions are
// monotonic: pending → submitted → {filled, rejected}. No transition moves
// backward.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusRejected
}

// Tick is a single market data point. Ticks are transient: produced
// continuously by the feed, consumed once by the signal generator, never
// persisted.
type Tick struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
	AccountID string
}

// Signal is a directional trade intent emitted by a strategy. Two signals
// with identical (account, symbol, side, reason) are the same logical intent
// and must result in at most one order.
type Signal struct {
	Symbol      string  `json:"symbol"`
	Side        Side    `json:"side"`
	Size        int     `json:"size"`
	Reason      string  `json:"reason"`
	MarketPrice float64 `json:"market_price"`
}

// Order is the durable record of an accepted signal. At most one row exists
// per idempotency key for the lifetime of the system.
type Order struct {
	ID             string
	IdempotencyKey string
	AccountID      string
	Symbol         string
	Side           Side
	Size           int
	Price          float64 // market reference price at acceptance time
	Metadata       string  // originating signal as JSON, kept for audit
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Fill is the broker's confirmation that an order executed. The simulator
// produces exactly one per submitted order; delivery is at-least-once, so
// consumers must handle replays.
type Fill struct {
	OrderID   string    `json:"order_id"`
	AccountID string    `json:"account_id"`
	Symbol    string    `json:"symbol"`
	Size      int       `json:"size"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	FilledAt  time.Time `json:"filled_at"`
}

// Position is the open quantity held per account and symbol, with the
// volume-weighted entry price used to realize P&L on the closing leg.
type Position struct {
	AccountID     string
	Symbol        string
	Qty           int
	AvgEntryPrice float64
}

// Account is an opaque provisioned trading account. No real funds semantics.
type Account struct {
	ID          string    `json:"account_id"`
	AccessToken string    `json:"access_token"`
	CreatedAt   time.Time `json:"created_at"`
}

// StrategyToggle is the persisted on/off flag consulted by the runner before
// dispatching any signal to the order manager.
type StrategyToggle struct {
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}
