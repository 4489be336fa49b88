package tradeflow

import "time"

// Account is returned by CreateAccount.
type Account struct {
	AccountID   string `json:"account_id"`
	AccessToken string `json:"access_token"`
}

// StrategyToggle is a persisted per-strategy enabled flag.
type StrategyToggle struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Fill is the payload delivered to the fill webhook. Side is "buy" or
// "sell".
type Fill struct {
	OrderID   string    `json:"order_id"`
	AccountID string    `json:"account_id"`
	Symbol    string    `json:"symbol"`
	Size      int       `json:"size"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	FilledAt  time.Time `json:"filled_at"`
}

// Order mirrors a persisted order row. Status is one of pending, submitted,
// filled, rejected.
type Order struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Size      int       `json:"size"`
	Price     float64   `json:"price"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Health is the health check payload.
type Health struct {
	Status string `json:"status"`
	Broker string `json:"broker"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type strategiesResponse struct {
	Strategies []StrategyToggle `json:"strategies"`
}

type ordersResponse struct {
	Orders []Order `json:"orders"`
}
