// Package httpapi provides the HTTP command surface of the trading pipeline:
// account provisioning, strategy toggles, the fill webhook, and order
// listing for audit.
package httpapi

import (
	"time"

	"tradeflow/internal/domain"
)

// AccountResponse is returned by account creation.
type AccountResponse struct {
	AccountID   string `json:"account_id"`
	AccessToken string `json:"access_token"`
}

// ToggleRequest is the body of a strategy toggle update.
type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// ToggleResponse mirrors a persisted strategy toggle.
type ToggleResponse struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// StrategiesResponse lists all persisted toggles.
type StrategiesResponse struct {
	Strategies []ToggleResponse `json:"strategies"`
}

// OrderJSON is the JSON representation of a persisted order.
type OrderJSON struct {
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

// OrdersResponse lists orders matching a status filter.
type OrdersResponse struct {
	Orders []OrderJSON `json:"orders"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status string `json:"status"`
	Broker string `json:"broker"`
}

func convertOrder(o *domain.Order) OrderJSON {
	return OrderJSON{
		ID:        o.ID,
		AccountID: o.AccountID,
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		Size:      o.Size,
		Price:     o.Price,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}
