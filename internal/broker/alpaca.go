package broker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"tradeflow/internal/domain"
	"tradeflow/internal/util"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

// alpacaRequestsPerMinute is Alpaca's documented REST rate limit.
const alpacaRequestsPerMinute = 200

// AlpacaBroker implements the Broker interface using the Alpaca brokerage
// API. Orders are submitted as market orders with the idempotency key as the
// client order id, so a resubmission after a crash dedupes on Alpaca's side
// as well.
type AlpacaBroker struct {
	client  *alpaca.Client
	limiter *util.RateLimiter
	logger  *slog.Logger
}

// NewAlpacaBroker creates a new AlpacaBroker configured with the given
// credentials and API endpoint.
func NewAlpacaBroker(apiKey, apiSecret, baseURL string, logger *slog.Logger) *AlpacaBroker {
	return &AlpacaBroker{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		limiter: util.NewRateLimiter(alpacaRequestsPerMinute),
		logger:  logger,
	}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string {
	return "alpaca"
}

// SubmitOrder sends a market order to the Alpaca API for execution.
func (b *AlpacaBroker) SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	side := alpaca.Buy
	if order.Side == domain.SideSell {
		side = alpaca.Sell
	}
	qty := decimal.NewFromInt(int64(order.Size))

	// Alpaca caps client_order_id at 48 characters; the truncated sha256
	// prefix still dedupes resubmissions on their side.
	clientOrderID := order.IdempotencyKey
	if len(clientOrderID) > 48 {
		clientOrderID = clientOrderID[:48]
	}

	placed, err := b.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        order.Symbol,
		Qty:           &qty,
		Side:          side,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: clientOrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("PlaceOrder %s %s: %w", order.Side, order.Symbol, err)
	}
	if placed.Status == "rejected" {
		return nil, ErrRejected
	}

	b.logger.Info("order placed",
		"broker_order_id", placed.ID,
		"symbol", order.Symbol,
		"side", order.Side,
		"size", order.Size)
	return order, nil
}

// Close is a no-op; the Alpaca client holds no draining state.
func (b *AlpacaBroker) Close() error {
	return nil
}
