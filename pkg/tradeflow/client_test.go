package tradeflow

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tradeflow/internal/domain"
	"tradeflow/internal/engine"
	"tradeflow/internal/httpapi"
	"tradeflow/internal/store"
)

func newClientFixture(t *testing.T) (*Client, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rm := engine.NewRiskManager(1000, 1e9, time.UTC)
	rec := engine.NewReconciler(st, st, nil, rm, logger)
	srv := httptest.NewServer(httpapi.NewServer(st, st, st, rec, "simulator", logger).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL), st
}

func TestClientAccountLifecycle(t *testing.T) {
	c, st := newClientFixture(t)
	ctx := context.Background()

	acct, err := c.CreateAccount(ctx)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if acct.AccountID == "" || acct.AccessToken == "" {
		t.Fatalf("account response missing ids: %+v", acct)
	}
	if _, err := st.GetAccount(ctx, acct.AccountID); err != nil {
		t.Errorf("account not persisted: %v", err)
	}
}

func TestClientStrategyToggle(t *testing.T) {
	c, _ := newClientFixture(t)
	ctx := context.Background()

	if err := c.SetStrategy(ctx, "sma-cross", false); err != nil {
		t.Fatalf("SetStrategy: %v", err)
	}
	toggles, err := c.ListStrategies(ctx)
	if err != nil {
		t.Fatalf("ListStrategies: %v", err)
	}
	if len(toggles) != 1 || toggles[0].Name != "sma-cross" || toggles[0].Enabled {
		t.Errorf("toggles = %+v, want one disabled sma-cross", toggles)
	}
}

func TestClientFillAndOrders(t *testing.T) {
	c, st := newClientFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	order := &domain.Order{
		ID:             "ord-1",
		IdempotencyKey: "key-1",
		AccountID:      "acct-1",
		Symbol:         "AAPL",
		Side:           domain.SideBuy,
		Size:           10,
		Price:          100,
		Status:         domain.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := st.CreateOrder(ctx, order); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := st.TransitionOrder(ctx, "ord-1",
		[]domain.OrderStatus{domain.OrderStatusPending}, domain.OrderStatusSubmitted); err != nil {
		t.Fatalf("TransitionOrder: %v", err)
	}

	err := c.PostFill(ctx, Fill{
		OrderID:   "ord-1",
		AccountID: "acct-1",
		Symbol:    "AAPL",
		Size:      10,
		Side:      "buy",
		Price:     100.5,
		FilledAt:  now,
	})
	if err != nil {
		t.Fatalf("PostFill: %v", err)
	}

	filled, err := c.ListOrders(ctx, "filled")
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(filled) != 1 || filled[0].ID != "ord-1" || filled[0].Side != "buy" {
		t.Fatalf("filled orders = %+v, want buy ord-1", filled)
	}

	if err := c.PostFill(ctx, Fill{OrderID: "no-such-order"}); err == nil {
		t.Error("PostFill for unknown order succeeded, want error")
	}
}

func TestClientHealth(t *testing.T) {
	c, _ := newClientFixture(t)

	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Status != "ok" || h.Broker != "simulator" {
		t.Errorf("health = %+v, want ok/simulator", h)
	}
}
