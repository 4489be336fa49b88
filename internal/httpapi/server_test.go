package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tradeflow/internal/domain"
	"tradeflow/internal/engine"
	"tradeflow/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rm := engine.NewRiskManager(1000, 1e9, time.UTC)
	rec := engine.NewReconciler(st, st, nil, rm, logger)
	srv := httptest.NewServer(NewServer(st, st, st, rec, "simulator", logger).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestCreateAccount(t *testing.T) {
	srv, st := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/accounts", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/v1/accounts: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	body := decode[AccountResponse](t, resp)
	if body.AccountID == "" || body.AccessToken == "" {
		t.Fatalf("response missing ids: %+v", body)
	}

	if _, err := st.GetAccount(context.Background(), body.AccountID); err != nil {
		t.Errorf("created account not persisted: %v", err)
	}
}

func TestStrategyToggle(t *testing.T) {
	srv, st := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/strategies/sma-cross",
		bytes.NewBufferString(`{"enabled":false}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT strategy: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	toggle, err := st.GetStrategy(context.Background(), "sma-cross")
	if err != nil {
		t.Fatalf("GetStrategy: %v", err)
	}
	if toggle.Enabled {
		t.Error("toggle still enabled after disable")
	}

	listResp, err := http.Get(srv.URL + "/api/v1/strategies")
	if err != nil {
		t.Fatalf("GET strategies: %v", err)
	}
	list := decode[StrategiesResponse](t, listResp)
	if len(list.Strategies) != 1 || list.Strategies[0].Name != "sma-cross" || list.Strategies[0].Enabled {
		t.Errorf("strategies = %+v, want one disabled sma-cross", list.Strategies)
	}
}

func seedOrder(t *testing.T, st *store.SQLiteStore, id string, status domain.OrderStatus) {
	t.Helper()
	now := time.Now().UTC()
	order := &domain.Order{
		ID:             id,
		IdempotencyKey: "key-" + id,
		AccountID:      "acct-1",
		Symbol:         "AAPL",
		Side:           domain.SideBuy,
		Size:           10,
		Price:          100,
		Status:         domain.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := st.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if status != domain.OrderStatusPending {
		if _, err := st.TransitionOrder(context.Background(), id,
			[]domain.OrderStatus{domain.OrderStatusPending}, status); err != nil {
			t.Fatalf("TransitionOrder: %v", err)
		}
	}
}

func TestFillWebhook(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(t, st, "ord-1", domain.OrderStatusSubmitted)

	fill := domain.Fill{
		OrderID:   "ord-1",
		AccountID: "acct-1",
		Symbol:    "AAPL",
		Size:      10,
		Side:      domain.SideBuy,
		Price:     100.5,
		FilledAt:  time.Now().UTC(),
	}
	payload, _ := json.Marshal(fill)

	post := func() *http.Response {
		resp, err := http.Post(srv.URL+"/api/v1/fills", "application/json", bytes.NewReader(payload))
		if err != nil {
			t.Fatalf("POST fill: %v", err)
		}
		return resp
	}

	resp := post()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	order, err := st.GetOrder(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Status != domain.OrderStatusFilled {
		t.Errorf("status = %q, want filled", order.Status)
	}

	// Replayed delivery is accepted idempotently.
	resp = post()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("replay status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestFillWebhookUnknownOrder(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/fills", "application/json",
		bytes.NewBufferString(`{"order_id":"no-such-order"}`))
	if err != nil {
		t.Fatalf("POST fill: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestFillWebhookBadBody(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, body := range []string{"not json", "{}"} {
		resp, err := http.Post(srv.URL+"/api/v1/fills", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("POST fill: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestFillWebhookRejectedOrderConflict(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(t, st, "ord-1", domain.OrderStatusRejected)

	payload, _ := json.Marshal(domain.Fill{
		OrderID: "ord-1", AccountID: "acct-1", Symbol: "AAPL",
		Size: 10, Side: domain.SideBuy, Price: 100, FilledAt: time.Now().UTC(),
	})
	resp, err := http.Post(srv.URL+"/api/v1/fills", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST fill: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestFillWebhookMismatchedFill(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(t, st, "ord-1", domain.OrderStatusSubmitted)

	// Size disagrees with the order row.
	payload, _ := json.Marshal(domain.Fill{
		OrderID: "ord-1", AccountID: "acct-1", Symbol: "AAPL",
		Size: 99, Side: domain.SideBuy, Price: 100, FilledAt: time.Now().UTC(),
	})
	resp, err := http.Post(srv.URL+"/api/v1/fills", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST fill: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	order, err := st.GetOrder(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Status != domain.OrderStatusSubmitted {
		t.Errorf("status = %q after mismatched fill, want submitted", order.Status)
	}
}

func TestFillWebhookStoreFailure(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(t, st, "ord-1", domain.OrderStatusSubmitted)

	payload, _ := json.Marshal(domain.Fill{
		OrderID: "ord-1", AccountID: "acct-1", Symbol: "AAPL",
		Size: 10, Side: domain.SideBuy, Price: 100, FilledAt: time.Now().UTC(),
	})

	// A broken store is a server fault, not a conflict.
	st.Close()
	resp, err := http.Post(srv.URL+"/api/v1/fills", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST fill: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestListOrdersByStatus(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(t, st, "ord-1", domain.OrderStatusPending)
	seedOrder(t, st, "ord-2", domain.OrderStatusSubmitted)
	seedOrder(t, st, "ord-3", domain.OrderStatusSubmitted)

	resp, err := http.Get(srv.URL + "/api/v1/orders?status=submitted")
	if err != nil {
		t.Fatalf("GET orders: %v", err)
	}
	body := decode[OrdersResponse](t, resp)
	if len(body.Orders) != 2 {
		t.Fatalf("got %d submitted orders, want 2", len(body.Orders))
	}

	resp, err = http.Get(srv.URL + "/api/v1/orders")
	if err != nil {
		t.Fatalf("GET orders: %v", err)
	}
	body = decode[OrdersResponse](t, resp)
	if len(body.Orders) != 3 {
		t.Errorf("got %d orders without filter, want 3", len(body.Orders))
	}

	resp, err = http.Get(srv.URL + "/api/v1/orders?status=bogus")
	if err != nil {
		t.Fatalf("GET orders: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus status filter: status = %d, want 400", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body := decode[HealthResponse](t, resp)
	if body.Status != "ok" || body.Broker != "simulator" {
		t.Errorf("health = %+v, want ok/simulator", body)
	}
}
