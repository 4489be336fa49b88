package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tradeflow/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func testOrder(key string) *domain.Order {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Order{
		ID:             "ord-" + key,
		IdempotencyKey: key,
		AccountID:      "acct-1",
		Symbol:         "AAPL",
		Side:           domain.SideBuy,
		Size:           10,
		Price:          185.5,
		Metadata:       `{"reason":"test"}`,
		Status:         domain.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestCreateOrderIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateOrder(ctx, testOrder("k1"))
	if err != nil {
		t.Fatalf("CreateOrder (first): %v", err)
	}
	if !created {
		t.Fatal("first CreateOrder returned created=false")
	}

	// Same key, different ID: must not create a second row.
	dup := testOrder("k1")
	dup.ID = "ord-other"
	created, err = s.CreateOrder(ctx, dup)
	if err != nil {
		t.Fatalf("CreateOrder (duplicate): %v", err)
	}
	if created {
		t.Fatal("duplicate CreateOrder returned created=true")
	}

	orders, err := s.ListOrders(ctx, "")
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("ListOrders returned %d orders, want 1", len(orders))
	}

	got, err := s.GetOrderByKey(ctx, "k1")
	if err != nil {
		t.Fatalf("GetOrderByKey: %v", err)
	}
	if got.ID != "ord-k1" {
		t.Errorf("surviving order ID = %q, want %q", got.ID, "ord-k1")
	}
}

func TestGetOrderNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetOrder(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOrder error = %v, want ErrNotFound", err)
	}
}

func TestTransitionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := testOrder("k2")
	if _, err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	ok, err := s.TransitionOrder(ctx, o.ID, []domain.OrderStatus{domain.OrderStatusPending}, domain.OrderStatusSubmitted)
	if err != nil {
		t.Fatalf("TransitionOrder pending→submitted: %v", err)
	}
	if !ok {
		t.Fatal("TransitionOrder pending→submitted returned false")
	}

	// Backward transition must not apply.
	ok, err = s.TransitionOrder(ctx, o.ID, []domain.OrderStatus{domain.OrderStatusPending}, domain.OrderStatusRejected)
	if err != nil {
		t.Fatalf("TransitionOrder (stale from): %v", err)
	}
	if ok {
		t.Fatal("TransitionOrder applied from a stale status")
	}

	got, err := s.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != domain.OrderStatusSubmitted {
		t.Errorf("status = %q, want %q", got.Status, domain.OrderStatusSubmitted)
	}

	// Missing order surfaces ErrNotFound.
	if _, err := s.TransitionOrder(ctx, "missing", []domain.OrderStatus{domain.OrderStatusPending}, domain.OrderStatusSubmitted); !errors.Is(err, ErrNotFound) {
		t.Errorf("TransitionOrder on missing order error = %v, want ErrNotFound", err)
	}
}

func TestListOrdersByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if _, err := s.CreateOrder(ctx, testOrder(key)); err != nil {
			t.Fatalf("CreateOrder(%s): %v", key, err)
		}
	}
	if _, err := s.TransitionOrder(ctx, "ord-b", []domain.OrderStatus{domain.OrderStatusPending}, domain.OrderStatusSubmitted); err != nil {
		t.Fatalf("TransitionOrder: %v", err)
	}

	pending, err := s.ListOrders(ctx, domain.OrderStatusPending)
	if err != nil {
		t.Fatalf("ListOrders(pending): %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("ListOrders(pending) returned %d orders, want 2", len(pending))
	}

	submitted, err := s.ListOrders(ctx, domain.OrderStatusSubmitted)
	if err != nil {
		t.Fatalf("ListOrders(submitted): %v", err)
	}
	if len(submitted) != 1 || submitted[0].ID != "ord-b" {
		t.Errorf("ListOrders(submitted) = %v, want just ord-b", submitted)
	}
}

func TestPositionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pos := &domain.Position{AccountID: "acct-1", Symbol: "MSFT", Qty: 10, AvgEntryPrice: 400.0}
	if err := s.SavePosition(ctx, pos); err != nil {
		t.Fatalf("SavePosition: %v", err)
	}

	// Upsert overwrites.
	pos.Qty = 15
	pos.AvgEntryPrice = 402.5
	if err := s.SavePosition(ctx, pos); err != nil {
		t.Fatalf("SavePosition (update): %v", err)
	}

	got, err := s.GetPosition(ctx, "acct-1", "MSFT")
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if got.Qty != 15 || got.AvgEntryPrice != 402.5 {
		t.Errorf("position = %+v, want qty=15 avg=402.5", got)
	}

	if err := s.DeletePosition(ctx, "acct-1", "MSFT"); err != nil {
		t.Fatalf("DeletePosition: %v", err)
	}
	if _, err := s.GetPosition(ctx, "acct-1", "MSFT"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPosition after delete error = %v, want ErrNotFound", err)
	}
}

func TestStrategyToggle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetStrategy(ctx, "sma-cross", true); err != nil {
		t.Fatalf("SetStrategy: %v", err)
	}
	got, err := s.GetStrategy(ctx, "sma-cross")
	if err != nil {
		t.Fatalf("GetStrategy: %v", err)
	}
	if !got.Enabled {
		t.Error("strategy should be enabled")
	}

	if err := s.SetStrategy(ctx, "sma-cross", false); err != nil {
		t.Fatalf("SetStrategy (disable): %v", err)
	}
	got, err = s.GetStrategy(ctx, "sma-cross")
	if err != nil {
		t.Fatalf("GetStrategy: %v", err)
	}
	if got.Enabled {
		t.Error("strategy should be disabled after toggle")
	}

	toggles, err := s.ListStrategies(ctx)
	if err != nil {
		t.Fatalf("ListStrategies: %v", err)
	}
	if len(toggles) != 1 {
		t.Errorf("ListStrategies returned %d toggles, want 1", len(toggles))
	}
}

func TestAccountRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &domain.Account{ID: "acct-9", AccessToken: "tok-9", CreatedAt: time.Now().UTC()}
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	got, err := s.GetAccount(ctx, "acct-9")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.AccessToken != "tok-9" {
		t.Errorf("AccessToken = %q, want %q", got.AccessToken, "tok-9")
	}
}

func TestFillJournalAppendRead(t *testing.T) {
	j := NewFillJournal(t.TempDir())
	ctx := context.Background()

	day := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	fills := []domain.Fill{
		{OrderID: "o1", AccountID: "a1", Symbol: "AAPL", Side: domain.SideBuy, Size: 10, Price: 185.5, FilledAt: day},
		{OrderID: "o2", AccountID: "a1", Symbol: "AAPL", Side: domain.SideSell, Size: 10, Price: 186.0, FilledAt: day.Add(time.Minute)},
	}
	if err := j.Append(ctx, fills...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Second append to the same day merges rather than overwriting.
	late := domain.Fill{OrderID: "o3", AccountID: "a1", Symbol: "MSFT", Side: domain.SideBuy, Size: 5, Price: 400.0, FilledAt: day.Add(2 * time.Minute)}
	if err := j.Append(ctx, late); err != nil {
		t.Fatalf("Append (second): %v", err)
	}

	got, err := j.ReadDay(ctx, day)
	if err != nil {
		t.Fatalf("ReadDay: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadDay returned %d fills, want 3", len(got))
	}
	if got[0].OrderID != "o1" || got[2].OrderID != "o3" {
		t.Errorf("fills not sorted by time: %v", got)
	}
}

func TestFillJournalReadMissingDay(t *testing.T) {
	j := NewFillJournal(t.TempDir())
	got, err := j.ReadDay(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ReadDay on missing file: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadDay on missing file returned %d fills, want 0", len(got))
	}
}
