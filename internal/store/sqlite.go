package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tradeflow/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ OrderStore = (*SQLiteStore)(nil)
var _ PositionStore = (*SQLiteStore)(nil)
var _ FillApplier = (*SQLiteStore)(nil)
var _ StrategyStore = (*SQLiteStore)(nil)
var _ AccountStore = (*SQLiteStore)(nil)

// SQLiteStore implements OrderStore, PositionStore, StrategyStore, and
// AccountStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id              TEXT PRIMARY KEY,
	idempotency_key TEXT NOT NULL UNIQUE,
	account_id      TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	side            TEXT NOT NULL,
	size            INTEGER NOT NULL,
	price           REAL NOT NULL,
	metadata        TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

CREATE TABLE IF NOT EXISTS positions (
	account_id      TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	qty             INTEGER NOT NULL,
	avg_entry_price REAL NOT NULL,
	PRIMARY KEY (account_id, symbol)
);

CREATE TABLE IF NOT EXISTS strategies (
	name       TEXT PRIMARY KEY,
	enabled    INTEGER NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id           TEXT PRIMARY KEY,
	access_token TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// schema migration, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Concurrent submitters share one connection; SQLite serialises writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

// CreateOrder inserts a new order. The UNIQUE constraint on idempotency_key
// plus ON CONFLICT DO NOTHING makes the lookup-then-insert atomic: exactly
// one of any number of concurrent callers with the same key wins.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order *domain.Order) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, idempotency_key, account_id, symbol, side, size, price, metadata, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(idempotency_key) DO NOTHING`,
		order.ID, order.IdempotencyKey, order.AccountID, order.Symbol, string(order.Side),
		order.Size, order.Price, order.Metadata, string(order.Status),
		order.CreatedAt.UTC(), order.UpdatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting order %s: %w", order.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetOrder retrieves a single order by its ID.
func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrderWhere(ctx, "id = ?", id)
}

// GetOrderByKey retrieves a single order by its idempotency key.
func (s *SQLiteStore) GetOrderByKey(ctx context.Context, key string) (*domain.Order, error) {
	return s.getOrderWhere(ctx, "idempotency_key = ?", key)
}

func (s *SQLiteStore) getOrderWhere(ctx context.Context, where string, arg any) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, idempotency_key, account_id, symbol, side, size, price, metadata, status, created_at, updated_at
		FROM orders WHERE `+where, arg)
	return scanOrder(row)
}

// ListOrders returns all orders matching the given status, newest first.
// An empty status returns every order.
func (s *SQLiteStore) ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	query := `
		SELECT id, idempotency_key, account_id, symbol, side, size, price, metadata, status, created_at, updated_at
		FROM orders`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// TransitionOrder moves an order to the target status only if its current
// status is in the from set; the WHERE clause keeps the lifecycle monotonic
// under concurrent updates.
func (s *SQLiteStore) TransitionOrder(ctx context.Context, id string, from []domain.OrderStatus, to domain.OrderStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transitioning order %s: empty from set", id)
	}
	placeholders := strings.Repeat("?, ", len(from))
	placeholders = placeholders[:len(placeholders)-2]

	args := []any{string(to), time.Now().UTC(), id}
	for _, f := range from {
		args = append(args, string(f))
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status IN ("+placeholders+")",
		args...)
	if err != nil {
		return false, fmt.Errorf("transitioning order %s to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	// Nothing updated: either the order is missing or it is already past the
	// from set. Callers need to tell those apart.
	if _, err := s.GetOrder(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ApplyFill marks the order filled and folds the fill into the account's
// position inside one transaction, so a fill that fails partway leaves the
// order in its prior status and re-fillable on redelivery. entryPrice is the
// volume-weighted entry price in effect before the fill, which is what a
// closing leg realizes P&L against. The single-connection pool serializes
// concurrent ApplyFill calls, so the position read-modify-write cannot lose
// updates.
func (s *SQLiteStore) ApplyFill(ctx context.Context, fill domain.Fill, from []domain.OrderStatus) (applied bool, entryPrice float64, err error) {
	if len(from) == 0 {
		return false, 0, fmt.Errorf("applying fill for order %s: empty from set", fill.OrderID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("applying fill for order %s: %w", fill.OrderID, err)
	}
	defer tx.Rollback()

	placeholders := strings.Repeat("?, ", len(from))
	placeholders = placeholders[:len(placeholders)-2]
	args := []any{string(domain.OrderStatusFilled), time.Now().UTC(), fill.OrderID}
	for _, f := range from {
		args = append(args, string(f))
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status IN ("+placeholders+")",
		args...)
	if err != nil {
		return false, 0, fmt.Errorf("marking order %s filled: %w", fill.OrderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, 0, err
	}
	if n == 0 {
		return false, 0, nil
	}

	var qty int
	var avg float64
	err = tx.QueryRowContext(ctx,
		"SELECT qty, avg_entry_price FROM positions WHERE account_id = ? AND symbol = ?",
		fill.AccountID, fill.Symbol).Scan(&qty, &avg)
	if err != nil && err != sql.ErrNoRows {
		return false, 0, fmt.Errorf("reading position %s/%s: %w", fill.AccountID, fill.Symbol, err)
	}
	entryPrice = avg

	switch fill.Side {
	case domain.SideBuy:
		total := qty + fill.Size
		if total > 0 {
			avg = (avg*float64(qty) + fill.Price*float64(fill.Size)) / float64(total)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO positions (account_id, symbol, qty, avg_entry_price)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(account_id, symbol) DO UPDATE SET qty = excluded.qty, avg_entry_price = excluded.avg_entry_price`,
			fill.AccountID, fill.Symbol, total, avg)
	case domain.SideSell:
		if rem := qty - fill.Size; rem <= 0 {
			_, err = tx.ExecContext(ctx,
				"DELETE FROM positions WHERE account_id = ? AND symbol = ?",
				fill.AccountID, fill.Symbol)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO positions (account_id, symbol, qty, avg_entry_price)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(account_id, symbol) DO UPDATE SET qty = excluded.qty, avg_entry_price = excluded.avg_entry_price`,
				fill.AccountID, fill.Symbol, rem, avg)
		}
	default:
		return false, 0, fmt.Errorf("unknown fill side %q", fill.Side)
	}
	if err != nil {
		return false, 0, fmt.Errorf("updating position %s/%s: %w", fill.AccountID, fill.Symbol, err)
	}

	return true, entryPrice, tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var side, status string
	err := row.Scan(&o.ID, &o.IdempotencyKey, &o.AccountID, &o.Symbol, &side,
		&o.Size, &o.Price, &o.Metadata, &status, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning order: %w", err)
	}
	o.Side = domain.Side(side)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

// ---------------------------------------------------------------------------
// PositionStore implementation
// ---------------------------------------------------------------------------

// SavePosition inserts or updates the position for an account and symbol.
func (s *SQLiteStore) SavePosition(ctx context.Context, pos *domain.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (account_id, symbol, qty, avg_entry_price)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, symbol) DO UPDATE SET qty = excluded.qty, avg_entry_price = excluded.avg_entry_price`,
		pos.AccountID, pos.Symbol, pos.Qty, pos.AvgEntryPrice)
	if err != nil {
		return fmt.Errorf("saving position %s/%s: %w", pos.AccountID, pos.Symbol, err)
	}
	return nil
}

// GetPosition retrieves the current position for an account and symbol.
func (s *SQLiteStore) GetPosition(ctx context.Context, accountID, symbol string) (*domain.Position, error) {
	var p domain.Position
	err := s.db.QueryRowContext(ctx,
		"SELECT account_id, symbol, qty, avg_entry_price FROM positions WHERE account_id = ? AND symbol = ?",
		accountID, symbol).Scan(&p.AccountID, &p.Symbol, &p.Qty, &p.AvgEntryPrice)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading position %s/%s: %w", accountID, symbol, err)
	}
	return &p, nil
}

// ListPositions returns all open positions for an account.
func (s *SQLiteStore) ListPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT account_id, symbol, qty, avg_entry_price FROM positions WHERE account_id = ? ORDER BY symbol",
		accountID)
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.AccountID, &p.Symbol, &p.Qty, &p.AvgEntryPrice); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// DeletePosition removes the position for an account and symbol.
func (s *SQLiteStore) DeletePosition(ctx context.Context, accountID, symbol string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM positions WHERE account_id = ? AND symbol = ?", accountID, symbol)
	return err
}

// ---------------------------------------------------------------------------
// StrategyStore implementation
// ---------------------------------------------------------------------------

// SetStrategy inserts or updates the toggle for a strategy name.
func (s *SQLiteStore) SetStrategy(ctx context.Context, name string, enabled bool) error {
	val := 0
	if enabled {
		val = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategies (name, enabled, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at`,
		name, val, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("setting strategy %q: %w", name, err)
	}
	return nil
}

// GetStrategy retrieves the toggle for a strategy name.
func (s *SQLiteStore) GetStrategy(ctx context.Context, name string) (*domain.StrategyToggle, error) {
	var t domain.StrategyToggle
	var enabled int
	err := s.db.QueryRowContext(ctx,
		"SELECT name, enabled, updated_at FROM strategies WHERE name = ?", name).
		Scan(&t.Name, &enabled, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading strategy %q: %w", name, err)
	}
	t.Enabled = enabled == 1
	return &t, nil
}

// ListStrategies returns all persisted toggles.
func (s *SQLiteStore) ListStrategies(ctx context.Context) ([]domain.StrategyToggle, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, enabled, updated_at FROM strategies ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing strategies: %w", err)
	}
	defer rows.Close()

	var toggles []domain.StrategyToggle
	for rows.Next() {
		var t domain.StrategyToggle
		var enabled int
		if err := rows.Scan(&t.Name, &enabled, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Enabled = enabled == 1
		toggles = append(toggles, t)
	}
	return toggles, rows.Err()
}

// ---------------------------------------------------------------------------
// AccountStore implementation
// ---------------------------------------------------------------------------

// CreateAccount inserts a new account record.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *domain.Account) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts (id, access_token, created_at) VALUES (?, ?, ?)",
		account.ID, account.AccessToken, account.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("creating account %s: %w", account.ID, err)
	}
	return nil
}

// GetAccount retrieves an account by its ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var a domain.Account
	err := s.db.QueryRowContext(ctx,
		"SELECT id, access_token, created_at FROM accounts WHERE id = ?", id).
		Scan(&a.ID, &a.AccessToken, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading account %s: %w", id, err)
	}
	return &a, nil
}
