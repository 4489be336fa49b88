package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"tradeflow/internal/domain"
)

// Compile-time interface check.
var _ Provider = (*ReplayProvider)(nil)

// ReplayProvider publishes ticks from a CSV file with the columns
// timestamp(RFC3339),symbol,price. Rows are replayed in file order with an
// optional fixed delay between ticks.
type ReplayProvider struct {
	path      string
	accountID string
	delay     time.Duration
}

// NewReplayProvider creates a replay feed reading from the CSV at path.
func NewReplayProvider(path, accountID string, delay time.Duration) *ReplayProvider {
	return &ReplayProvider{path: path, accountID: accountID, delay: delay}
}

// Name returns "replay".
func (p *ReplayProvider) Name() string { return "replay" }

// Run publishes every row of the CSV, then returns nil.
func (p *ReplayProvider) Run(ctx context.Context, hub *Hub) error {
	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("opening replay file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading replay file: %w", err)
		}
		line++
		if len(record) != 3 {
			return fmt.Errorf("replay line %d: want 3 columns, got %d", line, len(record))
		}

		ts, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			return fmt.Errorf("replay line %d: bad timestamp %q: %w", line, record[0], err)
		}
		price, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return fmt.Errorf("replay line %d: bad price %q: %w", line, record[2], err)
		}

		hub.Publish(domain.Tick{
			Symbol:    record[1],
			Price:     price,
			Timestamp: ts,
			AccountID: p.accountID,
		})

		if p.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}
}
