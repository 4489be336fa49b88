package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradeflow/internal/domain"
)

// FillJournal is an append-only Parquet audit log of reconciled fills, one
// file per UTC day under <DataDir>/fills/.
type FillJournal struct {
	DataDir string
	mu      sync.Mutex
}

// NewFillJournal creates a FillJournal rooted at the given data directory.
func NewFillJournal(dataDir string) *FillJournal {
	return &FillJournal{DataDir: dataDir}
}

// FillRecord is the Parquet schema for fill audit data.
type FillRecord struct {
	OrderID   string  `parquet:"order_id"`
	AccountID string  `parquet:"account_id"`
	Symbol    string  `parquet:"symbol"`
	Side      string  `parquet:"side"`
	Size      int64   `parquet:"size"`
	Price     float64 `parquet:"price"`
	FilledAt  int64   `parquet:"filled_at,timestamp(millisecond)"` // Unix ms
}

// Append records fills into the day file for each fill's timestamp. Existing
// records are preserved; the file is rewritten with the merged set, sorted by
// fill time.
func (j *FillJournal) Append(_ context.Context, fills ...domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	// Group by UTC day.
	groups := make(map[string][]FillRecord)
	for _, f := range fills {
		day := f.FilledAt.UTC().Format("2006-01-02")
		groups[day] = append(groups[day], FillRecord{
			OrderID:   f.OrderID,
			AccountID: f.AccountID,
			Symbol:    f.Symbol,
			Side:      string(f.Side),
			Size:      int64(f.Size),
			Price:     f.Price,
			FilledAt:  f.FilledAt.UnixMilli(),
		})
	}

	for day, records := range groups {
		path := j.fillPath(day)

		existing, _ := readParquetFile[FillRecord](path)
		merged := append(existing, records...)
		sort.Slice(merged, func(i, k int) bool { return merged[i].FilledAt < merged[k].FilledAt })

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing fill journal for %s: %w", day, err)
		}
	}
	return nil
}

// ReadDay returns all fills journalled on the given UTC day.
func (j *FillJournal) ReadDay(_ context.Context, day time.Time) ([]domain.Fill, error) {
	path := j.fillPath(day.UTC().Format("2006-01-02"))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	records, err := readParquetFile[FillRecord](path)
	if err != nil {
		return nil, err
	}

	fills := make([]domain.Fill, 0, len(records))
	for _, r := range records {
		fills = append(fills, domain.Fill{
			OrderID:   r.OrderID,
			AccountID: r.AccountID,
			Symbol:    r.Symbol,
			Side:      domain.Side(r.Side),
			Size:      int(r.Size),
			Price:     r.Price,
			FilledAt:  time.UnixMilli(r.FilledAt).UTC(),
		})
	}
	return fills, nil
}

func (j *FillJournal) fillPath(day string) string {
	return filepath.Join(j.DataDir, "fills", day+".parquet")
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
