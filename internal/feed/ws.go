package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"tradeflow/internal/domain"
	"tradeflow/internal/util"
)

// Compile-time interface check.
var _ Provider = (*WSProvider)(nil)

// wsTick is the wire format accepted from an upstream tick websocket.
type wsTick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // Unix ms
}

// WSProvider streams ticks from a JSON websocket endpoint. It reconnects with
// exponential backoff when the connection drops.
type WSProvider struct {
	url       string
	accountID string
	log       *slog.Logger
}

// NewWSProvider creates a websocket feed reading from url.
func NewWSProvider(url, accountID string, log *slog.Logger) *WSProvider {
	return &WSProvider{url: url, accountID: accountID, log: log}
}

// Name returns "ws".
func (p *WSProvider) Name() string { return "ws" }

// Run connects and streams until ctx is cancelled. Connection drops trigger a
// reconnect; only repeated dial failures surface as an error.
func (p *WSProvider) Run(ctx context.Context, hub *Hub) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var conn *websocket.Conn
		err := util.Retry(ctx, 5, 500*time.Millisecond, func() error {
			var dialErr error
			conn, _, dialErr = websocket.DefaultDialer.DialContext(ctx, p.url, nil)
			return dialErr
		})
		if err != nil {
			return fmt.Errorf("dialing %s: %w", p.url, err)
		}

		p.log.Info("tick stream connected", "url", p.url)
		if err := p.consume(ctx, conn, hub); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn("tick stream dropped, reconnecting", "error", err)
		}
	}
}

func (p *WSProvider) consume(ctx context.Context, conn *websocket.Conn, hub *Hub) error {
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var wt wsTick
		if err := json.Unmarshal(data, &wt); err != nil {
			p.log.Warn("skipping malformed tick", "error", err)
			continue
		}
		if wt.Symbol == "" || wt.Price <= 0 {
			continue
		}

		hub.Publish(domain.Tick{
			Symbol:    wt.Symbol,
			Price:     wt.Price,
			Timestamp: time.UnixMilli(wt.Timestamp),
			AccountID: p.accountID,
		})
	}
}
