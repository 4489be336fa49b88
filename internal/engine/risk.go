package engine

import (
	"fmt"
	"sync"
	"time"

	"tradeflow/internal/domain"
)

// Risk violation kinds.
const (
	RiskSizeExceedsMax = "size_exceeds_max"
	RiskDailyLossLimit = "daily_loss_limit"
)

// RiskError is a typed rejection of a prospective order. Kind identifies the
// violated rule and is stable for callers and metrics labels.
type RiskError struct {
	Kind   string
	Detail string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk violation %s: %s", e.Kind, e.Detail)
}

// RiskManager enforces pre-trade risk rules: a hard cap on order size and a
// daily realized-loss ceiling. All state lives on the instance under a mutex;
// there are no package-level singletons. The loss counter resets when the
// calendar day rolls over in the configured timezone.
type RiskManager struct {
	maxOrderSize   int
	dailyLossLimit float64
	loc            *time.Location
	now            func() time.Time

	mu                sync.Mutex
	dailyRealizedLoss float64
	day               string
}

// NewRiskManager creates a RiskManager. loc fixes the midnight at which the
// daily loss counter resets.
func NewRiskManager(maxOrderSize int, dailyLossLimit float64, loc *time.Location) *RiskManager {
	return &RiskManager{
		maxOrderSize:   maxOrderSize,
		dailyLossLimit: dailyLossLimit,
		loc:            loc,
		now:            time.Now,
	}
}

// Check evaluates the signal against the risk rules in order; the first
// failed rule wins. A nil return clears the signal for submission.
func (rm *RiskManager) Check(sig *domain.Signal) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.rolloverLocked()

	if sig.Size > rm.maxOrderSize {
		return &RiskError{
			Kind:   RiskSizeExceedsMax,
			Detail: fmt.Sprintf("size %d exceeds maximum %d", sig.Size, rm.maxOrderSize),
		}
	}
	if rm.dailyRealizedLoss >= rm.dailyLossLimit {
		return &RiskError{
			Kind:   RiskDailyLossLimit,
			Detail: fmt.Sprintf("daily realized loss %.2f at limit %.2f", rm.dailyRealizedLoss, rm.dailyLossLimit),
		}
	}
	return nil
}

// OnFill accumulates realized loss for a closing (sell) fill. entryPrice is
// the position's volume-weighted entry; a sell below it realizes
// (entry - fill price) × size as loss. Profitable closes never decrease the
// counter, so the loss only grows within a day.
func (rm *RiskManager) OnFill(fill domain.Fill, entryPrice float64) {
	if fill.Side != domain.SideSell {
		return
	}
	loss := (entryPrice - fill.Price) * float64(fill.Size)
	if loss <= 0 {
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.rolloverLocked()
	rm.dailyRealizedLoss += loss
}

// DailyRealizedLoss returns the loss accumulated so far today.
func (rm *RiskManager) DailyRealizedLoss() float64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.rolloverLocked()
	return rm.dailyRealizedLoss
}

// Reset zeroes the daily loss counter immediately.
func (rm *RiskManager) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.dailyRealizedLoss = 0
	rm.day = rm.now().In(rm.loc).Format("2006-01-02")
}

// rolloverLocked zeroes the counter when the local calendar day has changed.
// Callers must hold rm.mu.
func (rm *RiskManager) rolloverLocked() {
	today := rm.now().In(rm.loc).Format("2006-01-02")
	if today != rm.day {
		rm.day = today
		rm.dailyRealizedLoss = 0
	}
}
