// Package broker defines the live Broker collaborator boundary (spec §6).
// The concrete MT5 (or any other venue) RPC binding is explicitly out of
// scope (spec §1) — this package holds only the contract the execution
// loop and position manager depend on, plus a reconnect-backoff helper any
// live implementation can reuse, grounded on the teacher's exchange
// reconnect-retry idiom.
package broker

import (
	"time"

	"github.com/jpillora/backoff"

	"github.com/dtshaba/goldengine/internal/core"
)

// Broker is the full live collaborator surface: market data, order
// placement/management, and account/position queries (spec §6). A live
// implementation adapts a specific venue's RPC client to this interface;
// the backtest simulator (internal/backtest) implements the same shape
// against replayed history instead.
type Broker interface {
	GetCandles(symbol string, timeframeMinutes, count int) ([]core.Candle, error)
	GetTick(symbol string) (core.Tick, error)
	GetAccount() (core.Account, error)
	GetOpenPositions(symbol string) ([]core.Position, error)
	PlaceOrder(req core.OrderRequest) (core.OrderResult, error)
	ModifyStopLoss(ticket int64, newSL float64) error
	ClosePosition(ticket int64, volume float64) (fillPrice float64, err error)
	PositionHistory(ticket int64) ([]core.Deal, error)
}

// ReconnectBackoff returns a backoff policy with the sensible bounds the
// teacher's exchange clients use for RPC retry (100ms-5s, full jitter).
func ReconnectBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    5 * time.Second,
		Jitter: true,
	}
}

// WithRetry runs fn, retrying with ReconnectBackoff until it succeeds, the
// attempt budget is exhausted, or shouldRetry returns false for the error.
func WithRetry(maxAttempts int, shouldRetry func(error) bool, fn func() error) error {
	b := ReconnectBackoff()
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(lastErr) {
			return lastErr
		}
		time.Sleep(b.Duration())
	}
	return lastErr
}
