// Package execution implements the fixed-cadence orchestrator (spec §4.10)
// and the capability-set abstraction (§9) that lets the same loop run
// against a live broker or the backtest simulator.
package execution

import (
	"time"

	"github.com/dtshaba/goldengine/internal/core"
	"github.com/dtshaba/goldengine/internal/position"
)

// MarketFeed is the read side of the Broker collaborator (spec §6).
type MarketFeed interface {
	GetCandles(symbol string, timeframeMinutes, count int) ([]core.Candle, error)
	GetTick(symbol string) (core.Tick, error)
}

// OrderVenue is the write side of the Broker collaborator, plus the subset
// the position manager needs (modify/close/history).
type OrderVenue interface {
	GetAccount() (core.Account, error)
	GetOpenPositions(symbol string) ([]core.Position, error)
	PlaceOrder(req core.OrderRequest) (core.OrderResult, error)
	position.Venue
}

// Clock abstracts "now" so the backtest driver can advance a simulation
// clock instead of wall time (spec §9's capability-set design note).
type Clock interface {
	Now() time.Time
}

// Capability is the single capability set the execution loop depends on:
// MarketFeed + OrderVenue + Clock, with live and simulated implementations.
type Capability interface {
	MarketFeed
	OrderVenue
	Clock
}

// Store is the Persistence collaborator surface the loop and position
// manager need (spec §6).
type Store interface {
	position.Store
	RecordSignal(sig core.Signal) (int64, error)
	RecordTradeEntry(ticket, signalID int64, sig core.Signal, fillPrice, lot, sl, tp float64, at time.Time) error
	RecordEvent(evt core.Event) error
	GetRecentTrades(n int) ([]core.Trade, error)
	GetSessionPnL(date time.Time) (float64, error)
}
