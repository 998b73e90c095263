// Package storage implements the Persistence collaborator (spec §6) with
// two backends: a GORM-backed SQL store and an in-process/file BuntDB
// store, mirroring the dual-backend split of the teacher's pkg/storage.
package storage

import (
	"time"

	"github.com/dtshaba/goldengine/internal/core"
)

// signalRow is the persisted row for a generated signal, grounded on the
// gorm-tag idiom of the teacher's Order model.
type signalRow struct {
	ID         int64     `gorm:"primaryKey,autoIncrement" json:"id"`
	Direction  string    `json:"direction"`
	EntryType  string    `json:"entry_type"`
	Confidence float64   `json:"confidence"`
	Price      float64   `json:"price"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// tradeRow is the persisted row for one round-trip (or still-open) trade.
type tradeRow struct {
	Ticket       int64      `gorm:"primaryKey" json:"ticket"`
	SignalID     int64      `json:"signal_id"`
	Direction    string     `json:"direction"`
	EntryPrice   float64    `json:"entry_price"`
	LotSize      float64    `json:"lot_size"`
	StopLoss     float64    `json:"stop_loss"`
	TakeProfit   float64    `json:"take_profit"`
	EntryTime    time.Time  `json:"entry_time"`
	ExitPrice    *float64   `json:"exit_price"`
	ExitTime     *time.Time `json:"exit_time"`
	ExitReason   string     `json:"exit_reason"`
	RealizedPnL  float64    `json:"realized_pnl"`
	HoldSeconds  float64    `json:"hold_seconds"`
	PartialExits []byte     `json:"partial_exits" gorm:"type:text"` // JSON-encoded []core.PartialExit
}

// eventRow is the persisted row for a circuit-breaker transition.
type eventRow struct {
	ID        int64      `gorm:"primaryKey,autoIncrement" json:"id"`
	Type      string     `json:"type"`
	Reason    string     `json:"reason"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	LossCount int        `json:"loss_count"`
	DailyPnL  float64    `json:"daily_pnl"`
}

func toTradeRow(ticket, signalID int64, fillPrice, lot, sl, tp float64, side core.Side, at time.Time) tradeRow {
	return tradeRow{
		Ticket: ticket, SignalID: signalID, Direction: string(side),
		EntryPrice: fillPrice, LotSize: lot, StopLoss: sl, TakeProfit: tp,
		EntryTime: at,
	}
}

func (r tradeRow) toTrade() core.Trade {
	return core.Trade{
		Ticket: r.Ticket, SignalID: r.SignalID, Direction: core.Side(r.Direction),
		EntryPrice: r.EntryPrice, LotSize: r.LotSize, StopLoss: r.StopLoss, TakeProfit: r.TakeProfit,
		EntryTime: r.EntryTime, ExitPrice: r.ExitPrice, ExitTime: r.ExitTime,
		ExitReason: r.ExitReason, RealizedPnL: r.RealizedPnL, HoldSeconds: r.HoldSeconds,
	}
}
