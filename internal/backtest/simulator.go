// Package backtest implements a deterministic replay driver that runs the
// exact same execution.Loop against historical candles instead of a live
// broker, grounded on original_source/.../backtesting/backtest_runner.py,
// backtest_mt5_connector.py, and backtest_order_executor.py.
package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/dtshaba/goldengine/internal/core"
)

// simPosition is the simulator's internal view of a virtual open position.
type simPosition struct {
	ticket     int64
	side       core.Side
	volume     float64
	entryPrice float64
	sl, tp     float64
	openTime   time.Time
}

// Simulator implements execution.Capability and position.Venue against a
// fixed slice of historical M1/M5 candles, advancing one M1 candle per
// cycle. SL/TP hits are resolved against candle high/low (not the live
// exit-strategy price check), matching the original connector's
// update_positions: a buy's stop fires when candle.Low <= SL, a sell's
// when candle.High >= SL; stop loss is checked before take profit so a
// candle that touches both resolves as a stop-out (spec §9's resolved
// ambiguity).
type Simulator struct {
	instrument core.Instrument

	m1 []core.Candle
	m5 []core.Candle
	i  int // index into m1, the "current" candle

	spreadPoints     float64
	slippagePoints   float64
	balance, equity  float64

	positions   map[int64]*simPosition
	nextTicket  int64
	dealHistory map[int64][]core.Deal
}

// NewSimulator builds a Simulator over pre-sorted M1/M5 candle history.
func NewSimulator(instrument core.Instrument, m1, m5 []core.Candle, startingEquity, spreadPoints, slippagePoints float64) *Simulator {
	sorted1 := append([]core.Candle(nil), m1...)
	sorted5 := append([]core.Candle(nil), m5...)
	sort.Slice(sorted1, func(a, b int) bool { return sorted1[a].Time.Before(sorted1[b].Time) })
	sort.Slice(sorted5, func(a, b int) bool { return sorted5[a].Time.Before(sorted5[b].Time) })

	return &Simulator{
		instrument: instrument, m1: sorted1, m5: sorted5,
		spreadPoints: spreadPoints, slippagePoints: slippagePoints,
		balance: startingEquity, equity: startingEquity,
		positions: map[int64]*simPosition{}, nextTicket: 1000,
		dealHistory: map[int64][]core.Deal{},
	}
}

// AdvanceTime moves the simulation forward one M1 candle, resolving any
// SL/TP hits against the candle that just elapsed. It returns false once
// the data is exhausted.
func (s *Simulator) AdvanceTime() bool {
	if s.i >= len(s.m1) {
		return false
	}
	s.checkStopsAndTargets(s.m1[s.i])
	if s.i >= len(s.m1)-1 {
		return false
	}
	s.i++
	return true
}

// ForceCloseAll closes every remaining open position at the last candle's
// close, mirroring backtest_runner.py's end-of-data cleanup.
func (s *Simulator) ForceCloseAll() {
	if len(s.m1) == 0 {
		return
	}
	last := s.m1[len(s.m1)-1]
	for ticket := range s.positions {
		s.closeAt(ticket, last.Close, "backtest_end", last.Time)
	}
}

func (s *Simulator) checkStopsAndTargets(candle core.Candle) {
	for ticket, pos := range s.positions {
		if pos.side == core.Buy {
			if candle.Low <= pos.sl {
				s.closeAt(ticket, pos.sl, "stop_loss", candle.Time)
				continue
			}
			if candle.High >= pos.tp {
				s.closeAt(ticket, pos.tp, "take_profit", candle.Time)
			}
		} else {
			if candle.High >= pos.sl {
				s.closeAt(ticket, pos.sl, "stop_loss", candle.Time)
				continue
			}
			if candle.Low <= pos.tp {
				s.closeAt(ticket, pos.tp, "take_profit", candle.Time)
			}
		}
	}
}

func (s *Simulator) closeAt(ticket int64, price float64, reason string, at time.Time) {
	pos, ok := s.positions[ticket]
	if !ok {
		return
	}
	pnl := s.pnl(*pos, price)
	s.equity += pnl
	if s.equity > s.balance {
		s.balance = s.equity
	}
	s.dealHistory[ticket] = append(s.dealHistory[ticket], core.Deal{
		Ticket: ticket, Time: at, Price: price, Profit: pnl, Comment: reason,
	})
	delete(s.positions, ticket)
}

func (s *Simulator) pnl(pos simPosition, exitPrice float64) float64 {
	var priceDiff float64
	if pos.side == core.Buy {
		priceDiff = exitPrice - pos.entryPrice
	} else {
		priceDiff = pos.entryPrice - exitPrice
	}
	return s.instrument.ToPoints(priceDiff) * pos.volume * s.instrument.PointValuePerLot
}

// --- execution.Capability ---

func (s *Simulator) Now() time.Time {
	if s.i >= len(s.m1) {
		if len(s.m1) == 0 {
			return time.Time{}
		}
		return s.m1[len(s.m1)-1].Time
	}
	return s.m1[s.i].Time
}

func (s *Simulator) GetCandles(symbol string, timeframeMinutes, count int) ([]core.Candle, error) {
	switch timeframeMinutes {
	case 1:
		upto := s.m1[:s.i+1]
		return lastN(upto, count), nil
	case 5:
		cutoff := s.Now()
		var upto []core.Candle
		for _, c := range s.m5 {
			if !c.Time.After(cutoff) {
				upto = append(upto, c)
			}
		}
		return lastN(upto, count), nil
	default:
		return nil, fmt.Errorf("unsupported timeframe: %d", timeframeMinutes)
	}
}

func (s *Simulator) GetTick(symbol string) (core.Tick, error) {
	if s.i >= len(s.m1) {
		return core.Tick{}, fmt.Errorf("no data at current simulation index")
	}
	candle := s.m1[s.i]
	spread := s.instrument.ToPrice(s.spreadPoints)
	return core.Tick{
		Bid: candle.Close - spread/2, Ask: candle.Close + spread/2,
		SpreadPts: s.spreadPoints, Time: candle.Time,
	}, nil
}

func (s *Simulator) GetAccount() (core.Account, error) {
	return core.Account{Equity: s.equity, Balance: s.balance, FreeMargin: s.equity, Currency: "USD"}, nil
}

func (s *Simulator) GetOpenPositions(symbol string) ([]core.Position, error) {
	out := make([]core.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, core.Position{
			Ticket: p.ticket, Side: p.side, Volume: p.volume, EntryPrice: p.entryPrice,
			StopLoss: p.sl, TakeProfit: p.tp, UnrealizedProfit: s.pnl(*p, s.currentMid()),
			OpenTime: p.openTime,
		})
	}
	return out, nil
}

func (s *Simulator) currentMid() float64 {
	if s.i >= len(s.m1) {
		return 0
	}
	return s.m1[s.i].Close
}

func (s *Simulator) PlaceOrder(req core.OrderRequest) (core.OrderResult, error) {
	tick, err := s.GetTick(req.Symbol)
	if err != nil {
		return core.OrderResult{Success: false, Error: err.Error()}, nil
	}

	fill := tick.Ask
	if req.Side == core.Sell {
		fill = tick.Bid
	}
	slip := s.instrument.ToPrice(s.slippagePoints)
	if req.Side == core.Buy {
		fill += slip
	} else {
		fill -= slip
	}

	ticket := s.nextTicket
	s.nextTicket++
	s.positions[ticket] = &simPosition{
		ticket: ticket, side: req.Side, volume: req.Volume,
		entryPrice: fill, sl: req.SL, tp: req.TP,
		openTime: tick.Time,
	}

	return core.OrderResult{Ticket: ticket, FillPrice: fill, Retcode: 0, Success: true}, nil
}

// --- position.Venue ---

func (s *Simulator) ModifyStopLoss(ticket int64, newSL float64) error {
	pos, ok := s.positions[ticket]
	if !ok {
		return fmt.Errorf("position %d not found", ticket)
	}
	pos.sl = newSL
	return nil
}

func (s *Simulator) ClosePosition(ticket int64, volume float64) (float64, error) {
	pos, ok := s.positions[ticket]
	if !ok {
		return 0, fmt.Errorf("position %d not found", ticket)
	}
	price := s.currentMid()
	now := s.Now()

	if volume >= pos.volume {
		s.closeAt(ticket, price, "manual_close", now)
		return price, nil
	}

	pnl := s.pnl(simPosition{side: pos.side, volume: volume, entryPrice: pos.entryPrice}, price)
	s.equity += pnl
	pos.volume -= volume
	return price, nil
}

func (s *Simulator) PositionHistory(ticket int64) ([]core.Deal, error) {
	deals := s.dealHistory[ticket]
	delete(s.dealHistory, ticket)
	return deals, nil
}

func lastN(candles []core.Candle, n int) []core.Candle {
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}
