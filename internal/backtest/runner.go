package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/dtshaba/goldengine/internal/config"
	"github.com/dtshaba/goldengine/internal/core"
	"github.com/dtshaba/goldengine/internal/execution"
	"github.com/dtshaba/goldengine/internal/momentum"
	"github.com/dtshaba/goldengine/internal/position"
	"github.com/dtshaba/goldengine/internal/risk"
	"github.com/dtshaba/goldengine/internal/session"
	"github.com/dtshaba/goldengine/internal/signal"
	"github.com/dtshaba/goldengine/internal/structure"
	"github.com/dtshaba/goldengine/pkg/logger"
)

// Request parameterizes one replay run (spec §6's backtest entry point).
type Request struct {
	M1Candles      []core.Candle
	M5Candles      []core.Candle
	StartingEquity float64
	SpreadPoints   float64
	SlippagePoints float64
}

// Summary mirrors backtest_database.py's get_backtest_summary aggregate,
// computed here in-memory instead of over a SQL table.
type Summary struct {
	TotalTrades          int
	Wins, Losses         int
	WinRate              float64
	TotalPnL             float64
	AverageWin           float64
	AverageLoss          float64
	WorstTrade           float64
	BestTrade            float64
	ProfitFactor         float64
	AverageHoldSeconds   float64
}

// Result is the full output of a replay run, the Go equivalent of
// backtest_runner.py's results dict consumed by results_reporter.py.
type Result struct {
	StartingEquity     float64
	FinalEquity        float64
	TotalReturnPercent float64
	MaxDrawdownPercent float64
	TotalSignals       int
	Trades             []core.Trade
	EquityCurve        []float64
	Summary            Summary
	StartTime, EndTime time.Time
}

// memStore is an in-process Store implementation that records everything
// a replay run produces, avoiding any real persistence backend for a run
// whose output is the Result value itself.
type memStore struct {
	signals     []core.Signal
	trades      map[int64]*core.Trade
	events      []core.Event
	nextSignal  int64
}

func newMemStore() *memStore {
	return &memStore{trades: map[int64]*core.Trade{}}
}

func (m *memStore) RecordSignal(sig core.Signal) (int64, error) {
	m.nextSignal++
	m.signals = append(m.signals, sig)
	return m.nextSignal, nil
}

func (m *memStore) RecordTradeEntry(ticket, signalID int64, sig core.Signal, fillPrice, lot, sl, tp float64, at time.Time) error {
	m.trades[ticket] = &core.Trade{
		Ticket: ticket, SignalID: signalID, Direction: sig.Direction,
		EntryPrice: fillPrice, LotSize: lot, StopLoss: sl, TakeProfit: tp, EntryTime: at,
	}
	return nil
}

func (m *memStore) RecordTradeExit(ticket int64, exitPrice, pnl, holdSeconds float64, exitReason string) error {
	t, ok := m.trades[ticket]
	if !ok {
		return fmt.Errorf("unknown ticket %d", ticket)
	}
	price := exitPrice
	now := time.Now()
	t.ExitPrice = &price
	t.ExitTime = &now
	t.RealizedPnL = pnl
	t.HoldSeconds = holdSeconds
	t.ExitReason = exitReason
	return nil
}

func (m *memStore) RecordPartialClose(ticket int64, fraction, price float64, at time.Time) error {
	t, ok := m.trades[ticket]
	if !ok {
		return fmt.Errorf("unknown ticket %d", ticket)
	}
	t.PartialExits = append(t.PartialExits, core.PartialExit{FractionClosed: fraction, Price: price, Time: at})
	return nil
}

func (m *memStore) RecordEvent(evt core.Event) error {
	m.events = append(m.events, evt)
	return nil
}

func (m *memStore) GetRecentTrades(n int) ([]core.Trade, error) {
	sorted := m.closedTradesSorted()
	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	// Most recent first, the order the circuit breaker expects.
	out := make([]core.Trade, len(sorted))
	for i, t := range sorted {
		out[len(sorted)-1-i] = t
	}
	return out, nil
}

func (m *memStore) GetSessionPnL(date time.Time) (float64, error) {
	var total float64
	y, mo, d := date.Date()
	for _, t := range m.trades {
		if t.ExitTime == nil {
			continue
		}
		ey, emo, ed := t.ExitTime.Date()
		if ey == y && emo == mo && ed == d {
			total += t.RealizedPnL
		}
	}
	return total, nil
}

func (m *memStore) closedTradesSorted() []core.Trade {
	out := make([]core.Trade, 0, len(m.trades))
	for _, t := range m.trades {
		out = append(out, *t)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].EntryTime.Before(out[j-1].EntryTime); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (m *memStore) allTrades() []core.Trade { return m.closedTradesSorted() }

// Run replays cfg's engine against req's candle history, mirroring
// backtest_runner.py's run_backtest: build the same collaborators the live
// loop uses, swap in the Simulator for both Capability and Store-adjacent
// fill simulation, step one M1 candle per cycle, and force-close any
// still-open position once the data is exhausted.
func Run(ctx context.Context, cfg config.Config, req Request, log logger.Logger, showProgress bool) (Result, error) {
	instrument := cfg.Instrument.ToInstrument()
	sim := NewSimulator(instrument, req.M1Candles, req.M5Candles, req.StartingEquity, req.SpreadPoints, req.SlippagePoints)
	store := newMemStore()

	sessionMgr := session.New(cfg.Sessions.ToSessionConfig())
	volFilter := risk.NewVolatilityFilter(cfg.ATR.ToVolatilityConfig())
	validator := risk.NewValidator(cfg.Spread.ToValidatorConfig())
	breakerCfg, err := cfg.CircuitBreak.ToBreakerConfig()
	if err != nil {
		return Result{}, fmt.Errorf("circuit breaker config: %w", err)
	}
	breaker := risk.NewBreaker(breakerCfg, instrument)
	sizer := risk.NewSizer(cfg.Risk.ToSizerConfig(), instrument)
	structAnalyzer := structure.New(cfg.Structure.ToStructureConfig(), instrument)
	momAnalyzer := momentum.New(cfg.Momentum.ToMomentumConfig())
	signalGen := signal.New(cfg.Signals.ToSignalConfig(), instrument, structAnalyzer, momAnalyzer)
	exitCfg, err := cfg.Exit.ToExitConfig()
	if err != nil {
		return Result{}, fmt.Errorf("exit config: %w", err)
	}
	posManager := position.NewManager(position.NewExitStrategy(exitCfg, instrument), sim, store)

	execCfg, err := cfg.Execution.ToExecutionConfig(cfg.Instrument.Symbol, cfg.Risk.StopLossRangePref)
	if err != nil {
		return Result{}, fmt.Errorf("execution config: %w", err)
	}

	loop := execution.NewLoop(execCfg, instrument,
		cfg.ATR.EMAPeriod, cfg.ATR.RSIPeriod, cfg.ATR.ATRPeriod, cfg.ATR.AveragePeriod, cfg.ATR.SwingLookback,
		sessionMgr, volFilter, validator, sizer, breaker, signalGen, posManager, sim, store, log, req.StartingEquity)

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(len(req.M1Candles)))
	}

	var equityCurve []float64
	startTime := sim.Now()
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		if err := loop.RunCycle(sim.Now()); err != nil {
			log.WithError(err).Warn("backtest cycle error")
		}

		acct, _ := sim.GetAccount()
		equityCurve = append(equityCurve, acct.Equity)
		if bar != nil {
			_ = bar.Add(1)
		}

		if !sim.AdvanceTime() {
			break
		}
	}
	endTime := sim.Now()
	sim.ForceCloseAll()

	trades := store.allTrades()
	finalAccount, _ := sim.GetAccount()
	summary := computeSummary(trades)

	return Result{
		StartingEquity:     req.StartingEquity,
		FinalEquity:        finalAccount.Equity,
		TotalReturnPercent: percentReturn(req.StartingEquity, finalAccount.Equity),
		MaxDrawdownPercent: maxDrawdown(equityCurve),
		TotalSignals:       len(store.signals),
		Trades:             trades,
		EquityCurve:        equityCurve,
		Summary:            summary,
		StartTime:          startTime,
		EndTime:            endTime,
	}, nil
}

func percentReturn(start, end float64) float64 {
	if start == 0 {
		return 0
	}
	return (end - start) / start * 100
}

func maxDrawdown(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0]
	worst := 0.0
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// computeSummary mirrors backtest_database.py's get_backtest_summary SQL
// aggregate, recomputed over the in-memory closed-trade slice.
func computeSummary(trades []core.Trade) Summary {
	var s Summary
	var sumWin, sumLoss, sumPnL, sumHold float64
	for _, t := range trades {
		if t.ExitTime == nil {
			continue
		}
		s.TotalTrades++
		sumPnL += t.RealizedPnL
		sumHold += t.HoldSeconds
		switch {
		case t.RealizedPnL > 0:
			s.Wins++
			sumWin += t.RealizedPnL
		case t.RealizedPnL < 0:
			s.Losses++
			sumLoss += t.RealizedPnL
		}
		if t.RealizedPnL > s.BestTrade || s.TotalTrades == 1 {
			s.BestTrade = t.RealizedPnL
		}
		if t.RealizedPnL < s.WorstTrade || s.TotalTrades == 1 {
			s.WorstTrade = t.RealizedPnL
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100
		s.AverageHoldSeconds = sumHold / float64(s.TotalTrades)
	}
	s.TotalPnL = sumPnL
	if s.Wins > 0 {
		s.AverageWin = sumWin / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AverageLoss = sumLoss / float64(s.Losses)
	}
	if s.AverageLoss != 0 {
		s.ProfitFactor = math.Abs(s.AverageWin / s.AverageLoss)
	}
	return s
}
