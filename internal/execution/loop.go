package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/StudioSol/set"

	"github.com/dtshaba/goldengine/internal/core"
	"github.com/dtshaba/goldengine/internal/enginerr"
	"github.com/dtshaba/goldengine/internal/indicator"
	"github.com/dtshaba/goldengine/internal/position"
	"github.com/dtshaba/goldengine/internal/risk"
	"github.com/dtshaba/goldengine/internal/session"
	"github.com/dtshaba/goldengine/internal/signal"
	"github.com/dtshaba/goldengine/pkg/logger"
)

// indicatorConfig mirrors spec §6's atr.* period knobs used when deriving
// the indicator snapshot each cycle.
type indicatorConfig struct {
	EMAPeriod        int
	RSIPeriod        int
	ATRPeriod        int
	ATRAveragePeriod int
	SwingLookback    int
}

// Config mirrors spec §6's execution.* config surface.
type Config struct {
	CycleIntervalSeconds           int
	MaxConcurrentPositions         int
	SlippageTolerancePoints        float64
	StopLossRangePreferred         float64 // points·100 value the sizer's CalculateStopDistance turns into points
	RiskRewardRatioPreferred       float64
	NeutralTrendTighterStopPercent float64 // multiplies stop distance when alignment is neutral
	NeutralTrendSizeReduction      float64 // multiplies lot size when alignment is neutral
	Magic                          int64
	Symbol                         string
	M1Count                        int
	M5Count                        int
	MinM1Candles                   int
	MinM5Candles                   int
}

// Loop is the fixed-cadence orchestrator (spec §4.10): it wires together
// every domain package behind the Capability/Store collaborator interfaces
// and runs the same cycle whether it is pointed at a live broker or the
// backtest simulator.
type Loop struct {
	cfg        Config
	indCfg     indicatorConfig
	instrument core.Instrument

	session    *session.Manager
	volatility *risk.VolatilityFilter
	validator  *risk.Validator
	sizer      *risk.Sizer
	breaker    *risk.Breaker
	signalGen  *signal.Generator
	posManager *position.Manager

	cap   Capability
	store Store
	log   logger.Logger

	startingEquity float64
	tradeHistory   []core.Trade

	// previousTickets is the previous cycle's open-position ticket set, the
	// sole carrier of cross-cycle continuity for broker-close detection
	// (spec §3, §5): updated after step 3's Monitor call and before any
	// step that could itself open or close a position.
	previousTickets *set.LinkedHashSetINT64
}

// NewLoop builds an execution Loop from its collaborators.
func NewLoop(
	cfg Config,
	instrument core.Instrument,
	emaPeriod, rsiPeriod, atrPeriod, atrAveragePeriod, swingLookback int,
	sessionMgr *session.Manager,
	volatility *risk.VolatilityFilter,
	validator *risk.Validator,
	sizer *risk.Sizer,
	breaker *risk.Breaker,
	signalGen *signal.Generator,
	posManager *position.Manager,
	cap Capability,
	store Store,
	log logger.Logger,
	startingEquity float64,
) *Loop {
	return &Loop{
		cfg: cfg, instrument: instrument,
		indCfg: indicatorConfig{
			EMAPeriod: emaPeriod, RSIPeriod: rsiPeriod, ATRPeriod: atrPeriod,
			ATRAveragePeriod: atrAveragePeriod, SwingLookback: swingLookback,
		},
		session: sessionMgr, volatility: volatility, validator: validator,
		sizer: sizer, breaker: breaker, signalGen: signalGen, posManager: posManager,
		cap: cap, store: store, log: log, startingEquity: startingEquity,
		previousTickets: set.NewLinkedHashSetINT64(),
	}
}

// Run ticks RunCycle at cfg.CycleIntervalSeconds until ctx is cancelled,
// in the mutex-free single-goroutine ticker idiom (no concurrent cycle
// ever overlaps another, matching the fixed-cadence design in spec §5).
func (l *Loop) Run(ctx context.Context) error {
	interval := time.Duration(l.cfg.CycleIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.RunCycle(l.cap.Now()); err != nil {
				l.log.WithError(err).Error("execution cycle failed")
			}
		}
	}
}

// RunCycle executes one pass of spec §4.10's eight-step sequence.
func (l *Loop) RunCycle(now time.Time) error {
	// 1. Session gate.
	sessionInfo := l.session.IsTradingWindow(now)
	if !sessionInfo.Active {
		l.log.Debug(string(enginerr.RejectSessionClosed))
		return nil
	}

	// 2. Fetch market snapshot and compute indicators.
	snapshot, err := l.fetchSnapshot()
	if err != nil {
		return err
	}

	// 3. Monitor existing positions before considering a new entry.
	openPositions, err := l.cap.GetOpenPositions(l.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("%w: fetch open positions: %v", enginerr.ErrTransient, err)
	}
	if err := l.posManager.Monitor(openPositions, snapshot.Tick.Mid(), now, lastN(snapshot.M1Candles, 5), l.previousTickets); err != nil {
		return fmt.Errorf("%w: monitor positions: %v", enginerr.ErrTransient, err)
	}

	// The previous-tickets set is updated here, right after Monitor
	// consumes it and before any later step (4-8) that could open or
	// close a position, per spec §5's continuity-carrier ownership rule.
	l.previousTickets = set.NewLinkedHashSetINT64()
	for _, p := range openPositions {
		l.previousTickets.Add(p.Ticket)
	}

	// 4. Circuit-breaker check.
	account, err := l.cap.GetAccount()
	if err != nil {
		return fmt.Errorf("%w: fetch account: %v", enginerr.ErrTransient, err)
	}
	dailyPnL, err := l.store.GetSessionPnL(now)
	if err != nil {
		return fmt.Errorf("%w: fetch session pnl: %v", enginerr.ErrTransient, err)
	}
	history, err := l.store.GetRecentTrades(20)
	if err != nil {
		return fmt.Errorf("%w: fetch trade history: %v", enginerr.ErrTransient, err)
	}
	breakerState, events := l.breaker.CheckHalts(history, dailyPnL, l.startingEquity, now)
	for _, evt := range events {
		if err := l.store.RecordEvent(evt); err != nil {
			l.log.WithError(err).Warn("failed to record circuit breaker event")
		}
	}
	if breakerState.Halted {
		l.log.WithField("reason", breakerState.HaltReason).Info(string(enginerr.RejectCircuitBreakerHalted))
		return nil
	}

	// 5. Concurrency check.
	if len(openPositions) >= l.cfg.MaxConcurrentPositions {
		l.log.Debug(string(enginerr.RejectConcurrencySaturated))
		return nil
	}

	// 6. Generate signal.
	sig, ok := l.buildSignal(snapshot, now)
	if !ok {
		return nil
	}

	// 7. Validate and size.
	atrValidation := l.volatility.ValidateATR(snapshot.Indicators.CurrentATR(), snapshot.Indicators.ATRAverage)
	if !atrValidation.Valid {
		l.log.WithField("reason", atrValidation.Reason).Debug(string(enginerr.RejectATRExtreme))
		return nil
	}
	sig.Confidence = clampConfidence(sig.Confidence + atrValidation.ConfidenceAdjustment)

	validation := l.validator.ValidateSignal(snapshot.Tick.SpreadPts, snapshot.Indicators.CurrentATR(), snapshot.Indicators.ATRAverage, account, len(openPositions), sessionInfo.Type)
	if !validation.Valid {
		l.log.WithField("reason", validation.Reason).Debug("signal validation failed")
		return nil
	}

	signalID, err := l.store.RecordSignal(sig)
	if err != nil {
		l.log.WithError(err).Warn("failed to record signal")
	}

	stopDistance := l.sizer.CalculateStopDistance(l.cfg.StopLossRangePreferred)
	riskPercent := breakerState.AdjustedRiskPercent * sessionInfo.RiskMultiplier
	if sig.AlignmentResult.IsNeutralTrend {
		stopDistance *= l.cfg.NeutralTrendTighterStopPercent
	}

	if sd := l.validator.ValidateStopDistance(stopDistance); !sd.Valid {
		l.log.WithField("reason", sd.Reason).Debug("signal validation failed")
		return nil
	}

	lot := l.sizer.CalculateLotSize(account.Equity, riskPercent, stopDistance)
	if sig.AlignmentResult.IsNeutralTrend {
		lot *= l.cfg.NeutralTrendSizeReduction
	}
	if lot <= 0 {
		l.log.Debug(string(enginerr.RejectInvalidLotSize))
		return nil
	}

	slPrice, tpPrice := l.plannedStopAndTarget(sig, stopDistance)

	// 8. Place order and record entry, recomputing SL/TP relative to the
	// actual fill price so the planned distances survive slippage.
	result, err := l.cap.PlaceOrder(core.OrderRequest{
		Symbol: l.cfg.Symbol, Side: sig.Direction, Volume: lot,
		Price: sig.Price, SL: slPrice, TP: tpPrice,
		Deviation: l.cfg.SlippageTolerancePoints, Magic: l.cfg.Magic,
		Comment: sig.Reason,
	})
	if err != nil {
		return fmt.Errorf("%w: place order: %v", enginerr.ErrTransient, err)
	}
	if !result.Success {
		l.log.WithField("retcode", result.Retcode).Warn("order rejected by venue")
		return nil
	}

	finalSL, finalTP := l.preserveDistances(sig.Direction, result.FillPrice, stopDistance, l.instrument.ToPrice(stopDistance*l.cfg.RiskRewardRatioPreferred))
	return l.store.RecordTradeEntry(result.Ticket, signalID, sig, result.FillPrice, lot, finalSL, finalTP, now)
}

func (l *Loop) fetchSnapshot() (core.MarketSnapshot, error) {
	m1, err := l.cap.GetCandles(l.cfg.Symbol, 1, l.cfg.M1Count)
	if err != nil {
		return core.MarketSnapshot{}, fmt.Errorf("%w: fetch M1 candles: %v", enginerr.ErrTransient, err)
	}
	m5, err := l.cap.GetCandles(l.cfg.Symbol, 5, l.cfg.M5Count)
	if err != nil {
		return core.MarketSnapshot{}, fmt.Errorf("%w: fetch M5 candles: %v", enginerr.ErrTransient, err)
	}
	if !core.ValidateCandles(m1, l.cfg.MinM1Candles) || !core.ValidateCandles(m5, l.cfg.MinM5Candles) {
		return core.MarketSnapshot{}, fmt.Errorf("%w: insufficient candle history", enginerr.ErrData)
	}
	tick, err := l.cap.GetTick(l.cfg.Symbol)
	if err != nil {
		return core.MarketSnapshot{}, fmt.Errorf("%w: fetch tick: %v", enginerr.ErrTransient, err)
	}

	ind := l.computeIndicators(m1, m5)
	return core.MarketSnapshot{M1Candles: m1, M5Candles: m5, Tick: tick, Indicators: ind}, nil
}

func (l *Loop) computeIndicators(m1, m5 []core.Candle) core.IndicatorSnapshot {
	m5Ema21 := indicator.EMA(core.Closes(m5), l.indCfg.EMAPeriod)
	m1Rsi := indicator.RSI(core.Closes(m1), l.indCfg.RSIPeriod)
	m5Rsi := indicator.RSI(core.Closes(m5), l.indCfg.RSIPeriod)
	atrRaw := indicator.ATR(core.Highs(m5), core.Lows(m5), core.Closes(m5), l.indCfg.ATRPeriod)
	atrPts := make([]float64, len(atrRaw))
	for i, v := range atrRaw {
		atrPts[i] = l.instrument.ToPoints(v)
	}

	swings := indicator.IdentifySwingPoints(m5, l.indCfg.SwingLookback)

	return core.IndicatorSnapshot{
		M5EMA21:    core.Series[float64](m5Ema21),
		M1RSI:      core.Series[float64](m1Rsi),
		M5RSI:      core.Series[float64](m5Rsi),
		ATRPoints:  core.Series[float64](atrPts),
		ATRAverage: indicator.AverageOf(atrPts, l.indCfg.ATRAveragePeriod),
		SwingHighs: swings.Highs,
		SwingLows:  swings.Lows,
	}
}

// buildSignal assembles the two-timeframe views the signal generator
// expects (spec §4.3) and runs the generation pipeline.
func (l *Loop) buildSignal(snapshot core.MarketSnapshot, now time.Time) (core.Signal, bool) {
	m5 := signal.M5Data{
		Candles: snapshot.M5Candles,
		EMA21:   snapshot.Indicators.M5EMA21.Values(),
		SwingPoints: indicator.SwingPoints{
			Highs: snapshot.Indicators.SwingHighs,
			Lows:  snapshot.Indicators.SwingLows,
		},
	}

	last5 := lastN(snapshot.M1Candles, 5)
	m1 := signal.M1Data{
		Candles:      snapshot.M1Candles,
		RSI:          snapshot.Indicators.M1RSI.Values(),
		Avg5BodySize: avgBody(last5),
		Avg5Volume:   avgVolume(last5),
	}

	ind := signal.Indicators{
		ATRPoints:  snapshot.Indicators.CurrentATR(),
		ATRAverage: snapshot.Indicators.ATRAverage,
	}

	return l.signalGen.GenerateSignal(m5, m1, ind, now)
}

func avgBody(candles []core.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var total float64
	for _, c := range candles {
		total += c.Body()
	}
	return total / float64(len(candles))
}

func avgVolume(candles []core.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var total float64
	for _, c := range candles {
		total += c.Volume
	}
	return total / float64(len(candles))
}

func (l *Loop) plannedStopAndTarget(sig core.Signal, stopDistancePoints float64) (sl, tp float64) {
	stop := l.instrument.ToPrice(stopDistancePoints)
	target := l.instrument.ToPrice(stopDistancePoints * l.cfg.RiskRewardRatioPreferred)
	if sig.Direction == core.Buy {
		return sig.Price - stop, sig.Price + target
	}
	return sig.Price + stop, sig.Price - target
}

// preserveDistances recomputes SL/TP relative to the actual fill price,
// keeping the planned stop distance and reward distance intact (spec
// §4.10 step 8's slippage note).
func (l *Loop) preserveDistances(side core.Side, fillPrice, stopDistancePoints, rewardDistancePrice float64) (sl, tp float64) {
	stop := l.instrument.ToPrice(stopDistancePoints)
	if side == core.Buy {
		return fillPrice - stop, fillPrice + rewardDistancePrice
	}
	return fillPrice + stop, fillPrice - rewardDistancePrice
}

func lastN(candles []core.Candle, n int) []core.Candle {
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
