package risk

import (
	"math"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/dtshaba/goldengine/internal/core"
)

// BreakerConfig mirrors spec §6's circuit_breaker.* config surface.
type BreakerConfig struct {
	ConsecutiveLosses    int // N1, default 3
	LossesInWindow       int // N2, default 5
	WindowSize           int // N_w, default 7
	DailyDrawdownPercent float64 // D%, default 3.0
	StopoutsInWindow     int // S1, default 4
	StopoutWindowSize    int // S_w, default 5
	HaltDurationMinutes  int // H, default 60

	DefaultRiskPercent         float64
	DefaultConfidenceThreshold float64

	After1LossConfidenceThreshold float64 // e.g. 70
	After2LossRiskPercent         float64 // e.g. 0.3
	After2LossConfidenceThreshold float64 // e.g. 75
}

// Breaker is the graduated circuit-breaker state machine of spec §4.7. Its
// mutable fields are private; callers observe an immutable snapshot each
// cycle via GetCurrentState, matching spec §5's shared-resource policy.
type Breaker struct {
	cfg        BreakerConfig
	instrument core.Instrument

	mu                 sync.Mutex
	halted             bool
	haltReason         string
	haltStart          time.Time
	adjustedRisk       float64
	adjustedConfidence float64
	recentLossCount    int
}

// NewBreaker builds a Breaker starting in the Running state with default
// risk/confidence.
func NewBreaker(cfg BreakerConfig, instrument core.Instrument) *Breaker {
	return &Breaker{
		cfg:                cfg,
		instrument:         instrument,
		adjustedRisk:       cfg.DefaultRiskPercent,
		adjustedConfidence: cfg.DefaultConfidenceThreshold,
	}
}

// CheckHalts recomputes the breaker's state for the current cycle. While
// halted, it only checks whether the halt duration has elapsed and, if so,
// whether the reset conditions are met; the graduated response and the halt
// predicates are not evaluated until the breaker is running again. While
// running, the graduated response is applied and then the halt predicates
// are evaluated. tradeHistory must be ordered
// most-recent-first (as returned by the persistence collaborator's
// get_recent_trades). Returns the resulting snapshot plus any transition
// events to persist.
func (b *Breaker) CheckHalts(tradeHistory []core.Trade, dailyPnL, startingEquity float64, now time.Time) (core.CircuitBreakerState, []core.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var events []core.Event

	if b.halted {
		elapsed := now.Sub(b.haltStart)
		if elapsed >= time.Duration(b.cfg.HaltDurationMinutes)*time.Minute {
			if b.checkResetConditions(tradeHistory) {
				end := now
				events = append(events, core.Event{
					Type:      core.EventReset,
					Reason:    "reset conditions met",
					StartTime: b.haltStart,
					EndTime:   &end,
					LossCount: b.recentLossCount,
					DailyPnL:  dailyPnL,
				})
				b.reset()
				return b.snapshot(), events
			}
		}
		// Remain halted until the duration has elapsed and the reset
		// conditions are met.
		return b.snapshot(), events
	}

	prevLossCount := b.recentLossCount
	b.adjustRiskParameters(tradeHistory)
	if b.recentLossCount != prevLossCount && b.recentLossCount > 0 {
		events = append(events, core.Event{
			Type:      core.EventRiskAdjustment,
			Reason:    "graduated response",
			StartTime: now,
			LossCount: b.recentLossCount,
			DailyPnL:  dailyPnL,
		})
	}

	if reason, halt := b.checkHaltPredicates(tradeHistory, dailyPnL, startingEquity); halt {
		b.halted = true
		b.haltReason = reason
		b.haltStart = now
		events = append(events, core.Event{
			Type:      core.EventHalt,
			Reason:    reason,
			StartTime: now,
			LossCount: b.recentLossCount,
			DailyPnL:  dailyPnL,
		})
	}

	return b.snapshot(), events
}

// GetCurrentState returns the breaker's immutable snapshot without
// recomputing anything.
func (b *Breaker) GetCurrentState() core.CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

func (b *Breaker) snapshot() core.CircuitBreakerState {
	return core.CircuitBreakerState{
		Halted:                      b.halted,
		HaltReason:                  b.haltReason,
		HaltStartTime:               b.haltStart,
		AdjustedRiskPercent:         b.adjustedRisk,
		AdjustedConfidenceThreshold: b.adjustedConfidence,
		RecentLossCount:             b.recentLossCount,
	}
}

func (b *Breaker) reset() {
	b.halted = false
	b.haltReason = ""
	b.adjustedRisk = b.cfg.DefaultRiskPercent
	b.adjustedConfidence = b.cfg.DefaultConfidenceThreshold
	b.recentLossCount = 0
}

// adjustRiskParameters applies the graduated pre-halt tightening from the
// three most recent trades (most-recent-first).
func (b *Breaker) adjustRiskParameters(tradeHistory []core.Trade) {
	n := len(tradeHistory)
	if n > 3 {
		n = 3
	}
	losses := countLosses(tradeHistory[:n])
	b.recentLossCount = losses

	switch {
	case losses >= 2:
		b.adjustedRisk = b.cfg.After2LossRiskPercent
		b.adjustedConfidence = b.cfg.After2LossConfidenceThreshold
	case losses >= 1:
		b.adjustedRisk = b.cfg.DefaultRiskPercent
		b.adjustedConfidence = b.cfg.After1LossConfidenceThreshold
	default:
		b.adjustedRisk = b.cfg.DefaultRiskPercent
		b.adjustedConfidence = b.cfg.DefaultConfidenceThreshold
	}
}

func (b *Breaker) checkHaltPredicates(tradeHistory []core.Trade, dailyPnL, startingEquity float64) (string, bool) {
	if n := b.cfg.ConsecutiveLosses; n > 0 && len(tradeHistory) >= n && allLosses(tradeHistory[:n]) {
		return "3_consecutive_losses", true
	}

	if w := b.cfg.WindowSize; w > 0 && len(tradeHistory) >= w {
		if countLosses(tradeHistory[:w]) >= b.cfg.LossesInWindow {
			return "5_losses_in_7_trades", true
		}
	}

	if startingEquity > 0 && b.cfg.DailyDrawdownPercent > 0 {
		if dailyPnL <= -(b.cfg.DailyDrawdownPercent/100)*startingEquity {
			return "daily_drawdown_3pct", true
		}
	}

	if w := b.cfg.StopoutWindowSize; w > 0 && len(tradeHistory) >= w {
		if countStopouts(tradeHistory[:w]) >= b.cfg.StopoutsInWindow {
			return "4_stopouts_in_5_trades", true
		}
	}

	return "", false
}

func (b *Breaker) checkResetConditions(tradeHistory []core.Trade) bool {
	if len(tradeHistory) >= 2 && tradeHistory[0].RealizedPnL > 0 && tradeHistory[1].RealizedPnL > 0 {
		return true
	}
	if len(tradeHistory) >= 1 {
		t := tradeHistory[0]
		r := b.computeR(t)
		if r > 0 && t.RealizedPnL >= 1.5*r {
			return true
		}
	}
	return false
}

// computeR computes the risk amount R = stop_distance_points *
// point_value_per_lot * lots for a closed trade (Glossary, §9's
// generalized point_value_per_lot).
func (b *Breaker) computeR(t core.Trade) float64 {
	stopDistancePoints := b.instrument.ToPoints(math.Abs(t.EntryPrice - t.StopLoss))
	return stopDistancePoints * b.instrument.PointValuePerLot * t.LotSize
}

func allLosses(trades []core.Trade) bool {
	return lo.EveryBy(trades, func(t core.Trade) bool {
		return t.RealizedPnL < 0
	})
}

func countLosses(trades []core.Trade) int {
	return lo.CountBy(trades, func(t core.Trade) bool {
		return t.RealizedPnL < 0
	})
}

func countStopouts(trades []core.Trade) int {
	return lo.CountBy(trades, func(t core.Trade) bool {
		return t.ExitReason == "stop_loss"
	})
}
