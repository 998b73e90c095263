// Package position implements the exit strategy and position manager
// (spec §4.8-§4.9): prioritized exit evaluation, partial closes, and
// break-even SL advancement, plus broker-position reconciliation.
package position

import (
	"time"

	"github.com/dtshaba/goldengine/internal/core"
)

// ActionType is the exit strategy's dispatch decision.
type ActionType string

const (
	ActionNone         ActionType = "none"
	ActionClose        ActionType = "close"
	ActionSLAdjust     ActionType = "sl_adjust"
	ActionPartialClose ActionType = "partial_close"
)

// Action is the result of one exit-strategy evaluation.
type Action struct {
	Type          ActionType
	Reason        string
	NewSL         float64
	CloseFraction float64 // fraction of current remaining volume, for ActionPartialClose
}

// ExitConfig mirrors spec §6's exit.* config surface.
type ExitConfig struct {
	TimeLimitMinutes         float64
	BreakevenProfitPercent   float64
	BreakevenBufferPoints    float64
	PartialExit1Percent      float64
	PartialExit1ClosePercent float64
	PartialExit2Percent      float64
	PartialExit2ClosePercent float64
}

// ExitStrategy evaluates a position against the priority chain of spec
// §4.8: take profit, time limit, stop loss, momentum reversal, partial exits
// (tier 2, then tier 1), then break-even. The first matching rule wins.
type ExitStrategy struct {
	cfg        ExitConfig
	instrument core.Instrument
}

// NewExitStrategy builds an ExitStrategy.
func NewExitStrategy(cfg ExitConfig, instrument core.Instrument) *ExitStrategy {
	return &ExitStrategy{cfg: cfg, instrument: instrument}
}

// Evaluate runs the priority chain against a live position, its current
// price, and the most recent M1 candles (for the momentum-reversal check).
func (e *ExitStrategy) Evaluate(pos core.Position, currentPrice float64, now time.Time, recentM1 []core.Candle) Action {
	if hit := e.takeProfitHit(pos, currentPrice); hit {
		return Action{Type: ActionClose, Reason: "take_profit"}
	}

	if now.Sub(pos.OpenTime).Minutes() >= e.cfg.TimeLimitMinutes {
		return Action{Type: ActionClose, Reason: "time_limit"}
	}

	if hit := e.stopLossHit(pos, currentPrice); hit {
		return Action{Type: ActionClose, Reason: "stop_loss"}
	}

	if e.momentumReversed(pos, recentM1) {
		return Action{Type: ActionClose, Reason: "momentum_reversal"}
	}

	unrealizedPercent := e.unrealizedReturnPercent(pos, currentPrice)

	if unrealizedPercent >= e.cfg.PartialExit2Percent && pos.PartialTier1Done && !pos.PartialTier2Done {
		return Action{Type: ActionPartialClose, Reason: "partial_exit_2", CloseFraction: e.cfg.PartialExit2ClosePercent / 100}
	}

	if unrealizedPercent >= e.cfg.PartialExit1Percent && !pos.PartialTier1Done {
		return Action{
			Type:          ActionPartialClose,
			Reason:        "partial_exit_1",
			CloseFraction: e.cfg.PartialExit1ClosePercent / 100,
			NewSL:         e.breakevenSL(pos),
		}
	}

	if unrealizedPercent >= e.cfg.BreakevenProfitPercent && !e.slAlreadyAdvanced(pos) {
		return Action{Type: ActionSLAdjust, Reason: "breakeven", NewSL: e.breakevenSL(pos)}
	}

	return Action{Type: ActionNone}
}

func (e *ExitStrategy) takeProfitHit(pos core.Position, price float64) bool {
	if pos.Side == core.Buy {
		return price >= pos.TakeProfit
	}
	return price <= pos.TakeProfit
}

func (e *ExitStrategy) stopLossHit(pos core.Position, price float64) bool {
	if pos.Side == core.Buy {
		return price <= pos.StopLoss
	}
	return price >= pos.StopLoss
}

func (e *ExitStrategy) momentumReversed(pos core.Position, recentM1 []core.Candle) bool {
	if len(recentM1) < 3 {
		return false
	}
	last3 := recentM1[len(recentM1)-3:]
	for _, c := range last3 {
		if pos.Side == core.Buy && !c.IsBearish() {
			return false
		}
		if pos.Side == core.Sell && !c.IsBullish() {
			return false
		}
	}
	return true
}

func (e *ExitStrategy) unrealizedReturnPercent(pos core.Position, price float64) float64 {
	if pos.EntryPrice == 0 {
		return 0
	}
	if pos.Side == core.Buy {
		return (price - pos.EntryPrice) / pos.EntryPrice * 100
	}
	return (pos.EntryPrice - price) / pos.EntryPrice * 100
}

func (e *ExitStrategy) breakevenSL(pos core.Position) float64 {
	buffer := e.instrument.ToPrice(e.cfg.BreakevenBufferPoints)
	if pos.Side == core.Buy {
		return pos.EntryPrice + buffer
	}
	return pos.EntryPrice - buffer
}

func (e *ExitStrategy) slAlreadyAdvanced(pos core.Position) bool {
	target := e.breakevenSL(pos)
	if pos.Side == core.Buy {
		return pos.StopLoss >= target
	}
	return pos.StopLoss <= target
}
