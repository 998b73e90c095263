package position_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dtshaba/goldengine/internal/core"
	"github.com/dtshaba/goldengine/internal/position"
)

func TestExitStrategy_PartialExits(t *testing.T) {
	cfg := position.ExitConfig{
		TimeLimitMinutes:         15,
		BreakevenProfitPercent:   0.15,
		BreakevenBufferPoints:    2,
		PartialExit1Percent:      0.20,
		PartialExit1ClosePercent: 50,
		PartialExit2Percent:      0.35,
		PartialExit2ClosePercent: 30,
	}
	strategy := position.NewExitStrategy(cfg, core.DefaultXAUUSD)

	pos := core.Position{
		Ticket: 1, Side: core.Buy, Volume: 1.0,
		EntryPrice: 2000.00, StopLoss: 1998.00, TakeProfit: 2010.00,
		OpenTime: time.Now(),
	}

	action := strategy.Evaluate(pos, 2004.00, time.Now(), nil)
	assert.Equal(t, position.ActionPartialClose, action.Type)
	assert.Equal(t, "partial_exit_1", action.Reason)
	assert.InDelta(t, 0.5, action.CloseFraction, 1e-9)
	assert.InDelta(t, 2000.02, action.NewSL, 1e-9)

	pos.PartialTier1Done = true
	pos.StopLoss = 2000.02
	action = strategy.Evaluate(pos, 2007.00, time.Now(), nil)
	assert.Equal(t, position.ActionPartialClose, action.Type)
	assert.Equal(t, "partial_exit_2", action.Reason)
	assert.InDelta(t, 0.3, action.CloseFraction, 1e-9)
}

func TestExitStrategy_TakeProfitTakesPriority(t *testing.T) {
	cfg := position.ExitConfig{TimeLimitMinutes: 15}
	strategy := position.NewExitStrategy(cfg, core.DefaultXAUUSD)

	pos := core.Position{
		Side: core.Buy, EntryPrice: 2000, StopLoss: 1998, TakeProfit: 2002.4,
		OpenTime: time.Now().Add(-time.Hour),
	}
	action := strategy.Evaluate(pos, 2003, time.Now(), nil)
	assert.Equal(t, position.ActionClose, action.Type)
	assert.Equal(t, "take_profit", action.Reason)
}

func TestExitStrategy_MomentumReversalWithinTimeLimit(t *testing.T) {
	cfg := position.ExitConfig{TimeLimitMinutes: 1000}
	strategy := position.NewExitStrategy(cfg, core.DefaultXAUUSD)

	pos := core.Position{
		Side: core.Buy, EntryPrice: 2000, StopLoss: 1990, TakeProfit: 2100,
		OpenTime: time.Now(),
	}

	bearish := core.Candle{Open: 10, Close: 5, High: 11, Low: 4}
	action := strategy.Evaluate(pos, 2001, time.Now(), []core.Candle{bearish, bearish, bearish})
	assert.Equal(t, position.ActionClose, action.Type)
	assert.Equal(t, "momentum_reversal", action.Reason)
}

func TestExitStrategy_StopLossSafety(t *testing.T) {
	cfg := position.ExitConfig{TimeLimitMinutes: 1000}
	strategy := position.NewExitStrategy(cfg, core.DefaultXAUUSD)

	pos := core.Position{
		Side: core.Buy, EntryPrice: 2000, StopLoss: 1998, TakeProfit: 2100,
		OpenTime: time.Now(),
	}
	action := strategy.Evaluate(pos, 1997, time.Now(), nil)
	assert.Equal(t, position.ActionClose, action.Type)
	assert.Equal(t, "stop_loss", action.Reason)
}
