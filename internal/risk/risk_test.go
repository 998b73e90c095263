package risk_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dtshaba/goldengine/internal/core"
	"github.com/dtshaba/goldengine/internal/risk"
)

func TestSizer_ExampleScenario(t *testing.T) {
	sizer := risk.NewSizer(risk.SizerConfig{MinLot: 0.01, MaxLot: 1.0}, core.DefaultXAUUSD)

	stopDistance := sizer.CalculateStopDistance(0.30)
	assert.InDelta(t, 33.0, stopDistance, 1e-9)

	lot := sizer.CalculateLotSize(10000, 0.5, stopDistance)
	assert.InDelta(t, 0.02, lot, 1e-9)
}

func TestSizer_HardCapEnforced(t *testing.T) {
	sizer := risk.NewSizer(risk.SizerConfig{MinLot: 0.01, MaxLot: 5.0}, core.DefaultXAUUSD)
	lot := sizer.CalculateLotSize(1_000_000, 2.0, 10)
	assert.LessOrEqual(t, lot, risk.HardMaxLot)
}

func TestValidator_SequentialGates(t *testing.T) {
	v := risk.NewValidator(risk.ValidatorConfig{
		PrimeMaxSpread: 30, AcceptableMaxSpread: 40, DefaultMaxSpread: 20,
		MaxConcurrentPositions: 1,
	})

	account := core.Account{Equity: 10000}

	result := v.ValidateSignal(50, 20, 15, account, 0, core.SessionPrime)
	assert.False(t, result.Valid)
	assert.Equal(t, "spread too wide", result.Reason)

	result = v.ValidateSignal(10, 40, 15, account, 0, core.SessionPrime)
	assert.False(t, result.Valid)
	assert.Equal(t, "extreme ATR spike", result.Reason)

	result = v.ValidateSignal(10, 20, 15, core.Account{Equity: 0}, 0, core.SessionPrime)
	assert.False(t, result.Valid)
	assert.Equal(t, "invalid equity", result.Reason)

	result = v.ValidateSignal(10, 20, 15, account, 1, core.SessionPrime)
	assert.False(t, result.Valid)

	result = v.ValidateSignal(10, 20, 15, account, 0, core.SessionPrime)
	assert.True(t, result.Valid)
}

func TestValidator_RejectsZeroStopDistance(t *testing.T) {
	v := risk.NewValidator(risk.ValidatorConfig{})

	result := v.ValidateStopDistance(0)
	assert.False(t, result.Valid)
	assert.Equal(t, "stop distance zero", result.Reason)

	result = v.ValidateStopDistance(-5)
	assert.False(t, result.Valid)
	assert.Equal(t, "stop distance zero", result.Reason)

	result = v.ValidateStopDistance(33)
	assert.True(t, result.Valid)
}

func TestBreaker_GraduatedResponse(t *testing.T) {
	cfg := risk.BreakerConfig{
		ConsecutiveLosses: 3, LossesInWindow: 5, WindowSize: 7,
		DailyDrawdownPercent: 3, StopoutsInWindow: 4, StopoutWindowSize: 5,
		HaltDurationMinutes:        60,
		DefaultRiskPercent:         0.5,
		DefaultConfidenceThreshold: 60,
		After1LossConfidenceThreshold: 70,
		After2LossRiskPercent:         0.3,
		After2LossConfidenceThreshold: 75,
	}
	b := risk.NewBreaker(cfg, core.DefaultXAUUSD)

	// most-recent-first: [-, -, +]
	history := []core.Trade{
		{RealizedPnL: -10},
		{RealizedPnL: -10},
		{RealizedPnL: 10},
	}

	state, _ := b.CheckHalts(history, 0, 10000, time.Now())
	assert.False(t, state.Halted)
	assert.Equal(t, 0.3, state.AdjustedRiskPercent)
	assert.Equal(t, 75.0, state.AdjustedConfidenceThreshold)
}

func TestBreaker_HaltOnThreeConsecutiveLosses(t *testing.T) {
	cfg := risk.BreakerConfig{
		ConsecutiveLosses: 3, LossesInWindow: 5, WindowSize: 7,
		DailyDrawdownPercent: 3, StopoutsInWindow: 4, StopoutWindowSize: 5,
		HaltDurationMinutes:        60,
		DefaultRiskPercent:         0.5,
		DefaultConfidenceThreshold: 60,
	}
	b := risk.NewBreaker(cfg, core.DefaultXAUUSD)

	history := []core.Trade{{RealizedPnL: -1}, {RealizedPnL: -1}, {RealizedPnL: -1}}
	state, events := b.CheckHalts(history, 0, 10000, time.Now())
	assert.True(t, state.Halted)
	assert.Equal(t, "3_consecutive_losses", state.HaltReason)
	assert.NotEmpty(t, events)
}

func TestBreaker_ResetAfterTwoWins(t *testing.T) {
	cfg := risk.BreakerConfig{
		ConsecutiveLosses: 3, LossesInWindow: 5, WindowSize: 7,
		DailyDrawdownPercent: 3, StopoutsInWindow: 4, StopoutWindowSize: 5,
		HaltDurationMinutes:        60,
		DefaultRiskPercent:         0.5,
		DefaultConfidenceThreshold: 60,
	}
	b := risk.NewBreaker(cfg, core.DefaultXAUUSD)

	start := time.Now()
	haltHistory := []core.Trade{{RealizedPnL: -1}, {RealizedPnL: -1}, {RealizedPnL: -1}}
	state, _ := b.CheckHalts(haltHistory, 0, 10000, start)
	assert.True(t, state.Halted)

	later := start.Add(61 * time.Minute)
	winHistory := []core.Trade{{RealizedPnL: 5}, {RealizedPnL: 5}, {RealizedPnL: -1}}
	state, events := b.CheckHalts(winHistory, 0, 10000, later)
	assert.False(t, state.Halted)
	assert.Equal(t, cfg.DefaultRiskPercent, state.AdjustedRiskPercent)
	assert.NotEmpty(t, events)
}

func TestVolatilityFilter_RejectsBelowMinimum(t *testing.T) {
	f := risk.NewVolatilityFilter(risk.VolatilityConfig{
		MinPoints: 10, MaxPoints: 100, OptimalMin: 20, OptimalMax: 60, SpikeMultiplier: 1.8,
	})
	result := f.ValidateATR(5, 30)
	assert.False(t, result.Valid)
}

func TestVolatilityFilter_SuboptimalAdjustment(t *testing.T) {
	f := risk.NewVolatilityFilter(risk.VolatilityConfig{
		MinPoints: 10, MaxPoints: 100, OptimalMin: 20, OptimalMax: 60, SpikeMultiplier: 1.8,
	})
	result := f.ValidateATR(70, 50)
	assert.True(t, result.Valid)
	assert.Equal(t, -10.0, result.ConfidenceAdjustment)
}
