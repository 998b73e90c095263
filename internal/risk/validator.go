package risk

import (
	"github.com/dtshaba/goldengine/internal/core"
)

// ExtremeATRSpikeMultiplier is the hard pre-trade rejection threshold; a
// distinct, higher bar than the confidence-scoring ATR spike threshold in
// the signal generator (1.8x) — this one guards against news-event spikes.
const ExtremeATRSpikeMultiplier = 2.5

// ValidatorConfig holds per-session spread ceilings and concurrency limits.
type ValidatorConfig struct {
	PrimeMaxSpread      float64
	AcceptableMaxSpread float64
	DefaultMaxSpread    float64

	MaxConcurrentPositions int
}

// Validation is the pre-trade validator's verdict.
type Validation struct {
	Valid  bool
	Reason string
}

// Validator runs the sequential pre-trade gates of spec §4.6.
type Validator struct {
	cfg ValidatorConfig
}

// NewValidator builds a risk Validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateSignal runs the four sequential checks: spread, extreme ATR
// spike, equity, and concurrency. The first failing check short-circuits.
func (v *Validator) ValidateSignal(spread, atr, atrAverage float64, account core.Account, openPositions int, sessionType core.SessionType) Validation {
	maxSpread := v.maxSpreadFor(sessionType)
	if spread > maxSpread {
		return Validation{Valid: false, Reason: "spread too wide"}
	}

	if atrAverage > 0 && atr > ExtremeATRSpikeMultiplier*atrAverage {
		return Validation{Valid: false, Reason: "extreme ATR spike"}
	}

	if account.Equity <= 0 {
		return Validation{Valid: false, Reason: "invalid equity"}
	}

	if openPositions >= v.cfg.MaxConcurrentPositions {
		return Validation{Valid: false, Reason: "max concurrent positions reached"}
	}

	return Validation{Valid: true}
}

// ValidateStopDistance rejects a non-positive stop distance before sizing
// runs, the boundary case order_validator.py guards with its own
// "Stop loss distance is zero" rejection.
func (v *Validator) ValidateStopDistance(stopDistancePoints float64) Validation {
	if stopDistancePoints <= 0 {
		return Validation{Valid: false, Reason: "stop distance zero"}
	}
	return Validation{Valid: true}
}

func (v *Validator) maxSpreadFor(sessionType core.SessionType) float64 {
	switch sessionType {
	case core.SessionPrime:
		return v.cfg.PrimeMaxSpread
	case core.SessionAcceptable:
		return v.cfg.AcceptableMaxSpread
	default:
		return v.cfg.DefaultMaxSpread
	}
}
