package risk

// VolatilityConfig mirrors spec §6's atr.* config surface.
type VolatilityConfig struct {
	MinPoints      float64
	MaxPoints      float64
	OptimalMin     float64
	OptimalMax     float64
	SpikeMultiplier float64
	AveragePeriod  int
}

// ATRValidation is the volatility filter's verdict: whether the current
// ATR admits a new trade, and a confidence adjustment to apply if so.
type ATRValidation struct {
	Valid               bool
	Reason              string
	ConfidenceAdjustment float64
}

// VolatilityFilter gates trade admission on current ATR being in a sane
// band (not too quiet, not a news spike).
type VolatilityFilter struct {
	cfg VolatilityConfig
}

// NewVolatilityFilter builds a VolatilityFilter.
func NewVolatilityFilter(cfg VolatilityConfig) *VolatilityFilter {
	return &VolatilityFilter{cfg: cfg}
}

// ValidateATR rejects too-quiet, too-wide, or spiking markets; otherwise
// reports a confidence delta (0 in the optimal band, -10 otherwise).
func (f *VolatilityFilter) ValidateATR(atr, atrAverage float64) ATRValidation {
	if atr < f.cfg.MinPoints {
		return ATRValidation{Valid: false, Reason: "ATR below minimum"}
	}
	if atr > f.cfg.MaxPoints {
		return ATRValidation{Valid: false, Reason: "ATR above maximum"}
	}
	if atrAverage > 0 && atr > f.cfg.SpikeMultiplier*atrAverage {
		return ATRValidation{Valid: false, Reason: "ATR spike"}
	}

	if atr >= f.cfg.OptimalMin && atr <= f.cfg.OptimalMax {
		return ATRValidation{Valid: true, ConfidenceAdjustment: 0}
	}
	return ATRValidation{Valid: true, ConfidenceAdjustment: -10}
}

// IsMarketChoppy reports whether ATR sits at or below the minimum
// admissible band, a proxy for a range-bound, low-conviction market.
func (f *VolatilityFilter) IsMarketChoppy(atr float64) bool {
	return atr <= f.cfg.MinPoints
}

// IsMarketTooVolatile reports whether ATR exceeds the spike multiplier of
// its rolling average.
func (f *VolatilityFilter) IsMarketTooVolatile(atr, atrAverage float64) bool {
	return atrAverage > 0 && atr > f.cfg.SpikeMultiplier*atrAverage
}
