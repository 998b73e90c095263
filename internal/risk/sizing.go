// Package risk implements the position sizer, pre-trade validator,
// circuit breaker, and volatility filter (spec §4.5-§4.7, session volatility
// gate).
package risk

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/dtshaba/goldengine/internal/core"
)

// HardMaxLot is the absolute lot ceiling regardless of configured max_lot
// (spec §4.5, §8 invariant 3).
const HardMaxLot = 0.10

// AbsoluteMaxRiskPercent is the hard re-clamp ceiling for actual risk
// (spec §4.5 step 4, §8 invariant 2).
const AbsoluteMaxRiskPercent = 2.0

// SizerConfig holds the position sizer's configured bounds.
type SizerConfig struct {
	MinLot float64
	MaxLot float64
}

// Sizer converts a risk budget into a lot size with hard safety caps.
type Sizer struct {
	cfg        SizerConfig
	instrument core.Instrument
}

// NewSizer builds a position Sizer.
func NewSizer(cfg SizerConfig, instrument core.Instrument) *Sizer {
	return &Sizer{cfg: cfg, instrument: instrument}
}

// CalculateStopDistance converts a "points·100" config value (see spec §9's
// ambiguity flag: stop_loss_range.preferred is points·100, not a percent of
// price) into a points distance, adding a 3-point safety buffer.
func (s *Sizer) CalculateStopDistance(stopPercentConfig float64) float64 {
	return stopPercentConfig*100 + 3
}

// CalculateLotSize implements spec §4.5's sizing formula with its hard
// safety re-clamp.
func (s *Sizer) CalculateLotSize(equity, riskPercent, stopDistancePoints float64) float64 {
	if stopDistancePoints <= 0 || equity <= 0 {
		return 0
	}

	lots := (equity * riskPercent / 100) / (stopDistancePoints * s.instrument.PointValuePerLot)
	lots = s.clampAndRound(lots)

	actualRiskPercent := s.actualRiskPercent(lots, equity, stopDistancePoints)
	if actualRiskPercent > AbsoluteMaxRiskPercent {
		lots = (equity * AbsoluteMaxRiskPercent / 100) / (stopDistancePoints * s.instrument.PointValuePerLot)
		lots = s.clampAndRound(lots)
	}

	return lots
}

func (s *Sizer) actualRiskPercent(lots, equity, stopDistancePoints float64) float64 {
	if equity <= 0 {
		return 0
	}
	risk := lots * stopDistancePoints * s.instrument.PointValuePerLot
	return risk / equity * 100
}

func (s *Sizer) clampAndRound(lots float64) float64 {
	upperBound := s.cfg.MaxLot
	if upperBound > HardMaxLot {
		upperBound = HardMaxLot
	}
	if lots > upperBound {
		lots = upperBound
	}
	if lots < s.cfg.MinLot {
		lots = s.cfg.MinLot
	}

	precision := 2
	if s.cfg.MinLot < 0.01 {
		precision = 3
	}
	return roundTo(lots, precision)
}

func roundTo(v float64, precision int) float64 {
	mult := math.Pow(10, float64(precision))
	return math.Round(v*mult) / mult
}

// AverageOf computes the mean of values using gonum/stat, or 0 for an empty
// slice. The volatility filter and circuit breaker do not call it.
func AverageOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
