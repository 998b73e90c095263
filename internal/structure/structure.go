// Package structure classifies M5 market structure: trend, key levels, and
// the proximity/pullback/sweep/breakout patterns the signal generator
// scores and gates on.
package structure

import (
	"github.com/dtshaba/goldengine/internal/core"
	"github.com/dtshaba/goldengine/internal/indicator"
)

// Type is the classified M5 structure.
type Type string

const (
	Uptrend   Type = "uptrend"
	Downtrend Type = "downtrend"
	Pullback  Type = "pullback"
	None      Type = "none"
)

// Analysis is the result of AnalyzeStructure.
type Analysis struct {
	Trend         indicator.Trend
	Support       float64
	Resistance    float64
	StructureType Type
	CurrentPrice  float64
	EMA21         float64
}

// Config holds the structure analyzer's tunable tolerances, mirroring
// spec §6's config surface for swing-level proximity, EMA pullback, and
// liquidity-sweep/breakout toggles.
type Config struct {
	PriceLevelTolerancePoints float64
	EMAPullbackTolerancePoints float64

	SwingTolerancePoints float64
	SwingLookbackCandles int
	SwingMinBounces      int

	EMATolerancePoints   float64
	EMAMustHaveTouched   bool

	LiquiditySweepEnabled bool
	SweepThresholdPoints  float64

	BreakoutEnabled bool
}

// Analyzer classifies M5 market structure against an instrument's point
// size.
type Analyzer struct {
	cfg        Config
	instrument core.Instrument
}

// New builds a structure Analyzer.
func New(cfg Config, instrument core.Instrument) *Analyzer {
	return &Analyzer{cfg: cfg, instrument: instrument}
}

// AnalyzeStructure classifies trend, support/resistance, and structure type
// from M5 candles, EMA21, and previously identified swing points.
func (a *Analyzer) AnalyzeStructure(candles []core.Candle, ema21 []float64, swings indicator.SwingPoints) Analysis {
	if len(candles) == 0 || len(ema21) == 0 {
		return Analysis{Trend: indicator.TrendNeutral, StructureType: None}
	}

	currentPrice := candles[len(candles)-1].Close
	currentEMA := ema21[len(ema21)-1]

	trend := indicator.TrendFromEMA(ema21, 3)

	support := currentPrice * 0.999
	if len(swings.Lows) > 0 {
		support = maxOf(swings.Lows)
	}
	resistance := currentPrice * 1.001
	if len(swings.Highs) > 0 {
		resistance = minOf(swings.Highs)
	}

	structureType := None
	switch trend {
	case indicator.TrendBullish:
		if currentPrice > currentEMA {
			structureType = Uptrend
		} else if a.IsPullbackToEMA(currentPrice, currentEMA, a.cfg.EMAPullbackTolerancePoints, nil) {
			structureType = Pullback
		}
	case indicator.TrendBearish:
		if currentPrice < currentEMA {
			structureType = Downtrend
		} else if a.IsPullbackToEMA(currentPrice, currentEMA, a.cfg.EMAPullbackTolerancePoints, nil) {
			structureType = Pullback
		}
	}

	return Analysis{
		Trend:         trend,
		Support:       support,
		Resistance:    resistance,
		StructureType: structureType,
		CurrentPrice:  currentPrice,
		EMA21:         currentEMA,
	}
}

// IsPriceNearLevel reports whether price is within tolerancePoints of level,
// additionally requiring (when candles are supplied) that the level has
// been touched by at least cfg.SwingMinBounces of the last
// cfg.SwingLookbackCandles candles.
func (a *Analyzer) IsPriceNearLevel(price, level, tolerancePoints float64, candles []core.Candle) bool {
	if tolerancePoints == 0 {
		tolerancePoints = a.cfg.SwingTolerancePoints
	}
	priceTolerance := a.instrument.ToPrice(tolerancePoints)

	if abs(price-level) > priceTolerance {
		return false
	}

	if len(candles) >= a.cfg.SwingLookbackCandles && a.cfg.SwingLookbackCandles > 0 {
		window := candles[len(candles)-a.cfg.SwingLookbackCandles:]
		bounces := 0
		for _, c := range window {
			if c.Low <= level && level <= c.High {
				bounces++
			}
		}
		if bounces < a.cfg.SwingMinBounces {
			return false
		}
	}

	return true
}

// IsPullbackToEMA reports proximity to EMA plus, when cfg.EMAMustHaveTouched
// is set and m1Candles are supplied, confirmation that one of the last
// three M1 candles straddled the EMA.
func (a *Analyzer) IsPullbackToEMA(price, ema, tolerancePoints float64, m1Candles []core.Candle) bool {
	if tolerancePoints == 0 {
		tolerancePoints = a.cfg.EMATolerancePoints
	}
	priceTolerance := a.instrument.ToPrice(tolerancePoints)

	if abs(price-ema) > priceTolerance {
		return false
	}

	if a.cfg.EMAMustHaveTouched && len(m1Candles) >= 3 {
		recent := m1Candles[len(m1Candles)-3:]
		touched := false
		for _, c := range recent {
			if c.Low <= ema && ema <= c.High {
				touched = true
				break
			}
		}
		if !touched {
			return false
		}
	}

	return true
}

// DetectLiquiditySweep reports whether the last three M5 candles show a
// wick extending past a swing level and then closing back inside it.
func (a *Analyzer) DetectLiquiditySweep(candles []core.Candle, swingLows, swingHighs []float64) bool {
	if !a.cfg.LiquiditySweepEnabled || len(candles) < 3 {
		return false
	}

	thresholdPrice := a.instrument.ToPrice(a.cfg.SweepThresholdPoints)
	recent := candles[len(candles)-3:]

	if len(swingLows) > 0 {
		minLow := minOf(swingLows)
		sweepLevel := minLow - thresholdPrice
		for _, c := range recent {
			if c.Low < sweepLevel && c.Close > minLow {
				return true
			}
		}
	}

	if len(swingHighs) > 0 {
		maxHigh := maxOf(swingHighs)
		sweepLevel := maxHigh + thresholdPrice
		for _, c := range recent {
			if c.High > sweepLevel && c.Close < maxHigh {
				return true
			}
		}
	}

	return false
}

// DetectBreakout reports a clean M1 breakout of an M5 swing level in the
// given direction: confirmed when the prior candle tested the level, the
// current candle closes past it with the correct color and body ratio >=
// 0.4, or (legacy fallback) the prior candle closed and the current candle
// opened past the level.
func (a *Analyzer) DetectBreakout(m1Candles []core.Candle, swingHighs, swingLows []float64, direction core.Side) bool {
	if !a.cfg.BreakoutEnabled || len(m1Candles) < 2 {
		return false
	}

	prev := m1Candles[len(m1Candles)-2]
	current := m1Candles[len(m1Candles)-1]

	if direction == core.Buy && len(swingHighs) > 0 {
		level := maxOf(swingHighs)
		prevTested := prev.High >= level
		currentAbove := current.Close > level

		if currentAbove && prevTested && current.IsBullish() && current.BodyRatio() >= 0.4 {
			return true
		}
		if prev.Close > level && current.Open > level {
			return true
		}
	} else if direction == core.Sell && len(swingLows) > 0 {
		level := minOf(swingLows)
		prevTested := prev.Low <= level
		currentBelow := current.Close < level

		if currentBelow && prevTested && current.IsBearish() && current.BodyRatio() >= 0.4 {
			return true
		}
		if prev.Close < level && current.Open < level {
			return true
		}
	}

	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
