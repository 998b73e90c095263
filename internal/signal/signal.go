// Package signal composes the structure and momentum analyzers into a
// scored trading Signal (spec §4.4).
package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/dtshaba/goldengine/internal/core"
	"github.com/dtshaba/goldengine/internal/indicator"
	"github.com/dtshaba/goldengine/internal/momentum"
	"github.com/dtshaba/goldengine/internal/structure"
)

// Config holds the signal generator's tunable thresholds, mirroring spec
// §6's signals.* config surface.
type Config struct {
	MinConfidence float64

	// AllowNeutralTrendEntries permits signals when the M5 trend is
	// neutral; the execution loop applies the neutral-trend size/stop
	// tightening noted in §4.7/§4.10 when this is true and the trend
	// actually was neutral.
	AllowNeutralTrendEntries bool

	// RejectOnConflict makes a bullish-M5/bearish-M1 (or reverse)
	// combination a hard gate instead of a negative score.
	RejectOnConflict bool
	ConflictScore    float64

	// ScalpingMode turns the legacy entry-trigger gate (hard gate 3) into
	// a scoring bonus instead of a rejection.
	ScalpingMode bool

	VolumeSpikeMultiplier  float64 // e.g. 1.5x for the +10 predicate
	VolumeAverageMultiplier float64 // e.g. 1.2x for the +5 predicate

	StrongBodyRatio float64
	MinBodyRatio    float64
	MaxWickRatio    float64

	RSIOversold   float64 // e.g. 30
	RSIOverbought float64 // e.g. 70 (mirrors oversold at 60/70 bands per table)

	ATROptimalMin, ATROptimalMax float64
	ATRSpikeMultiplier           float64 // 1.8x in confidence scoring (distinct from risk validator's 2.5x hard reject)

	SellConfidencePenalty float64

	PriceAtLevelTolerancePoints float64

	SwingLookbackCandles int
}

// Generator composes structure + momentum into a scored Signal.
type Generator struct {
	cfg        Config
	instrument core.Instrument
	structure  *structure.Analyzer
	momentum   *momentum.Analyzer
}

// New builds a signal Generator.
func New(cfg Config, instrument core.Instrument, str *structure.Analyzer, mom *momentum.Analyzer) *Generator {
	return &Generator{cfg: cfg, instrument: instrument, structure: str, momentum: mom}
}

// M5Data is the structure-analyzer-relevant market slice for one cycle.
type M5Data struct {
	Candles     []core.Candle
	EMA21       []float64
	SwingPoints indicator.SwingPoints
}

// M1Data is the momentum-analyzer-relevant market slice for one cycle.
type M1Data struct {
	Candles      []core.Candle
	RSI          []float64
	Avg5BodySize float64
	Avg5Volume   float64
}

// Indicators carries the ATR context needed for scoring and the neutral
// trend detection path.
type Indicators struct {
	ATRPoints  float64
	ATRAverage float64
}

// GenerateSignal runs the full pipeline and returns a Signal, or ok=false
// if no signal clears the hard gates and confidence threshold.
func (g *Generator) GenerateSignal(m5 M5Data, m1 M1Data, ind Indicators, now time.Time) (core.Signal, bool) {
	if len(m5.Candles) == 0 || len(m1.Candles) == 0 {
		return core.Signal{}, false
	}

	structAnalysis := g.structure.AnalyzeStructure(m5.Candles, m5.EMA21, m5.SwingPoints)
	momResult := g.momentum.Analyze(m1.Candles, m1.Avg5BodySize, m1.Avg5Volume)

	// Hard gate 1: momentum direction must not be none.
	if momResult.None {
		return core.Signal{}, false
	}

	alignment := g.checkTrendAlignment(structAnalysis.Trend, momResult.Direction)

	// Hard gate 2: trend alignment not configured to reject.
	if alignment.Reject {
		return core.Signal{}, false
	}

	if alignment.IsNeutralTrend && !g.cfg.AllowNeutralTrendEntries {
		return core.Signal{}, false
	}

	direction := momResult.Direction
	currentPrice := lo.LastOrEmpty(m5.Candles).Close
	currentVolume := lo.LastOrEmpty(m1.Candles).Volume

	nearSwingLow := len(m5.SwingPoints.Lows) > 0 && g.structure.IsPriceNearLevel(currentPrice, minOf(m5.SwingPoints.Lows), g.cfg.PriceAtLevelTolerancePoints, m5.Candles)
	nearSwingHigh := len(m5.SwingPoints.Highs) > 0 && g.structure.IsPriceNearLevel(currentPrice, maxOf(m5.SwingPoints.Highs), g.cfg.PriceAtLevelTolerancePoints, m5.Candles)
	pullback := g.structure.IsPullbackToEMA(currentPrice, structAnalysis.EMA21, 0, m1.Candles)
	sweep := g.structure.DetectLiquiditySweep(m5.Candles, m5.SwingPoints.Lows, m5.SwingPoints.Highs)
	breakout := g.structure.DetectBreakout(m1.Candles, m5.SwingPoints.Highs, m5.SwingPoints.Lows, direction)

	hasTrigger := nearSwingLow || nearSwingHigh || pullback || sweep || breakout

	// Hard gate 3 (legacy, optional under scalping mode): at least one
	// entry trigger. In scalping mode this becomes a scoring bonus
	// instead (handled below via triggerBonus).
	if !g.cfg.ScalpingMode && !hasTrigger {
		return core.Signal{}, false
	}

	confidence := g.calculateConfidence(alignment, momResult, structAnalysis, currentPrice, m1.RSI, ind, direction, hasTrigger, currentVolume, m1.Avg5Volume)

	if confidence < g.cfg.MinConfidence {
		return core.Signal{}, false
	}

	entryType := classifyEntryType(sweep, breakout, pullback)

	return core.Signal{
		Direction:       direction,
		EntryType:       entryType,
		Confidence:      confidence,
		Timestamp:       now,
		Reason:          g.generateReason(direction, entryType, alignment, confidence),
		Price:           currentPrice,
		AlignmentResult: alignment,
	}, true
}

func classifyEntryType(sweep, breakout, pullback bool) core.EntryType {
	switch {
	case sweep:
		return core.EntryLiquiditySweep
	case breakout:
		return core.EntryStructureBreak
	default:
		return core.EntryPullbackContinuation
	}
}

// checkTrendAlignment applies the M5-trend x M1-momentum alignment matrix.
func (g *Generator) checkTrendAlignment(trend indicator.Trend, momentumDir core.Side) core.AlignmentResult {
	m1Bullish := momentumDir == core.Buy

	switch trend {
	case indicator.TrendBullish:
		if m1Bullish {
			return core.AlignmentResult{Label: "both_bullish", Score: 15}
		}
		if g.cfg.RejectOnConflict {
			return core.AlignmentResult{Label: "conflicting", Reject: true}
		}
		return core.AlignmentResult{Label: "conflicting", Score: g.cfg.ConflictScore}
	case indicator.TrendBearish:
		if !m1Bullish {
			return core.AlignmentResult{Label: "both_bearish", Score: 15}
		}
		if g.cfg.RejectOnConflict {
			return core.AlignmentResult{Label: "conflicting", Reject: true}
		}
		return core.AlignmentResult{Label: "conflicting", Score: g.cfg.ConflictScore}
	default: // neutral M5 trend
		return core.AlignmentResult{Label: "neutral_trend", Score: 0, IsNeutralTrend: true}
	}
}

func (g *Generator) calculateConfidence(
	alignment core.AlignmentResult,
	mom momentum.Result,
	structAnalysis structure.Analysis,
	price float64,
	m1RSI []float64,
	ind Indicators,
	direction core.Side,
	hasTrigger bool,
	currentVolume, avg5Volume float64,
) float64 {
	confidence := 60.0
	confidence += alignment.Score

	if g.cfg.ScalpingMode && hasTrigger {
		confidence += 5 // scoring bonus replacing the legacy hard gate
	}

	// Volume: current M1 bar against the trailing 5-bar average (spec
	// §4.4's "volume-spike" / "1.2x average" predicates).
	switch {
	case avg5Volume > 0 && currentVolume >= g.cfg.VolumeSpikeMultiplier*avg5Volume:
		confidence += 10
	case avg5Volume > 0 && currentVolume >= g.cfg.VolumeAverageMultiplier*avg5Volume:
		confidence += 5
	}

	// Momentum body.
	switch {
	case mom.BodyRatio >= g.cfg.StrongBodyRatio:
		confidence += 10
	case mom.BodyRatio >= g.cfg.MinBodyRatio:
		confidence += 5
	}

	// Wick ratio.
	switch {
	case mom.WickRatio <= 0.20:
		confidence += 5
	case mom.WickRatio <= g.cfg.MaxWickRatio:
		confidence += 0
	default:
		confidence -= 10
	}

	// Price at key level (within 1 point of nearest swing).
	nearest := nearestSwing(price, structAnalysis.Support, structAnalysis.Resistance)
	if g.instrument.ToPoints(math.Abs(price-nearest)) < 1 {
		confidence += 10
	}

	// RSI zone (M1), mirrored by direction.
	if len(m1RSI) > 0 {
		rsi := m1RSI[len(m1RSI)-1]
		confidence += rsiZoneScore(rsi, direction)
	}

	// ATR zone.
	switch {
	case ind.ATRAverage > 0 && ind.ATRPoints > g.cfg.ATRSpikeMultiplier*ind.ATRAverage:
		confidence -= 15
	case ind.ATRPoints >= g.cfg.ATROptimalMin && ind.ATRPoints <= g.cfg.ATROptimalMax:
		confidence += 5
	default:
		confidence += 0
	}

	if direction == core.Sell {
		confidence += g.cfg.SellConfidencePenalty
	}

	return clamp(confidence, 0, 100)
}

func rsiZoneScore(rsi float64, direction core.Side) float64 {
	if direction == core.Buy {
		switch {
		case rsi < 30:
			return 10
		case rsi < 40:
			return 5
		case rsi < 50:
			return 0
		case rsi < 60:
			return -5
		default:
			return -10
		}
	}
	// sell mirrors buy.
	switch {
	case rsi > 70:
		return 10
	case rsi > 60:
		return 5
	case rsi > 50:
		return 0
	case rsi > 40:
		return -5
	default:
		return -10
	}
}

func nearestSwing(price, support, resistance float64) float64 {
	if math.Abs(price-support) <= math.Abs(price-resistance) {
		return support
	}
	return resistance
}

func (g *Generator) generateReason(direction core.Side, entryType core.EntryType, alignment core.AlignmentResult, confidence float64) string {
	return fmt.Sprintf("%s %s (%s, confidence=%.1f%%)", direction, entryType, alignment.Label, confidence)
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
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
