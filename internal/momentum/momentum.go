// Package momentum classifies the last two M1 candles into a momentum
// decision via two-stage weighted scoring.
package momentum

import (
	"github.com/dtshaba/goldengine/internal/core"
)

// Config holds the momentum analyzer's tunable thresholds, mirroring spec
// §6's signals.momentum_validation surface.
type Config struct {
	MinBodyRatio        float64
	WeightedThreshold    float64
	Stage1StrongThreshold float64
	SizeMultiplier       float64
	VolumeMultiplier     float64
	MaxWickRatio         float64
}

// Result is the momentum analyzer's verdict for the last two M1 candles.
type Result struct {
	Direction core.Side
	Strength  float64
	BodyRatio float64
	WickRatio float64
	None      bool
}

// Analyzer evaluates M1 momentum.
type Analyzer struct {
	cfg Config
}

// New builds a momentum Analyzer.
func New(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze classifies momentum from the trailing M1 candles. avg5BodySize
// and avg5Volume are the average body size and volume of the last 5 M1
// candles (the execution loop includes the current one), used for stage 2's
// strength confirmation.
func (a *Analyzer) Analyze(candles []core.Candle, avg5BodySize, avg5Volume float64) Result {
	if len(candles) < 2 {
		return Result{None: true}
	}

	current := candles[len(candles)-1]
	previous := candles[len(candles)-2]

	bullishScore := a.directionScore(current, previous, core.Buy)
	bearishScore := a.directionScore(current, previous, core.Sell)

	var direction core.Side
	var winningScore float64
	switch {
	case bullishScore >= a.cfg.WeightedThreshold && bullishScore > bearishScore:
		direction = core.Buy
		winningScore = bullishScore
	case bearishScore >= a.cfg.WeightedThreshold && bearishScore > bullishScore:
		direction = core.Sell
		winningScore = bearishScore
	default:
		return Result{None: true, BodyRatio: avgBodyRatio(current, previous), WickRatio: maxWickRatio(current, previous)}
	}

	if winningScore < a.cfg.Stage1StrongThreshold {
		if !a.passesStage2(current, direction, avg5BodySize, avg5Volume) {
			return Result{None: true, BodyRatio: avgBodyRatio(current, previous), WickRatio: maxWickRatio(current, previous)}
		}
	}

	return Result{
		Direction: direction,
		Strength:  strength(current, previous),
		BodyRatio: avgBodyRatio(current, previous),
		WickRatio: maxWickRatio(current, previous),
	}
}

// directionScore computes the 0.6/0.4-weighted score for one candidate
// direction across the current and previous candle.
func (a *Analyzer) directionScore(current, previous core.Candle, direction core.Side) float64 {
	return 0.6*a.candleScore(current, direction) + 0.4*a.candleScore(previous, direction)
}

func (a *Analyzer) candleScore(c core.Candle, direction core.Side) float64 {
	pointsRight := (direction == core.Buy && c.IsBullish()) || (direction == core.Sell && c.IsBearish())
	if !pointsRight {
		return 0
	}
	ratio := c.BodyRatio()
	if ratio < a.cfg.MinBodyRatio {
		return 0
	}
	if a.cfg.MinBodyRatio <= 0 {
		return 0
	}
	scaled := ratio / a.cfg.MinBodyRatio
	return clamp01(scaled)
}

func (a *Analyzer) passesStage2(current core.Candle, direction core.Side, avg5BodySize, avg5Volume float64) bool {
	bodyOK := avg5BodySize > 0 && current.Body() >= a.cfg.SizeMultiplier*avg5BodySize
	volumeOK := avg5Volume > 0 && current.Volume >= a.cfg.VolumeMultiplier*avg5Volume
	return bodyOK || volumeOK
}

func strength(current, previous core.Candle) float64 {
	bodySum := current.Body() + previous.Body()
	rangeSum := current.Range() + previous.Range()
	if rangeSum <= 0 {
		return 0
	}
	return bodySum / rangeSum
}

func avgBodyRatio(current, previous core.Candle) float64 {
	return (current.BodyRatio() + previous.BodyRatio()) / 2
}

func maxWickRatio(current, previous core.Candle) float64 {
	a, b := current.WickRatio(), previous.WickRatio()
	if a > b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
