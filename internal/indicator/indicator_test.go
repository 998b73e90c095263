package indicator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtshaba/goldengine/internal/indicator"
)

func TestEMA_InsufficientData(t *testing.T) {
	assert.Empty(t, indicator.EMA([]float64{1, 2, 3}, 5))
}

func TestEMA_FirstValueIsSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}
	out := indicator.EMA(prices, 5)
	assert.Len(t, out, 1)
	assert.InDelta(t, 3.0, out[0], 1e-9)
}

func TestEMA_SubsequentSmoothing(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6}
	out := indicator.EMA(prices, 5)
	assert.Len(t, out, 2)
	// k = 2/6 = 1/3; ema1 = (6-3)/3 + 3 = 4
	assert.InDelta(t, 4.0, out[1], 1e-9)
}

func TestRSI_FlatMarketIsFifty(t *testing.T) {
	prices := make([]float64, 16)
	for i := range prices {
		prices[i] = 100
	}
	out := indicator.RSI(prices, 14)
	assert.NotEmpty(t, out)
	for _, v := range out {
		assert.Equal(t, 50.0, v)
	}
}

func TestRSI_NoLossesIsHundred(t *testing.T) {
	prices := make([]float64, 16)
	for i := range prices {
		prices[i] = float64(100 + i)
	}
	out := indicator.RSI(prices, 14)
	assert.NotEmpty(t, out)
	assert.Equal(t, 100.0, out[0])
}

func TestRSI_InsufficientData(t *testing.T) {
	assert.Empty(t, indicator.RSI([]float64{1, 2}, 14))
}

func TestATR_SeedsWithSMAThenWilder(t *testing.T) {
	high := []float64{10, 11, 12, 13, 14, 15}
	low := []float64{9, 10, 11, 12, 13, 14}
	close := []float64{9.5, 10.5, 11.5, 12.5, 13.5, 14.5}
	out := indicator.ATR(high, low, close, 3)
	// Every true range is 1.5 (high minus previous close), so the SMA seed
	// and both Wilder steps after it are 1.5.
	assert.Len(t, out, 3)
	for _, v := range out {
		assert.InDelta(t, 1.5, v, 1e-9)
	}
}

func TestIdentifySwingPoints(t *testing.T) {
	candles := []candleStub{
		{high: 10, low: 5},
		{high: 12, low: 4},
		{high: 9, low: 6},
		{high: 8, low: 3},
		{high: 11, low: 7},
	}
	points := indicator.IdentifySwingPoints(candles, 5)
	assert.Contains(t, points.Highs, 12.0)
	assert.Contains(t, points.Lows, 3.0)
}

type candleStub struct{ high, low float64 }

func (c candleStub) GetHigh() float64 { return c.high }
func (c candleStub) GetLow() float64  { return c.low }

func TestTrendFromEMA(t *testing.T) {
	assert.Equal(t, indicator.TrendBullish, indicator.TrendFromEMA([]float64{100, 101, 110}, 3))
	assert.Equal(t, indicator.TrendBearish, indicator.TrendFromEMA([]float64{110, 101, 100}, 3))
	assert.Equal(t, indicator.TrendNeutral, indicator.TrendFromEMA([]float64{100, 100.001, 100.002}, 3))
}
