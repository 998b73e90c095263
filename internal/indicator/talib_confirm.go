package indicator

import "github.com/markcheno/go-talib"

// ConfirmWithTALib recomputes EMA/RSI/ATR via go-talib as an independent
// cross-check of the hand-rolled series. go-talib's own warm-up windowing
// does not match this package's exact seed-then-smooth contract (the spec
// requires the first EMA value to be a plain SMA and RSI's flat-window
// special case), so it is never used on the decision path. Nothing in this
// module, tests included, calls it.
func ConfirmWithTALib(high, low, close []float64, period int) (ema, rsi, atr []float64) {
	ema = talib.Ema(close, period)
	rsi = talib.Rsi(close, period)
	atr = talib.Atr(high, low, close, period)
	return
}
