// Package config holds the plain Go structs mirroring spec §6's entire
// config surface, decoded via viper (grounded on the orchestrator config
// loading style found elsewhere in the example pack) with duration-string
// knobs parsed through go-str2duration, in place of the original source's
// regex-parsed config strings (SPEC_FULL's config-as-strings note).
package config

import (
	"fmt"

	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/dtshaba/goldengine/internal/core"
	"github.com/dtshaba/goldengine/internal/execution"
	"github.com/dtshaba/goldengine/internal/momentum"
	"github.com/dtshaba/goldengine/internal/position"
	"github.com/dtshaba/goldengine/internal/risk"
	"github.com/dtshaba/goldengine/internal/session"
	"github.com/dtshaba/goldengine/internal/signal"
	"github.com/dtshaba/goldengine/internal/structure"
)

// Config is the root decode target for viper (mapstructure tags mirror the
// spec §6 config-surface section names).
type Config struct {
	Instrument   InstrumentConfig   `mapstructure:"instrument"`
	Risk         RiskConfig         `mapstructure:"risk"`
	Sessions     SessionsConfig     `mapstructure:"sessions"`
	CircuitBreak CircuitBreakConfig `mapstructure:"circuit_breaker"`
	Execution    ExecutionConfig    `mapstructure:"execution"`
	Spread       SpreadConfig       `mapstructure:"spread"`
	ATR          ATRConfig          `mapstructure:"atr"`
	Exit         ExitConfig         `mapstructure:"exit"`
	Signals      SignalsConfig      `mapstructure:"signals"`
	Structure    StructureConfig    `mapstructure:"structure"`
	Momentum     MomentumConfig     `mapstructure:"momentum"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	Storage      StorageConfig      `mapstructure:"storage"`
}

type InstrumentConfig struct {
	Symbol           string  `mapstructure:"symbol"`
	PointSize        float64 `mapstructure:"point_size"`
	PointValuePerLot float64 `mapstructure:"point_value_per_lot"`
}

func (c InstrumentConfig) ToInstrument() core.Instrument {
	return core.Instrument{Symbol: c.Symbol, PointSize: c.PointSize, PointValuePerLot: c.PointValuePerLot}
}

type RiskConfig struct {
	MinLot            float64 `mapstructure:"min_lot"`
	MaxLot            float64 `mapstructure:"max_lot"`
	RiskPercent       float64 `mapstructure:"risk_percent"`
	StopLossRangePref float64 `mapstructure:"stop_loss_range_preferred"`
}

func (c RiskConfig) ToSizerConfig() risk.SizerConfig {
	return risk.SizerConfig{MinLot: c.MinLot, MaxLot: c.MaxLot}
}

type SessionWindowConfig struct {
	Start   string `mapstructure:"start"`
	End     string `mapstructure:"end"`
	Enabled bool   `mapstructure:"enabled"`
}

type SessionsConfig struct {
	Prime                    []SessionWindowConfig `mapstructure:"prime"`
	Acceptable               []SessionWindowConfig `mapstructure:"acceptable"`
	PrimeRiskMultiplier      float64               `mapstructure:"prime_risk_multiplier"`
	AcceptableRiskMultiplier float64               `mapstructure:"acceptable_risk_multiplier"`
}

func (c SessionsConfig) ToSessionConfig() session.Config {
	return session.Config{
		Prime:                    toWindows(c.Prime),
		Acceptable:               toWindows(c.Acceptable),
		PrimeRiskMultiplier:      c.PrimeRiskMultiplier,
		AcceptableRiskMultiplier: c.AcceptableRiskMultiplier,
	}
}

func toWindows(in []SessionWindowConfig) []session.Window {
	out := make([]session.Window, len(in))
	for i, w := range in {
		out[i] = session.Window{Start: w.Start, End: w.End, Enabled: w.Enabled}
	}
	return out
}

type CircuitBreakConfig struct {
	ConsecutiveLosses             int     `mapstructure:"consecutive_losses"`
	LossesInWindow                int     `mapstructure:"losses_in_window"`
	WindowSize                    int     `mapstructure:"window_size"`
	DailyDrawdownPercent          float64 `mapstructure:"daily_drawdown_percent"`
	StopoutsInWindow              int     `mapstructure:"stopouts_in_window"`
	StopoutWindowSize             int     `mapstructure:"stopout_window_size"`
	HaltDuration                  string  `mapstructure:"halt_duration"`
	DefaultRiskPercent             float64 `mapstructure:"default_risk_percent"`
	DefaultConfidenceThreshold     float64 `mapstructure:"default_confidence_threshold"`
	After1LossConfidenceThreshold  float64 `mapstructure:"after_1_loss_confidence_threshold"`
	After2LossRiskPercent          float64 `mapstructure:"after_2_loss_risk_percent"`
	After2LossConfidenceThreshold  float64 `mapstructure:"after_2_loss_confidence_threshold"`
}

func (c CircuitBreakConfig) ToBreakerConfig() (risk.BreakerConfig, error) {
	halt, err := parseMinutes(c.HaltDuration)
	if err != nil {
		return risk.BreakerConfig{}, fmt.Errorf("circuit_breaker.halt_duration: %w", err)
	}
	return risk.BreakerConfig{
		ConsecutiveLosses: c.ConsecutiveLosses, LossesInWindow: c.LossesInWindow, WindowSize: c.WindowSize,
		DailyDrawdownPercent: c.DailyDrawdownPercent,
		StopoutsInWindow:     c.StopoutsInWindow, StopoutWindowSize: c.StopoutWindowSize,
		HaltDurationMinutes:           int(halt),
		DefaultRiskPercent:            c.DefaultRiskPercent,
		DefaultConfidenceThreshold:    c.DefaultConfidenceThreshold,
		After1LossConfidenceThreshold: c.After1LossConfidenceThreshold,
		After2LossRiskPercent:         c.After2LossRiskPercent,
		After2LossConfidenceThreshold: c.After2LossConfidenceThreshold,
	}, nil
}

type ExecutionConfig struct {
	CycleInterval             string  `mapstructure:"cycle_interval"`
	MaxConcurrentPositions    int     `mapstructure:"max_concurrent_positions"`
	SlippageTolerancePoints   float64 `mapstructure:"slippage_tolerance_points"`
	RiskRewardRatioPreferred  float64 `mapstructure:"risk_reward_ratio_preferred"`
	NeutralTrendTighterStop   float64 `mapstructure:"neutral_trend_tighter_stop_percent"`
	NeutralTrendSizeReduction float64 `mapstructure:"neutral_trend_size_reduction"`
	Magic                     int64   `mapstructure:"magic"`
	M1Count                   int     `mapstructure:"m1_count"`
	M5Count                   int     `mapstructure:"m5_count"`
	MinM1Candles              int     `mapstructure:"min_m1_candles"`
	MinM5Candles              int     `mapstructure:"min_m5_candles"`
}

func (c ExecutionConfig) ToExecutionConfig(symbol string, stopLossRangePreferred float64) (execution.Config, error) {
	interval, err := str2duration.ParseDuration(c.CycleInterval)
	if err != nil {
		return execution.Config{}, fmt.Errorf("execution.cycle_interval: %w", err)
	}
	return execution.Config{
		CycleIntervalSeconds:           int(interval.Seconds()),
		MaxConcurrentPositions:         c.MaxConcurrentPositions,
		SlippageTolerancePoints:        c.SlippageTolerancePoints,
		StopLossRangePreferred:         stopLossRangePreferred,
		RiskRewardRatioPreferred:       c.RiskRewardRatioPreferred,
		NeutralTrendTighterStopPercent: c.NeutralTrendTighterStop,
		NeutralTrendSizeReduction:      c.NeutralTrendSizeReduction,
		Magic:                          c.Magic,
		Symbol:                         symbol,
		M1Count:                        c.M1Count,
		M5Count:                        c.M5Count,
		MinM1Candles:                   c.MinM1Candles,
		MinM5Candles:                   c.MinM5Candles,
	}, nil
}

type SpreadConfig struct {
	PrimeMaxSpread      float64 `mapstructure:"prime_max_spread"`
	AcceptableMaxSpread float64 `mapstructure:"acceptable_max_spread"`
	DefaultMaxSpread    float64 `mapstructure:"default_max_spread"`
	MaxConcurrentPos    int     `mapstructure:"max_concurrent_positions"`
}

func (c SpreadConfig) ToValidatorConfig() risk.ValidatorConfig {
	return risk.ValidatorConfig{
		PrimeMaxSpread: c.PrimeMaxSpread, AcceptableMaxSpread: c.AcceptableMaxSpread,
		DefaultMaxSpread: c.DefaultMaxSpread, MaxConcurrentPositions: c.MaxConcurrentPos,
	}
}

type ATRConfig struct {
	MinPoints        float64 `mapstructure:"min_points"`
	MaxPoints        float64 `mapstructure:"max_points"`
	OptimalMin       float64 `mapstructure:"optimal_min"`
	OptimalMax       float64 `mapstructure:"optimal_max"`
	SpikeMultiplier  float64 `mapstructure:"spike_multiplier"`
	AveragePeriod    int     `mapstructure:"average_period"`
	EMAPeriod        int     `mapstructure:"ema_period"`
	RSIPeriod        int     `mapstructure:"rsi_period"`
	ATRPeriod        int     `mapstructure:"atr_period"`
	SwingLookback    int     `mapstructure:"swing_lookback"`
}

func (c ATRConfig) ToVolatilityConfig() risk.VolatilityConfig {
	return risk.VolatilityConfig{
		MinPoints: c.MinPoints, MaxPoints: c.MaxPoints, OptimalMin: c.OptimalMin, OptimalMax: c.OptimalMax,
		SpikeMultiplier: c.SpikeMultiplier, AveragePeriod: c.AveragePeriod,
	}
}

type ExitConfig struct {
	TimeLimit                string  `mapstructure:"time_limit"`
	BreakevenProfitPercent    float64 `mapstructure:"breakeven_profit_percent"`
	BreakevenBufferPoints     float64 `mapstructure:"breakeven_buffer_points"`
	PartialExit1Percent       float64 `mapstructure:"partial_exit_1_percent"`
	PartialExit1ClosePercent  float64 `mapstructure:"partial_exit_1_close_percent"`
	PartialExit2Percent       float64 `mapstructure:"partial_exit_2_percent"`
	PartialExit2ClosePercent  float64 `mapstructure:"partial_exit_2_close_percent"`
}

func (c ExitConfig) ToExitConfig() (position.ExitConfig, error) {
	limit, err := parseMinutes(c.TimeLimit)
	if err != nil {
		return position.ExitConfig{}, fmt.Errorf("exit.time_limit: %w", err)
	}
	return position.ExitConfig{
		TimeLimitMinutes: limit, BreakevenProfitPercent: c.BreakevenProfitPercent,
		BreakevenBufferPoints: c.BreakevenBufferPoints,
		PartialExit1Percent:   c.PartialExit1Percent, PartialExit1ClosePercent: c.PartialExit1ClosePercent,
		PartialExit2Percent: c.PartialExit2Percent, PartialExit2ClosePercent: c.PartialExit2ClosePercent,
	}, nil
}

type SignalsConfig struct {
	MinConfidence               float64 `mapstructure:"min_confidence"`
	AllowNeutralTrendEntries    bool    `mapstructure:"allow_neutral_trend_entries"`
	RejectOnConflict            bool    `mapstructure:"reject_on_conflict"`
	ConflictScore               float64 `mapstructure:"conflict_score"`
	ScalpingMode                bool    `mapstructure:"scalping_mode"`
	VolumeSpikeMultiplier       float64 `mapstructure:"volume_spike_multiplier"`
	VolumeAverageMultiplier     float64 `mapstructure:"volume_average_multiplier"`
	StrongBodyRatio             float64 `mapstructure:"strong_body_ratio"`
	MinBodyRatio                float64 `mapstructure:"min_body_ratio"`
	MaxWickRatio                float64 `mapstructure:"max_wick_ratio"`
	RSIOversold                 float64 `mapstructure:"rsi_oversold"`
	RSIOverbought               float64 `mapstructure:"rsi_overbought"`
	ATROptimalMin               float64 `mapstructure:"atr_optimal_min"`
	ATROptimalMax               float64 `mapstructure:"atr_optimal_max"`
	ATRSpikeMultiplier          float64 `mapstructure:"atr_spike_multiplier"`
	SellConfidencePenalty       float64 `mapstructure:"sell_confidence_penalty"`
	PriceAtLevelTolerancePoints float64 `mapstructure:"price_at_level_tolerance_points"`
	SwingLookbackCandles        int     `mapstructure:"swing_lookback_candles"`
}

func (c SignalsConfig) ToSignalConfig() signal.Config {
	return signal.Config{
		MinConfidence: c.MinConfidence, AllowNeutralTrendEntries: c.AllowNeutralTrendEntries,
		RejectOnConflict: c.RejectOnConflict, ConflictScore: c.ConflictScore, ScalpingMode: c.ScalpingMode,
		VolumeSpikeMultiplier: c.VolumeSpikeMultiplier, VolumeAverageMultiplier: c.VolumeAverageMultiplier,
		StrongBodyRatio: c.StrongBodyRatio, MinBodyRatio: c.MinBodyRatio, MaxWickRatio: c.MaxWickRatio,
		RSIOversold: c.RSIOversold, RSIOverbought: c.RSIOverbought,
		ATROptimalMin: c.ATROptimalMin, ATROptimalMax: c.ATROptimalMax, ATRSpikeMultiplier: c.ATRSpikeMultiplier,
		SellConfidencePenalty: c.SellConfidencePenalty, PriceAtLevelTolerancePoints: c.PriceAtLevelTolerancePoints,
		SwingLookbackCandles: c.SwingLookbackCandles,
	}
}

type StructureConfig struct {
	PriceLevelTolerancePoints  float64 `mapstructure:"price_level_tolerance_points"`
	EMAPullbackTolerancePoints float64 `mapstructure:"ema_pullback_tolerance_points"`
	SwingTolerancePoints       float64 `mapstructure:"swing_tolerance_points"`
	SwingLookbackCandles       int     `mapstructure:"swing_lookback_candles"`
	SwingMinBounces            int     `mapstructure:"swing_min_bounces"`
	EMATolerancePoints         float64 `mapstructure:"ema_tolerance_points"`
	EMAMustHaveTouched         bool    `mapstructure:"ema_must_have_touched"`
	LiquiditySweepEnabled      bool    `mapstructure:"liquidity_sweep_enabled"`
	SweepThresholdPoints       float64 `mapstructure:"sweep_threshold_points"`
	BreakoutEnabled            bool    `mapstructure:"breakout_enabled"`
}

func (c StructureConfig) ToStructureConfig() structure.Config {
	return structure.Config{
		PriceLevelTolerancePoints: c.PriceLevelTolerancePoints, EMAPullbackTolerancePoints: c.EMAPullbackTolerancePoints,
		SwingTolerancePoints: c.SwingTolerancePoints, SwingLookbackCandles: c.SwingLookbackCandles,
		SwingMinBounces: c.SwingMinBounces, EMATolerancePoints: c.EMATolerancePoints,
		EMAMustHaveTouched: c.EMAMustHaveTouched, LiquiditySweepEnabled: c.LiquiditySweepEnabled,
		SweepThresholdPoints: c.SweepThresholdPoints, BreakoutEnabled: c.BreakoutEnabled,
	}
}

type MomentumConfig struct {
	MinBodyRatio          float64 `mapstructure:"min_body_ratio"`
	WeightedThreshold     float64 `mapstructure:"weighted_threshold"`
	Stage1StrongThreshold float64 `mapstructure:"stage1_strong_threshold"`
	SizeMultiplier        float64 `mapstructure:"size_multiplier"`
	VolumeMultiplier      float64 `mapstructure:"volume_multiplier"`
	MaxWickRatio          float64 `mapstructure:"max_wick_ratio"`
}

func (c MomentumConfig) ToMomentumConfig() momentum.Config {
	return momentum.Config{
		MinBodyRatio: c.MinBodyRatio, WeightedThreshold: c.WeightedThreshold,
		Stage1StrongThreshold: c.Stage1StrongThreshold, SizeMultiplier: c.SizeMultiplier,
		VolumeMultiplier: c.VolumeMultiplier, MaxWickRatio: c.MaxWickRatio,
	}
}

type NotifyConfig struct {
	TelegramToken   string  `mapstructure:"telegram_token"`
	TelegramUserIDs []int64 `mapstructure:"telegram_user_ids"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "gorm" or "bunt"
	DSN     string `mapstructure:"dsn"`
}

func parseMinutes(s string) (float64, error) {
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return d.Minutes(), nil
}

// Validate checks the config for the invariants spec §7's configuration
// error class must catch before the engine starts.
func (c Config) Validate() error {
	if c.Instrument.PointSize <= 0 {
		return fmt.Errorf("instrument.point_size must be positive")
	}
	if c.Instrument.PointValuePerLot <= 0 {
		return fmt.Errorf("instrument.point_value_per_lot must be positive")
	}
	if c.Risk.MaxLot > risk.HardMaxLot {
		return fmt.Errorf("risk.max_lot %.2f exceeds hard cap %.2f", c.Risk.MaxLot, risk.HardMaxLot)
	}
	if c.Execution.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("execution.max_concurrent_positions must be positive")
	}
	if _, err := str2duration.ParseDuration(c.Execution.CycleInterval); err != nil {
		return fmt.Errorf("execution.cycle_interval: %w", err)
	}
	if _, err := str2duration.ParseDuration(c.Exit.TimeLimit); err != nil {
		return fmt.Errorf("exit.time_limit: %w", err)
	}
	return nil
}
