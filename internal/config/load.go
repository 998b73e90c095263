package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load reads a YAML/TOML/JSON config file (whichever extension path has)
// plus environment overrides under the GOLDENGINE_ prefix, decodes it into
// Config, and validates it. Grounded on the pack's viper SetDefault/
// ReadInConfig/AutomaticEnv loading idiom.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GOLDENGINE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("instrument.symbol", "XAUUSD")
	v.SetDefault("instrument.point_size", 0.01)
	v.SetDefault("instrument.point_value_per_lot", 100.0)

	v.SetDefault("risk.min_lot", 0.01)
	v.SetDefault("risk.max_lot", 0.10)
	v.SetDefault("risk.risk_percent", 0.5)
	v.SetDefault("risk.stop_loss_range_preferred", 0.30)

	v.SetDefault("execution.cycle_interval", "30s")
	v.SetDefault("execution.max_concurrent_positions", 1)
	v.SetDefault("execution.slippage_tolerance_points", 20.0)
	v.SetDefault("execution.risk_reward_ratio_preferred", 2.0)
	v.SetDefault("execution.neutral_trend_tighter_stop_percent", 0.7)
	v.SetDefault("execution.neutral_trend_size_reduction", 0.5)
	v.SetDefault("execution.m1_count", 60)
	v.SetDefault("execution.m5_count", 60)
	v.SetDefault("execution.min_m1_candles", 30)
	v.SetDefault("execution.min_m5_candles", 30)

	v.SetDefault("signals.min_confidence", 65.0)
	v.SetDefault("signals.conflict_score", -10.0)
	v.SetDefault("signals.volume_spike_multiplier", 1.5)
	v.SetDefault("signals.volume_average_multiplier", 1.2)
	v.SetDefault("signals.strong_body_ratio", 0.6)
	v.SetDefault("signals.min_body_ratio", 0.3)
	v.SetDefault("signals.max_wick_ratio", 0.4)
	v.SetDefault("signals.rsi_oversold", 30.0)
	v.SetDefault("signals.rsi_overbought", 70.0)
	v.SetDefault("signals.atr_optimal_min", 15.0)
	v.SetDefault("signals.atr_optimal_max", 60.0)
	v.SetDefault("signals.atr_spike_multiplier", 1.8)
	v.SetDefault("signals.sell_confidence_penalty", 0.0)
	v.SetDefault("signals.price_at_level_tolerance_points", 1.0)
	v.SetDefault("signals.swing_lookback_candles", 20)

	v.SetDefault("exit.time_limit", "15m")

	v.SetDefault("storage.backend", "bunt")
	v.SetDefault("storage.dsn", "goldengine.db")
}
