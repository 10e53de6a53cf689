// Package config defines the validated configuration structure that every
// numeric knob in the Signal Core, Dual Sink, Feeder, Trade Simulator and
// Broker Adapter is resolved from. Defaults are resolved in exactly one
// place (Defaults) and never re-derived downstream, following the
// teacher's internal/gates.NewThresholdRouterWithDefaults pattern.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SideThresholds holds the buy/sell entry thresholds for one regime bucket
// (active or quiet). Side proposal compares the fused score against these.
type SideThresholds struct {
	Buy  float64 `yaml:"buy"`
	Sell float64 `yaml:"sell"`
}

// SignalConfig configures the Signal Core (C4) gating pipeline.
type SignalConfig struct {
	WeakSignalThreshold  float64 `yaml:"weak_signal_threshold"`
	ConsistencyMin       float64 `yaml:"consistency_min"`
	LagMaxSec            float64 `yaml:"lag_max_sec"`
	SpreadMaxBps         float64 `yaml:"spread_max_bps"`
	WarmupMin            int     `yaml:"warmup_min"`
	DedupeMs             int64   `yaml:"dedupe_ms"`
	MinConsecutiveSameDir int    `yaml:"min_consecutive_same_dir"`
	Thresholds           struct {
		Active SideThresholds `yaml:"active"`
		Quiet  SideThresholds `yaml:"quiet"`
	} `yaml:"thresholds"`
}

// FusionConfig configures the z-score fusion that produces Signal.Score.
type FusionConfig struct {
	WOFI              float64 `yaml:"w_ofi"`
	WCVD              float64 `yaml:"w_cvd"`
	FlipRearmMargin   float64 `yaml:"flip_rearm_margin"`
	AdaptiveCooldownK float64 `yaml:"adaptive_cooldown_k"`
	ExpectedHoldSec   float64 `yaml:"expected_hold_sec"`
}

// ComponentsConfig groups the per-component knobs that sit beside signal gating.
type ComponentsConfig struct {
	Fusion FusionConfig `yaml:"fusion"`
}

// ScenarioProbs maps a 2x2 scenario label to a maker-probability.
type ScenarioProbs struct {
	QL      float64 `yaml:"Q_L"`
	AL      float64 `yaml:"A_L"`
	AH      float64 `yaml:"A_H"`
	QH      float64 `yaml:"Q_H"`
	Default float64 `yaml:"default"`
}

// FeeMakerTakerConfig configures the maker/taker fee accountant.
type FeeMakerTakerConfig struct {
	MakerFeeRatio  float64       `yaml:"maker_fee_ratio"`
	ScenarioProbs  ScenarioProbs `yaml:"scenario_probs"`
	AccountingMode string        `yaml:"accounting_mode"` // threshold | bernoulli
	BernoulliSeed  int64         `yaml:"bernoulli_seed"`
	MakerThreshold float64       `yaml:"maker_threshold"`
}

// SlippagePiecewiseConfig configures the scenario-keyed piecewise slippage model.
type SlippagePiecewiseConfig struct {
	SpreadBaseMultiplier float64            `yaml:"spread_base_multiplier"`
	ScenarioMultipliers  map[string]float64 `yaml:"scenario_multipliers"`
}

// BacktestConfig configures the Trade Simulator (C7).
type BacktestConfig struct {
	TakerFeeBps            float64                 `yaml:"taker_fee_bps"`
	MakerFeeBps            float64                 `yaml:"maker_fee_bps"`
	SlippageBps            float64                 `yaml:"slippage_bps"`
	NotionalPerTrade       float64                 `yaml:"notional_per_trade"`
	MinHoldTimeSec         float64                 `yaml:"min_hold_time_sec"`
	MaxHoldTimeSec         float64                 `yaml:"max_hold_time_sec"`
	ForceTimeoutExit       bool                    `yaml:"force_timeout_exit"`
	TakeProfitBps          float64                 `yaml:"take_profit_bps"`
	StopLossBps            float64                 `yaml:"stop_loss_bps"`
	DeadbandBps            float64                 `yaml:"deadband_bps"`
	IgnoreGatingInBacktest bool                    `yaml:"ignore_gating_in_backtest"`
	RolloverTimezone       string                  `yaml:"rollover_timezone"`
	RolloverHour           int                     `yaml:"rollover_hour"`
	SlippageModel          string                  `yaml:"slippage_model"` // static | piecewise
	FeeModel               string                  `yaml:"fee_model"`      // taker_static | maker_taker
	FeeMakerTaker          FeeMakerTakerConfig     `yaml:"fee_maker_taker"`
	SlippagePiecewise      SlippagePiecewiseConfig `yaml:"slippage_piecewise"`
}

// ExecutorConfig configures the run's execution mode and sink selection.
type ExecutorConfig struct {
	Mode          string `yaml:"mode"` // backtest | testnet | live
	Sink          string `yaml:"sink"` // jsonl | sqlite | dual
	OutputDir     string `yaml:"output_dir"`
	OrderSizeUSD  float64 `yaml:"order_size_usd"`
	TIF           string `yaml:"tif"`
	OrderType     string `yaml:"order_type"`
	GatingMode    string `yaml:"gating_mode"` // strict | ignore_soft | ignore_all
}

// RateLimitConfig configures one token bucket.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// VenueRuleConfig configures one symbol's lot/tick/min-notional grid.
type VenueRuleConfig struct {
	LotSize     float64 `yaml:"lot_size"`
	TickSize    float64 `yaml:"tick_size"`
	MinNotional float64 `yaml:"min_notional"`
}

// AdapterConfig configures the Broker Adapter (C8).
type AdapterConfig struct {
	RateLimit struct {
		Place  RateLimitConfig `yaml:"place"`
		Cancel RateLimitConfig `yaml:"cancel"`
	} `yaml:"rate_limit"`
	SubmitTimeout time.Duration              `yaml:"submit_timeout"`
	DryRun        bool                       `yaml:"dry_run"`
	EventLogDir   string                     `yaml:"event_log_dir"`
	DefaultRules  VenueRuleConfig            `yaml:"default_rules"`
	VenueRules    map[string]VenueRuleConfig `yaml:"venue_rules"`
}

// SinkConfig configures the Dual Sink Writer (C5).
type SinkConfig struct {
	Kind              string        `yaml:"kind"`
	OutputDir         string        `yaml:"output_dir"`
	DBName            string        `yaml:"db_name"`
	DSN               string        `yaml:"dsn"`
	BatchSize         int           `yaml:"batch_size"`
	BatchMaxLatency   time.Duration `yaml:"batch_max_latency"`
	BusyTimeout       time.Duration `yaml:"busy_timeout"`
	CommitTimeout     time.Duration `yaml:"commit_timeout"`
	DeadletterDir     string        `yaml:"deadletter_dir"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
}

// ReaderConfig configures the Reader (C1).
type ReaderConfig struct {
	DedupeBackend  string        `yaml:"dedupe_backend"` // memory | redis
	RetentionHours int           `yaml:"retention_hours"`
	RedisAddr      string        `yaml:"redis_addr"`
	OpenTimeout    time.Duration `yaml:"open_timeout"`
	IncludePreview bool          `yaml:"include_preview"`
}

// LoggingConfig configures ambient structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// MetricsConfig configures the operator-facing metrics/health surface.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level validated configuration structure. Every numeric
// knob has a declared unit (documented alongside its field) and a bound
// enforced in Validate.
type Config struct {
	Signal     SignalConfig      `yaml:"signal"`
	Components ComponentsConfig  `yaml:"components"`
	Backtest   BacktestConfig    `yaml:"backtest"`
	Executor   ExecutorConfig    `yaml:"executor"`
	Adapter    AdapterConfig     `yaml:"adapter"`
	Sink       SinkConfig        `yaml:"sink"`
	Reader     ReaderConfig      `yaml:"reader"`
	Logging    LoggingConfig     `yaml:"logging"`
	Metrics    MetricsConfig     `yaml:"metrics"`
}

// Load reads and parses a YAML configuration file over Defaults (so a knob
// absent from the file keeps its default; one set to zero stays zero), resolves the six core-facing environment overrides, and
// validates the result. This is the single place configuration is resolved.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigInvalid, err)
	}
	return cfg, nil
}

// applyEnvOverrides resolves the only flags the core reads from the
// environment: RUN_ID is handled by the feeder, the rest configure sink
// and rollover behaviour directly.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("V13_SIGNAL_V2"); v != "" {
		// Presence toggles nothing structurally today (schema_version is
		// always "signal/v2"); kept as a documented override point because
		// the wire contract names it explicitly.
		_ = v
	}
	if v := os.Getenv("V13_SINK"); v != "" {
		cfg.Executor.Sink = v
		cfg.Sink.Kind = v
	}
	if v := os.Getenv("V13_OUTPUT_DIR"); v != "" {
		cfg.Executor.OutputDir = v
		cfg.Sink.OutputDir = v
	}
	if v := os.Getenv("ROLLOVER_TZ"); v != "" {
		cfg.Backtest.RolloverTimezone = v
	}
	if v := os.Getenv("ROLLOVER_HOUR"); v != "" {
		var hour int
		if _, err := fmt.Sscanf(v, "%d", &hour); err == nil {
			cfg.Backtest.RolloverHour = hour
		}
	}
}
