package config

import (
	"fmt"
	"time"
)

// Validate enforces the declared bound on every numeric knob, and the
// enum membership of every string knob. It runs once at startup; nothing
// downstream re-validates.
func (c *Config) Validate() error {
	var errs []string
	check := func(cond bool, msg string) {
		if !cond {
			errs = append(errs, msg)
		}
	}

	check(c.Signal.WeakSignalThreshold >= 0, "signal.weak_signal_threshold must be >= 0")
	check(c.Signal.ConsistencyMin >= 0 && c.Signal.ConsistencyMin <= 1, "signal.consistency_min must be in [0,1]")
	check(c.Signal.LagMaxSec > 0, "signal.lag_max_sec must be > 0")
	check(c.Signal.SpreadMaxBps >= 0, "signal.spread_max_bps must be >= 0")
	check(c.Signal.WarmupMin >= 0, "signal.warmup_min must be >= 0")
	check(c.Signal.DedupeMs >= 0, "signal.dedupe_ms must be >= 0")
	check(c.Signal.MinConsecutiveSameDir >= 1, "signal.min_consecutive_same_dir must be >= 1")

	check(c.Components.Fusion.AdaptiveCooldownK > 0, "components.fusion.adaptive_cooldown_k must be > 0")
	check(c.Components.Fusion.ExpectedHoldSec > 0, "components.fusion.expected_hold_sec must be > 0")

	check(c.Backtest.NotionalPerTrade > 0, "backtest.notional_per_trade must be > 0")
	check(c.Backtest.MinHoldTimeSec >= 0, "backtest.min_hold_time_sec must be >= 0")
	check(c.Backtest.MaxHoldTimeSec > c.Backtest.MinHoldTimeSec, "backtest.max_hold_time_sec must be > min_hold_time_sec")
	check(c.Backtest.StopLossBps > 0, "backtest.stop_loss_bps must be > 0")
	check(c.Backtest.TakeProfitBps > 0, "backtest.take_profit_bps must be > 0")
	check(c.Backtest.DeadbandBps >= 0, "backtest.deadband_bps must be >= 0")
	check(oneOf(c.Backtest.SlippageModel, "static", "piecewise"), "backtest.slippage_model must be static|piecewise")
	check(oneOf(c.Backtest.FeeModel, "taker_static", "maker_taker"), "backtest.fee_model must be taker_static|maker_taker")
	check(oneOf(c.Backtest.FeeMakerTaker.AccountingMode, "threshold", "bernoulli"), "backtest.fee_maker_taker.accounting_mode must be threshold|bernoulli")
	if _, err := time.LoadLocation(c.Backtest.RolloverTimezone); err != nil {
		errs = append(errs, fmt.Sprintf("backtest.rollover_timezone %q is not a valid IANA zone: %v", c.Backtest.RolloverTimezone, err))
	}
	check(c.Backtest.RolloverHour >= 0 && c.Backtest.RolloverHour <= 23, "backtest.rollover_hour must be in [0,23]")

	check(oneOf(c.Executor.Mode, "backtest", "testnet", "live"), "executor.mode must be backtest|testnet|live")
	check(oneOf(c.Executor.Sink, "jsonl", "sqlite", "dual"), "executor.sink must be jsonl|sqlite|dual")
	check(oneOf(c.Executor.GatingMode, "strict", "ignore_soft", "ignore_all"), "executor.gating_mode must be strict|ignore_soft|ignore_all")
	check(c.Executor.OutputDir != "", "executor.output_dir must be set")

	check(c.Adapter.RateLimit.Place.RPS > 0, "adapter.rate_limit.place.rps must be > 0")
	check(c.Adapter.RateLimit.Place.Burst > 0, "adapter.rate_limit.place.burst must be > 0")
	check(c.Adapter.RateLimit.Cancel.RPS > 0, "adapter.rate_limit.cancel.rps must be > 0")
	check(c.Adapter.RateLimit.Cancel.Burst > 0, "adapter.rate_limit.cancel.burst must be > 0")

	check(oneOf(c.Sink.Kind, "jsonl", "sqlite", "dual"), "sink.kind must be jsonl|sqlite|dual")
	check(c.Sink.BatchSize > 0, "sink.batch_size must be > 0")
	check(c.Sink.MaxRetries >= 0, "sink.max_retries must be >= 0")

	check(oneOf(c.Reader.DedupeBackend, "memory", "redis"), "reader.dedupe_backend must be memory|redis")
	check(c.Reader.RetentionHours > 0, "reader.retention_hours must be > 0")
	if c.Reader.DedupeBackend == "redis" {
		check(c.Reader.RedisAddr != "", "reader.redis_addr must be set when dedupe_backend=redis")
	}

	check(oneOf(c.Logging.Format, "console", "json"), "logging.format must be console|json")

	if len(errs) > 0 {
		msg := errs[0]
		for _, e := range errs[1:] {
			msg += "; " + e
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
