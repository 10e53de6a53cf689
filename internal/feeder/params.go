package feeder

import "github.com/sawpanic/oficvd/internal/config"

// EffectiveParams returns the exact resolved numeric values of every knob
// the Signal Core and Trade Simulator actually consult for this run,
// flattened into a manifest-friendly map (spec section 4.6, "effective-
// parameters snapshot"). It is read directly off the validated Config
// rather than re-parsed from YAML, so it reflects env-override
// resolution (applyEnvOverrides) and Defaults fill-in exactly as the run
// used them.
func EffectiveParams(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"signal.weak_signal_threshold":    cfg.Signal.WeakSignalThreshold,
		"signal.consistency_min":          cfg.Signal.ConsistencyMin,
		"signal.lag_max_sec":              cfg.Signal.LagMaxSec,
		"signal.spread_max_bps":           cfg.Signal.SpreadMaxBps,
		"signal.warmup_min":               cfg.Signal.WarmupMin,
		"signal.dedupe_ms":                cfg.Signal.DedupeMs,
		"signal.min_consecutive_same_dir": cfg.Signal.MinConsecutiveSameDir,
		"signal.thresholds.active.buy":    cfg.Signal.Thresholds.Active.Buy,
		"signal.thresholds.active.sell":   cfg.Signal.Thresholds.Active.Sell,
		"signal.thresholds.quiet.buy":     cfg.Signal.Thresholds.Quiet.Buy,
		"signal.thresholds.quiet.sell":    cfg.Signal.Thresholds.Quiet.Sell,

		"fusion.w_ofi":               cfg.Components.Fusion.WOFI,
		"fusion.w_cvd":               cfg.Components.Fusion.WCVD,
		"fusion.flip_rearm_margin":   cfg.Components.Fusion.FlipRearmMargin,
		"fusion.adaptive_cooldown_k": cfg.Components.Fusion.AdaptiveCooldownK,
		"fusion.expected_hold_sec":   cfg.Components.Fusion.ExpectedHoldSec,

		"backtest.taker_fee_bps":              cfg.Backtest.TakerFeeBps,
		"backtest.maker_fee_bps":               cfg.Backtest.MakerFeeBps,
		"backtest.slippage_bps":                cfg.Backtest.SlippageBps,
		"backtest.notional_per_trade":          cfg.Backtest.NotionalPerTrade,
		"backtest.min_hold_time_sec":           cfg.Backtest.MinHoldTimeSec,
		"backtest.max_hold_time_sec":           cfg.Backtest.MaxHoldTimeSec,
		"backtest.force_timeout_exit":          cfg.Backtest.ForceTimeoutExit,
		"backtest.take_profit_bps":             cfg.Backtest.TakeProfitBps,
		"backtest.stop_loss_bps":                cfg.Backtest.StopLossBps,
		"backtest.deadband_bps":                cfg.Backtest.DeadbandBps,
		"backtest.rollover_timezone":           cfg.Backtest.RolloverTimezone,
		"backtest.rollover_hour":               cfg.Backtest.RolloverHour,
		"backtest.slippage_model":              cfg.Backtest.SlippageModel,
		"backtest.fee_model":                   cfg.Backtest.FeeModel,

		"executor.mode":        cfg.Executor.Mode,
		"executor.gating_mode": cfg.Executor.GatingMode,
		"executor.order_size_usd": cfg.Executor.OrderSizeUSD,

		"config_hash": cfg.Hash(),
	}
}
