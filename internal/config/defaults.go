package config

import "time"

// Defaults resolves the built-in configuration used when a knob is absent
// from the loaded YAML. This is the only function in the codebase allowed
// to hard-code a numeric default.
func Defaults() *Config {
	cfg := &Config{}

	cfg.Signal.WeakSignalThreshold = 0.5
	cfg.Signal.ConsistencyMin = 0.8
	cfg.Signal.LagMaxSec = 5.0
	cfg.Signal.SpreadMaxBps = 50.0
	cfg.Signal.WarmupMin = 30
	cfg.Signal.DedupeMs = 2000
	cfg.Signal.MinConsecutiveSameDir = 1
	cfg.Signal.Thresholds.Active = SideThresholds{Buy: 1.5, Sell: -1.5}
	cfg.Signal.Thresholds.Quiet = SideThresholds{Buy: 2.0, Sell: -2.0}

	cfg.Components.Fusion = FusionConfig{
		WOFI:              0.6,
		WCVD:              0.4,
		FlipRearmMargin:   0.3,
		AdaptiveCooldownK: 1.0,
		ExpectedHoldSec:   60,
	}

	cfg.Backtest = BacktestConfig{
		TakerFeeBps:            5.0,
		MakerFeeBps:            1.0,
		SlippageBps:            2.0,
		NotionalPerTrade:       1000.0,
		MinHoldTimeSec:         60,
		MaxHoldTimeSec:         3600,
		ForceTimeoutExit:       false,
		TakeProfitBps:          20,
		StopLossBps:            10,
		DeadbandBps:            3,
		IgnoreGatingInBacktest: false,
		RolloverTimezone:       "UTC",
		RolloverHour:           0,
		SlippageModel:          "static",
		FeeModel:               "taker_static",
		FeeMakerTaker: FeeMakerTakerConfig{
			MakerFeeRatio:  0.5,
			ScenarioProbs:  ScenarioProbs{QL: 0.7, AL: 0.5, AH: 0.2, QH: 0.35, Default: 0.4},
			AccountingMode: "threshold",
			BernoulliSeed:  42,
			MakerThreshold: 0.5,
		},
		SlippagePiecewise: SlippagePiecewiseConfig{
			SpreadBaseMultiplier: 0.5,
			ScenarioMultipliers: map[string]float64{
				"Q_L": 0.8, "A_L": 1.0, "A_H": 1.5, "Q_H": 1.2,
			},
		},
	}

	cfg.Executor = ExecutorConfig{
		Mode:         "backtest",
		Sink:         "dual",
		OutputDir:    "./run_output",
		OrderSizeUSD: 1000.0,
		TIF:          "IOC",
		OrderType:    "MARKET",
		GatingMode:   "strict",
	}

	cfg.Adapter.RateLimit.Place = RateLimitConfig{RPS: 10, Burst: 20}
	cfg.Adapter.RateLimit.Cancel = RateLimitConfig{RPS: 10, Burst: 20}
	cfg.Adapter.SubmitTimeout = 2 * time.Second
	cfg.Adapter.DryRun = true
	cfg.Adapter.EventLogDir = "./run_output/adapter_events"
	cfg.Adapter.DefaultRules = VenueRuleConfig{LotSize: 0.0001, TickSize: 0.01, MinNotional: 10.0}

	cfg.Sink = SinkConfig{
		Kind:            "dual",
		OutputDir:       "./run_output",
		DBName:          "signals_v2",
		BatchSize:       200,
		BatchMaxLatency: 250 * time.Millisecond,
		BusyTimeout:     5 * time.Second,
		CommitTimeout:   3 * time.Second,
		DeadletterDir:   "deadletter/signals",
		MaxRetries:      5,
		RetryBaseDelay:  100 * time.Millisecond,
	}

	cfg.Reader = ReaderConfig{
		DedupeBackend:  "memory",
		RetentionHours: 24,
		OpenTimeout:    10 * time.Second,
		IncludePreview: true,
	}

	cfg.Logging = LoggingConfig{Level: "info", Format: "console"}
	cfg.Metrics = MetricsConfig{Enabled: false, ListenAddr: ":9090"}

	return cfg
}
