package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/metrics"
)

// BacktestAdapter is the backtest Broker Adapter variant (spec section
// 4.8): it fills every order immediately at the caller-supplied price
// rounded to the tick grid, reports the configured fee and slippage rates
// summed in Fill.FeeBps, and stamps the caller's sim-clock time. There is
// no wall-clock sleep and no wire call.
type BacktestAdapter struct {
	rules    map[string]VenueRules
	fallback VenueRules
	fees     map[string]FeeAccountant
	slippage SlippageModel
	cfg      config.BacktestConfig
	limiter  *ActionLimiter
	reg      *metrics.Registry

	mu        sync.Mutex
	fills     []Fill
	positions map[string]float64
	seq       int64
}

// NewBacktestAdapter constructs a backtest adapter bound to one run's
// resolved backtest/adapter configuration.
func NewBacktestAdapter(backtestCfg config.BacktestConfig, adapterCfg config.AdapterConfig, reg *metrics.Registry) *BacktestAdapter {
	rules := make(map[string]VenueRules)
	for symbol, r := range adapterCfg.VenueRules {
		rules[symbol] = VenueRules{LotSize: r.LotSize, TickSize: r.TickSize, MinNotional: r.MinNotional}
	}
	return &BacktestAdapter{
		rules: rules,
		fallback: VenueRules{
			LotSize:     adapterCfg.DefaultRules.LotSize,
			TickSize:    adapterCfg.DefaultRules.TickSize,
			MinNotional: adapterCfg.DefaultRules.MinNotional,
		},
		fees:      make(map[string]FeeAccountant),
		slippage:  NewSlippageModel(backtestCfg),
		cfg:       backtestCfg,
		limiter:   NewActionLimiter(adapterCfg, reg),
		reg:       reg,
		positions: make(map[string]float64),
	}
}

func (b *BacktestAdapter) rulesFor(symbol string) VenueRules {
	if r, ok := b.rules[symbol]; ok {
		return r
	}
	return b.fallback
}

func (b *BacktestAdapter) feesFor(symbol string) FeeAccountant {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.fees[symbol]
	if !ok {
		acct = NewFeeAccountant(b.cfg, symbol)
		b.fees[symbol] = acct
	}
	return acct
}

// Submit rounds and validates order against the symbol's venue rules,
// then synthesizes an immediate fill at the rounded order price, with the
// fee and slippage rates summed into Fill.FeeBps, on order.TsMs (the
// caller's clock, not wall time). The fill price itself carries no
// slippage.
func (b *BacktestAdapter) Submit(ctx context.Context, order Order) (string, error) {
	start := time.Now()
	mode := "backtest"

	if !b.limiter.Allow("place") {
		b.observeSubmit(mode, "throttled", start)
		if b.reg != nil {
			b.reg.ExecutorThrottleTotal.WithLabelValues("place").Inc()
		}
		return "", fmt.Errorf("%w: place rate limit exceeded", ErrRejected)
	}

	rules := b.rulesFor(order.Symbol)
	qty, price, err := rules.Round(order.Qty, order.Price)
	if err != nil {
		b.observeSubmit(mode, "rejected", start)
		return "", err
	}

	acct := b.feesFor(order.Symbol)
	feeBps, _ := acct.Price(order.Scenario)
	slipBps := b.slippage.SlippageBps(order.Scenario, order.SpreadBps)

	b.mu.Lock()
	b.seq++
	clientOrderID := fmt.Sprintf("bt-%d", b.seq)
	fill := Fill{
		ClientOrderID: clientOrderID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		Qty:           qty,
		Price:         price,
		FeeBps:        feeBps + slipBps,
		TsMs:          order.TsMs,
	}
	b.fills = append(b.fills, fill)
	b.positions[order.Symbol] += sideSign(order.Side) * qty
	b.mu.Unlock()

	b.observeSubmit(mode, "filled", start)
	return clientOrderID, nil
}

// Cancel is a no-op for the backtest adapter: every order fills
// synchronously inside Submit, so there is never an open order to cancel.
func (b *BacktestAdapter) Cancel(ctx context.Context, clientOrderID string) error {
	if !b.limiter.Allow("cancel") {
		if b.reg != nil {
			b.reg.ExecutorThrottleTotal.WithLabelValues("cancel").Inc()
		}
		return fmt.Errorf("%w: cancel rate limit exceeded", ErrRejected)
	}
	return nil
}

// FetchFills drains and returns every fill synthesized since the last call.
func (b *BacktestAdapter) FetchFills(ctx context.Context) ([]Fill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.fills
	b.fills = nil
	return out, nil
}

// Positions reports the adapter's running per-symbol position.
func (b *BacktestAdapter) Positions(ctx context.Context) (map[string]float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]float64, len(b.positions))
	for k, v := range b.positions {
		out[k] = v
	}
	return out, nil
}

func (b *BacktestAdapter) observeSubmit(mode, result string, start time.Time) {
	if b.reg == nil {
		return
	}
	b.reg.ExecutorSubmitTotal.WithLabelValues(mode, result).Inc()
	b.reg.ExecutorLatency.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}
