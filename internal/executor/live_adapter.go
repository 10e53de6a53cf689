package executor

import (
	"context"
	"fmt"
	"time"

	cb "github.com/sony/gobreaker"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/metrics"
)

// Transport is the wire call a testnet/live adapter issues; a concrete
// implementation (REST/WebSocket client against the venue's API) sits
// behind it. Kept as an interface so the circuit breaker, rate limiter,
// and dry_run logic in LiveAdapter are exercised identically regardless
// of the venue.
type Transport interface {
	SubmitOrder(ctx context.Context, order Order) (clientOrderID string, err error)
	CancelOrder(ctx context.Context, clientOrderID string) error
	FetchFills(ctx context.Context) ([]Fill, error)
	Positions(ctx context.Context) (map[string]float64, error)
}

// LiveAdapter is the testnet/live Broker Adapter variant (spec section
// 4.8): it issues real requests through Transport, records every
// submit/ack/fill/reject to an adapter_event-*.jsonl stream, and wraps
// the transport in a circuit breaker so a failing venue degrades to
// ErrCircuitOpen instead of hanging or silently dropping orders. dry_run
// skips the wire call but still synthesizes the event stream, so a
// testnet rehearsal produces the same artifacts a live run would.
type LiveAdapter struct {
	name      string
	transport Transport
	breaker   *cb.CircuitBreaker
	limiter   *ActionLimiter
	reg       *metrics.Registry
	dryRun    bool
	mode      string

	events map[string]*JSONLWriter
	logDir string
}

// NewLiveAdapter constructs a live/testnet adapter. mode should be
// "testnet" or "live" — it is the label recorded on executor_submit_total
// and executor_latency_seconds.
func NewLiveAdapter(name, mode string, transport Transport, cfg config.AdapterConfig, reg *metrics.Registry) *LiveAdapter {
	return &LiveAdapter{
		name:      name,
		transport: transport,
		breaker:   newTransportBreaker(name),
		limiter:   NewActionLimiter(cfg, reg),
		reg:       reg,
		dryRun:    cfg.DryRun,
		mode:      mode,
		events:    make(map[string]*JSONLWriter),
		logDir:    cfg.EventLogDir,
	}
}

func (l *LiveAdapter) eventWriter(symbol string) (*JSONLWriter, error) {
	if w, ok := l.events[symbol]; ok {
		return w, nil
	}
	w, err := NewJSONLWriter(l.logDir, adapterEventName(symbol))
	if err != nil {
		return nil, err
	}
	l.events[symbol] = w
	return w, nil
}

func (l *LiveAdapter) recordEvent(symbol, kind, clientOrderID, reason string, tsMs int64) {
	w, err := l.eventWriter(symbol)
	if err != nil {
		return
	}
	_ = w.Write(AdapterEvent{
		Kind:          kind,
		TsMs:          tsMs,
		Symbol:        symbol,
		ClientOrderID: clientOrderID,
		Reason:        reason,
		DryRun:        l.dryRun,
	})
}

func (l *LiveAdapter) publishBreakerState() {
	if l.reg != nil {
		l.reg.ExecutorCircuitState.WithLabelValues(l.name).Set(breakerStateGauge(l.breaker.State()))
	}
}

// Submit rate-limits, then routes through the circuit breaker: an open
// breaker returns ErrCircuitOpen without ever reaching Transport. dry_run
// skips the Transport call, synthesizing a deterministic client order id
// instead.
func (l *LiveAdapter) Submit(ctx context.Context, order Order) (string, error) {
	start := time.Now()
	l.recordEvent(order.Symbol, "submit", "", "", order.TsMs)

	if !l.limiter.Allow("place") {
		if l.reg != nil {
			l.reg.ExecutorThrottleTotal.WithLabelValues("place").Inc()
			l.reg.ExecutorSubmitTotal.WithLabelValues(l.mode, "throttled").Inc()
		}
		l.recordEvent(order.Symbol, "reject", "", "rate_limited", order.TsMs)
		return "", fmt.Errorf("%w: place rate limit exceeded", ErrRejected)
	}

	if l.dryRun {
		clientOrderID := fmt.Sprintf("dry-%d", order.TsMs)
		l.recordEvent(order.Symbol, "ack", clientOrderID, "", order.TsMs)
		l.observeSubmit("filled", start)
		return clientOrderID, nil
	}

	result, err := l.breaker.Execute(func() (interface{}, error) {
		return l.transport.SubmitOrder(ctx, order)
	})
	l.publishBreakerState()

	if err != nil {
		if err == cb.ErrOpenState || err == cb.ErrTooManyRequests {
			l.recordEvent(order.Symbol, "reject", "", "circuit_open", order.TsMs)
			l.observeSubmit("circuit_open", start)
			return "", fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		l.recordEvent(order.Symbol, "reject", "", err.Error(), order.TsMs)
		l.observeSubmit("rejected", start)
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}

	clientOrderID := result.(string)
	l.recordEvent(order.Symbol, "ack", clientOrderID, "", order.TsMs)
	l.observeSubmit("filled", start)
	return clientOrderID, nil
}

// Cancel rate-limits and routes through the same breaker as Submit.
func (l *LiveAdapter) Cancel(ctx context.Context, clientOrderID string) error {
	if !l.limiter.Allow("cancel") {
		if l.reg != nil {
			l.reg.ExecutorThrottleTotal.WithLabelValues("cancel").Inc()
		}
		return fmt.Errorf("%w: cancel rate limit exceeded", ErrRejected)
	}
	if l.dryRun {
		return nil
	}
	_, err := l.breaker.Execute(func() (interface{}, error) {
		return nil, l.transport.CancelOrder(ctx, clientOrderID)
	})
	l.publishBreakerState()
	if err != nil {
		if err == cb.ErrOpenState || err == cb.ErrTooManyRequests {
			return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return nil
}

// FetchFills polls Transport for new fills, or returns none in dry_run.
func (l *LiveAdapter) FetchFills(ctx context.Context) ([]Fill, error) {
	if l.dryRun {
		return nil, nil
	}
	result, err := l.breaker.Execute(func() (interface{}, error) {
		return l.transport.FetchFills(ctx)
	})
	l.publishBreakerState()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return result.([]Fill), nil
}

// Positions polls Transport for current positions, or an empty map in
// dry_run.
func (l *LiveAdapter) Positions(ctx context.Context) (map[string]float64, error) {
	if l.dryRun {
		return map[string]float64{}, nil
	}
	result, err := l.breaker.Execute(func() (interface{}, error) {
		return l.transport.Positions(ctx)
	})
	l.publishBreakerState()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return result.(map[string]float64), nil
}

func (l *LiveAdapter) observeSubmit(result string, start time.Time) {
	if l.reg == nil {
		return
	}
	l.reg.ExecutorSubmitTotal.WithLabelValues(l.mode, result).Inc()
	l.reg.ExecutorLatency.WithLabelValues(l.mode).Observe(time.Since(start).Seconds())
}

// Close flushes every open event-stream writer.
func (l *LiveAdapter) Close() error {
	var firstErr error
	for _, w := range l.events {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
