package sink

import (
	"context"
	"sync"
	"time"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/metrics"
	"github.com/sawpanic/oficvd/internal/signal"
)

// DualSink is the C5 orchestrator: it writes every admitted signal to
// both the JSONL and relational sinks, or routes it to the deadletter log
// on exhaustion. Write returns an error, and so halts the stream, only when
// the deadletter log itself cannot be written (spec section 4.5, Failure
// model). JSONL is attempted first because it is the cheaper side to
// replay from on recovery. The relational side is batched — Write buffers
// signals and only calls RelationalSink.InsertBatch once the buffer
// reaches batchSize or batchMaxLatency has elapsed since the oldest
// buffered signal, whichever comes first (spec section 4.5).
type DualSink struct {
	jsonl      *JSONLWriter
	relational *RelationalSink // nil when kind == "jsonl"
	deadletter *DeadletterWriter
	maxRetries int
	retryBase  time.Duration
	nowMs      func() int64

	batchSize       int
	batchMaxLatency time.Duration

	mu         sync.Mutex
	pending    []signal.Signal
	flushTimer *time.Timer
}

// NewDualSink wires the three sinks from cfg.Sink. relational may be nil
// when cfg.Sink.Kind == "jsonl" (JSONL-only deployments skip the DB leg
// entirely rather than opening an unused connection pool).
func NewDualSink(cfg config.SinkConfig, relational *RelationalSink, nowMs func() int64) *DualSink {
	return &DualSink{
		jsonl:           NewJSONLWriter(cfg.OutputDir),
		relational:      relational,
		deadletter:      NewDeadletterWriter(cfg.OutputDir, cfg.DeadletterDir),
		maxRetries:      cfg.MaxRetries,
		retryBase:       cfg.RetryBaseDelay,
		nowMs:           nowMs,
		batchSize:       cfg.BatchSize,
		batchMaxLatency: cfg.BatchMaxLatency,
	}
}

// Write persists sig to both configured sinks. The JSONL write happens
// immediately, per spec's write-ahead ordering; a sink that exhausts its
// retries is routed to the deadletter log and counted, independent of the
// other sink's outcome (spec allows cross-sink reconciliation on recovery
// rather than strict two-phase commit, since the deadletter log plus the
// surviving sink together are sufficient to reconstruct state). The
// relational write is enqueued rather than performed inline; it flushes
// as a batch from enqueueRelational or the background latency timer.
func (d *DualSink) Write(ctx context.Context, sig signal.Signal) error {
	reg := metrics.Default()

	jsonlTimer := time.Now()
	jsonlErr := retryWithBackoff(ctx, d.maxRetries, d.retryBase, func() error {
		return d.jsonl.Write(sig)
	})
	reg.SinkWriteLatency.WithLabelValues("jsonl").Observe(time.Since(jsonlTimer).Seconds())
	if jsonlErr != nil {
		reg.SinkWriteTotal.WithLabelValues("jsonl", "failed").Inc()
		if err := d.routeToDeadletter("jsonl", jsonlErr.Error(), sig, d.maxRetries+1); err != nil {
			return err
		}
	} else {
		reg.SinkWriteTotal.WithLabelValues("jsonl", "ok").Inc()
	}

	if d.relational == nil {
		return nil
	}

	return d.enqueueRelational(ctx, sig)
}

// enqueueRelational buffers sig for the relational sink. When the buffer
// reaches batchSize it flushes synchronously, on this call's goroutine, so
// a batch-full flush failure can still propagate back through Write. A
// buffer that never reaches batchSize is flushed by the background timer
// armed on its first signal, after batchMaxLatency.
func (d *DualSink) enqueueRelational(ctx context.Context, sig signal.Signal) error {
	d.mu.Lock()
	d.pending = append(d.pending, sig)
	if len(d.pending) < d.batchSize {
		if d.flushTimer == nil {
			d.flushTimer = time.AfterFunc(d.batchMaxLatency, d.flushOnTimer)
		}
		d.mu.Unlock()
		return nil
	}
	batch := d.pending
	d.pending = nil
	if d.flushTimer != nil {
		d.flushTimer.Stop()
		d.flushTimer = nil
	}
	d.mu.Unlock()

	return d.flushRelationalBatch(ctx, batch)
}

// flushOnTimer runs on the batchMaxLatency timer, with no caller waiting
// on its result; a flush failure here still reaches the deadletter log
// (per signal) since flushRelationalBatch routes every signal in a failed
// batch there, so the only way it returns an error is the deadletter log
// itself failing to write, which there is no caller left to report to.
func (d *DualSink) flushOnTimer() {
	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.flushTimer = nil
	d.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	d.flushRelationalBatch(context.Background(), batch)
}

// flushRelationalBatch writes batch in one transaction via
// RelationalSink.InsertBatch; on exhaustion every signal in batch is
// routed to the deadletter log individually, since DeadletterEntry
// carries one signal each.
func (d *DualSink) flushRelationalBatch(ctx context.Context, batch []signal.Signal) error {
	reg := metrics.Default()

	relTimer := time.Now()
	relErr := retryWithBackoff(ctx, d.maxRetries, d.retryBase, func() error {
		return d.relational.InsertBatch(ctx, batch)
	})
	reg.SinkWriteLatency.WithLabelValues("relational").Observe(time.Since(relTimer).Seconds())

	if relErr == nil {
		reg.SinkWriteTotal.WithLabelValues("relational", "ok").Add(float64(len(batch)))
		return nil
	}

	reg.SinkWriteTotal.WithLabelValues("relational", "failed").Add(float64(len(batch)))
	for _, sig := range batch {
		if err := d.routeToDeadletter("relational", relErr.Error(), sig, d.maxRetries+1); err != nil {
			return err
		}
	}
	return nil
}

// routeToDeadletter writes entry and returns an error only when the
// deadletter log itself could not be written — the one failure mode the
// spec treats as fatal rather than counted-and-continue.
func (d *DualSink) routeToDeadletter(sinkName, reason string, sig signal.Signal, attempts int) error {
	return d.deadletter.Write(DeadletterEntry{
		Sink:     sinkName,
		Reason:   reason,
		Signal:   sig,
		Attempts: attempts,
		RoutedAt: d.nowMs(),
	})
}

// Close flushes any buffered relational batch, then releases every
// underlying handle.
func (d *DualSink) Close() error {
	var ferr error
	if d.relational != nil {
		d.mu.Lock()
		batch := d.pending
		d.pending = nil
		if d.flushTimer != nil {
			d.flushTimer.Stop()
			d.flushTimer = nil
		}
		d.mu.Unlock()
		if len(batch) > 0 {
			ferr = d.flushRelationalBatch(context.Background(), batch)
		}
	}

	jerr := d.jsonl.Close()
	var rerr error
	if d.relational != nil {
		rerr = d.relational.Close()
	}
	derr := d.deadletter.Close()
	if ferr != nil {
		return ferr
	}
	if jerr != nil {
		return jerr
	}
	if rerr != nil {
		return rerr
	}
	return derr
}
