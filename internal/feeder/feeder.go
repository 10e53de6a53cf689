// Package feeder implements the Replay Feeder (C6): it drives the Signal
// Core from either a live or recorded feature stream, at wall-clock or
// sim-clock pace, attaching the scenario context every downstream cost
// model needs and recording the effective-parameters snapshot the run
// manifest carries forward.
package feeder

import (
	"context"
	"fmt"
	"sync"

	"github.com/sawpanic/oficvd/internal/config"
	"github.com/sawpanic/oficvd/internal/feature"
	"github.com/sawpanic/oficvd/internal/metrics"
	"github.com/sawpanic/oficvd/internal/signal"
)

// SignalSink is the subset of *sink.DualSink the feeder depends on,
// declared here so feeder can be tested against a stub rather than a real
// JSONL/Postgres pair.
type SignalSink interface {
	Write(ctx context.Context, sig signal.Signal) error
}

// Stats summarizes one feeder run for the run manifest (spec section 6,
// feeder_stats).
type Stats struct {
	mu               sync.Mutex
	RowsFed          int
	SignalsEmitted   int
	SignalsConfirmed int
	SinkErrors       int
}

func newStats() *Stats { return &Stats{} }

// Snapshot returns a copy of the current counters, safe to read while the
// feeder is still running.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{RowsFed: s.RowsFed, SignalsEmitted: s.SignalsEmitted, SignalsConfirmed: s.SignalsConfirmed, SinkErrors: s.SinkErrors}
}

// Feeder wires a FeatureRow stream into a Signal Core and a sink, stamping
// every emitted Signal with its _feature_data scenario context.
type Feeder struct {
	cfg   *config.Config
	core  *signal.Core
	sink  SignalSink
	clock Clock
	runID string

	Stats *Stats
}

// New constructs a Feeder bound to one run. clock must be a *SimClock for
// backtest/replay runs (spec section 4.6: it is the only clock C7/C8 may
// consult) and a WallClock for live runs.
func New(cfg *config.Config, core *signal.Core, sink SignalSink, clock Clock, runID string) *Feeder {
	return &Feeder{cfg: cfg, core: core, sink: sink, clock: clock, runID: runID, Stats: newStats()}
}

// Run consumes rows until the channel closes or ctx is canceled, evaluating
// each through the Signal Core, attaching _feature_data, persisting via the
// sink, and forwarding every emitted Signal (confirmed or not) on the
// returned channel. The run ends with an error on ctx cancellation, on a
// Signal Core error (a ContractViolation), or on a sink write error. The
// sink write error is also counted in SinkErrors. A DualSink returns a
// write error only when its deadletter log could not be written either.
func (f *Feeder) Run(ctx context.Context, rows <-chan feature.FeatureRow) (<-chan signal.Signal, <-chan error) {
	out := make(chan signal.Signal, 256)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		reg := metrics.Default()

		for {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			case row, ok := <-rows:
				if !ok {
					return
				}

				if sc, isSim := f.clock.(*SimClock); isSim {
					sc.Advance(row.TsMs)
				}

				f.Stats.mu.Lock()
				f.Stats.RowsFed++
				f.Stats.mu.Unlock()

				sig, err := f.core.Evaluate(row)
				if err != nil {
					errc <- fmt.Errorf("feeder: %w", err)
					return
				}

				if sig.Meta == nil {
					sig.Meta = make(map[string]interface{})
				}
				sig.Meta["_feature_data"] = buildFeatureData(row, f.cfg)

				f.Stats.mu.Lock()
				f.Stats.SignalsEmitted++
				if sig.Confirm {
					f.Stats.SignalsConfirmed++
				}
				f.Stats.mu.Unlock()

				reg.SignalsEmittedTotal.WithLabelValues(string(sig.DecisionCode)).Inc()
				if sig.Confirm {
					reg.SignalsConfirmTotal.Inc()
				}

				if f.sink != nil {
					if err := f.sink.Write(ctx, sig); err != nil {
						f.Stats.mu.Lock()
						f.Stats.SinkErrors++
						f.Stats.mu.Unlock()
						errc <- fmt.Errorf("feeder: sink write failed (fatal, deadletter exhausted): %w", err)
						return
					}
				}

				select {
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				case out <- sig:
				}
			}
		}
	}()

	return out, errc
}

// RunID returns the identity stamped on every Signal this feeder emits.
func (f *Feeder) RunID() string { return f.runID }
