// Package pipeline wires the Reader's per-kind RawRow stream into the
// Aligner and Feature Normalizer, producing the canonical FeatureRow
// stream the Signal Core consumes. The Reader yields one row per
// (symbol, kind, ts_ms); nothing upstream merges the five kinds into one
// observation, so this package owns that join.
package pipeline

import (
	"context"
	"sort"

	"github.com/sawpanic/oficvd/internal/feature"
	"github.com/sawpanic/oficvd/internal/reader"
)

// symbolBucket accumulates the kinds seen for one (symbol, second) while
// rows for later seconds have not yet arrived.
type symbolBucket struct {
	second   int64
	obs      feature.RawObservation
	lastSeen int64
	started  bool
}

// Merge joins a time-sorted RawRow stream into per-second RawObservations,
// one per (symbol, second), filling any second a symbol produced no row
// for via aligner.FillGap, then normalizing through cfg's rollover rule.
// rows must already be ordered by ts_ms as reader.Reader.Iterate guarantees;
// Merge does not re-sort across symbols, only buffers one bucket at a time
// per symbol so that a kind arriving slightly out of sub-second order
// within the same bucket still lands in the same observation.
func Merge(ctx context.Context, rows <-chan reader.RawRow, aligner *feature.Aligner, rolloverTZ string, rolloverHour int) (<-chan feature.FeatureRow, <-chan error) {
	out := make(chan feature.FeatureRow, 256)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		buckets := make(map[string]*symbolBucket)

		flush := func(symbol string) error {
			b, ok := buckets[symbol]
			if !ok || !b.started {
				return nil
			}
			if err := fillGaps(aligner, symbol, b.lastSeen, b.second, out, rolloverTZ, rolloverHour); err != nil {
				return err
			}
			aligned, err := aligner.Observe(b.obs)
			if err != nil {
				return err
			}
			row, err := feature.Normalize(aligned, rolloverTZ, rolloverHour)
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- row:
			}
			b.lastSeen = b.second
			b.started = false
			return nil
		}

		for {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			case row, ok := <-rows:
				if !ok {
					for symbol := range buckets {
						if err := flush(symbol); err != nil {
							errc <- err
							return
						}
					}
					return
				}

				second := row.TsMs / 1000 * 1000
				b, ok := buckets[row.Symbol]
				if !ok {
					b = &symbolBucket{}
					buckets[row.Symbol] = b
				}

				if b.started && second > b.second {
					if err := flush(row.Symbol); err != nil {
						errc <- err
						return
					}
				}

				if !b.started {
					b.second = second
					b.obs = feature.RawObservation{Symbol: row.Symbol, TsMs: second}
					b.started = true
				}

				applyKind(&b.obs, row)
			}
		}
	}()

	return out, errc
}

// applyKind folds one RawRow's payload into the bucket's accumulating
// RawObservation. Keys are read by name rather than switched on row.Kind,
// since a file-backed row carries only its own kind's fields while a live
// row (already joined upstream of this process, per LiveReader's doc
// comment) carries all of them at once; reading by presence handles both
// without the live path needing to fan one row out across five kinds.
func applyKind(obs *feature.RawObservation, row reader.RawRow) {
	payload := row.Payload
	seenFields := 0

	if v, ok := payload["price"]; ok {
		obs.Mid = asFloat(v, obs.Mid)
		seenFields++
	}
	if v, ok := payload["mid"]; ok {
		obs.Mid = asFloat(v, obs.Mid)
		seenFields++
	}
	if v, ok := payload["best_bid"]; ok {
		obs.BestBid = asFloat(v, obs.BestBid)
		seenFields++
	}
	if v, ok := payload["best_ask"]; ok {
		obs.BestAsk = asFloat(v, obs.BestAsk)
		seenFields++
	}
	if v, ok := payload["spread_bps"]; ok {
		obs.SpreadBps = asFloat(v, obs.SpreadBps)
		seenFields++
	}
	if v, ok := payload["ofi_z"]; ok {
		obs.OfiZ = asFloat(v, obs.OfiZ)
		seenFields++
	}
	if v, ok := payload["z_cvd"]; ok {
		obs.CvdZ = asFloat(v, obs.CvdZ)
		seenFields++
	}
	if v, ok := payload["score"]; ok {
		obs.FusionScore = asFloat(v, obs.FusionScore)
		seenFields++
	}
	if v, ok := payload["lag_ms"]; ok {
		obs.LagMsOrderbook = asInt64(v, obs.LagMsOrderbook)
	}

	if seenFields == 0 {
		return
	}
	obs.LagMsPrice = maxi(obs.LagMsPrice, row.RecvTsMs-row.TsMs)
	obs.SubFeedsExpected = 5
	obs.SubFeedsPresent++
	if obs.SubFeedsPresent > obs.SubFeedsExpected {
		obs.SubFeedsPresent = obs.SubFeedsExpected
	}
}

// fillGaps emits FillGap-derived FeatureRows for every whole second strictly
// between lastSeen and next, in ascending order, so a symbol's stream has
// no missing seconds once normalized (spec section 4.2's gap-second rule).
func fillGaps(aligner *feature.Aligner, symbol string, lastSeen, next int64, out chan<- feature.FeatureRow, rolloverTZ string, rolloverHour int) error {
	if lastSeen == 0 || next <= lastSeen+1000 {
		return nil
	}
	var seconds []int64
	for s := lastSeen + 1000; s < next; s += 1000 {
		seconds = append(seconds, s)
	}
	sort.Slice(seconds, func(i, j int) bool { return seconds[i] < seconds[j] })
	for _, s := range seconds {
		aligned, err := aligner.FillGap(symbol, s)
		if err != nil {
			return err
		}
		row, err := feature.Normalize(aligned, rolloverTZ, rolloverHour)
		if err != nil {
			return err
		}
		out <- row
	}
	return nil
}

func asFloat(v interface{}, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return fallback
	}
}

func asInt64(v interface{}, fallback int64) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return fallback
	}
}

func maxi(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
