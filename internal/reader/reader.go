package reader

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sawpanic/oficvd/internal/metrics"
)

// Stats summarizes one Iterate call for the run manifest (spec section
// 6, reader_stats).
type Stats struct {
	mu            sync.Mutex
	RowsYielded   int
	RowsDeduped   int
	CorruptRows   map[Kind]int
	FilesConsumed []string
}

func newStats() *Stats {
	return &Stats{CorruptRows: make(map[Kind]int)}
}

func (s *Stats) recordCorrupt(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CorruptRows[kind]++
}

func (s *Stats) recordFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesConsumed = append(s.FilesConsumed, path)
}

// Reader is the Reader (C1): it walks the partitioned
// date=/hour=/symbol=/kind= file layout, applies the ready-over-preview
// source priority, required-field validation, and row-id dedupe, and
// yields rows in strict per-symbol ascending ts_ms order.
type Reader struct {
	baseDir string
	dedupe  DedupeStore

	Stats *Stats
}

// NewReader constructs a Reader rooted at baseDir (normally
// <output_dir>/ready and <output_dir>/preview's common parent).
func NewReader(baseDir string, dedupe DedupeStore) *Reader {
	return &Reader{baseDir: baseDir, dedupe: dedupe, Stats: newStats()}
}

// Iterate produces an ordered, deduplicated stream of RawRow covering
// [tMinMs, tMaxMs] for symbols/kinds, honoring sourcePriority (default
// [ready, preview]) and includePreview. It blocks until every matching
// file has been read and sorted; callers that need streaming behavior
// should read from the channel concurrently with production starting.
func (r *Reader) Iterate(ctx context.Context, symbols []string, tMinMs, tMaxMs int64, kinds []Kind, sourcePriority []Layer, includePreview bool) (<-chan RawRow, <-chan error) {
	out := make(chan RawRow, 256)
	errc := make(chan error, 1)

	if len(sourcePriority) == 0 {
		sourcePriority = []Layer{LayerReady, LayerPreview}
	}

	go func() {
		defer close(out)
		defer close(errc)

		reg := metrics.Default()
		var rows []RawRow
		anyFileFound := false

		for _, layer := range sourcePriority {
			if layer == LayerPreview && !includePreview {
				continue
			}
			for _, symbol := range symbols {
				for _, kind := range kinds {
					pattern := filepath.Join(r.baseDir, string(layer), "date=*", "hour=*", "symbol="+symbol, "kind="+string(kind), "*.jsonl")
					matches, err := filepath.Glob(pattern)
					if err != nil {
						errc <- fmt.Errorf("reader: glob %s: %w", pattern, err)
						return
					}
					if len(matches) > 0 {
						anyFileFound = true
					}
					sort.Strings(matches)
					for _, path := range matches {
						select {
						case <-ctx.Done():
							errc <- ctx.Err()
							return
						default:
						}
						parsed, err := r.readFile(path, layer, kind, symbol, tMinMs, tMaxMs, reg)
						if err != nil {
							errc <- err
							return
						}
						r.Stats.recordFile(path)
						rows = append(rows, parsed...)
					}
				}
			}
		}

		if !anyFileFound {
			errc <- fmt.Errorf("%w: no %v file for symbols=%v kinds=%v in [%d,%d]", ErrSourceMissing, sourcePriority, symbols, kinds, tMinMs, tMaxMs)
			return
		}

		deduped := r.dedupeRows(ctx, rows, reg)
		sort.Slice(deduped, func(i, j int) bool {
			if deduped[i].TsMs != deduped[j].TsMs {
				return deduped[i].TsMs < deduped[j].TsMs
			}
			if deduped[i].Symbol != deduped[j].Symbol {
				return deduped[i].Symbol < deduped[j].Symbol
			}
			return deduped[i].RowID < deduped[j].RowID
		})

		for _, row := range deduped {
			select {
			case <-ctx.Done():
				return
			case out <- row:
				r.Stats.mu.Lock()
				r.Stats.RowsYielded++
				r.Stats.mu.Unlock()
				reg.ReaderRowsTotal.WithLabelValues(string(row.Kind), string(row.Layer)).Inc()
			}
		}
	}()

	return out, errc
}

func (r *Reader) readFile(path string, layer Layer, kind Kind, symbol string, tMinMs, tMaxMs int64, reg *metrics.Registry) ([]RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reader: open %s: %w", path, err)
	}
	defer f.Close()

	var rows []RawRow
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(line, &payload); err != nil {
			r.Stats.recordCorrupt(kind)
			reg.ReaderCorruptRows.WithLabelValues(string(kind)).Inc()
			continue
		}
		if missing := missingRequiredField(kind, payload); missing != "" {
			r.Stats.recordCorrupt(kind)
			reg.ReaderCorruptRows.WithLabelValues(string(kind)).Inc()
			continue
		}
		if lat, ok := payload["latency_ms"]; ok {
			if latF, ok := lat.(float64); ok && latF < 0 {
				r.Stats.recordCorrupt(kind)
				reg.ReaderCorruptRows.WithLabelValues(string(kind)).Inc()
				continue
			}
		}

		tsMs := int64(payload["ts_ms"].(float64))
		if tsMs < tMinMs || tsMs > tMaxMs {
			continue
		}
		row := RawRow{
			Kind:     kind,
			Symbol:   symbol,
			TsMs:     tsMs,
			RecvTsMs: int64(payload["recv_ts_ms"].(float64)),
			Layer:    layer,
			Payload:  payload,
		}
		if rid, ok := payload["row_id"].(string); ok {
			row.RowID = rid
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reader: scan %s: %w", path, err)
	}
	return rows, nil
}

// dedupeRows applies the ready-over-preview, row-id (or fallback)
// dedupe rule: rows are processed in the order they were collected
// (ready before preview, per Iterate's sourcePriority loop), so the
// first occurrence of a key wins.
func (r *Reader) dedupeRows(ctx context.Context, rows []RawRow, reg *metrics.Registry) []RawRow {
	out := make([]RawRow, 0, len(rows))
	for _, row := range rows {
		seen, err := r.dedupe.SeenAndMark(ctx, row.dedupeKey())
		if err != nil {
			// Dedupe backend failure degrades to "treat as unseen" rather
			// than dropping a row the stream has no other record of.
			out = append(out, row)
			continue
		}
		if seen {
			r.Stats.mu.Lock()
			r.Stats.RowsDeduped++
			r.Stats.mu.Unlock()
			reg.ReaderDedupeTotal.Inc()
			continue
		}
		out = append(out, row)
	}
	return out
}
