// Package reader implements the Reader (C1): an ordered, deduplicated
// stream of raw per-second rows read from partitioned ready/preview
// files, or, in live mode, from an already-aligned websocket feed.
package reader

import "fmt"

// Kind is the raw record category, matching the upstream harvester's
// dq-gate taxonomy.
type Kind string

const (
	KindPrices    Kind = "prices"
	KindOrderbook Kind = "orderbook"
	KindOFI       Kind = "ofi"
	KindCVD       Kind = "cvd"
	KindFusion    Kind = "fusion"
	KindEvents    Kind = "events"
)

// Layer is the source priority tier a row was read from.
type Layer string

const (
	LayerReady   Layer = "ready"
	LayerPreview Layer = "preview"
)

// RequiredFields lists the fields a row of a given Kind must carry,
// grounded on the upstream dq-gate module's REQUIRED_FIELDS table. A row
// missing any of these is a CorruptRow, dropped and counted rather than
// propagated.
var RequiredFields = map[Kind][]string{
	KindPrices:    {"ts_ms", "recv_ts_ms", "symbol", "row_id", "price"},
	KindOrderbook: {"ts_ms", "recv_ts_ms", "symbol", "row_id", "best_bid", "best_ask", "mid"},
	KindOFI:       {"ts_ms", "recv_ts_ms", "symbol", "row_id", "ofi_z"},
	KindCVD:       {"ts_ms", "recv_ts_ms", "symbol", "row_id", "z_cvd"},
	KindFusion:    {"ts_ms", "recv_ts_ms", "symbol", "row_id", "score", "proba"},
	KindEvents:    {"ts_ms", "recv_ts_ms", "symbol", "row_id", "event_type"},
}

// RawRow is one pre-alignment record as the Reader yields it: a thin,
// generic envelope around the kind-specific payload, since prices/
// orderbook/ofi/cvd/fusion/events each carry a different field set.
type RawRow struct {
	Kind     Kind                   `json:"kind"`
	RowID    string                 `json:"row_id"`
	Symbol   string                 `json:"symbol"`
	TsMs     int64                  `json:"ts_ms"`
	RecvTsMs int64                  `json:"recv_ts_ms"`
	Layer    Layer                  `json:"layer"`
	Payload  map[string]interface{} `json:"payload"`
}

// dedupeKey returns row_id if present, else the (symbol, ts_ms, kind)
// fallback the spec names for rows without a stable row-id.
func (r RawRow) dedupeKey() string {
	if r.RowID != "" {
		return "id:" + r.RowID
	}
	return fmt.Sprintf("fallback:%s:%d:%s", r.Symbol, r.TsMs, r.Kind)
}

func missingRequiredField(kind Kind, payload map[string]interface{}) string {
	for _, field := range RequiredFields[kind] {
		v, ok := payload[field]
		if !ok || v == nil {
			return field
		}
	}
	return ""
}
