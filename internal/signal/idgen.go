package signal

import "fmt"

// signalID computes the deterministic signal_id: trunc36(run_id[:10] +
// "-" + ts_ms%10^6 + "-" + seq%100 + "-" + symbol[-4:]), per spec section
// 4.4. Determinism across runs requires the run_id to be stable for the
// run (the Replay Feeder stamps it once, see internal/feeder).
func signalID(runID string, tsMs int64, seq int64, symbol string) string {
	id := fmt.Sprintf("%s-%06d-%02d-%s", take(runID, 10), tsMs%1_000_000, seq%100, last(symbol, 4))
	return truncate(id, 36)
}

func take(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func last(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
