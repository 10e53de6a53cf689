package feature

// Normalize applies the Feature Normalizer's (C3) canonical renames and
// default fills to an Aligner output, producing the FeatureRow the Signal
// Core consumes. It is a pure, idempotent record transform: re-running it
// on an already-normalized row (resurfaced as an AlignedRow with all
// optional fields populated) yields the same FeatureRow.
func Normalize(row AlignedRow, rolloverTZ string, rolloverHour int) (FeatureRow, error) {
	consistency := 1.0
	if row.Consistency != nil {
		consistency = *row.Consistency
	}

	warmup := false
	if row.Warmup != nil {
		warmup = *row.Warmup
	}

	spreadBps := row.SpreadBps
	if spreadBps == 0 && row.BestBid == 0 && row.BestAsk == 0 {
		spreadBps = 2.0
	}

	lagSec := float64(maxInt64(row.LagMsPrice, row.LagMsOrderbook)) / 1000.0

	businessDate := row.BusinessDate
	if businessDate == "" {
		bd, err := BusinessDate(row.TsMs, rolloverTZ, rolloverHour)
		if err != nil {
			return FeatureRow{}, err
		}
		businessDate = bd
	}

	out := FeatureRow{
		Symbol:       row.Symbol,
		TsMs:         row.TsMs,
		Mid:          row.Mid,
		BestBid:      row.BestBid,
		BestAsk:      row.BestAsk,
		SpreadBps:    spreadBps,
		ZOFI:         row.OfiZ,
		ZCVD:         row.CvdZ,
		FusionScore:  row.FusionScore,
		Return1s:     row.Return1s,
		LagSec:       lagSec,
		IsGapSecond:  row.IsGapSecond,
		Consistency:  consistency,
		Warmup:       warmup,
		Scenario2x2:  row.Scenario,
		BusinessDate: businessDate,
	}
	return out, out.Validate()
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
