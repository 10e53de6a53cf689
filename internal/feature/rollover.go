package feature

import (
	"fmt"
	"time"
)

// BusinessDate computes the trading business date for a UTC timestamp
// under a (rollover_timezone, rollover_hour) policy: the business day
// rolls over at rollover_hour local time, not at local midnight. A
// timestamp whose local hour is before rollover_hour belongs to the
// previous calendar day's business date.
//
// Because the conversion goes through time.Time/time.Location, spring-
// forward (a local hour that does not exist) and fall-back (a local hour
// that occurs twice) are both resolved by the standard library the same
// way a wall clock would read them: the business date comparison uses the
// Location-aware wall-clock hour exactly once, so a duplicated fall-back
// hour is attributed to one business date both times it occurs, and a
// skipped spring-forward hour never produces a date calculation at all
// (no event can be timestamped inside a gap that does not exist).
func BusinessDate(tsMs int64, tz string, rolloverHour int) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("feature: rollover: bad timezone %q: %w", tz, err)
	}
	local := time.UnixMilli(tsMs).In(loc)

	date := local
	if local.Hour() < rolloverHour {
		date = local.AddDate(0, 0, -1)
	}
	return date.Format("2006-01-02"), nil
}
