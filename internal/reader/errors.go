package reader

import "errors"

// ErrSourceMissing is the sentinel for the SourceMissing error kind
// (spec section 7): raised when no layer has any file covering the
// requested window, fatal unless the caller has a fallback source.
var ErrSourceMissing = errors.New("reader: source missing")

// CorruptRowError describes one dropped row: which file it came from,
// which field was missing or invalid, and why. Iterate neither returns nor
// records one: corrupt rows are dropped and counted per kind in
// Stats.CorruptRows (spec section 7, CorruptRow: "row dropped, counter
// incremented").
type CorruptRowError struct {
	Path   string
	Kind   Kind
	Reason string
}

func (e *CorruptRowError) Error() string {
	return "reader: corrupt row in " + e.Path + " (" + string(e.Kind) + "): " + e.Reason
}
