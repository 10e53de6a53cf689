package feeder

import (
	"os"

	"github.com/google/uuid"
)

// ResolveRunID returns the RUN_ID environment variable when set, otherwise
// generates a fresh one with google/uuid (spec section 4.6), giving every
// replay or live run a manifest-stable identity without caller bookkeeping.
func ResolveRunID() string {
	if v := os.Getenv("RUN_ID"); v != "" {
		return v
	}
	return uuid.NewString()
}
