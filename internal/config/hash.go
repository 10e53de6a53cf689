package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash computes a stable digest of the active parameters. Every emitted
// Signal stamps this value into config_hash so that a consumer can tell,
// byte-for-byte, whether two signals were produced under the same
// resolved configuration. Field order is fixed by the struct definition
// and json.Marshal on a struct (not a map) never reorders keys, so the
// digest is deterministic across processes without a custom canonicalizer.
func (c *Config) Hash() string {
	b, err := json.Marshal(c)
	if err != nil {
		// Config is always marshalable (plain structs/maps of primitives);
		// a failure here means a programming error, not a runtime condition.
		panic(fmt.Sprintf("config: hash: %v", err))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}
