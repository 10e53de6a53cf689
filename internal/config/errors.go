package config

import "errors"

// ErrConfigInvalid is the sentinel for the ConfigInvalid error kind: fatal
// at startup, never retried. main() maps it to CLI exit code 2.
var ErrConfigInvalid = errors.New("config invalid")
