package main

import "errors"

// configError wraps a config.Load/Validate failure so main can map it to
// exit code 2 (spec section 6) without the command packages depending on
// each other's error types.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func wrapConfigError(err error) error {
	if err == nil {
		return nil
	}
	return &configError{err: err}
}

func isConfigError(err error) bool {
	var ce *configError
	return errors.As(err, &ce)
}
