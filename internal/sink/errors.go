package sink

import "errors"

// ErrSinkWriteFailed is the sentinel for the SinkWriteFailed error kind
// (spec section 7): retried with bounded exponential backoff; on
// exhaustion the caller routes the signal to the deadletter log instead
// of propagating the error further up the pipeline.
var ErrSinkWriteFailed = errors.New("sink: write failed")
