package pipeline

import "sync/atomic"

// CancelToken is a cooperative cancellation flag shared between the
// pipeline and an adapter mid-process. Adapters are expected to check it
// between successive sink.Emit calls — cancellation after a commit does
// not undo it, and the enrichment loop is never interrupted mid-round
// (§5). Grounded on original_source's src/adapter/cancel.rs boolean flag.
type CancelToken struct {
	flag atomic.Bool
}

// NewCancelToken returns a fresh, uncancelled token.
func NewCancelToken() *CancelToken { return &CancelToken{} }

// Cancel requests cancellation. Safe to call from any goroutine.
func (t *CancelToken) Cancel() { t.flag.Store(true) }

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool { return t.flag.Load() }
