// Package shutdown provides the cancellation token shared by the capture,
// watcher and writer goroutines.
package shutdown

import "sync/atomic"

// Token is a write-once stop request. The zero value is not usable; create
// tokens with New.
type Token struct {
	flag atomic.Bool
	done chan struct{}
}

// New returns a token in the running state.
func New() *Token {
	return &Token{done: make(chan struct{})}
}

// Signal requests a stop. It reports whether this call performed the
// transition; later calls are no-ops.
func (t *Token) Signal() bool {
	if !t.flag.CompareAndSwap(false, true) {
		return false
	}
	close(t.done)
	return true
}

// Cancelled reports whether Signal has been called.
func (t *Token) Cancelled() bool {
	return t.flag.Load()
}

// Done is closed once the token is signaled.
func (t *Token) Done() <-chan struct{} {
	return t.done
}
