// Package spool accumulates captured sample blocks and flushes them to
// files. All state in this package is owned by the writer goroutine.
package spool

import "github.com/petems/wavspool/internal/audio"

// Accumulator holds every sample captured since the last flush, in arrival
// order. Reset keeps the backing array so the next period does not regrow it.
type Accumulator struct {
	samples []float32
}

// Append adds a block's samples after those already held.
func (a *Accumulator) Append(block []float32) {
	a.samples = append(a.samples, block...)
}

// Len returns the number of samples held.
func (a *Accumulator) Len() int {
	return len(a.samples)
}

// SizeBytes returns the encoded size of the held samples.
func (a *Accumulator) SizeBytes() int64 {
	return int64(len(a.samples)) * audio.BytesPerSample
}

// Samples returns the held samples. The slice is only valid until the next
// Append or Reset.
func (a *Accumulator) Samples() []float32 {
	return a.samples
}

// Reset empties the accumulator.
func (a *Accumulator) Reset() {
	a.samples = a.samples[:0]
}
