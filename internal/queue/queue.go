// Package queue carries sample blocks from the real-time capture callback to
// the writer goroutine.
//
// The queue is bounded. Push never blocks: when the queue is full the
// configured Policy decides which block is discarded, and every discarded
// block is counted. Ownership of a block passes to the queue on Push and to
// the receiver on receive; producers must not touch a block after pushing it.
package queue

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// ErrClosed is returned by Push once the receiving side has gone away.
var ErrClosed = errors.New("queue: closed")

// Policy selects the block discarded when a Push finds the queue full.
type Policy int

const (
	// DropOldest evicts the oldest queued block to make room for the new one.
	DropOldest Policy = iota
	// DropNewest discards the incoming block.
	DropNewest
)

func (p Policy) String() string {
	switch p {
	case DropOldest:
		return "drop-oldest"
	case DropNewest:
		return "drop-newest"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "drop-oldest" or "drop-newest".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drop-oldest", "oldest":
		return DropOldest, nil
	case "drop-newest", "newest":
		return DropNewest, nil
	default:
		return 0, fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Queue is a bounded FIFO of sample blocks. It is safe for any number of
// producers and a single consumer.
type Queue struct {
	ch      chan []float32
	policy  Policy
	dropped atomic.Uint64
	closed  atomic.Bool
}

// New creates a queue holding at most capacity blocks.
func New(capacity int, policy Policy) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ch:     make(chan []float32, capacity),
		policy: policy,
	}
}

// Push enqueues block without blocking. A full queue drops a block according
// to the policy; that is not an error. Push returns ErrClosed after Close.
func (q *Queue) Push(block []float32) error {
	if q.closed.Load() {
		return ErrClosed
	}

	select {
	case q.ch <- block:
		return nil
	default:
	}

	if q.policy == DropNewest {
		q.dropped.Add(1)
		return nil
	}

	// Evict the oldest block. A concurrent producer may take the freed slot
	// first, in which case the incoming block goes instead.
	select {
	case <-q.ch:
		q.dropped.Add(1)
	default:
	}
	select {
	case q.ch <- block:
	default:
		q.dropped.Add(1)
	}
	return nil
}

// C exposes the receive side for use in select loops.
func (q *Queue) C() <-chan []float32 {
	return q.ch
}

// TryReceive returns the next block if one is queued.
func (q *Queue) TryReceive() ([]float32, bool) {
	select {
	case block := <-q.ch:
		return block, true
	default:
		return nil, false
	}
}

// Len returns the number of queued blocks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity in blocks.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Policy returns the overflow policy.
func (q *Queue) Policy() Policy {
	return q.policy
}

// Dropped returns the number of blocks discarded so far.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close marks the receiving side as gone. Blocks still queued stay readable.
// The channel itself is never closed so late producers cannot panic.
func (q *Queue) Close() {
	q.closed.Store(true)
}
