package audio

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/petems/wavspool/internal/observe"
	"github.com/petems/wavspool/internal/queue"
)

// BlockQueue accepts ownership of captured blocks without blocking.
type BlockQueue interface {
	Push(block []float32) error
}

// Adapter turns backend callbacks into queued sample blocks. Each callback
// copies the backend buffer once and hands the copy to the queue.
type Adapter struct {
	queue   BlockQueue
	log     zerolog.Logger
	metrics *observe.Metrics

	detached atomic.Bool
	errors   atomic.Uint64
}

// NewAdapter creates an adapter forwarding into q. A nil metrics uses
// observe.DefaultMetrics.
func NewAdapter(q BlockQueue, log zerolog.Logger, metrics *observe.Metrics) *Adapter {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Adapter{queue: q, log: log, metrics: metrics}
}

// Callbacks returns the callbacks to pass to Capture.Start.
func (a *Adapter) Callbacks() Callbacks {
	return Callbacks{
		Data:  a.onData,
		Error: a.onError,
	}
}

// Errors returns the number of stream errors reported so far.
func (a *Adapter) Errors() uint64 {
	return a.errors.Load()
}

func (a *Adapter) onData(in []float32) {
	if a.detached.Load() {
		return
	}

	block := make([]float32, len(in))
	copy(block, in)

	err := a.queue.Push(block)
	if err == nil || !a.detached.CompareAndSwap(false, true) {
		return
	}
	// A closed queue is the normal end of a recording: late callbacks
	// between the final flush and the stream stop are discarded.
	if errors.Is(err, queue.ErrClosed) {
		a.log.Debug().Msg("Sample queue closed, discarding further blocks")
		return
	}
	a.onError(fmt.Errorf("failed to forward samples: %w", err))
}

func (a *Adapter) onError(err error) {
	a.errors.Add(1)
	a.metrics.StreamErrors.Add(context.Background(), 1)
	a.log.Error().Err(err).Msg("Error during stream")
}
