package audio

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/petems/wavspool/internal/observe"
	"github.com/petems/wavspool/internal/queue"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	require.NoError(t, err)
	return m
}

func TestAdapterCopiesBlocks(t *testing.T) {
	q := queue.New(4, queue.DropOldest)
	a := NewAdapter(q, zerolog.Nop(), testMetrics(t))
	cb := a.Callbacks()

	buf := []float32{1, 2, 3}
	cb.Data(buf)
	buf[0] = 99 // the backend reuses its buffer

	got, ok := q.TryReceive()
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got)
}

func TestAdapterDetachesWhenQueueClosed(t *testing.T) {
	q := queue.New(4, queue.DropOldest)
	a := NewAdapter(q, zerolog.Nop(), testMetrics(t))
	cb := a.Callbacks()

	q.Close()
	cb.Data([]float32{1})
	cb.Data([]float32{2})

	assert.Zero(t, a.Errors(), "a closed queue is a normal shutdown, not a stream error")
	_, ok := q.TryReceive()
	assert.False(t, ok)
}

type brokenQueue struct{ pushes int }

func (b *brokenQueue) Push([]float32) error {
	b.pushes++
	return assert.AnError
}

func TestAdapterReportsPushFailureOnce(t *testing.T) {
	q := &brokenQueue{}
	a := NewAdapter(q, zerolog.Nop(), testMetrics(t))
	cb := a.Callbacks()

	cb.Data([]float32{1})
	cb.Data([]float32{2})

	assert.Equal(t, uint64(1), a.Errors())
	assert.Equal(t, 1, q.pushes, "the adapter detaches after the first failure")
}

func TestAdapterCountsStreamErrors(t *testing.T) {
	a := NewAdapter(queue.New(1, queue.DropNewest), zerolog.Nop(), testMetrics(t))

	a.Callbacks().Error(assert.AnError)

	assert.Equal(t, uint64(1), a.Errors())
}
