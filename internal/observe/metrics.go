// Package observe holds the recorder's OpenTelemetry metric instruments and
// the Prometheus bridge that exposes them.
//
// Components take a *Metrics in their config. DefaultMetrics builds one from
// the global meter provider, which is a no-op until InitProvider runs. Tests
// should use NewMetrics with their own provider.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/petems/wavspool"

// Metrics holds all metric instruments. The OTel types are safe for
// concurrent use.
type Metrics struct {
	// BlocksReceived counts sample blocks taken off the queue by the writer.
	BlocksReceived metric.Int64Counter

	// BlocksDropped counts blocks discarded by the queue overflow policy.
	BlocksDropped metric.Int64Counter

	// SamplesCaptured counts samples appended to the accumulator.
	SamplesCaptured metric.Int64Counter

	// StreamErrors counts errors reported by the capture backend.
	StreamErrors metric.Int64Counter

	// Flushes counts written files. Use with attribute.String("reason", ...).
	Flushes metric.Int64Counter

	// BytesWritten counts sample bytes written to finalized files.
	BytesWritten metric.Int64Counter

	// FlushDuration tracks how long writing one file takes.
	FlushDuration metric.Float64Histogram

	meter metric.Meter
}

var flushBuckets = []float64{
	0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates the instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	if met.BlocksReceived, err = m.Int64Counter("wavspool.blocks.received",
		metric.WithDescription("Sample blocks received by the writer."),
	); err != nil {
		return nil, err
	}
	if met.BlocksDropped, err = m.Int64Counter("wavspool.blocks.dropped",
		metric.WithDescription("Sample blocks discarded because the queue was full."),
	); err != nil {
		return nil, err
	}
	if met.SamplesCaptured, err = m.Int64Counter("wavspool.samples.captured",
		metric.WithDescription("Samples appended to the accumulator."),
	); err != nil {
		return nil, err
	}
	if met.StreamErrors, err = m.Int64Counter("wavspool.stream.errors",
		metric.WithDescription("Errors reported by the capture stream."),
	); err != nil {
		return nil, err
	}
	if met.Flushes, err = m.Int64Counter("wavspool.flushes",
		metric.WithDescription("Files written, by flush reason."),
	); err != nil {
		return nil, err
	}
	if met.BytesWritten, err = m.Int64Counter("wavspool.bytes.written",
		metric.WithDescription("Sample bytes written to finalized files."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.FlushDuration, err = m.Float64Histogram("wavspool.flush.duration",
		metric.WithDescription("Time spent writing and finalizing one file."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(flushBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// QueueStats is the view of the sample queue the depth gauge reads.
type QueueStats interface {
	Len() int
	Cap() int
}

// ObserveQueue registers gauges reporting the queue depth and capacity on
// every collection. Unregister the returned registration when the queue goes
// away.
func (m *Metrics) ObserveQueue(q QueueStats) (metric.Registration, error) {
	depth, err := m.meter.Int64ObservableGauge("wavspool.queue.depth",
		metric.WithDescription("Sample blocks waiting in the queue."),
	)
	if err != nil {
		return nil, err
	}
	capacity, err := m.meter.Int64ObservableGauge("wavspool.queue.capacity",
		metric.WithDescription("Sample queue capacity in blocks."),
	)
	if err != nil {
		return nil, err
	}
	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(depth, int64(q.Len()))
		o.ObserveInt64(capacity, int64(q.Cap()))
		return nil
	}, depth, capacity)
}

// RecordFlush records one written file.
func (m *Metrics) RecordFlush(ctx context.Context, reason string, bytes int64, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("reason", reason))
	m.Flushes.Add(ctx, 1, attrs)
	m.BytesWritten.Add(ctx, bytes)
	m.FlushDuration.Record(ctx, seconds, attrs)
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns a lazily created Metrics backed by the global meter
// provider. It panics if instrument creation fails, which only happens on
// programmer error.
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
