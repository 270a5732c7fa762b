package spool

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"

	"github.com/petems/wavspool/internal/audio"
	"github.com/petems/wavspool/internal/config"
	"github.com/petems/wavspool/internal/observe"
	"github.com/petems/wavspool/internal/queue"
	"github.com/petems/wavspool/internal/shutdown"
)

// FlushReason says why a file was written.
type FlushReason string

const (
	FlushThreshold FlushReason = "threshold"
	FlushShutdown  FlushReason = "shutdown"
)

// Sink persists one flush. It must not retain samples after returning.
type Sink interface {
	WriteFile(path string, cfg audio.StreamConfig, samples []float32) error
}

// Namer produces the path for the next file.
type Namer interface {
	Next() (string, error)
}

type Config struct {
	Queue  *queue.Queue
	Sink   Sink
	Namer  Namer
	Stream audio.StreamConfig
	Logger zerolog.Logger

	// Threshold is the accumulated size in bytes that triggers a flush.
	// Default: config.FlushThresholdBytes.
	Threshold int64

	// PollInterval is how often an idle writer wakes up to report queue
	// drops. Default: 100ms.
	PollInterval time.Duration

	// Metrics defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// Writer drains the queue into an Accumulator and writes a file whenever
// the threshold is reached and once more on shutdown.
type Writer struct {
	queue     *queue.Queue
	sink      Sink
	namer     Namer
	stream    audio.StreamConfig
	threshold int64
	poll      time.Duration
	log       zerolog.Logger
	metrics   *observe.Metrics

	acc         Accumulator
	files       int
	lastDropped uint64
}

func New(cfg Config) *Writer {
	w := &Writer{
		queue:     cfg.Queue,
		sink:      cfg.Sink,
		namer:     cfg.Namer,
		stream:    cfg.Stream,
		threshold: cfg.Threshold,
		poll:      cfg.PollInterval,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
	}
	if w.threshold <= 0 {
		w.threshold = config.FlushThresholdBytes
	}
	if w.poll <= 0 {
		w.poll = 100 * time.Millisecond
	}
	if w.metrics == nil {
		w.metrics = observe.DefaultMetrics()
	}
	return w
}

// Files returns the number of files written so far. Only call it after Run
// has returned.
func (w *Writer) Files() int {
	return w.files
}

// Run processes blocks until token is signaled, then drains whatever is
// still queued, writes the final file (even when it holds no samples) and
// returns. Any sink or naming error ends the loop and is returned; the
// samples of the failed flush are lost.
func (w *Writer) Run(token *shutdown.Token) error {
	w.log.Info().
		Str("threshold", units.BytesSize(float64(w.threshold))).
		Stringer("stream", w.stream).
		Msg("Wave cache started")

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case block := <-w.queue.C():
			if err := w.add(block); err != nil {
				return err
			}
		case <-token.Done():
			return w.finish()
		case <-ticker.C:
			w.reportDrops()
		}
	}
}

func (w *Writer) add(block []float32) error {
	ctx := context.Background()
	w.acc.Append(block)
	w.metrics.BlocksReceived.Add(ctx, 1)
	w.metrics.SamplesCaptured.Add(ctx, int64(len(block)))

	if w.acc.SizeBytes() >= w.threshold {
		return w.flush(FlushThreshold)
	}
	return nil
}

func (w *Writer) finish() error {
	for {
		block, ok := w.queue.TryReceive()
		if !ok {
			break
		}
		if err := w.add(block); err != nil {
			return err
		}
	}
	w.reportDrops()

	if err := w.flush(FlushShutdown); err != nil {
		return err
	}
	w.log.Info().Int("files", w.files).Msg("Wave cache stopped")
	return nil
}

func (w *Writer) flush(reason FlushReason) error {
	path, err := w.namer.Next()
	if err != nil {
		return fmt.Errorf("failed to name output file: %w", err)
	}

	size := w.acc.SizeBytes()
	w.log.Info().
		Str("file", path).
		Str("reason", string(reason)).
		Int("samples", w.acc.Len()).
		Str("size", units.BytesSize(float64(size))).
		Msg("File")

	start := time.Now()
	if err := w.sink.WriteFile(path, w.stream, w.acc.Samples()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	elapsed := time.Since(start)

	w.acc.Reset()
	w.files++
	w.metrics.RecordFlush(context.Background(), string(reason), size, elapsed.Seconds())

	w.log.Info().Str("file", path).Dur("took", elapsed).Msg("Finished file")
	return nil
}

func (w *Writer) reportDrops() {
	dropped := w.queue.Dropped()
	if dropped == w.lastDropped {
		return
	}
	delta := dropped - w.lastDropped
	w.lastDropped = dropped

	w.metrics.BlocksDropped.Add(context.Background(), int64(delta))
	w.log.Warn().
		Uint64("dropped", delta).
		Uint64("total_dropped", dropped).
		Str("policy", w.queue.Policy().String()).
		Msg("Sample queue overflowed, blocks discarded")
}
