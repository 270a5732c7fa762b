package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/petems/wavspool/internal/audio"
	"github.com/petems/wavspool/internal/config"
	"github.com/petems/wavspool/internal/observe"
	"github.com/petems/wavspool/internal/queue"
	"github.com/petems/wavspool/internal/shutdown"
	"github.com/petems/wavspool/internal/spool"
)

// watchGrace is how long Run waits for the watcher after shutdown was
// requested. A watcher still blocked in a read after that is left behind.
const watchGrace = time.Second

// Watcher turns a user action into a shutdown request.
type Watcher interface {
	Watch(ctx context.Context, token *shutdown.Token) error
}

type Config struct {
	Audio   audio.Capture
	Sink    spool.Sink
	Namer   spool.Namer
	Watcher Watcher
	Token   *shutdown.Token // optional, a fresh token is created when nil
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *observe.Metrics // optional

	// Threshold overrides config.FlushThresholdBytes when positive.
	Threshold int64
}

type App struct {
	audio     audio.Capture
	sink      spool.Sink
	namer     spool.Namer
	watcher   Watcher
	token     *shutdown.Token
	cfg       *config.Config
	log       zerolog.Logger
	metrics   *observe.Metrics
	threshold int64

	watchGrace time.Duration
}

func New(cfg Config) *App {
	a := &App{
		audio:     cfg.Audio,
		sink:      cfg.Sink,
		namer:     cfg.Namer,
		watcher:   cfg.Watcher,
		token:     cfg.Token,
		cfg:       cfg.Config,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		threshold: cfg.Threshold,

		watchGrace: watchGrace,
	}
	if a.token == nil {
		a.token = shutdown.New()
	}
	if a.cfg == nil {
		a.cfg = config.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// Token returns the shutdown token shared by the recorder's goroutines.
func (a *App) Token() *shutdown.Token {
	return a.token
}

// Run negotiates the stream, starts capture and records until the token is
// signaled by the watcher, by ctx ending, or by a failing goroutine. The
// buffered audio is always flushed before Run returns. Errors before capture
// starts are returned without starting any goroutine.
func (a *App) Run(ctx context.Context) error {
	policy, err := queue.ParsePolicy(a.cfg.Queue.Overflow)
	if err != nil {
		return err
	}

	stream, err := audio.Negotiate(a.audio, a.log)
	if err != nil {
		return err
	}

	q := queue.New(a.cfg.Queue.Capacity, policy)
	adapter := audio.NewAdapter(q, a.log, a.metrics)

	if err := a.audio.Start(ctx, stream, adapter.Callbacks()); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	a.log.Info().Stringer("stream", stream).Msg("Record start")

	if reg, err := a.metrics.ObserveQueue(q); err != nil {
		a.log.Warn().Err(err).Msg("Queue metrics unavailable")
	} else {
		defer reg.Unregister()
	}

	writer := spool.New(spool.Config{
		Queue:        q,
		Sink:         a.sink,
		Namer:        a.namer,
		Stream:       stream,
		Logger:       a.log,
		Threshold:    a.threshold,
		PollInterval: a.cfg.PollInterval,
		Metrics:      a.metrics,
	})

	g, gctx := errgroup.WithContext(ctx)

	// Any failure or outside cancellation becomes a shutdown request, so
	// the writer still gets to flush.
	g.Go(func() error {
		select {
		case <-gctx.Done():
			a.token.Signal()
		case <-a.token.Done():
		}
		return nil
	})

	g.Go(func() error {
		if err := writer.Run(a.token); err != nil {
			return fmt.Errorf("writer: %w", err)
		}
		return nil
	})

	if a.watcher != nil {
		g.Go(func() error {
			return a.watch(gctx)
		})
	}

	err = g.Wait()

	if stopErr := a.audio.Stop(); stopErr != nil {
		a.log.Warn().Err(stopErr).Msg("Failed to stop capture")
	}
	q.Close()

	if errs := adapter.Errors(); errs > 0 {
		a.log.Warn().Uint64("errors", errs).Msg("Capture reported stream errors")
	}
	a.log.Info().Int("files", writer.Files()).Msg("Record stop")
	return err
}

// watch runs the watcher until it returns, or until watchGrace after the
// token was signaled, so a watcher blocked on input cannot hold up Run.
func (a *App) watch(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.watcher.Watch(ctx, a.token) }()

	select {
	case err := <-errCh:
		return watchErr(err)
	case <-a.token.Done():
	}

	grace := time.NewTimer(a.watchGrace)
	defer grace.Stop()

	select {
	case err := <-errCh:
		return watchErr(err)
	case <-grace.C:
		a.log.Warn().Dur("grace", a.watchGrace).Msg("Shutdown watcher did not return, leaving it behind")
		return nil
	}
}

func watchErr(err error) error {
	if err != nil {
		return fmt.Errorf("shutdown watcher: %w", err)
	}
	return nil
}

// ListDevices returns the input devices of the configured backend.
func (a *App) ListDevices() ([]audio.AudioDevice, error) {
	return a.audio.ListDevices()
}
