// Package keypress turns a key press on the controlling terminal into a
// shutdown request.
package keypress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/petems/wavspool/internal/shutdown"
)

type Watcher struct {
	in   *os.File
	poll time.Duration
	log  zerolog.Logger
}

// New creates a watcher reading from in, normally os.Stdin. poll bounds how
// long one wait for input lasts before ctx and the token are checked again.
func New(in *os.File, poll time.Duration, log zerolog.Logger) *Watcher {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &Watcher{in: in, poll: poll, log: log}
}

// Watch waits for a key press and signals token. It returns nil when a key
// was pressed, ctx is done or token was signaled elsewhere. When in is a
// terminal it is switched to unbuffered, no-echo input for the duration.
func (w *Watcher) Watch(ctx context.Context, token *shutdown.Token) error {
	fd := int(w.in.Fd())
	if isatty.IsTerminal(w.in.Fd()) {
		state, err := term.GetState(fd)
		if err != nil {
			return fmt.Errorf("failed to read terminal state: %w", err)
		}
		if err := enterCbreak(fd); err != nil {
			w.log.Warn().Err(err).Msg("Terminal stays line-buffered, press Enter to stop")
		} else {
			defer func() {
				if err := term.Restore(fd, state); err != nil {
					w.log.Warn().Err(err).Msg("Failed to restore terminal state")
				}
			}()
		}
	}

	w.log.Info().Msg("Press any key to stop recording")

	in := newInputReader(w.in)
	buf := make([]byte, 64)
	for {
		if token.Cancelled() || ctx.Err() != nil {
			return nil
		}

		n, ready, err := in.read(buf, w.poll)
		if !ready {
			if err != nil {
				return fmt.Errorf("failed to wait for input: %w", err)
			}
			continue
		}

		if n > 0 {
			if token.Signal() {
				w.log.Info().Msg("Key pressed, stopping")
			}
			return nil
		}
		if errors.Is(err, io.EOF) {
			w.log.Warn().Msg("Input closed, key press shutdown unavailable")
			select {
			case <-ctx.Done():
			case <-token.Done():
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	}
}
