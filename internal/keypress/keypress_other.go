//go:build !linux && !darwin

package keypress

import (
	"os"
	"time"

	"golang.org/x/term"
)

type readResult struct {
	data []byte
	err  error
}

// inputReader works without poll(2): a goroutine blocks in Read and hands
// the result over, so the caller can still time out. A read left pending
// when Watch returns stays blocked until the next key or process exit.
type inputReader struct {
	in      *os.File
	results chan readResult
	pending bool
}

func newInputReader(in *os.File) *inputReader {
	return &inputReader{in: in, results: make(chan readResult, 1)}
}

func (r *inputReader) read(buf []byte, timeout time.Duration) (n int, ready bool, err error) {
	if !r.pending {
		r.pending = true
		size := len(buf)
		go func() {
			data := make([]byte, size)
			n, err := r.in.Read(data)
			r.results <- readResult{data: data[:n], err: err}
		}()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-r.results:
		r.pending = false
		return copy(buf, res.data), true, res.err
	case <-timer.C:
		return 0, false, nil
	}
}

func enterCbreak(fd int) error {
	_, err := term.MakeRaw(fd)
	return err
}
