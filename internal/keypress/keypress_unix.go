//go:build linux || darwin

package keypress

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

type inputReader struct {
	in *os.File
}

func newInputReader(in *os.File) *inputReader {
	return &inputReader{in: in}
}

// read waits up to timeout for input and then reads it. ready is false when
// the wait timed out or failed; err then holds the wait error.
func (r *inputReader) read(buf []byte, timeout time.Duration) (n int, ready bool, err error) {
	ready, err = waitReadable(r.in, timeout)
	if err != nil || !ready {
		return 0, false, err
	}
	n, err = r.in.Read(buf)
	return n, true, err
}

func waitReadable(f *os.File, timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(f.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if errors.Is(err, unix.EINTR) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	// A closed or invalid descriptor reports immediately on every poll.
	if fds[0].Revents&(unix.POLLNVAL|unix.POLLERR) != 0 {
		return false, fmt.Errorf("input descriptor unusable (revents %#x)", fds[0].Revents)
	}
	return fds[0].Revents&(unix.POLLIN|unix.POLLHUP) != 0, nil
}

// enterCbreak disables line buffering and echo but keeps output processing
// and signal keys, so log lines still render and Ctrl+C still interrupts.
func enterCbreak(fd int) error {
	t, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return err
	}
	t.Lflag &^= unix.ICANON | unix.ECHO
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(fd, ioctlWriteTermios, t)
}
