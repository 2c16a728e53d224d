//go:build unix

package server

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	ErrWriteTimeout = errors.New("server: write timeout")
	errWouldBlock   = errors.New("server: write would block")
)

// writeSome does one non-blocking write. A full send buffer reports errWouldBlock
// so the caller can wait for the next POLLOUT.
func writeSome(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		if n < 0 {
			n = 0
		}
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return n, errWouldBlock
		default:
			return n, err
		}
	}
}

// prepareClientSocket keeps an accepted socket non-blocking.
// Linux accept does not inherit O_NONBLOCK from the listener.
func prepareClientSocket(fd int) error {
	return unix.SetNonblock(fd, true)
}
