package rawsock

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SelfPipe is the cross-goroutine wakeup primitive a Worker uses to
// break out of a blocked poll() when a connection is handed to it
// from another goroutine, grounded directly on ServerWorker's use of
// a pipe() pair for the same purpose: breakPoll() writes a byte into
// the write end before the caller touches the worker's connection
// list, and the poll loop reads the byte back out on the read end
// after waking.
type SelfPipe struct {
	readFd  int
	writeFd int
}

// NewSelfPipe creates a non-blocking pipe pair.
func NewSelfPipe() (*SelfPipe, error) {
	fds, err := unix.Pipe2(unix.O_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("rawsock: pipe2: %w", err)
	}
	return &SelfPipe{readFd: fds[0], writeFd: fds[1]}, nil
}

// ReadFd is the end to add to a poll set.
func (p *SelfPipe) ReadFd() int { return p.readFd }

// Wake writes a single byte to the pipe, waking anyone polling on
// ReadFd. EAGAIN (the pipe buffer is already non-empty) is not an
// error: one pending byte is as good as many for a pure wakeup signal.
func (p *SelfPipe) Wake() error {
	_, err := unix.Write(p.writeFd, []byte{0})
	if err != nil && err != unix.EAGAIN && err != unix.EWOULDBLOCK {
		return fmt.Errorf("rawsock: self-pipe write: %w", err)
	}
	return nil
}

// Drain reads and discards every pending byte so the next poll()
// blocks again instead of spinning on a still-readable pipe.
func (p *SelfPipe) Drain() error {
	var buf [64]byte
	for {
		_, err := unix.Read(p.readFd, buf[:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return nil
			}
			return fmt.Errorf("rawsock: self-pipe drain: %w", err)
		}
	}
}

// Close closes both ends of the pipe.
func (p *SelfPipe) Close() error {
	err1 := unix.Close(p.readFd)
	err2 := unix.Close(p.writeFd)
	if err1 != nil {
		return err1
	}
	return err2
}
