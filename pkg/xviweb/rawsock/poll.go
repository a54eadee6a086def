package rawsock

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PollFD is a thin re-export of unix.PollFd so callers outside this
// package never need to import golang.org/x/sys/unix directly.
type PollFD = unix.PollFd

// PollIn/PollOut mirror POLLIN/POLLOUT for callers building PollFD values.
const (
	PollIn  = unix.POLLIN
	PollOut = unix.POLLOUT
)

// Poll wraps poll(2): timeoutMillis < 0 blocks indefinitely, 0
// returns immediately, >0 blocks up to that many milliseconds. This
// is the single wait primitive a Worker's cycle and the Acceptor's
// own accept loop both call once per iteration.
func Poll(fds []PollFD, timeoutMillis int) (int, error) {
	n, err := unix.Poll(fds, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("rawsock: poll: %w", err)
	}
	return n, nil
}
