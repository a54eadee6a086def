// Package rawsock provides the non-blocking raw-fd socket primitives
// the worker event loop is built on: a listening socket, accept4,
// vectored-free read/write, a self-pipe for cross-goroutine wakeup,
// and a poll(2) wrapper. The engine talks to raw file descriptors
// instead of net.Conn because the worker's event loop needs a single
// poll() call per cycle across every connection it owns plus its own
// wakeup pipe, which net.Listener/net.Conn's blocking model cannot
// express. Platform-specific tuning lives in tuning_linux.go,
// tuning_darwin.go and tuning_other.go, grounded on the teacher's own
// socket/tuning_linux.go and socket/tuning_darwin.go split.
package rawsock

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/WeyrSDev/xviweb/pkg/xviweb/address"
)

// Listener owns a non-blocking, listening TCP socket.
type Listener struct {
	fd   int
	port int
}

// Listen creates, binds and listens on host:port. The socket is put
// in non-blocking mode immediately so Accept never blocks the
// acceptor's poll-driven loop.
func Listen(host string, port int, cfg *TuningConfig) (*Listener, error) {
	addr, err := resolveBindAddress(host)
	if err != nil {
		return nil, err
	}

	domain := unix.AF_INET
	if addr.Type() == address.IPv6 {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("rawsock: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsock: SO_REUSEADDR: %w", err)
	}

	var sa unix.Sockaddr
	if addr.Type() == address.IPv6 {
		sa6 := &unix.SockaddrInet6{Port: port}
		copy(sa6.Addr[:], addr.Octets())
		sa = sa6
	} else {
		sa4 := &unix.SockaddrInet4{Port: port}
		copy(sa4.Addr[:], addr.Octets())
		sa = sa4
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsock: bind: %w", err)
	}

	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsock: listen: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsock: set nonblocking: %w", err)
	}

	applyListenerTuning(fd, cfg)

	if port == 0 {
		sn, err := unix.Getsockname(fd)
		if err == nil {
			switch in := sn.(type) {
			case *unix.SockaddrInet4:
				port = in.Port
			case *unix.SockaddrInet6:
				port = in.Port
			}
		}
	}

	return &Listener{fd: fd, port: port}, nil
}

const listenBacklog = 0

// resolveBindAddress resolves host to the address to bind, preferring
// whichever family address.Resolve returns (IPv6 if available, else
// IPv4), mirroring the original Server's own m_address.getType()
// branch in its listen-socket setup. An empty host or "0.0.0.0"
// resolves to the IPv4 wildcard.
func resolveBindAddress(host string) (address.Address, error) {
	if host == "" || host == "0.0.0.0" {
		return address.FromOctets([]byte{0, 0, 0, 0}, address.IPv4), nil
	}
	return address.Resolve(host)
}

// Fd returns the raw listening file descriptor, for use in a poll set.
func (l *Listener) Fd() int { return l.fd }

// Port returns the bound port (resolved from the kernel when 0 was requested).
func (l *Listener) Port() int { return l.port }

// Accept accepts one pending connection without blocking. It returns
// (0, address.Address{}, 0, false, nil) when no connection is currently pending
// (EAGAIN/EWOULDBLOCK), which the acceptor treats as "nothing to do
// this cycle" rather than an error.
func (l *Listener) Accept(cfg *TuningConfig) (fd int, peer address.Address, port int, ok bool, err error) {
	nfd, sa, aerr := unix.Accept4(l.fd, unix.SOCK_NONBLOCK)
	if aerr != nil {
		if aerr == unix.EAGAIN || aerr == unix.EWOULDBLOCK {
			return 0, address.Address{}, 0, false, nil
		}
		return 0, address.Address{}, 0, false, fmt.Errorf("rawsock: accept4: %w", aerr)
	}

	switch in := sa.(type) {
	case *unix.SockaddrInet4:
		peer = address.FromOctets(in.Addr[:], address.IPv4)
		port = in.Port
	case *unix.SockaddrInet6:
		peer = address.FromOctets(in.Addr[:], address.IPv6)
		port = in.Port
	}

	applyConnTuning(nfd, cfg)
	return nfd, peer, port, true, nil
}

// Close closes the listening socket.
func (l *Listener) Close() error {
	return unix.Close(l.fd)
}

// Read reads into buf without blocking. A zero-length, nil-error
// result means the peer performed an orderly shutdown (EOF); an
// EAGAIN/EWOULDBLOCK is reported back as (0, false, nil) so callers
// can distinguish "nothing to read yet" from "connection closed".
func Read(fd int, buf []byte) (n int, ok bool, err error) {
	n, err = unix.Read(fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("rawsock: read: %w", err)
	}
	return n, true, nil
}

// Write writes buf to fd, looping over partial writes and treating
// EAGAIN as "stop for now, nothing more written" since the caller
// polls for writability itself if it ever needs to (the engine's
// responses are small enough in practice that this rarely triggers).
func Write(fd int, buf []byte) (n int, err error) {
	for n < len(buf) {
		wrote, werr := unix.Write(fd, buf[n:])
		if werr != nil {
			if werr == unix.EAGAIN || werr == unix.EWOULDBLOCK {
				return n, nil
			}
			return n, fmt.Errorf("rawsock: write: %w", werr)
		}
		n += wrote
	}
	return n, nil
}

// Close closes an arbitrary connection fd.
func Close(fd int) error {
	return unix.Close(fd)
}
