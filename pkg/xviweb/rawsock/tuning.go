package rawsock

import "golang.org/x/sys/unix"

// TuningConfig mirrors the teacher's socket.Config shape (non-delay,
// buffer sizes, keepalive, and the Linux-only accept/latency knobs),
// adapted from net.Conn-based application to raw-fd application since
// the worker deals in fds directly.
type TuningConfig struct {
	NoDelay     bool
	RecvBuffer  int
	SendBuffer  int
	KeepAlive   bool
	QuickAck    bool
	DeferAccept bool
	FastOpen    bool
}

// DefaultTuningConfig mirrors the teacher's DefaultConfig: balanced
// settings recommended for general HTTP/1.1 workloads.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		NoDelay:     true,
		RecvBuffer:  256 * 1024,
		SendBuffer:  256 * 1024,
		KeepAlive:   true,
		QuickAck:    true,
		DeferAccept: true,
		FastOpen:    true,
	}
}

func applyConnTuning(fd int, cfg *TuningConfig) {
	if cfg == nil {
		cfg = DefaultTuningConfig()
	}
	if cfg.NoDelay {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}
	if cfg.RecvBuffer > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RecvBuffer)
	}
	if cfg.SendBuffer > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBuffer)
	}
	if cfg.KeepAlive {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	}
	applyPlatformConnOptions(fd, cfg)
}

func applyListenerTuning(fd int, cfg *TuningConfig) {
	if cfg == nil {
		cfg = DefaultTuningConfig()
	}
	applyPlatformListenerOptions(fd, cfg)
}
