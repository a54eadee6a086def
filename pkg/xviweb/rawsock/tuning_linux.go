//go:build linux

package rawsock

import "golang.org/x/sys/unix"

// TCP_QUICKACK is missing from some older x/sys builds' unix package
// on certain arches; the teacher carries the same fallback constant
// in socket/tuning_linux.go.
const tcpQuickAck = 12

func applyPlatformConnOptions(fd int, cfg *TuningConfig) {
	if cfg.QuickAck {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, tcpQuickAck, 1)
	}
}

func applyPlatformListenerOptions(fd int, cfg *TuningConfig) {
	if cfg.DeferAccept {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, 5)
	}
	if cfg.FastOpen {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, 256)
	}
}
