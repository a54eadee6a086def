//go:build darwin

package rawsock

import "golang.org/x/sys/unix"

// Darwin has no TCP_QUICKACK/TCP_DEFER_ACCEPT equivalents; only
// TCP_FASTOPEN is exposed, matching the teacher's socket/tuning_darwin.go.
func applyPlatformConnOptions(fd int, cfg *TuningConfig) {}

func applyPlatformListenerOptions(fd int, cfg *TuningConfig) {
	if cfg.FastOpen {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, 1)
	}
}
