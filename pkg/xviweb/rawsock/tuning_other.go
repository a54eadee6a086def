//go:build !linux && !darwin

package rawsock

// No platform-specific accept/latency knobs outside Linux and Darwin;
// keepalive/nodelay/buffer sizes set in tuning.go are all this
// platform gets, matching the teacher's socket/tuning_other.go.
func applyPlatformConnOptions(fd int, cfg *TuningConfig) {}

func applyPlatformListenerOptions(fd int, cfg *TuningConfig) {}
