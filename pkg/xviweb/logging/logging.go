// Package logging sets up the engine's structured loggers. The
// teacher itself reaches only for stray fmt.Printf/log.Printf calls,
// so this is enriched from the rest of the pack: nabbar-golib wires
// hclog throughout its services for exactly this named/leveled
// sub-logger shape (one logger per Acceptor, one per Worker).
package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// New returns a named logger writing to stderr at Info level by
// default, matching the original xviweb's own convention of routing
// diagnostics to stderr/stdout rather than a file or syslog.
func New(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.Info,
		Output: os.Stderr,
	})
}

// Named returns a sub-logger scoped under parent, e.g. a per-worker
// logger named "worker.0" under an engine-wide root.
func Named(parent hclog.Logger, name string) hclog.Logger {
	return parent.Named(name)
}
