// Package config collects the engine's top-level settings into one
// validated struct. The original xviweb has no analogous config type:
// its main() called Server's setters (setAddress, setPort,
// setDefaultRoot, addVHost, attachResponder) one at a time. Collecting
// those into a struct validated with struct tags instead follows
// nabbar-golib's httpserver.ServerConfig.Validate/validator.New().Struct
// pattern.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/WeyrSDev/xviweb/pkg/xviweb/responder"
)

// defaultBindPort is used when BindPort is left at its zero value,
// matching the original Server's own constructor default (m_port(8080)).
const defaultBindPort = 8080

// defaultWorkers is used when Workers is left at zero or negative.
const defaultWorkers = 2

// Config is the engine's top-level configuration.
type Config struct {
	// BindHost is the interface to listen on. Empty resolves to
	// 127.0.0.1 during Normalize.
	BindHost string `validate:"omitempty,hostname|ip"`

	// BindPort is the TCP port to listen on. Zero resolves to
	// defaultBindPort during Normalize; an explicit ephemeral bind
	// still uses BindPort 0 by calling rawsock.Listen directly.
	BindPort int `validate:"gte=0,lte=65535"`

	// Workers is how many worker.Worker goroutines share accepted
	// connections. Values below 1 resolve to defaultWorkers.
	Workers int `validate:"gte=0"`

	// DefaultRoot is the document root used when a request's Host
	// header doesn't match any entry in VHosts. Empty disables the
	// fallback, matching the original's empty m_defaultRoot meaning
	// "respond 500 No Virtual Host".
	DefaultRoot string

	// VHosts maps a lower-cased Host header to a document root,
	// matching Server::addVHost's m_vhostMap.
	VHosts map[string]string

	// Responders is the in-process responder chain in attachment
	// order. The last entry is matched first (worker.New reverses the
	// slice), reproducing Server::attachResponder's
	// most-recently-added-first order; see responder.Responder.
	Responders []responder.Responder `validate:"required,min=1,dive,required"`
}

// Normalize returns a copy of c with zero-valued defaults filled in,
// mirroring the original Server constructor's own field defaults
// (m_address("127.0.0.1"), m_port(8080)).
func (c Config) Normalize() Config {
	if c.BindHost == "" {
		c.BindHost = "127.0.0.1"
	}
	if c.BindPort == 0 {
		c.BindPort = defaultBindPort
	}
	if c.Workers < 1 {
		c.Workers = defaultWorkers
	}
	if c.VHosts == nil {
		c.VHosts = map[string]string{}
	}
	return c
}

// Validate checks c's fields against their validation tags, returning
// a combined error describing every failing field.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	if ierr, ok := err.(*validator.InvalidValidationError); ok {
		return fmt.Errorf("config: %w", ierr)
	}

	var msg string
	for _, fe := range err.(validator.ValidationErrors) {
		if msg != "" {
			msg += "; "
		}
		msg += fmt.Sprintf("field %q fails constraint %q", fe.Field(), fe.ActualTag())
	}
	return fmt.Errorf("config: %s", msg)
}
