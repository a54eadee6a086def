// Package server implements the top-level acceptor that owns the
// listening socket and hands freshly accepted connections off to a
// pool of workers, grounded on the original xviweb Server.cpp: start()
// binds and listens, acceptHttpConnection() accepts and makes the
// socket non-blocking, and cycle() polls the bound socket alongside
// every connection it owns. The original ran a single Server with one
// connection list; this engine splits that list across a configurable
// number of worker.Worker instances so requests can be processed
// concurrently, and the Acceptor's own poll loop only ever watches the
// listening socket plus its own wakeup pipe.
package server

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/WeyrSDev/xviweb/pkg/xviweb/address"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/clock"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/conn"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/httpconn"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/logging"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/rawsock"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/responder"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/worker"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/xerr"
)

// acceptSleepMillis bounds how long the acceptor's own poll call can
// block, so Stop is never kept waiting longer than this to notice the
// wakeup pipe.
const acceptSleepMillis = 1000

// Config configures an Acceptor and the worker pool it feeds.
type Config struct {
	BindHost string
	BindPort int

	// Workers is how many worker.Worker instances share the accepted
	// connections. The original ran a single connection list; this is
	// the engine's concurrency knob in place of that.
	Workers int

	DefaultRoot string
	VHosts      map[string]string
	Responders  []responder.Responder

	Tuning  *rawsock.TuningConfig
	Clock   clock.Clock
	Logger  hclog.Logger
	Metrics worker.Metrics
}

// Acceptor owns the listening socket and round-robins accepted
// connections across its worker pool.
type Acceptor struct {
	listener *rawsock.Listener
	tuning   *rawsock.TuningConfig
	clockSrc clock.Clock
	logger   hclog.Logger

	workers []*worker.Worker
	next    int

	pipe *rawsock.SelfPipe

	mu      sync.Mutex
	running bool
	stopped chan struct{}
}

// New binds and listens per cfg, builds cfg.Workers worker.Worker
// instances, and starts the acceptor's own accept loop. It does not
// block; call Stop to shut everything down.
func New(cfg Config) (*Acceptor, error) {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.New("xviweb")
	}
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}

	ln, err := rawsock.Listen(cfg.BindHost, cfg.BindPort, cfg.Tuning)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	pipe, err := rawsock.NewSelfPipe()
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("server: %w", err)
	}

	a := &Acceptor{
		listener: ln,
		tuning:   cfg.Tuning,
		clockSrc: c,
		logger:   logger,
		pipe:     pipe,
		running:  true,
		stopped:  make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		w, err := worker.New(worker.Config{
			DefaultRoot: cfg.DefaultRoot,
			VHosts:      cfg.VHosts,
			Responders:  cfg.Responders,
			Clock:       c,
			Logger:      logging.Named(logger, fmt.Sprintf("worker-%d", i)),
			Metrics:     cfg.Metrics,
		})
		if err != nil {
			a.stopWorkers()
			ln.Close()
			pipe.Close()
			return nil, fmt.Errorf("server: starting worker %d: %w", i, err)
		}
		a.workers = append(a.workers, w)
	}

	go a.run()
	return a, nil
}

// Port returns the bound port (useful when BindPort was 0).
func (a *Acceptor) Port() int { return a.listener.Port() }

// Stop closes the listening socket, stops the accept loop and stops
// every worker in the pool.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
	_ = a.pipe.Wake()
	<-a.stopped

	_ = a.listener.Close()
	_ = a.pipe.Close()
	a.stopWorkers()
}

func (a *Acceptor) stopWorkers() {
	var wg sync.WaitGroup
	for _, w := range a.workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
}

func (a *Acceptor) run() {
	defer close(a.stopped)
	for {
		a.mu.Lock()
		running := a.running
		a.mu.Unlock()
		if !running {
			return
		}
		a.cycle()
	}
}

// cycle polls the listening socket and the wakeup pipe, accepting
// every pending connection and handing each to the next worker in
// round-robin order.
func (a *Acceptor) cycle() {
	fds := []rawsock.PollFD{
		{Fd: int32(a.listener.Fd()), Events: rawsock.PollIn},
		{Fd: int32(a.pipe.ReadFd()), Events: rawsock.PollIn},
	}

	n, err := rawsock.Poll(fds, acceptSleepMillis)
	if err != nil {
		a.logger.Error("accept poll failed", "error", err)
		return
	}
	if n <= 0 {
		return
	}

	if fds[1].Revents&rawsock.PollIn != 0 {
		_ = a.pipe.Drain()
	}

	if fds[0].Revents&rawsock.PollIn == 0 {
		return
	}

	for {
		fd, peer, port, ok, err := a.listener.Accept(a.tuning)
		if err != nil {
			a.logger.Error("accept failed", "error", err)
			return
		}
		if !ok {
			return
		}
		a.dispatch(fd, peer, port)
	}
}

// dispatch builds the two-phase HttpConnection/Connection pair for a
// freshly accepted fd and hands it to the next worker in round-robin
// order, mirroring how the original pushed a new ServerConnection onto
// its single connection list right after acceptHttpConnection().
func (a *Acceptor) dispatch(fd int, peer address.Address, port int) {
	w := a.workers[a.next]
	a.next = (a.next + 1) % len(a.workers)

	metrics := w.Metrics()
	hc := httpconn.New(httpconn.Callbacks{
		Logger: w.Logger(),
		MalformedRequest: func(kind xerr.Kind) {
			metrics.MalformedRequest(kind.String())
		},
	})
	c := conn.New(fd, peer, port, a.clockSrc, hc)
	hc.Attach(c)

	w.AddConnection(hc)
}
