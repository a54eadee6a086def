// Package worker implements the poll-based event loop that owns a
// share of the engine's connections, grounded directly on the
// original xviweb ServerWorker.cpp/ServerWorker.h: a dedicated
// goroutine holds a mutex across each full cycle, polls every owned
// connection plus a self-pipe used to interrupt a blocked poll when
// another goroutine hands it a new connection, and dispatches fully
// parsed requests to the configured virtual-host/responder chain.
package worker

import (
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/WeyrSDev/xviweb/pkg/xviweb/clock"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/httpconn"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/rawsock"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/responder"
)

// idleTimeoutMillis is the 10-second no-read-progress cutoff applied
// to connections not currently mid-response, matching the literal
// "10000" in ServerWorker::cycle.
const idleTimeoutMillis = 10000

// defaultSleepMillis is cycle's starting sleep budget before any
// pending context continuation narrows it, matching the literal
// "1000" ServerWorker::cycle initializes sleepTime to.
const defaultSleepMillis = 1000

// Metrics is the subset of the engine's Prometheus instrumentation a
// Worker reports into. Declared here (rather than importing package
// metrics directly) so this package has no dependency on Prometheus;
// metrics.New's returned type satisfies it.
type Metrics interface {
	ConnectionAccepted()
	ConnectionClosed()
	RequestDispatched(statusCode int)
	MalformedRequest(kind string)
	IdleTimeout()
}

type noopMetrics struct{}

func (noopMetrics) ConnectionAccepted()            {}
func (noopMetrics) ConnectionClosed()              {}
func (noopMetrics) RequestDispatched(int)          {}
func (noopMetrics) MalformedRequest(string)        {}
func (noopMetrics) IdleTimeout()                   {}

// Config configures a Worker, mirroring the original constructor's
// (defaultRoot, vhostMap, responders) parameter list.
type Config struct {
	DefaultRoot string
	VHosts      map[string]string
	Responders  []responder.Responder
	Clock       clock.Clock
	Logger      hclog.Logger
	Metrics     Metrics
}

type managedConnection struct {
	hc         *httpconn.HttpConnection
	context    responder.Context
	wakeupTime int64
}

// Worker owns a share of the engine's connections and runs their
// event loop on a dedicated goroutine.
type Worker struct {
	defaultRoot string
	vhosts      map[string]string
	responders  []responder.Responder
	clock       clock.Clock
	logger      hclog.Logger
	metrics     Metrics

	pipe *rawsock.SelfPipe

	mu          sync.Mutex
	connections []*managedConnection

	running bool
	stopped chan struct{}
}

// reverseResponders returns a copy of responders in reverse order, so
// that iterating it forward tries the most-recently-attached responder
// first, matching Server::attachResponder's m_responders.insert(begin, ...).
func reverseResponders(responders []responder.Responder) []responder.Responder {
	out := make([]responder.Responder, len(responders))
	for i, r := range responders {
		out[len(responders)-1-i] = r
	}
	return out
}

// New creates a Worker and starts its event-loop goroutine.
func New(cfg Config) (*Worker, error) {
	pipe, err := rawsock.NewSelfPipe()
	if err != nil {
		return nil, err
	}

	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	m := cfg.Metrics
	if m == nil {
		m = noopMetrics{}
	}

	w := &Worker{
		defaultRoot: cfg.DefaultRoot,
		vhosts:      cfg.VHosts,
		responders:  reverseResponders(cfg.Responders),
		clock:       c,
		logger:      logger,
		metrics:     m,
		pipe:        pipe,
		running:     true,
		stopped:     make(chan struct{}),
	}

	go w.run()
	return w, nil
}

// AddConnection hands a freshly accepted connection to this worker.
// It wakes the worker's poll before acquiring the connection-list
// lock, exactly like addConnection/breakPoll: if the worker is
// currently blocked in poll(), the wakeup byte is already in the pipe
// by the time this call gets the lock in the next cycle.
func (w *Worker) AddConnection(hc *httpconn.HttpConnection) {
	_ = w.pipe.Wake()
	w.mu.Lock()
	w.connections = append(w.connections, &managedConnection{hc: hc})
	w.mu.Unlock()
	w.metrics.ConnectionAccepted()
}

// Metrics returns the Metrics sink this worker reports into, so a
// caller building an HttpConnection to hand to AddConnection can wire
// its httpconn.Callbacks.MalformedRequest to the same sink.
func (w *Worker) Metrics() Metrics { return w.metrics }

// Logger returns this worker's logger, for the same reason as Metrics.
func (w *Worker) Logger() hclog.Logger { return w.logger }

// ConnectionCount reports how many connections this worker currently owns.
func (w *Worker) ConnectionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.connections)
}

// Stop signals the event loop to exit and waits for it to do so.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	_ = w.pipe.Wake()
	<-w.stopped
	_ = w.pipe.Close()
}

func (w *Worker) run() {
	defer close(w.stopped)
	for {
		w.mu.Lock()
		running := w.running
		if !running {
			w.mu.Unlock()
			return
		}
		w.cycle()
		w.mu.Unlock()
	}
}

// cycle is one iteration of the event loop: reap done/idle
// connections, continue due response contexts, poll, and dispatch
// reads, exactly mirroring ServerWorker::cycle. Callers must hold w.mu.
func (w *Worker) cycle() {
	currentTime := w.clock.NowMillis()
	sleepMillis := int64(defaultSleepMillis)

	for i := 0; i < len(w.connections); i++ {
		mc := w.connections[i]
		state := mc.hc.State()

		idle := state != httpconn.StateSendingResponse &&
			mc.hc.Conn.MillisecondsSinceLastRead() > idleTimeoutMillis
		done := state == httpconn.StateDone || idle

		if done {
			if idle && state != httpconn.StateDone {
				w.metrics.IdleTimeout()
			}
			_ = mc.hc.Conn.Close()
			w.metrics.ConnectionClosed()
			w.connections = append(w.connections[:i], w.connections[i+1:]...)
			i--
			continue
		}

		if mc.context != nil {
			if mc.wakeupTime <= currentTime {
				mc.context = mc.context.ContinueResponse(mc.hc.Request, mc.hc.Response)
				if mc.context != nil {
					mc.wakeupTime = currentTime + mc.context.ResponseInterval()
				}
			} else if diff := mc.wakeupTime - currentTime; diff < sleepMillis {
				sleepMillis = diff
			}
		}
	}

	fds := make([]rawsock.PollFD, len(w.connections)+1)
	pipeIndex := len(w.connections)
	fds[pipeIndex] = rawsock.PollFD{Fd: int32(w.pipe.ReadFd()), Events: rawsock.PollIn}
	for i, mc := range w.connections {
		fds[i] = rawsock.PollFD{Fd: int32(mc.hc.Conn.FileDescriptor()), Events: rawsock.PollIn}
	}

	n, err := rawsock.Poll(fds, int(sleepMillis))
	if err != nil {
		w.logger.Error("poll failed", "error", err)
		return
	}
	if n <= 0 {
		return
	}

	if fds[pipeIndex].Revents&rawsock.PollIn != 0 {
		_ = w.pipe.Drain()
	}

	for i, mc := range w.connections {
		if fds[i].Revents&rawsock.PollIn == 0 {
			continue
		}
		if err := mc.hc.Conn.DoRead(); err != nil {
			w.logger.Debug("connection read failed", "error", err)
			continue
		}
		if mc.hc.State() == httpconn.StateReceivedRequest {
			w.dispatch(mc, currentTime)
		}
	}
}

// dispatch resolves the virtual host and the first matching responder
// for a fully-parsed request, mirroring processRequest.
func (w *Worker) dispatch(mc *managedConnection, currentTime int64) {
	req := mc.hc.Request
	resp := mc.hc.Response

	host := strings.ToLower(req.Header["host"])
	if root, ok := w.vhosts[host]; ok {
		req.SetVHostRoot(root)
	} else if w.defaultRoot != "" {
		req.SetVHostRoot(w.defaultRoot)
	} else {
		message := "Your request could not be processed because there is no virtual host associated with " + req.Header["host"] + "."
		_ = resp.SendErrorResponse(500, "No Virtual Host", message)
		w.metrics.RequestDispatched(500)
		return
	}

	for _, r := range w.responders {
		if !r.MatchesRequest(req) {
			continue
		}
		ctx := r.Respond(req, resp)
		if ctx != nil {
			mc.context = ctx
			mc.wakeupTime = currentTime + ctx.ResponseInterval()
		}
		w.metrics.RequestDispatched(resp.StatusCode())
		return
	}

	_ = resp.SendErrorResponse(500, "No Responder", "Your request could not be processed because there is no module loaded that is capable of handing the request.")
	w.metrics.RequestDispatched(500)
}
