// Package httpconn implements the HTTP/1.1 request state machine,
// grounded on the original xviweb HttpConnection.cpp: a connection
// moves through AwaitingRequest -> ReadingHeaders -> (ReadingPostData
// for POST) -> ReceivedRequest -> SendingResponse -> Done, driven by
// the line/string callbacks conn.Connection dispatches as bytes
// arrive, with an 8 KiB cumulative request-size cap enforced across
// every state.
package httpconn

import (
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/WeyrSDev/xviweb/pkg/xviweb/conn"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/httpreq"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/httpresp"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/xerr"
)

// State is one stage of the request lifecycle.
type State int

const (
	StateAwaitingRequest State = iota
	StateReadingHeaders
	StateReadingPostData
	StateReceivedRequest
	StateSendingResponse
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingRequest:
		return "awaiting-request"
	case StateReadingHeaders:
		return "reading-headers"
	case StateReadingPostData:
		return "reading-post-data"
	case StateReceivedRequest:
		return "received-request"
	case StateSendingResponse:
		return "sending-response"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// maxRequestSize is the cumulative byte cap applied across the
// request line, headers, and POST body before dispatch, matching the
// original's local maxRequestSize constant in stringRead.
const maxRequestSize = 8 * 1024

// Callbacks lets the owner (a Worker) observe the two events the
// state machine can produce on its own, without httpconn depending on
// worker or server.
type Callbacks struct {
	// RequestReceived fires once the full request (and, for POST,
	// its body) has been parsed and is ready for responder dispatch.
	RequestReceived func(hc *HttpConnection)

	// Logger receives the stderr-equivalent diagnostics the original
	// printed directly (oversized request, bad request). May be nil.
	Logger hclog.Logger

	// MalformedRequest fires whenever a request is rejected before
	// dispatch, naming the xerr.Kind responsible, so the owning Worker
	// can report it into its metrics. May be nil.
	MalformedRequest func(kind xerr.Kind)
}

// HttpConnection layers the HTTP/1.1 state machine on top of a
// conn.Connection.
type HttpConnection struct {
	Conn     *conn.Connection
	Request  *httpreq.Request
	Response *httpresp.Response

	state         State
	bytesRead     int
	contentLength int
	postData      strings.Builder

	callbacks Callbacks
}

// New wires an HttpConnection to its raw connection. The caller must
// have constructed the conn.Connection with this HttpConnection as
// its Handler (a two-step construction, since each needs a reference
// to the other).
func New(callbacks Callbacks) *HttpConnection {
	return &HttpConnection{
		Request:   httpreq.New(),
		state:     StateAwaitingRequest,
		callbacks: callbacks,
	}
}

// Attach binds the underlying raw connection once it has been
// constructed with this HttpConnection as its Handler.
func (hc *HttpConnection) Attach(c *conn.Connection) {
	hc.Conn = c
	hc.Response = httpresp.New(c, hc.beginResponse, hc.endResponse)
}

// State returns the current lifecycle state.
func (hc *HttpConnection) State() State { return hc.state }

func (hc *HttpConnection) beginResponse() {
	hc.state = StateSendingResponse
}

func (hc *HttpConnection) endResponse() {
	hc.state = StateDone
}

// Closed implements conn.Handler.
func (hc *HttpConnection) Closed() {
	hc.state = StateDone
}

// StringRead implements conn.Handler: enforces the 8 KiB cumulative
// cap and, while reading POST data, accumulates raw bytes directly
// (bypassing line splitting, since a POST body carries no line
// structure of its own), exactly like stringRead/postDataRead.
func (hc *HttpConnection) StringRead(s string) {
	hc.bytesRead += len(s)
	if hc.bytesRead > maxRequestSize {
		hc.state = StateDone
		if hc.callbacks.Logger != nil {
			hc.callbacks.Logger.Error("maximum request size exceeded", "connection", hc.Conn.String())
		}
		if hc.callbacks.MalformedRequest != nil {
			hc.callbacks.MalformedRequest(xerr.RequestTooLarge)
		}
		return
	}

	if hc.state == StateReadingPostData {
		hc.postDataRead(s)
	}
}

// LineRead implements conn.Handler, dispatching to the request-line
// or header parser depending on the current state, exactly like
// lineRead's switch statement.
func (hc *HttpConnection) LineRead(line string) {
	switch hc.state {
	case StateAwaitingRequest:
		if err := hc.Request.ParseRequestLine(line); err != nil {
			hc.sendBadRequestResponse(xerr.MalformedRequestLine)
			return
		}
		hc.state = StateReadingHeaders

	case StateReadingHeaders:
		if len(line) == 0 {
			if hc.Request.Verb == "POST" {
				hc.state = StateReadingPostData
				hc.contentLength, _ = strconv.Atoi(hc.Request.Header["content-length"])
				hc.postDataRead(hc.Conn.PendingTail())
			} else {
				hc.transitionToReceived()
			}
			return
		}
		if err := hc.Request.ParseHeaderLine(line); err != nil {
			hc.sendBadRequestResponse(xerr.MalformedHeader)
		}

	default:
		// POST body bytes that happen to contain "\r\n" are drained
		// out of the connection's line buffer by conn.Connection but
		// are not themselves lines; nothing to do here, matching the
		// original's "default: break".
	}
}

func (hc *HttpConnection) postDataRead(s string) {
	hc.postData.WriteString(s)

	switch {
	case hc.postData.Len() == hc.contentLength:
		if err := hc.Request.ParsePostData(hc.postData.String()); err != nil {
			hc.sendBadRequestResponse(xerr.MalformedHeader)
			return
		}
		hc.transitionToReceived()
	case hc.postData.Len() > hc.contentLength:
		hc.sendBadRequestResponse(xerr.PostDataOverflow)
	}
}

func (hc *HttpConnection) transitionToReceived() {
	hc.state = StateReceivedRequest
	if hc.callbacks.RequestReceived != nil {
		hc.callbacks.RequestReceived(hc)
	}
}

// sendBadRequestResponse sends the canned 400 error page through
// hc.Response, the same path worker.dispatch uses for its own 500s,
// and marks the connection done.
func (hc *HttpConnection) sendBadRequestResponse(kind xerr.Kind) {
	_ = hc.Response.SendErrorResponse(400, "Bad Request", "Your request could not be understood.")
	hc.state = StateDone
	if hc.callbacks.Logger != nil {
		hc.callbacks.Logger.Info("bad request", "connection", hc.Conn.String(), "kind", kind.String())
	}
	if hc.callbacks.MalformedRequest != nil {
		hc.callbacks.MalformedRequest(kind)
	}
}
