// Package responder defines the pluggable request-handling interface
// the engine dispatches to, grounded on the original
// include/xviweb/Responder.h: a Responder matches requests and
// produces a response, optionally handing back a Context for
// multi-step (asynchronous/streamed) responses the worker continues
// on a timer across later cycles.
package responder

import (
	"github.com/WeyrSDev/xviweb/pkg/xviweb/httpreq"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/httpresp"
)

// Context is returned by Responder.Respond when a response is not
// complete after the initial call, mirroring ResponderContext's
// continueResponse/getResponseInterval pair. The original's virtual
// plugin-loader surface (the XVIWEB_RESPONDER macro, addOption) is out
// of scope here: responders are wired in-process via Config, not
// loaded as shared objects.
type Context interface {
	// ContinueResponse is called again once ResponseInterval
	// milliseconds have elapsed since the last call. It returns
	// itself, a new Context, or nil when the response is complete.
	ContinueResponse(req *httpreq.Request, resp *httpresp.Response) Context

	// ResponseInterval is the delay, in milliseconds, before the next
	// ContinueResponse call. The original's base implementation
	// (not present in the retrieved source) is assumed to return 0,
	// meaning "continue on the very next worker cycle".
	ResponseInterval() int64
}

// Responder matches requests and produces responses.
type Responder interface {
	// MatchesRequest reports whether this responder should handle req.
	MatchesRequest(req *httpreq.Request) bool

	// Respond handles req, writing to resp. A non-nil returned
	// Context means the response is incomplete and the worker should
	// call ContinueResponse on it on a later cycle.
	Respond(req *httpreq.Request, resp *httpresp.Response) Context
}
