// Package httpresp implements the deferred-commit HTTP response
// builder, grounded on the original xviweb HttpResponseImpl.cpp: a
// response accumulates a status line and headers but writes nothing
// to the wire until the first byte of body content is sent (or the
// caller explicitly ends the response), at which point the status
// line, headers (sorted by name, matching std::map's ordering), and
// the blank separator line commit in one shot.
package httpresp

import (
	"sort"
	"strconv"
	"strings"
)

// Sender is the subset of conn.Connection the response builder needs;
// an interface so this package stays decoupled from the raw socket layer.
type Sender interface {
	Send(s string) error
}

// Response builds and commits one HTTP/1.1 response on a Sender.
type Response struct {
	sender Sender

	statusCode    int
	statusMessage string
	headers       map[string]string

	responding bool
	done       bool

	onBegin func()
	onEnd   func()
}

// New returns a Response defaulted to 200 OK, Server: xviweb,
// text/html, exactly like HttpResponseImpl's constructor. onBegin and
// onEnd let the owning HttpConnection observe the state transitions
// the original drove through m_conn->beginResponse()/endResponse().
func New(sender Sender, onBegin, onEnd func()) *Response {
	r := &Response{
		sender:  sender,
		headers: make(map[string]string),
		onBegin: onBegin,
		onEnd:   onEnd,
	}
	r.SetStatus(200, "OK")
	r.SetHeader("Server", "xviweb")
	r.SetContentType("text/html")
	return r
}

// StatusCode returns the currently set status code.
func (r *Response) StatusCode() int { return r.statusCode }

// StatusMessage returns the currently set status message.
func (r *Response) StatusMessage() string { return r.statusMessage }

// SetStatus sets the status line fields.
func (r *Response) SetStatus(code int, message string) {
	r.statusCode = code
	r.statusMessage = message
}

// Header returns the current value of a header, or "" if unset.
func (r *Response) Header(name string) string {
	return r.headers[name]
}

// SetHeader sets (overwriting, last-write-wins) a header value. Header
// names are case-sensitive here, unlike httpreq's request headers,
// mirroring setHeaderValue's erase-then-insert on a case-sensitive
// std::map<string,string> key. Once the response has committed, header
// writes are silently dropped.
func (r *Response) SetHeader(name, value string) {
	if r.responding {
		return
	}
	r.headers[name] = value
}

// SetContentType sets the Content-Type header.
func (r *Response) SetContentType(contentType string) {
	r.SetHeader("Content-Type", contentType)
}

// ContentLength returns the current Content-Length header as an int,
// or 0 if unset or unparsable.
func (r *Response) ContentLength() int {
	n, _ := strconv.Atoi(r.headers["Content-Length"])
	return n
}

// SetContentLength sets the Content-Length header.
func (r *Response) SetContentLength(n int) {
	r.SetHeader("Content-Length", strconv.Itoa(n))
}

// beginResponse commits the status line and headers exactly once.
// Called automatically by SendString the first time content is sent,
// matching the original's sendString calling beginResponse() on first use.
func (r *Response) beginResponse() error {
	if r.responding {
		return nil
	}
	r.responding = true
	if r.onBegin != nil {
		r.onBegin()
	}

	var b strings.Builder
	b.WriteString("HTTP/1.1 ")
	b.WriteString(strconv.Itoa(r.statusCode))
	b.WriteByte(' ')
	b.WriteString(r.statusMessage)
	b.WriteString("\r\n")

	names := make([]string, 0, len(r.headers))
	for name := range r.headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(r.headers[name])
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	return r.sender.Send(b.String())
}

// SendString writes s as response body content, committing the
// status line/headers first if this is the first write.
func (r *Response) SendString(s string) error {
	if !r.responding {
		if err := r.beginResponse(); err != nil {
			return err
		}
	}
	return r.sender.Send(s)
}

// SendLine writes s followed by a CRLF terminator.
func (r *Response) SendLine(line string) error {
	return r.SendString(line + "\r\n")
}

// SendResponse sets status/content-type/content-length and sends body
// in one call, mirroring sendResponse.
func (r *Response) SendResponse(statusCode int, statusMessage, contentType, content string) error {
	r.SetStatus(statusCode, statusMessage)
	r.SetContentType(contentType)
	r.SetContentLength(len(content))
	if err := r.SendString(content); err != nil {
		return err
	}
	return r.End()
}

// SendErrorResponse renders the canned error page and sends it with
// the given status, mirroring sendErrorResponse exactly.
func (r *Response) SendErrorResponse(errorCode int, errorDesc, errorMessage string) error {
	body := errorPage(errorCode, errorDesc, errorMessage)
	return r.SendResponse(errorCode, errorDesc, "text/html", body)
}

// errorPage renders the canned HTML error page, byte-for-byte the
// layout sendErrorResponse builds.
func errorPage(code int, desc, message string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\r\n")
	b.WriteString("<html lang=\"en\">\r\n")
	b.WriteString("<head>\r\n")
	b.WriteString("<meta http-equiv=\"Content-Type\" content=\"text/html; charset=utf-8\" />\r\n")
	b.WriteString("<title>")
	b.WriteString(strconv.Itoa(code))
	b.WriteByte(' ')
	b.WriteString(desc)
	b.WriteString("</title>\r\n")
	b.WriteString("<style type=\"text/css\">\r\n")
	b.WriteString("body { margin: 0; background-color: white; color: black; font-family: Arial, Helvetica, sans-serif; }\r\n")
	b.WriteString("h1 { margin: 0; padding: 0.5em; background-color: #dedede; color: inherit; text-shadow: gray 1px 1px 4px; }\r\n")
	b.WriteString("p { margin: 0.5em; }\r\n")
	b.WriteString("</style>\r\n")
	b.WriteString("</head>\r\n")
	b.WriteString("<body>\r\n\r\n")
	b.WriteString("<h1>")
	b.WriteString(desc)
	b.WriteString("</h1>\r\n")
	b.WriteString("<p>")
	b.WriteString(message)
	b.WriteString("</p>\r\n\r\n")
	b.WriteString("</body>\r\n")
	b.WriteString("</html>\r\n")
	return b.String()
}

// End commits the response if no content was ever sent, and marks it
// done, mirroring endResponse.
func (r *Response) End() error {
	if !r.responding {
		if err := r.beginResponse(); err != nil {
			return err
		}
	}
	r.done = true
	if r.onEnd != nil {
		r.onEnd()
	}
	return nil
}

// Done reports whether End has been called.
func (r *Response) Done() bool { return r.done }
