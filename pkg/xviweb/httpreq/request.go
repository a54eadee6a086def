// Package httpreq implements the parsed HTTP request value, grounded
// on the original xviweb HttpRequestImpl.cpp: a request line and a
// stream of header lines are parsed incrementally as they arrive,
// query-string and POST-body key/value pairs are URL-decoded with
// their keys lower-cased, and the first occurrence of a repeated key wins
// (std::map::insert never overwrites an existing key).
package httpreq

import (
	"strings"

	"github.com/WeyrSDev/xviweb/pkg/xviweb/xerr"
)

// Request is the parsed state of one HTTP/1.1 request.
type Request struct {
	Verb     string
	Path     string
	Version  string
	VHostRoot string

	Query    map[string]string
	Header   map[string]string
	PostData map[string]string
}

// New returns an empty Request ready to be fed request/header lines.
func New() *Request {
	return &Request{
		Query:    make(map[string]string),
		Header:   make(map[string]string),
		PostData: make(map[string]string),
	}
}

// ParseRequestLine parses "<verb> <path>[?<query>] <version>",
// mirroring parseRequestLine exactly: the path must start with '/',
// and a query string embedded in the path is split off and decoded
// into Query.
func (r *Request) ParseRequestLine(line string) error {
	end := strings.IndexByte(line, ' ')
	if end <= 0 {
		return xerr.New(xerr.MalformedRequestLine, "missing or empty verb")
	}
	r.Verb = line[:end]

	start := end + 1
	rest := line[start:]
	end2 := strings.IndexByte(rest, ' ')
	if end2 < 0 {
		return xerr.New(xerr.MalformedRequestLine, "missing HTTP version")
	}
	r.Path = rest[:end2]
	if len(r.Path) == 0 || r.Path[0] != '/' {
		return xerr.New(xerr.MalformedRequestLine, "path does not start with '/'")
	}
	r.Version = rest[end2+1:]

	if qi := strings.IndexByte(r.Path, '?'); qi >= 0 {
		queryString := r.Path[qi+1:]
		r.Path = r.Path[:qi]
		parseKeyValueList(r.Query, queryString)
	}

	return nil
}

// ParseHeaderLine parses "<name>: <value>", lower-casing the name and
// inserting only if the name has not already been seen, mirroring
// parseHeaderLine's insert-never-overwrites semantics.
func (r *Request) ParseHeaderLine(line string) error {
	end := strings.IndexByte(line, ':')
	if end <= 0 {
		return xerr.New(xerr.MalformedHeader, "missing ':' or empty name")
	}
	name := strings.ToLower(line[:end])

	start := end + 2
	var value string
	if start <= len(line) {
		value = line[start:]
	}

	if _, exists := r.Header[name]; !exists {
		r.Header[name] = value
	}
	return nil
}

// ParsePostData parses a single "&"-delimited key/value list, the
// same list grammar the query string uses, mirroring parsePostData.
func (r *Request) ParsePostData(line string) error {
	parseKeyValueList(r.PostData, line)
	return nil
}

// SetVHostRoot records the resolved virtual-host root directory.
func (r *Request) SetVHostRoot(root string) {
	r.VHostRoot = root
}

func parseKeyValueList(m map[string]string, list string) {
	start := 0
	for {
		end := strings.IndexByte(list[start:], '&')
		if end < 0 {
			parseKeyValuePair(m, list[start:])
			return
		}
		parseKeyValuePair(m, list[start:start+end])
		start += end + 1
	}
}

func parseKeyValuePair(m map[string]string, pair string) {
	eq := strings.IndexByte(pair, '=')
	if eq < 0 {
		return
	}
	key := strings.ToLower(urlDecode(pair[:eq]))
	value := urlDecode(pair[eq+1:])
	if _, exists := m[key]; !exists {
		m[key] = value
	}
}

// urlDecode decodes '+' as space and "%XX" escapes. An escape with a
// trailing or malformed hex pair is passed through literally rather
// than erroring, since this engine's recognized failure kinds scope
// to the request line, headers, and POST size, not query content.
func urlDecode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 < len(s) {
				hi, okHi := hexVal(s[i+1])
				lo, okLo := hexVal(s[i+2])
				if okHi && okLo {
					b.WriteByte(byte(hi<<4 | lo))
					i += 2
					continue
				}
			}
			b.WriteByte('%')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}
