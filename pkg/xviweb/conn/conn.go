// Package conn implements the line-buffered raw connection the HTTP
// state machine is built on top of, grounded directly on the original
// xviweb Connection.cpp/Connection.h: read in 512-byte chunks until
// the socket would block, the peer closes, or a read comes back
// shorter than a full chunk, accumulate a line
// buffer, and split completed lines on "\r\n" for the owner to
// consume one at a time.
package conn

import (
	"strconv"
	"sync"

	"github.com/WeyrSDev/xviweb/pkg/xviweb/address"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/clock"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/rawsock"
)

// readChunkSize matches the original's stack buffer size in doRead().
const readChunkSize = 512

var chunkPool = sync.Pool{
	New: func() any {
		buf := make([]byte, readChunkSize)
		return &buf
	},
}

// Handler receives the three notifications the original exposed as
// protected virtual methods (closed/stringRead/lineRead) for
// HttpConnection to override.
type Handler interface {
	Closed()
	StringRead(s string)
	LineRead(line string)
}

// Connection is one accepted, line-buffered socket connection.
type Connection struct {
	fd      int
	address address.Address
	port    int
	clock   clock.Clock

	handler Handler

	mu             sync.Mutex
	lastReadMillis int64
	lineBuf        []byte
}

// New wraps an already-accepted file descriptor.
func New(fd int, addr address.Address, port int, c clock.Clock, handler Handler) *Connection {
	return &Connection{
		fd:             fd,
		address:        addr,
		port:           port,
		clock:          c,
		handler:        handler,
		lastReadMillis: c.NowMillis(),
	}
}

// FileDescriptor returns the raw fd, for adding to a poll set.
func (c *Connection) FileDescriptor() int { return c.fd }

// Address returns the peer address.
func (c *Connection) Address() address.Address { return c.address }

// Port returns the peer port.
func (c *Connection) Port() int { return c.port }

// MillisecondsSinceLastRead reports how long it has been since data
// was last read from this connection, the basis for the worker's idle
// timeout.
func (c *Connection) MillisecondsSinceLastRead() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.NowMillis() - c.lastReadMillis
}

// PendingTail returns the bytes accumulated since the last completed
// "\r\n"-terminated line, the equivalent of the original's protected
// m_line field at the moment a LineRead callback inspects it (used by
// httpconn to seed POST body parsing with whatever trailing bytes
// arrived in the same read as the blank line ending the headers).
func (c *Connection) PendingTail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.lineBuf)
}

// DoRead reads the socket until it would block, the peer closes, or a
// read returns fewer bytes than the chunk size (a peer close that
// follows such a short read is reported by the next DoRead call),
// dispatching Handler.StringRead for the raw bytes read and
// Handler.LineRead once per "\r\n"-terminated line extracted from the
// accumulated buffer, exactly mirroring Connection::doRead.
func (c *Connection) DoRead() error {
	bufPtr := chunkPool.Get().(*[]byte)
	buf := *bufPtr
	defer chunkPool.Put(bufPtr)

	var collected []byte
	var sawEOF bool

	for {
		n, ok, err := rawsock.Read(c.fd, buf)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if n == 0 {
			sawEOF = true
			break
		}
		collected = append(collected, buf[:n]...)
		if n != len(buf) {
			break
		}
	}

	if len(collected) != 0 {
		c.mu.Lock()
		c.lastReadMillis = c.clock.NowMillis()
		c.lineBuf = append(c.lineBuf, collected...)
		c.mu.Unlock()

		c.handler.StringRead(string(collected))

		// Each LineRead callback may inspect the connection's
		// remaining unconsumed buffer via PendingTail, so the
		// trimmed tail is written back before every callback rather
		// than once at the end, mirroring how the original's
		// doRead() mutates m_line in place as it scans it.
		for {
			c.mu.Lock()
			idx := indexCRLF(c.lineBuf)
			if idx < 0 {
				c.mu.Unlock()
				break
			}
			line := string(c.lineBuf[:idx])
			rest := make([]byte, len(c.lineBuf)-idx-2)
			copy(rest, c.lineBuf[idx+2:])
			c.lineBuf = rest
			c.mu.Unlock()

			c.handler.LineRead(line)
		}
	}

	if sawEOF {
		c.handler.Closed()
	}
	return nil
}

func indexCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// Send writes s to the socket, looping over partial writes exactly
// like Connection::sendString.
func (c *Connection) Send(s string) error {
	_, err := rawsock.Write(c.fd, []byte(s))
	return err
}

// SendLine writes s followed by a CRLF terminator.
func (c *Connection) SendLine(s string) error {
	return c.Send(s + "\r\n")
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return rawsock.Close(c.fd)
}

// String renders "<address> port <port>" exactly like Connection::toString.
func (c *Connection) String() string {
	return c.address.String() + " port " + strconv.Itoa(c.port)
}
