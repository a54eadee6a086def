package httpconn

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WeyrSDev/xviweb/pkg/xviweb/address"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/clock"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/conn"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/rawsock"
)

func newPipe(t *testing.T) (*rawsock.Listener, net.Conn) {
	t.Helper()
	ln, err := rawsock.Listen("127.0.0.1", 0, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	dialed := make(chan net.Conn, 1)
	go func() {
		c, derr := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(ln.Port()), time.Second)
		if derr != nil {
			t.Errorf("dial: %v", derr)
			return
		}
		dialed <- c
	}()

	return ln, <-dialed
}

func newHttpConnection(t *testing.T, ln *rawsock.Listener, onReceived func(*HttpConnection)) *HttpConnection {
	t.Helper()
	var fd int
	deadline := time.Now().Add(time.Second)
	for {
		var ok bool
		var err error
		fd, _, _, ok, err = ln.Accept(nil)
		if err != nil {
			t.Fatalf("Accept: %v", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting to accept")
		}
		time.Sleep(time.Millisecond)
	}

	var mu sync.Mutex
	hc := New(Callbacks{RequestReceived: func(h *HttpConnection) {
		mu.Lock()
		defer mu.Unlock()
		if onReceived != nil {
			onReceived(h)
		}
	}})
	c := conn.New(fd, address.FromOctets([]byte{127, 0, 0, 1}, address.IPv4), 0, clock.New(), hc)
	hc.Attach(c)
	return hc
}

func pumpUntil(t *testing.T, hc *HttpConnection, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hc.State() != want {
		if err := hc.Conn.DoRead(); err != nil {
			t.Fatalf("DoRead: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for state %v, currently %v", want, hc.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGetRequestReachesReceivedRequest(t *testing.T) {
	ln, client := newPipe(t)
	defer ln.Close()
	defer client.Close()

	var received *HttpConnection
	hc := newHttpConnection(t, ln, func(h *HttpConnection) { received = h })
	defer hc.Conn.Close()

	client.Write([]byte("GET /foo?x=1 HTTP/1.1\r\nHost: example.com\r\n\r\n"))

	pumpUntil(t, hc, StateReceivedRequest)

	if received == nil {
		t.Fatalf("RequestReceived callback never fired")
	}
	if hc.Request.Path != "/foo" {
		t.Errorf("Path = %q", hc.Request.Path)
	}
	if hc.Request.Query["x"] != "1" {
		t.Errorf("Query[x] = %q", hc.Request.Query["x"])
	}
	if hc.Request.Header["host"] != "example.com" {
		t.Errorf("Header[host] = %q", hc.Request.Header["host"])
	}
}

func TestPostRequestAccumulatesBody(t *testing.T) {
	ln, client := newPipe(t)
	defer ln.Close()
	defer client.Close()

	hc := newHttpConnection(t, ln, nil)
	defer hc.Conn.Close()

	body := "name=Alice&age=30"
	req := "POST /submit HTTP/1.1\r\nHost: example.com\r\nContent-Length: " +
		strconv.Itoa(len(body)) + "\r\n\r\n" + body
	client.Write([]byte(req))

	pumpUntil(t, hc, StateReceivedRequest)

	if hc.Request.PostData["name"] != "Alice" {
		t.Errorf("PostData[name] = %q", hc.Request.PostData["name"])
	}
	if hc.Request.PostData["age"] != "30" {
		t.Errorf("PostData[age] = %q", hc.Request.PostData["age"])
	}
}

func TestMalformedRequestLineSendsBadRequest(t *testing.T) {
	ln, client := newPipe(t)
	defer ln.Close()
	defer client.Close()

	hc := newHttpConnection(t, ln, nil)
	defer hc.Conn.Close()

	client.Write([]byte("NOTAREQUEST\r\n"))

	pumpUntil(t, hc, StateDone)

	client.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 2048)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("reading bad-request response: %v", err)
	}
	response := string(buf[:n])
	if !strings.HasPrefix(response, "HTTP/1.1 400 Bad Request") {
		t.Errorf("response = %q", response)
	}
	if !strings.Contains(response, "<title>400 Bad Request</title>") {
		t.Errorf("response missing canned error page title: %q", response)
	}
	if !strings.Contains(response, "Your request could not be understood.") {
		t.Errorf("response missing error message: %q", response)
	}
}

func TestOversizedRequestGoesDoneSilently(t *testing.T) {
	ln, client := newPipe(t)
	defer ln.Close()
	defer client.Close()

	hc := newHttpConnection(t, ln, nil)
	defer hc.Conn.Close()

	huge := strings.Repeat("a", 9*1024)
	client.Write([]byte("GET /" + huge + " HTTP/1.1\r\n\r\n"))

	pumpUntil(t, hc, StateDone)
}
