package worker

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/WeyrSDev/xviweb/pkg/xviweb/clock"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/conn"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/httpconn"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/httpreq"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/httpresp"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/rawsock"
	"github.com/WeyrSDev/xviweb/pkg/xviweb/responder"
)

type echoResponder struct{}

func (echoResponder) MatchesRequest(req *httpreq.Request) bool { return req.Path == "/echo" }

func (echoResponder) Respond(req *httpreq.Request, resp *httpresp.Response) responder.Context {
	resp.SendResponse(200, "OK", "text/plain", "echo:"+req.Path)
	return nil
}

func acceptAndAttach(t *testing.T, ln *rawsock.Listener, w *Worker) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		fd, peer, port, ok, err := ln.Accept(nil)
		if err != nil {
			t.Fatalf("Accept: %v", err)
		}
		if ok {
			hc := httpconn.New(httpconn.Callbacks{})
			c := conn.New(fd, peer, port, clock.New(), hc)
			hc.Attach(c)
			w.AddConnection(hc)
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting to accept")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWorkerDispatchesMatchedResponder(t *testing.T) {
	ln, err := rawsock.Listen("127.0.0.1", 0, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	w, err := New(Config{
		DefaultRoot: "/srv/default",
		VHosts:      map[string]string{},
		Responders:  []responder.Responder{echoResponder{}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	clientConn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(ln.Port()), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	acceptAndAttach(t, ln, w)

	clientConn.Write([]byte("GET /echo HTTP/1.1\r\nHost: example.com\r\n\r\n"))

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, err := clientConn.Read(buf)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	got := string(buf[:n])
	if !contains(got, "200 OK") {
		t.Errorf("response missing status line: %q", got)
	}
	if !contains(got, "echo:/echo") {
		t.Errorf("response missing body: %q", got)
	}
}

func TestWorkerNoVirtualHost(t *testing.T) {
	ln, err := rawsock.Listen("127.0.0.1", 0, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	w, err := New(Config{
		VHosts:     map[string]string{},
		Responders: []responder.Responder{echoResponder{}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	clientConn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(ln.Port()), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	acceptAndAttach(t, ln, w)

	clientConn.Write([]byte("GET /echo HTTP/1.1\r\nHost: nowhere.example\r\n\r\n"))

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	n, err := clientConn.Read(buf)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	got := string(buf[:n])
	if !contains(got, "500 No Virtual Host") {
		t.Errorf("response missing No Virtual Host status: %q", got)
	}
}

func TestAddConnectionWakesBlockedPoll(t *testing.T) {
	w, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	ln, err := rawsock.Listen("127.0.0.1", 0, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	time.Sleep(20 * time.Millisecond) // let the worker block in its first poll

	clientConn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(ln.Port()), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	acceptAndAttach(t, ln, w)

	deadline := time.Now().Add(time.Second)
	for w.ConnectionCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("worker never picked up the added connection")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestIdleConnectionReapedAfterTimeout(t *testing.T) {
	manual := clock.NewManual(0)

	ln, err := rawsock.Listen("127.0.0.1", 0, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	w, err := New(Config{
		VHosts:     map[string]string{},
		Responders: []responder.Responder{echoResponder{}},
		Clock:      manual,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	clientConn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(ln.Port()), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	deadline := time.Now().Add(time.Second)
	for {
		afd, apeer, aport, ok, aerr := ln.Accept(nil)
		if aerr != nil {
			t.Fatalf("Accept: %v", aerr)
		}
		if ok {
			hc := httpconn.New(httpconn.Callbacks{})
			c := conn.New(afd, apeer, aport, manual, hc)
			hc.Attach(c)
			w.AddConnection(hc)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting to accept")
		}
		time.Sleep(time.Millisecond)
	}

	deadline = time.Now().Add(time.Second)
	for w.ConnectionCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("worker never picked up the connection")
		}
		time.Sleep(time.Millisecond)
	}

	manual.Advance(idleTimeoutMillis + 1)

	deadline = time.Now().Add(3 * time.Second)
	for w.ConnectionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("idle connection was never reaped")
		}
		time.Sleep(time.Millisecond)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
