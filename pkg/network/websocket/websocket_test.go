package websocket

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestEcho(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := NewServer(w, r)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		ws.OnMessage = func(message []byte, _ error) {
			received <- message
			ws.Write(append([]byte("echo:"), message...))
		}
		ws.Listen()
	}))
	defer srv.Close()

	addr, _ := url.Parse("ws" + strings.TrimPrefix(srv.URL, "http"))
	client, err := NewClient(*addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	back := make(chan []byte, 1)
	client.OnMessage = func(message []byte, _ error) { back <- message }
	client.Listen()

	client.Write([]byte("ping?"))
	select {
	case m := <-received:
		if string(m) != "ping?" {
			t.Fatalf("server got %q", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message")
	}
	select {
	case m := <-back:
		if string(m) != "echo:ping?" {
			t.Fatalf("client got %q", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client never received the echo")
	}
}

func TestReadLimitConfigurable(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := NewServer(w, r)
		if err != nil {
			return
		}
		ws.SetMaxReadSize(20 * 1024)
		ws.OnMessage = func(message []byte, _ error) { received <- message }
		ws.Listen()
	}))
	defer srv.Close()

	addr, _ := url.Parse("ws" + strings.TrimPrefix(srv.URL, "http"))
	client, err := NewClient(*addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	client.OnMessage = func([]byte, error) {}
	client.Listen()

	big := make([]byte, 15*1024)
	client.Write(big)
	select {
	case m := <-received:
		if len(m) != len(big) {
			t.Fatalf("server got %d bytes, want %d", len(m), len(big))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("raised read limit should let the large message through")
	}
}

func TestReadLimitTerminatesOversize(t *testing.T) {
	srvConn := make(chan *WS, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := NewServer(w, r)
		if err != nil {
			return
		}
		ws.SetMaxReadSize(64)
		ws.OnMessage = func([]byte, error) {}
		ws.Listen()
		srvConn <- ws
	}))
	defer srv.Close()

	addr, _ := url.Parse("ws" + strings.TrimPrefix(srv.URL, "http"))
	client, err := NewClient(*addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	client.OnMessage = func([]byte, error) {}
	client.Listen()

	server := <-srvConn
	client.Write(make([]byte, 1024))
	select {
	case <-server.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("frames past the transport cap should terminate the connection")
	}
}

func TestCloseSignalsDone(t *testing.T) {
	srvConn := make(chan *WS, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := NewServer(w, r)
		if err != nil {
			return
		}
		ws.OnMessage = func([]byte, error) {}
		ws.Listen()
		srvConn <- ws
	}))
	defer srv.Close()

	addr, _ := url.Parse("ws" + strings.TrimPrefix(srv.URL, "http"))
	client, err := NewClient(*addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	client.OnMessage = func([]byte, error) {}
	client.Listen()

	server := <-srvConn
	client.Close()
	select {
	case <-server.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("server side never noticed the close")
	}
	select {
	case <-client.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("client side never closed")
	}
	if client.IsOpen() {
		t.Fatal("client should report closed")
	}
}

func TestRemoteIPForwarded(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "10.0.0.1:4242"
	if got := remoteIP(r); got != "10.0.0.1" {
		t.Fatalf("expected direct address, got %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := remoteIP(r); got != "203.0.113.7" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}
}
