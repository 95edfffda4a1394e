package websocket

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duelnet/duelnet/pkg/com"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 10 * 1024
	pongTime       = 60 * time.Second
	pingTime       = pongTime * 9 / 10
	writeWait      = 10 * time.Second
	sendBuffer     = 256
)

type MessageHandler func(message []byte, err error)

// WS wraps a gorilla websocket connection with serialized reader/writer
// pumps. Set OnMessage before calling Listen.
type WS struct {
	id   com.Uid
	conn *websocket.Conn
	send chan []byte

	OnMessage MessageHandler

	// server connections ping their peers, clients answer
	pingPong  bool
	remote    string
	readLimit int64

	closed   atomic.Bool
	shutdown sync.Once
	Done     chan struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	WriteBufferPool: &sync.Pool{},
}

var errClosed = errors.New("connection closed")

// NewServer upgrades an inbound HTTP request to a websocket.
func NewServer(w http.ResponseWriter, r *http.Request) (*WS, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	ws := newSocket(conn, true)
	ws.remote = remoteIP(r)
	return ws, nil
}

// NewClient dials a websocket server.
func NewClient(address url.URL) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false), nil
}

func newSocket(conn *websocket.Conn, pingPong bool) *WS {
	return &WS{
		id:        com.NewUid(),
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		pingPong:  pingPong,
		readLimit: maxMessageSize,
		Done:      make(chan struct{}),
	}
}

// SetMaxReadSize overrides the transport read cap. Call before Listen.
func (ws *WS) SetMaxReadSize(n int64) { ws.readLimit = n }

// Listen starts the reader and writer pumps. Messages arriving before
// Listen are buffered by the kernel, not lost.
func (ws *WS) Listen() {
	go ws.writer()
	go ws.reader()
}

func (ws *WS) Id() com.Uid    { return ws.id }
func (ws *WS) Remote() string { return ws.remote }
func (ws *WS) IsOpen() bool   { return !ws.closed.Load() }

// Write queues a message for sending. Messages are dropped when the
// buffer is full or the connection is closed.
func (ws *WS) Write(data []byte) {
	if ws.closed.Load() {
		return
	}
	select {
	case ws.send <- data:
	default:
	}
}

// Ping sends a websocket-level ping control frame.
func (ws *WS) Ping() error {
	if ws.closed.Load() {
		return errClosed
	}
	return ws.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close performs a normal closure.
func (ws *WS) Close() { ws.CloseWithReason(websocket.CloseNormalClosure, "") }

// CloseWithReason sends a close frame with the given code and text and
// tears the connection down.
func (ws *WS) CloseWithReason(code int, reason string) {
	if ws.closed.Load() {
		return
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	ws.close()
}

func (ws *WS) close() {
	ws.shutdown.Do(func() {
		ws.closed.Store(true)
		_ = ws.conn.Close()
		close(ws.Done)
	})
}

// reader pumps messages from the websocket connection to the OnMessage
// callback. Serializes all websocket reads.
func (ws *WS) reader() {
	defer ws.close()
	ws.conn.SetReadLimit(ws.readLimit)
	_ = ws.conn.SetReadDeadline(time.Now().Add(pongTime))
	ws.conn.SetPongHandler(func(string) error {
		return ws.conn.SetReadDeadline(time.Now().Add(pongTime))
	})
	ws.conn.SetPingHandler(func(data string) error {
		_ = ws.conn.SetReadDeadline(time.Now().Add(pongTime))
		return ws.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	for {
		_, message, err := ws.conn.ReadMessage()
		if err != nil {
			return
		}
		if ws.OnMessage != nil {
			ws.OnMessage(message, nil)
		}
	}
}

// writer pumps messages from the send channel to the websocket
// connection. Serializes all websocket data writes.
func (ws *WS) writer() {
	var ping <-chan time.Time
	if ws.pingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer ws.close()
	for {
		select {
		case message := <-ws.send:
			_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ping:
			if err := ws.Ping(); err != nil {
				return
			}
		case <-ws.Done:
			return
		}
	}
}

// remoteIP resolves the peer address, preferring the first hop of
// X-Forwarded-For when the service sits behind a proxy.
func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
