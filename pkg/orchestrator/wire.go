package orchestrator

import (
	"errors"
	"net/url"

	"github.com/duelnet/duelnet/pkg/network/websocket"
)

var (
	errNotOpen           = errors.New("transport is not open")
	errSignalingLost     = errors.New("signaling connection lost before room entry")
	errAttemptsExhausted = errors.New("relay reconnect attempts exhausted")
)

// wire is what the state machine needs from a server socket, either
// signaling or relay. Tests substitute in-memory fakes.
type wire interface {
	Send(data []byte)
	Close()
	Done() <-chan struct{}
}

type socket struct {
	ws *websocket.WS
}

// dial connects and starts the socket pumps. onMessage fires on the
// socket's reader goroutine.
func dial(address string, onMessage func(data []byte)) (wire, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, err
	}
	ws, err := websocket.NewClient(*u)
	if err != nil {
		return nil, err
	}
	ws.OnMessage = func(data []byte, _ error) { onMessage(data) }
	ws.Listen()
	return &socket{ws: ws}, nil
}

func (s *socket) Send(data []byte)      { s.ws.Write(data) }
func (s *socket) Close()                { s.ws.Close() }
func (s *socket) Done() <-chan struct{} { return s.ws.Done }
