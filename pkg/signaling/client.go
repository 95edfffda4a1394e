package signaling

import (
	"github.com/duelnet/duelnet/pkg/com"
	"github.com/duelnet/duelnet/pkg/network/websocket"
)

// conn is the hub's view of one connected socket. Tests substitute
// in-memory fakes for it.
type conn interface {
	Id() com.Uid
	IP() string
	Send(data []byte)
	Ping() error
	Close()
	IsOpen() bool
}

type wsConn struct {
	ws *websocket.WS
}

func (c *wsConn) Id() com.Uid      { return c.ws.Id() }
func (c *wsConn) IP() string       { return c.ws.Remote() }
func (c *wsConn) Send(data []byte) { c.ws.Write(data) }
func (c *wsConn) Ping() error      { return c.ws.Ping() }
func (c *wsConn) Close()           { c.ws.Close() }
func (c *wsConn) IsOpen() bool     { return c.ws.IsOpen() }
