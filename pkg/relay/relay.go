// Package relay implements the fallback transport: a WebSocket hop that
// forwards opaque game frames between a host and a guest whose direct
// data channel could not be established or has degraded.
package relay

import (
	"context"
	"net/http"

	"github.com/duelnet/duelnet/pkg/api"
	"github.com/duelnet/duelnet/pkg/config"
	"github.com/duelnet/duelnet/pkg/logger"
	"github.com/duelnet/duelnet/pkg/network/httpx"
	"github.com/duelnet/duelnet/pkg/network/websocket"
)

// relayReadLimit sits well above the frame cap so an oversize frame
// draws the typed rejection instead of a dead socket. Only frames past
// this transport cap terminate the connection.
const relayReadLimit = 4 * api.MaxRelayFrame

type Relay struct {
	conf   config.RelayConfig
	log    *logger.Logger
	hub    *Hub
	server *httpx.Server
}

func New(conf config.RelayConfig, log *logger.Logger) (*Relay, error) {
	r := &Relay{conf: conf, log: log, hub: NewHub(log)}
	server, err := httpx.NewServer(
		conf.Relay.Server.GetAddr(),
		func(serv *httpx.Server) http.Handler {
			mux := serv.Mux()
			mux.HandleFunc("/ws", r.handleWS)
			mux.HandleFunc("/health", r.handleHealth)
			return mux
		},
		httpx.WithServerConfig(conf.Relay.Server),
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	r.server = server
	return r, nil
}

func (r *Relay) Run() {
	go r.hub.Run()
	go r.server.Run()
}

func (r *Relay) Shutdown(ctx context.Context) error {
	r.hub.Stop()
	return r.server.Shutdown(ctx)
}

func (r *Relay) String() string { return "relay::" + r.server.Addr }

func (r *Relay) handleWS(w http.ResponseWriter, req *http.Request) {
	ws, err := websocket.NewServer(w, req)
	if err != nil {
		r.log.Error().Err(err).Msg("socket upgrade failed")
		return
	}
	c := &wsConn{ws: ws}
	ws.SetMaxReadSize(relayReadLimit)
	ws.OnMessage = func(data []byte, _ error) { r.hub.HandleMessage(c, data) }
	ws.Listen()
	go func() {
		<-ws.Done
		r.hub.Disconnect(c)
	}()
}
