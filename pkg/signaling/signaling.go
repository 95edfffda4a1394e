// Package signaling implements the room registry: an ephemeral,
// code-addressed pairing service that brokers the WebRTC handshake
// between a host and a guest.
package signaling

import (
	"context"
	"net/http"

	"github.com/duelnet/duelnet/pkg/api"
	"github.com/duelnet/duelnet/pkg/config"
	"github.com/duelnet/duelnet/pkg/logger"
	"github.com/duelnet/duelnet/pkg/network/httpx"
	"github.com/duelnet/duelnet/pkg/network/websocket"
)

type Signaling struct {
	conf   config.Signaling
	log    *logger.Logger
	hub    *Hub
	server *httpx.Server
}

func New(conf config.Signaling, log *logger.Logger) (*Signaling, error) {
	s := &Signaling{conf: conf, log: log, hub: NewHub(conf, log)}
	server, err := httpx.NewServer(
		conf.Server.GetAddr(),
		func(serv *httpx.Server) http.Handler {
			mux := serv.Mux()
			mux.HandleFunc("/ws", s.handleWS)
			mux.HandleFunc("/health", s.handleHealth)
			mux.HandleFunc("/config", s.handleConfig)
			return mux
		},
		httpx.WithServerConfig(conf.Server),
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	s.server = server
	return s, nil
}

func (s *Signaling) Run() {
	go s.hub.Run()
	go s.server.Run()
}

func (s *Signaling) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.server.Shutdown(ctx)
}

func (s *Signaling) String() string { return "signaling::" + s.server.Addr }

func (s *Signaling) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.NewServer(w, r)
	if err != nil {
		s.log.Error().Err(err).Msg("socket upgrade failed")
		return
	}
	c := &wsConn{ws: ws}
	ws.SetMaxReadSize(api.MaxSignalingMessage)
	ws.OnMessage = func(data []byte, _ error) { s.hub.HandleMessage(c, data) }
	s.hub.Connect(c)
	ws.Listen()
	go func() {
		<-ws.Done
		s.hub.Disconnect(c)
	}()
}
