package orchestrator

import (
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v3"

	"github.com/duelnet/duelnet/pkg/api"
	"github.com/duelnet/duelnet/pkg/config"
	"github.com/duelnet/duelnet/pkg/logger"
)

const dataChannelLabel = "game"

// signalPayload is the envelope inside a signal frame. SDP and ICE are
// mutually exclusive.
type signalPayload struct {
	Sdp *webrtc.SessionDescription `json:"sdp,omitempty"`
	Ice *webrtc.ICECandidateInit   `json:"ice,omitempty"`
}

// peerCallbacks is how the direct transport reports back into the
// state machine loop.
type peerCallbacks struct {
	onSignal  func(payload []byte)
	onUp      func()
	onDown    func()
	onMessage func(data []byte)
}

// peerLink is what the state machine needs from the direct transport.
// Tests substitute in-memory fakes.
type peerLink interface {
	// Offer starts negotiation from the host side.
	Offer() error
	// HandleSignal feeds one SDP or ICE payload from the counterpart.
	HandleSignal(payload []byte) error
	Send(data []byte) error
	Open() bool
	Close()
}

// Peer drives one pion peer connection with a single data channel for
// game traffic. Callbacks fire on pion's goroutines; the orchestrator
// posts them onto its own loop.
type Peer struct {
	log  *logger.Logger
	conn *webrtc.PeerConnection
	dc   *webrtc.DataChannel
	open atomic.Bool

	OnSignal  func(payload []byte)
	OnMessage func(data []byte)
	OnUp      func()
	OnDown    func()
}

// NewPeer builds a peer connection from the ICE descriptor minted by
// the signaling server. The host opens the data channel, the guest
// picks it up from the offer.
func NewPeer(turn api.Turn, conf config.Webrtc, role api.Role, log *logger.Logger) (*Peer, error) {
	p := &Peer{log: log}

	se := webrtc.SettingEngine{LoggerFactory: logger.NewPionLogger(log, conf.LogLevel)}
	pionAPI := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	servers := make([]webrtc.ICEServer, 0, len(turn.Urls)+len(conf.IceServers))
	for _, u := range turn.Urls {
		s := webrtc.ICEServer{URLs: []string{u}}
		if turn.Username != "" {
			s.Username = turn.Username
			s.Credential = turn.Credential
		}
		servers = append(servers, s)
	}
	for _, ice := range conf.IceServers {
		servers = append(servers, webrtc.ICEServer{
			URLs: []string{ice.Urls}, Username: ice.Username, Credential: ice.Credential,
		})
	}

	conn, err := pionAPI.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, err
	}
	p.conn = conn

	conn.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		p.signal(signalPayload{Ice: &init})
	})
	conn.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		p.log.Debug().Msgf("ICE state [%v]", s)
		switch s {
		case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
			if p.OnUp != nil {
				p.OnUp()
			}
		case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateDisconnected:
			p.open.Store(false)
			if p.OnDown != nil {
				p.OnDown()
			}
		}
	})

	if role == api.RoleHost {
		dc, err := conn.CreateDataChannel(dataChannelLabel, nil)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		p.attach(dc)
	} else {
		conn.OnDataChannel(func(dc *webrtc.DataChannel) {
			if dc.Label() == dataChannelLabel {
				p.attach(dc)
			}
		})
	}
	return p, nil
}

func (p *Peer) attach(dc *webrtc.DataChannel) {
	p.dc = dc
	dc.OnOpen(func() {
		p.open.Store(true)
		if p.OnUp != nil {
			p.OnUp()
		}
	})
	dc.OnClose(func() {
		p.open.Store(false)
		if p.OnDown != nil {
			p.OnDown()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if p.OnMessage != nil {
			p.OnMessage(msg.Data)
		}
	})
}

func (p *Peer) Offer() error {
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err = p.conn.SetLocalDescription(offer); err != nil {
		return err
	}
	p.signal(signalPayload{Sdp: &offer})
	return nil
}

func (p *Peer) HandleSignal(payload []byte) error {
	var sig signalPayload
	if err := json.Unmarshal(payload, &sig); err != nil {
		return err
	}
	switch {
	case sig.Sdp != nil && sig.Sdp.Type == webrtc.SDPTypeOffer:
		if err := p.conn.SetRemoteDescription(*sig.Sdp); err != nil {
			return err
		}
		answer, err := p.conn.CreateAnswer(nil)
		if err != nil {
			return err
		}
		if err = p.conn.SetLocalDescription(answer); err != nil {
			return err
		}
		p.signal(signalPayload{Sdp: &answer})
	case sig.Sdp != nil:
		return p.conn.SetRemoteDescription(*sig.Sdp)
	case sig.Ice != nil:
		return p.conn.AddICECandidate(*sig.Ice)
	}
	return nil
}

func (p *Peer) Send(data []byte) error {
	if p.dc == nil || !p.open.Load() {
		return errNotOpen
	}
	return p.dc.Send(data)
}

func (p *Peer) Open() bool { return p.open.Load() }

func (p *Peer) Close() {
	p.open.Store(false)
	if err := p.conn.Close(); err != nil {
		p.log.Debug().Err(err).Msg("peer close")
	}
}

func (p *Peer) signal(sig signalPayload) {
	raw, err := json.Marshal(sig)
	if err != nil {
		p.log.Error().Err(err).Msg("signal marshal")
		return
	}
	if p.OnSignal != nil {
		p.OnSignal(raw)
	}
}
