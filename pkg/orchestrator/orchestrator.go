// Package orchestrator reconciles two independently failing transports,
// a WebRTC data channel and a websocket relay, into one logical game
// channel. It drives the signaling handshake, falls back to the relay
// when the direct path does not come up, and migrates back once the
// direct path proves stable.
package orchestrator

import (
	"math/rand"
	"time"

	"github.com/duelnet/duelnet/pkg/api"
	"github.com/duelnet/duelnet/pkg/config"
	"github.com/duelnet/duelnet/pkg/logger"
)

const relayPingEvery = 30 * time.Second

// MessageHandler consumes inbound application frames from whichever
// transport is active.
type MessageHandler func(t api.Type, frame *api.Frame)

// Orchestrator is the client-side connection state machine. All state
// lives on its single event loop; transport callbacks post closures.
type Orchestrator struct {
	conf config.Client
	log  *logger.Logger
	auth HostAuthority

	role api.Role
	room string
	turn api.Turn

	state State
	sig   wire
	relay wire
	peer  peerLink

	attempts int
	seq      uint64
	// gen invalidates callbacks from transports of an earlier life
	gen int

	negotiation *time.Timer
	stability   *time.Timer
	retry       *time.Timer

	events    chan Event
	onMessage MessageHandler

	ops  chan func()
	done chan struct{}
	rng  *rand.Rand

	dialSignal func(onMessage func(data []byte)) (wire, error)
	dialRelay  func(onMessage func(data []byte)) (wire, error)
	newPeer    func(turn api.Turn, role api.Role, cb peerCallbacks) (peerLink, error)
}

func New(conf config.Client, log *logger.Logger) *Orchestrator {
	o := &Orchestrator{
		conf:   conf,
		log:    log,
		auth:   NopAuthority{},
		state:  Idle,
		events: make(chan Event, 16),
		ops:    make(chan func(), 128),
		done:   make(chan struct{}),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	o.dialSignal = func(onMessage func(data []byte)) (wire, error) {
		return dial(conf.SignalingURL, onMessage)
	}
	o.dialRelay = func(onMessage func(data []byte)) (wire, error) {
		return dial(conf.RelayURL, onMessage)
	}
	o.newPeer = func(turn api.Turn, role api.Role, cb peerCallbacks) (peerLink, error) {
		p, err := NewPeer(turn, conf.Webrtc, role, log)
		if err != nil {
			return nil, err
		}
		p.OnSignal, p.OnUp, p.OnDown, p.OnMessage = cb.onSignal, cb.onUp, cb.onDown, cb.onMessage
		return p, nil
	}
	return o
}

// SetAuthority installs the host-side logic hook. Call before Start.
func (o *Orchestrator) SetAuthority(a HostAuthority) { o.auth = a }

// SetMessageHandler installs the application frame consumer. Call
// before Start.
func (o *Orchestrator) SetMessageHandler(fn MessageHandler) { o.onMessage = fn }

// Events delivers connection lifecycle notifications. Slow consumers
// lose events rather than stalling the loop.
func (o *Orchestrator) Events() <-chan Event { return o.events }

// Run processes posted operations until Stop.
func (o *Orchestrator) Run() {
	for {
		select {
		case op := <-o.ops:
			op()
		case <-o.done:
			o.teardown()
			return
		}
	}
}

func (o *Orchestrator) Stop() { close(o.done) }

func (o *Orchestrator) post(op func()) {
	select {
	case o.ops <- op:
	case <-o.done:
	}
}

// Start begins the connect sequence: hosts pass an empty room code and
// get one minted, guests pass the code they were given.
func (o *Orchestrator) Start(role api.Role, room string) {
	o.post(func() { o.start(role, room) })
}

// ReturnToLobby tears down every transport and goes back to Idle.
func (o *Orchestrator) ReturnToLobby() {
	o.post(func() { o.toIdle() })
}

// SendInput ships one guest input payload over the active transport.
func (o *Orchestrator) SendInput(payload []byte) {
	o.post(func() {
		o.seq++
		o.route(api.Wrap(api.NewInput(o.seq, time.Now().UnixMilli(), payload)))
	})
}

// SendState ships one host state snapshot over the active transport.
func (o *Orchestrator) SendState(payload []byte) {
	o.post(func() {
		o.seq++
		o.route(api.Wrap(api.NewState(o.seq, time.Now().UnixMilli(), o.auth.AmendState(payload))))
	})
}

// State reports the current machine state.
func (o *Orchestrator) State() State {
	out := make(chan State, 1)
	o.post(func() { out <- o.state })
	select {
	case s := <-out:
		return s
	case <-o.done:
		return Idle
	}
}

func (o *Orchestrator) start(role api.Role, room string) {
	if o.state != Idle {
		o.log.Warn().Msgf("Start ignored in state [%v]", o.state)
		return
	}
	o.role, o.room = role, room
	o.attempts, o.seq = 0, 0

	sig, err := o.dialSignal(func(data []byte) {
		o.post(func() { o.onSignalingMessage(data) })
	})
	if err != nil {
		o.fail(err)
		return
	}
	o.sig = sig
	go func() {
		<-sig.Done()
		o.post(func() { o.signalingClosed(sig) })
	}()
	o.transition(AwaitingHelloAck)
	sig.Send(api.Wrap(api.Hello{T: api.HelloType, Role: role, Room: room}))
}

// signalingClosed handles the signaling socket going away. Before the
// ack there is no room to fall back into, so it is fatal. Later the
// game channel no longer depends on it.
func (o *Orchestrator) signalingClosed(w wire) {
	if w != o.sig {
		return
	}
	o.sig = nil
	if o.state == AwaitingHelloAck {
		o.fail(errSignalingLost)
		return
	}
	o.log.Warn().Msg("Signaling socket closed")
}

func (o *Orchestrator) onSignalingMessage(data []byte) {
	t, err := api.PeekType(data)
	if err != nil {
		o.log.Debug().Err(err).Msg("Unreadable signaling frame")
		return
	}
	switch t {
	case api.HelloAckType:
		o.onHelloAck(data)
	case api.SignalType:
		o.onSignal(data)
	case api.PlayerDisconnectedType:
		o.emit(Event{T: EventPeerLeft})
	case api.ErrorType:
		o.onSignalingError(data)
	default:
		o.log.Debug().Msgf("Ignore signaling frame [%v]", t)
	}
}

func (o *Orchestrator) onHelloAck(data []byte) {
	if o.state != AwaitingHelloAck {
		return
	}
	ack := api.Unwrap[api.HelloAck](data)
	if ack == nil {
		o.log.Error().Msg("Malformed hello-ack")
		return
	}
	o.room, o.turn = ack.Room, ack.Turn
	o.transition(NegotiatingWebRTC)

	o.gen++
	gen := o.gen
	cb := peerCallbacks{
		onSignal: func(payload []byte) {
			o.post(func() {
				if gen == o.gen && o.sig != nil {
					o.sig.Send(api.Wrap(api.NewSignal(payload)))
				}
			})
		},
		onUp:   func() { o.post(func() { o.guarded(gen, o.peerUp) }) },
		onDown: func() { o.post(func() { o.guarded(gen, o.peerDown) }) },
		onMessage: func(data []byte) {
			o.post(func() { o.guarded(gen, func() { o.onPeerMessage(data) }) })
		},
	}
	peer, err := o.newPeer(o.turn, o.role, cb)
	if err != nil {
		o.log.Error().Err(err).Msg("Peer setup failed")
		o.fallback()
		return
	}
	o.peer = peer

	o.negotiation = time.AfterFunc(o.conf.NegotiationTimeout, func() {
		o.post(func() {
			if o.state == NegotiatingWebRTC {
				o.log.Info().Msg("Negotiation timed out")
				o.fallback()
			}
		})
	})
	if o.role == api.RoleHost {
		if err := peer.Offer(); err != nil {
			o.log.Error().Err(err).Msg("Offer failed")
			o.fallback()
		}
	}
}

func (o *Orchestrator) guarded(gen int, fn func()) {
	if gen == o.gen {
		fn()
	}
}

func (o *Orchestrator) onSignal(data []byte) {
	sig := api.Unwrap[api.Signal](data)
	if sig == nil || o.peer == nil {
		return
	}
	if err := o.peer.HandleSignal(sig.Payload); err != nil {
		o.log.Error().Err(err).Msg("Signal handling failed")
		if o.state == NegotiatingWebRTC {
			o.fallback()
		}
	}
}

func (o *Orchestrator) onSignalingError(data []byte) {
	e := api.Unwrap[api.Error](data)
	if e == nil {
		return
	}
	// pre-join errors are fatal, the room cannot be entered
	if o.state == AwaitingHelloAck {
		o.fail(e)
		return
	}
	o.log.Warn().Msgf("Signaling error [%v]", e.Code)
}

// peerUp handles the data channel opening or ICE reaching connected.
func (o *Orchestrator) peerUp() {
	switch o.state {
	case NegotiatingWebRTC, FallingBackToRelay:
		o.stopTimer(&o.negotiation)
		o.closeRelay()
		o.transition(ConnectedWebRTC)
		o.emit(Event{T: EventConnected, Transport: TransportWebRTC})
	case ConnectedRelay:
		// direct path is back, give it a stability window before
		// dropping the relay
		gen := o.gen
		o.stopTimer(&o.stability)
		o.stability = time.AfterFunc(o.conf.StabilityWindow, func() {
			o.post(func() { o.guarded(gen, o.migrate) })
		})
	}
}

func (o *Orchestrator) peerDown() {
	o.stopTimer(&o.stability)
	switch o.state {
	case NegotiatingWebRTC, ConnectedWebRTC:
		o.fallback()
	}
}

func (o *Orchestrator) onPeerMessage(data []byte) {
	if o.state != ConnectedWebRTC {
		return
	}
	o.deliver(data)
}

// migrate retires the relay after the direct path held for the whole
// stability window.
func (o *Orchestrator) migrate() {
	if o.state != ConnectedRelay || o.peer == nil || !o.peer.Open() {
		return
	}
	o.closeRelay()
	o.attempts = 0
	o.transition(ConnectedWebRTC)
	o.emit(Event{T: EventConnected, Transport: TransportWebRTC})
}

// fallback moves the session onto the relay. Guarded by state so the
// timeout and an ICE failure cannot both trigger it.
func (o *Orchestrator) fallback() {
	if o.state != NegotiatingWebRTC && o.state != ConnectedWebRTC {
		return
	}
	o.stopTimer(&o.negotiation)
	o.transition(FallingBackToRelay)
	o.connectRelay()
}

func (o *Orchestrator) connectRelay() {
	var w wire
	w, err := o.dialRelay(func(data []byte) {
		o.post(func() { o.onRelayMessage(w, data) })
	})
	if err != nil {
		o.log.Warn().Err(err).Msg("Relay dial failed")
		o.scheduleReconnect()
		return
	}
	o.relay = w
	go func() {
		<-w.Done()
		o.post(func() { o.relayClosed(w) })
	}()
	w.Send(api.Wrap(api.RoleRequest{T: api.RoleType, Role: o.role, Room: o.room}))
}

func (o *Orchestrator) onRelayMessage(w wire, data []byte) {
	if w != o.relay {
		return
	}
	t, err := api.PeekType(data)
	if err != nil {
		o.log.Debug().Err(err).Msg("Unreadable relay frame")
		return
	}
	switch t {
	case api.RoleAckType:
		o.onRelayUp(w)
	case api.InputType, api.StateType:
		if o.state == ConnectedRelay {
			o.deliver(data)
		}
	case api.PlayerDisconnectedType:
		o.emit(Event{T: EventPeerLeft})
	case api.PongType:
	case api.ErrorType:
		if e := api.Unwrap[api.Error](data); e != nil {
			o.log.Warn().Msgf("Relay error [%v]", e.Code)
		}
	default:
		o.log.Debug().Msgf("Ignore relay frame [%v]", t)
	}
}

func (o *Orchestrator) onRelayUp(w wire) {
	if o.state != FallingBackToRelay && o.state != Reconnecting {
		return
	}
	o.attempts = 0
	o.transition(ConnectedRelay)
	o.emit(Event{T: EventConnected, Transport: TransportRelay})
	go o.keepAlive(w)
	// the direct path may already be back up
	if o.peer != nil && o.peer.Open() {
		o.peerUp()
	}
}

// keepAlive pings the relay until its socket goes away.
func (o *Orchestrator) keepAlive(w wire) {
	ticker := time.NewTicker(relayPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.Send(api.Wrap(api.NewPing()))
		case <-w.Done():
			return
		case <-o.done:
			return
		}
	}
}

func (o *Orchestrator) relayClosed(w wire) {
	if w != o.relay {
		return
	}
	o.relay = nil
	switch o.state {
	case ConnectedRelay, FallingBackToRelay:
		o.transition(Reconnecting)
		o.scheduleReconnect()
	}
}

func (o *Orchestrator) scheduleReconnect() {
	if o.attempts >= o.conf.Reconnect.MaxAttempts {
		o.fail(errAttemptsExhausted)
		return
	}
	d := backoffDelay(o.attempts, o.conf.Reconnect, o.rng)
	o.attempts++
	o.log.Info().Msgf("Relay reconnect [%d/%d] in %v", o.attempts, o.conf.Reconnect.MaxAttempts, d)
	o.stopTimer(&o.retry)
	o.retry = time.AfterFunc(d, func() {
		o.post(func() {
			if o.state == Reconnecting || o.state == FallingBackToRelay {
				o.connectRelay()
			}
		})
	})
}

// route prefers the data channel and falls back to the relay socket.
func (o *Orchestrator) route(data []byte) {
	if o.peer != nil && o.peer.Open() {
		if err := o.peer.Send(data); err == nil {
			return
		}
	}
	if o.relay != nil && o.state == ConnectedRelay {
		o.relay.Send(data)
		return
	}
	o.log.Debug().Msg("No transport, frame dropped")
}

func (o *Orchestrator) deliver(data []byte) {
	t, err := api.PeekType(data)
	if err != nil {
		return
	}
	frame := api.Unwrap[api.Frame](data)
	if frame == nil {
		o.log.Debug().Msgf("Malformed frame [%v]", t)
		return
	}
	if t == api.InputType && o.role == api.RoleHost && !o.auth.ReviewInput(frame.Payload) {
		o.log.Debug().Msgf("Input [%d] vetoed", frame.Seq)
		return
	}
	if o.onMessage != nil {
		o.onMessage(t, frame)
	}
}

func (o *Orchestrator) transition(next State) {
	o.log.Info().Str("from", o.state.String()).Msgf("State [%v]", next)
	o.state = next
}

func (o *Orchestrator) fail(err error) {
	o.teardown()
	o.state = Failed
	o.emit(Event{T: EventFailed, Err: err})
}

func (o *Orchestrator) toIdle() {
	o.teardown()
	o.state = Idle
}

func (o *Orchestrator) teardown() {
	o.gen++
	o.stopTimer(&o.negotiation)
	o.stopTimer(&o.stability)
	o.stopTimer(&o.retry)
	if o.peer != nil {
		o.peer.Close()
		o.peer = nil
	}
	o.closeRelay()
	if o.sig != nil {
		o.sig.Close()
		o.sig = nil
	}
}

func (o *Orchestrator) closeRelay() {
	if o.relay != nil {
		r := o.relay
		o.relay = nil
		r.Close()
	}
}

func (o *Orchestrator) stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		o.log.Warn().Msg("Event dropped, consumer too slow")
	}
}
