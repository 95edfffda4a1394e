package relay

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/duelnet/duelnet/pkg/api"
	"github.com/duelnet/duelnet/pkg/com"
	"github.com/duelnet/duelnet/pkg/logger"
	"github.com/duelnet/duelnet/pkg/ratelimit"
)

// Registry limits. Fixed protocol constants, not runtime-tunable.
const (
	sessionIdleTTL = 5 * time.Minute
	sweepInterval  = 30 * time.Second
	frameWindow    = time.Second
	maxFramesPerIP = 60
)

type ipEntry struct {
	frames  *ratelimit.Window
	members int
}

// Hub owns the session table. Same single event loop discipline as the
// signaling hub: socket pumps and timers post closures, each runs to
// completion, the tables need no locks.
type Hub struct {
	log   *logger.Logger
	clock ratelimit.Clock

	sessions map[string]*Session
	members  map[com.Uid]*Session
	ips      map[string]*ipEntry

	ops  chan func()
	done chan struct{}
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:      log,
		clock:    ratelimit.RealClock{},
		sessions: make(map[string]*Session, 16),
		members:  make(map[com.Uid]*Session, 32),
		ips:      make(map[string]*ipEntry, 32),
		ops:      make(chan func(), 256),
		done:     make(chan struct{}),
	}
}

// Run processes posted operations and the periodic sweep until Stop.
func (h *Hub) Run() {
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()
	for {
		select {
		case op := <-h.ops:
			op()
		case <-sweep.C:
			h.sweep()
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

func (h *Hub) Stop() { close(h.done) }

func (h *Hub) post(op func()) {
	select {
	case h.ops <- op:
	case <-h.done:
	}
}

// HandleMessage posts one inbound frame onto the hub loop.
func (h *Hub) HandleMessage(c conn, data []byte) {
	h.post(func() { h.handleMessage(c, data) })
}

// Disconnect posts the socket-close cleanup onto the hub loop.
func (h *Hub) Disconnect(c conn) {
	h.post(func() { h.disconnect(c) })
}

// Sessions reports the live session count, for /health.
func (h *Hub) Sessions() int {
	out := make(chan int, 1)
	h.post(func() { out <- len(h.sessions) })
	select {
	case n := <-out:
		return n
	case <-h.done:
		return 0
	}
}

// handleMessage checks the frame size before any parsing, then the
// per-IP budget. Neither violation closes the socket.
func (h *Hub) handleMessage(c conn, data []byte) {
	if len(data) > api.MaxRelayFrame {
		metricOversized.Inc()
		c.Send(api.Wrap(api.NewError(api.ErrMessageTooLarge)))
		return
	}
	if !h.ipEntry(c.IP()).frames.Allow() {
		metricRateLimited.Inc()
		c.Send(api.Wrap(api.NewError(api.ErrRateLimited)))
		return
	}
	t, err := api.PeekType(data)
	if err != nil {
		h.log.Debug().Str("cid", c.Id().Short()).Err(err).Msg("Unreadable frame")
		return
	}
	switch t {
	case api.RoleType:
		h.handleRole(c, data)
	case api.InputType, api.StateType:
		h.handleFrame(c, t, data)
	case api.PingType:
		h.handlePing(c)
	default:
		// never fatal
		h.log.Debug().Str("cid", c.Id().Short()).Msgf("Ignore unknown frame [%v]", t)
	}
}

// handleRole seats the socket in its session, displacing any previous
// holder of the same role. Late rejoin after a drop looks exactly like
// a first claim.
func (h *Hub) handleRole(c conn, data []byte) {
	req := api.Unwrap[api.RoleRequest](data)
	if req == nil {
		c.Send(api.Wrap(api.NewError(api.ErrInvalidRoleMessage)))
		return
	}
	if e := req.Validate(); e != nil {
		c.Send(api.Wrap(*e))
		return
	}

	now := h.clock.Now()
	session, ok := h.sessions[req.Room]
	if !ok {
		session = newSession(req.Room, now)
		h.sessions[req.Room] = session
		metricSessions.Set(float64(len(h.sessions)))
		h.log.Info().Str("cid", c.Id().Short()).Msgf("Session [%v] created", req.Room)
	}

	if old := session.slot(req.Role); old != nil && old.Id() != c.Id() {
		delete(h.members, old.Id())
		h.dropMember(old.IP())
		old.CloseWithReason(websocket.CloseNormalClosure, "Replaced by new "+string(req.Role))
		metricReplaced.Inc()
		h.log.Info().Str("cid", old.Id().Short()).Msgf("Replaced [%v] in session [%v]", req.Role, req.Room)
	}

	session.seat(req.Role, c)
	session.lastActivity = now
	if _, seated := h.members[c.Id()]; !seated {
		h.ipEntry(c.IP()).members++
	}
	h.members[c.Id()] = session
	c.Send(api.Wrap(api.NewRoleAck(req.Role, req.Room)))
	h.log.Info().Str("cid", c.Id().Short()).Msgf("Player [%v] joined session [%v]", req.Role, req.Room)
}

// handleFrame forwards one opaque game frame to the counterpart.
// Inputs flow guest to host, state flows host to guest; a frame going
// the wrong way is logged and dropped without an error.
func (h *Hub) handleFrame(c conn, t api.Type, data []byte) {
	session, ok := h.members[c.Id()]
	if !ok {
		c.Send(api.Wrap(api.NewError(api.ErrNotInSession)))
		return
	}
	role := session.roleOf(c)
	if (t == api.InputType && role != api.RoleGuest) || (t == api.StateType && role != api.RoleHost) {
		h.log.Debug().Str("cid", c.Id().Short()).Msgf("Drop misdirected [%v] from [%v]", t, role)
		return
	}
	session.lastActivity = h.clock.Now()
	other := session.counterpart(c)
	if other == nil || !other.IsOpen() {
		c.Send(api.Wrap(api.NewError(api.ErrPeerUnavailable)))
		return
	}
	// payload stays opaque, the frame goes through as-is
	other.Send(data)
	metricFrames.WithLabelValues(string(t)).Inc()
}

func (h *Hub) handlePing(c conn) {
	if session, ok := h.members[c.Id()]; ok {
		session.lastActivity = h.clock.Now()
	}
	c.Send(api.Wrap(api.NewPong()))
}

func (h *Hub) disconnect(c conn) {
	session, ok := h.members[c.Id()]
	if !ok {
		return
	}
	delete(h.members, c.Id())
	h.dropMember(c.IP())
	role := session.roleOf(c)
	session.clear(c)
	if other := session.counterpart(c); other != nil && other.IsOpen() {
		other.Send(api.Wrap(api.NewPlayerDisconnected(role)))
	}
	// the session itself lives until the sweep finds it empty or idle
	h.log.Info().Str("cid", c.Id().Short()).Msgf("Player [%v] left session [%v]", role, session.room)
}

func (h *Hub) sweep() {
	now := h.clock.Now()
	for _, session := range h.sessions {
		if session.empty() || session.idle(now) {
			h.deleteSession(session)
		}
	}
	for ip, e := range h.ips {
		if e.members == 0 && e.frames.Stale() {
			delete(h.ips, ip)
		}
	}
}

func (h *Hub) deleteSession(session *Session) {
	for _, c := range []conn{session.host, session.guest} {
		if c == nil {
			continue
		}
		delete(h.members, c.Id())
		h.dropMember(c.IP())
		c.Close()
	}
	delete(h.sessions, session.room)
	metricSessions.Set(float64(len(h.sessions)))
	h.log.Info().Msgf("Session [%v] removed", session.room)
}

func (h *Hub) closeAll() {
	for _, session := range h.sessions {
		h.deleteSession(session)
	}
}

func (h *Hub) ipEntry(ip string) *ipEntry {
	e, ok := h.ips[ip]
	if !ok {
		e = &ipEntry{frames: ratelimit.NewWindow(h.clock, frameWindow, maxFramesPerIP)}
		h.ips[ip] = e
	}
	return e
}

func (h *Hub) dropMember(ip string) {
	if e, ok := h.ips[ip]; ok && e.members > 0 {
		e.members--
	}
}
