package signaling

import (
	"math/rand"
	"strings"
	"time"

	"github.com/duelnet/duelnet/pkg/api"
	"github.com/duelnet/duelnet/pkg/com"
	"github.com/duelnet/duelnet/pkg/config"
	"github.com/duelnet/duelnet/pkg/logger"
	"github.com/duelnet/duelnet/pkg/ratelimit"
	"github.com/duelnet/duelnet/pkg/turn"
)

// Registry limits. Fixed protocol constants, not runtime-tunable.
const (
	roomIdleTTL     = 2 * time.Minute
	roomMaxAge      = 30 * time.Minute
	sweepInterval   = 30 * time.Second
	heartbeatEvery  = 20 * time.Second
	handshakeWindow = 10 * time.Minute
	maxHandshakes   = 30
	maxRoomsPerIP   = 5
)

type ipEntry struct {
	handshakes *ratelimit.Window
	rooms      int
}

// Hub owns the room table. All mutations happen on its single event
// loop: socket pumps and timers post closures and each one runs to
// completion before the next, so no locking is needed on the tables.
type Hub struct {
	log   *logger.Logger
	clock ratelimit.Clock
	turn  *turn.Generator
	stun  []string
	urls  []string

	rooms   map[string]*Room
	members map[com.Uid]*Room
	ips     map[string]*ipEntry

	ops  chan func()
	done chan struct{}

	rng     *rand.Rand
	genCode func() string
}

func NewHub(conf config.Signaling, log *logger.Logger) *Hub {
	h := &Hub{
		log:     log,
		clock:   ratelimit.RealClock{},
		stun:    conf.StunServers,
		urls:    conf.Turn.Urls,
		rooms:   make(map[string]*Room, 16),
		members: make(map[com.Uid]*Room, 32),
		ips:     make(map[string]*ipEntry, 32),
		ops:     make(chan func(), 128),
		done:    make(chan struct{}),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	h.genCode = h.randomCode
	if conf.Turn.SharedSecret != "" {
		gen, err := turn.NewGenerator(turn.Config{
			SharedSecret: conf.Turn.SharedSecret,
			TTL:          conf.Turn.TTL,
			Prefix:       conf.Turn.UsernamePrefix,
		})
		if err != nil {
			log.Error().Err(err).Msg("TURN credentials are disabled")
		} else {
			h.turn = gen
		}
	}
	return h
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

// Connect wires a fresh socket into the hub loop.
func (h *Hub) Connect(c conn) {
	h.log.Debug().Str("cid", c.Id().Short()).Str("ip", c.IP()).Msg("Connect")
}

// HandleMessage posts one inbound frame onto the hub loop.
func (h *Hub) HandleMessage(c conn, data []byte) {
	h.post(func() { h.handleMessage(c, data) })
}

// Disconnect posts the socket-close cleanup onto the hub loop.
func (h *Hub) Disconnect(c conn) {
	h.post(func() { h.disconnect(c) })
}

// Rooms reports the live room count, for /health.
func (h *Hub) Rooms() int {
	out := make(chan int, 1)
	h.post(func() { out <- len(h.rooms) })
	select {
	case n := <-out:
		return n
	case <-h.done:
		return 0
	}
}

func (h *Hub) handleMessage(c conn, data []byte) {
	t, err := api.PeekType(data)
	if err != nil {
		h.log.Debug().Str("cid", c.Id().Short()).Err(err).Msg("Unreadable frame")
		return
	}
	switch t {
	case api.HelloType:
		h.handleHello(c, data)
	case api.SignalType:
		h.handleSignal(c, data)
	default:
		// never fatal
		h.log.Debug().Str("cid", c.Id().Short()).Msgf("Ignore unknown frame [%v]", t)
	}
}

func (h *Hub) handleHello(c conn, data []byte) {
	hello := api.Unwrap[api.Hello](data)
	if hello == nil {
		c.Send(api.Wrap(api.NewError(api.ErrInvalidRole)))
		return
	}
	if e := hello.Validate(); e != nil {
		c.Send(api.Wrap(*e))
		return
	}

	ip := h.ipEntry(c.IP())
	if ip.rooms >= maxRoomsPerIP || !ip.handshakes.Allow() {
		metricRateLimited.Inc()
		c.Send(api.Wrap(api.NewError(api.ErrRateLimited)))
		return
	}

	var room *Room
	now := h.clock.Now()
	if hello.Role == api.RoleHost && hello.Room == "" {
		code, ok := h.newRoomCode()
		if !ok {
			c.Send(api.Wrap(api.NewError(api.ErrRoomGenerationFailed)))
			return
		}
		room = newRoom(code, now)
		room.host = c
		h.rooms[code] = room
		metricRooms.Set(float64(len(h.rooms)))
		metricRoomsCreated.Inc()
		h.startHeartbeat(room)
		h.log.Info().Str("cid", c.Id().Short()).Msgf("Room [%v] created", code)
	} else {
		var ok bool
		room, ok = h.rooms[hello.Room]
		if !ok {
			c.Send(api.Wrap(api.NewError(api.ErrRoomNotFound)))
			return
		}
		if room.expired(now) {
			h.deleteRoom(room)
			c.Send(api.Wrap(api.NewError(api.ErrRoomExpired)))
			return
		}
		// duplicate-role policy here is reject, the relay is the one
		// that replaces
		if room.occupied(hello.Role) {
			c.Send(api.Wrap(api.NewError(api.ErrRoomFull)))
			return
		}
		room.seat(hello.Role, c)
		room.lastActivity = now
		if hello.Role == api.RoleHost {
			room.resetHeartbeat()
			h.startHeartbeat(room)
		}
		h.log.Info().Str("cid", c.Id().Short()).Msgf("Player [%v] joined room [%v]", hello.Role, room.code)
	}

	if _, seated := h.members[c.Id()]; !seated {
		ip.rooms++
	}
	h.members[c.Id()] = room
	c.Send(api.Wrap(api.NewHelloAck(room.code, hello.Role, h.mintTurn(c))))
}

func (h *Hub) handleSignal(c conn, data []byte) {
	room, ok := h.members[c.Id()]
	if !ok {
		c.Send(api.Wrap(api.NewError(api.ErrNotInRoom)))
		return
	}
	if _, live := h.rooms[room.code]; !live {
		c.Send(api.Wrap(api.NewError(api.ErrRoomNotFound)))
		return
	}
	room.lastActivity = h.clock.Now()
	// SDP/ICE is opaque, the frame goes through as-is
	if other, _ := room.counterpart(c); other != nil && other.IsOpen() {
		other.Send(data)
		metricSignalsForwarded.Inc()
	}
}

func (h *Hub) disconnect(c conn) {
	room, ok := h.members[c.Id()]
	if !ok {
		return
	}
	delete(h.members, c.Id())
	if e, ok := h.ips[c.IP()]; ok && e.rooms > 0 {
		e.rooms--
	}
	role := room.roleOf(c)
	room.clear(c)
	if role == api.RoleHost {
		room.stopHeartbeat()
	}
	if other, _ := room.counterpart(c); other != nil && other.IsOpen() {
		other.Send(api.Wrap(api.NewPlayerDisconnected(role)))
	}
	// the room itself lives until the sweep finds it empty
	h.log.Info().Str("cid", c.Id().Short()).Msgf("Player [%v] left room [%v]", role, room.code)
}

func (h *Hub) sweep() {
	now := h.clock.Now()
	for _, room := range h.rooms {
		if room.empty() || room.expired(now) {
			h.deleteRoom(room)
		}
	}
	for ip, e := range h.ips {
		if e.rooms == 0 && e.handshakes.Stale() {
			delete(h.ips, ip)
		}
	}
}

func (h *Hub) deleteRoom(room *Room) {
	room.stopHeartbeat()
	for _, c := range []conn{room.host, room.guest} {
		if c == nil {
			continue
		}
		delete(h.members, c.Id())
		if e, ok := h.ips[c.IP()]; ok && e.rooms > 0 {
			e.rooms--
		}
		c.Close()
	}
	delete(h.rooms, room.code)
	metricRooms.Set(float64(len(h.rooms)))
	h.log.Info().Msgf("Room [%v] removed", room.code)
}

func (h *Hub) closeAll() {
	for _, room := range h.rooms {
		h.deleteRoom(room)
	}
}

// startHeartbeat pings the room's host on an interval and stops itself
// once the host socket is no longer open.
func (h *Hub) startHeartbeat(room *Room) {
	ticker := time.NewTicker(heartbeatEvery)
	stop := room.hbStop
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.post(func() { h.heartbeatTick(room) })
			case <-stop:
				return
			case <-h.done:
				return
			}
		}
	}()
}

// heartbeatTick pings the room's host and reports whether the
// heartbeat stays armed. A missing, closed or unreachable host
// disarms it.
func (h *Hub) heartbeatTick(room *Room) bool {
	if room.host == nil || !room.host.IsOpen() || room.host.Ping() != nil {
		room.stopHeartbeat()
		return false
	}
	return true
}

func (h *Hub) ipEntry(ip string) *ipEntry {
	e, ok := h.ips[ip]
	if !ok {
		e = &ipEntry{handshakes: ratelimit.NewWindow(h.clock, handshakeWindow, maxHandshakes)}
		h.ips[ip] = e
	}
	return e
}

func (h *Hub) newRoomCode() (string, bool) {
	for i := 0; i < maxCodeRetries; i++ {
		code := h.genCode()
		if _, taken := h.rooms[code]; !taken {
			return code, true
		}
	}
	return "", false
}

func (h *Hub) randomCode() string {
	var sb strings.Builder
	sb.Grow(codeLen)
	for i := 0; i < codeLen; i++ {
		sb.WriteByte(codeAlphabet[h.rng.Intn(len(codeAlphabet))])
	}
	return sb.String()
}

// mintTurn builds the transport credential descriptor for a hello-ack.
func (h *Hub) mintTurn(c conn) api.Turn { return h.mint(c.Id().String()) }

// BootstrapTurn mints a descriptor for the /config endpoint. Touches no
// hub state, safe to call off the loop.
func (h *Hub) BootstrapTurn() api.Turn { return h.mint(com.NewUid().String()) }

func (h *Hub) mint(session string) api.Turn {
	t := api.Turn{Urls: append([]string{}, h.stun...)}
	if h.turn == nil {
		return t
	}
	creds, err := h.turn.Generate(session)
	if err != nil {
		h.log.Error().Err(err).Msg("TURN minting failed")
		return t
	}
	t.Urls = append(t.Urls, h.urls...)
	t.Username = creds.Username
	t.Credential = creds.Credential
	return t
}
