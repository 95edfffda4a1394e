package signaling

import (
	"sync"
	"time"

	"github.com/duelnet/duelnet/pkg/api"
)

// codeAlphabet excludes visually confusable characters (0/O, 1/I/L).
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const (
	codeLen        = 6
	maxCodeRetries = 10
)

// Room pairs one host and one guest for the SDP/ICE exchange.
type Room struct {
	code         string
	host         conn
	guest        conn
	createdAt    time.Time
	lastActivity time.Time

	hbStop chan struct{}
	hbOnce sync.Once
}

func newRoom(code string, now time.Time) *Room {
	return &Room{
		code:         code,
		createdAt:    now,
		lastActivity: now,
		hbStop:       make(chan struct{}),
	}
}

func (r *Room) slot(role api.Role) conn {
	if role == api.RoleHost {
		return r.host
	}
	return r.guest
}

func (r *Room) seat(role api.Role, c conn) {
	if role == api.RoleHost {
		r.host = c
	} else {
		r.guest = c
	}
}

// occupied reports whether the role slot holds a live socket.
func (r *Room) occupied(role api.Role) bool {
	c := r.slot(role)
	return c != nil && c.IsOpen()
}

// counterpart returns the other occupant's connection and role.
func (r *Room) counterpart(c conn) (conn, api.Role) {
	if r.host != nil && r.host.Id() == c.Id() {
		return r.guest, api.RoleGuest
	}
	return r.host, api.RoleHost
}

// roleOf returns the seat c holds in the room.
func (r *Room) roleOf(c conn) api.Role {
	if r.host != nil && r.host.Id() == c.Id() {
		return api.RoleHost
	}
	return api.RoleGuest
}

func (r *Room) clear(c conn) {
	if r.host != nil && r.host.Id() == c.Id() {
		r.host = nil
	}
	if r.guest != nil && r.guest.Id() == c.Id() {
		r.guest = nil
	}
}

func (r *Room) empty() bool { return r.host == nil && r.guest == nil }

func (r *Room) expired(now time.Time) bool {
	return now.Sub(r.lastActivity) > roomIdleTTL || now.Sub(r.createdAt) > roomMaxAge
}

func (r *Room) stopHeartbeat() { r.hbOnce.Do(func() { close(r.hbStop) }) }

// resetHeartbeat arms the room for a new heartbeat after a host
// re-claimed the seat.
func (r *Room) resetHeartbeat() {
	r.stopHeartbeat()
	r.hbStop = make(chan struct{})
	r.hbOnce = sync.Once{}
}
