package relay

import (
	"time"

	"github.com/duelnet/duelnet/pkg/api"
)

// Session carries game traffic between one host and one guest after
// the direct path failed. It holds no game state, only the sockets.
type Session struct {
	room         string
	host         conn
	guest        conn
	createdAt    time.Time
	lastActivity time.Time
}

func newSession(room string, now time.Time) *Session {
	return &Session{room: room, createdAt: now, lastActivity: now}
}

func (s *Session) slot(role api.Role) conn {
	if role == api.RoleHost {
		return s.host
	}
	return s.guest
}

func (s *Session) seat(role api.Role, c conn) {
	if role == api.RoleHost {
		s.host = c
	} else {
		s.guest = c
	}
}

// counterpart returns the socket of the other role.
func (s *Session) counterpart(c conn) conn {
	if s.host != nil && s.host.Id() == c.Id() {
		return s.guest
	}
	return s.host
}

// roleOf returns the seat c holds in the session.
func (s *Session) roleOf(c conn) api.Role {
	if s.host != nil && s.host.Id() == c.Id() {
		return api.RoleHost
	}
	return api.RoleGuest
}

func (s *Session) clear(c conn) {
	if s.host != nil && s.host.Id() == c.Id() {
		s.host = nil
	}
	if s.guest != nil && s.guest.Id() == c.Id() {
		s.guest = nil
	}
}

func (s *Session) empty() bool { return s.host == nil && s.guest == nil }

func (s *Session) idle(now time.Time) bool {
	return now.Sub(s.lastActivity) > sessionIdleTTL
}
