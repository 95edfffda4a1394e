package api

import "github.com/goccy/go-json"

// Hello opens a signaling handshake. Hosts get a fresh room, guests
// must name an existing one.
type Hello struct {
	T    Type   `json:"type"`
	Role Role   `json:"role"`
	Room string `json:"room,omitempty"`
}

func (h Hello) Validate() *Error {
	if !h.Role.Valid() {
		e := NewError(ErrInvalidRole)
		return &e
	}
	if h.Role == RoleGuest && h.Room == "" {
		e := NewError(ErrRoomCodeRequired)
		return &e
	}
	return nil
}

// Turn is the transport credential descriptor minted per handshake.
type Turn struct {
	Urls       []string `json:"urls"`
	Username   string   `json:"username"`
	Credential string   `json:"credential"`
}

type HelloAck struct {
	T    Type   `json:"type"`
	Room string `json:"room"`
	Role Role   `json:"role"`
	Turn Turn   `json:"turn"`
}

func NewHelloAck(room string, role Role, turn Turn) HelloAck {
	return HelloAck{T: HelloAckType, Room: room, Role: role, Turn: turn}
}

// Signal ferries an opaque SDP/ICE payload to the room counterpart.
// The payload is forwarded verbatim, the registry never looks inside.
type Signal struct {
	T       Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func NewSignal(payload []byte) Signal { return Signal{T: SignalType, Payload: payload} }

type PlayerDisconnected struct {
	T    Type `json:"type"`
	Role Role `json:"role"`
}

func NewPlayerDisconnected(role Role) PlayerDisconnected {
	return PlayerDisconnected{T: PlayerDisconnectedType, Role: role}
}
