package api

import "github.com/goccy/go-json"

// RoleRequest claims a seat in a relay session, creating the session on
// first use of the code.
type RoleRequest struct {
	T    Type   `json:"type"`
	Role Role   `json:"role"`
	Room string `json:"room"`
}

func (r RoleRequest) Validate() *Error {
	if r.Role == "" || r.Room == "" {
		e := NewError(ErrInvalidRoleMessage)
		return &e
	}
	if !r.Role.Valid() {
		e := NewError(ErrInvalidRole)
		return &e
	}
	return nil
}

type RoleAck struct {
	T    Type   `json:"type"`
	Role Role   `json:"role"`
	Room string `json:"room"`
}

func NewRoleAck(role Role, room string) RoleAck {
	return RoleAck{T: RoleAckType, Role: role, Room: room}
}

// Frame is a relayed application message: guest->host inputs and
// host->guest state snapshots share the shape and differ by type.
type Frame struct {
	T       Type            `json:"type"`
	Seq     uint64          `json:"seq"`
	Ts      int64           `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

func NewInput(seq uint64, ts int64, payload []byte) Frame {
	return Frame{T: InputType, Seq: seq, Ts: ts, Payload: payload}
}

func NewState(seq uint64, ts int64, payload []byte) Frame {
	return Frame{T: StateType, Seq: seq, Ts: ts, Payload: payload}
}

type Ping struct {
	T Type `json:"type"`
}

type Pong struct {
	T Type `json:"type"`
}

func NewPing() Ping { return Ping{T: PingType} }
func NewPong() Pong { return Pong{T: PongType} }
