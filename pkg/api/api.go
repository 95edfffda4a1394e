// Package api defines the message contracts shared by the signaling
// service, the relay service, and the client connection orchestrator.
//
// Every message is a JSON object with a mandatory "type" discriminator.
// Decoding is two-pass: the envelope type is peeked first and the full
// message is unwrapped into the matching struct only after the type is
// known. Unknown types are left for the caller to log and ignore, they
// are never fatal.
package api

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

type Type string

const (
	// signaling (client <-> room registry)
	HelloType              Type = "hello"
	HelloAckType           Type = "hello-ack"
	SignalType             Type = "signal"
	PlayerDisconnectedType Type = "player_disconnected"

	// relay (client <-> relay session registry)
	RoleType    Type = "role"
	RoleAckType Type = "role-ack"
	InputType   Type = "input"
	StateType   Type = "state"
	PingType    Type = "ping"
	PongType    Type = "pong"

	// both
	ErrorType Type = "error"
)

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

func (r Role) Valid() bool { return r == RoleHost || r == RoleGuest }

// Opposite returns the other seat of a 1v1 pairing.
func (r Role) Opposite() Role {
	if r == RoleHost {
		return RoleGuest
	}
	return RoleHost
}

type ErrorCode string

const (
	ErrInvalidRole          ErrorCode = "INVALID_ROLE"
	ErrInvalidRoleMessage   ErrorCode = "INVALID_ROLE_MESSAGE"
	ErrRoomCodeRequired     ErrorCode = "ROOM_CODE_REQUIRED"
	ErrRoomFull             ErrorCode = "ROOM_FULL"
	ErrRoomGenerationFailed ErrorCode = "ROOM_GENERATION_FAILED"
	ErrRoomNotFound         ErrorCode = "ROOM_NOT_FOUND"
	ErrRoomExpired          ErrorCode = "ROOM_EXPIRED"
	ErrNotInRoom            ErrorCode = "NOT_IN_ROOM"
	ErrNotInSession         ErrorCode = "NOT_IN_SESSION"
	ErrSessionNotFound      ErrorCode = "SESSION_NOT_FOUND"
	ErrRateLimited          ErrorCode = "RATE_LIMITED"
	ErrMessageTooLarge      ErrorCode = "MESSAGE_TOO_LARGE"
	ErrPeerUnavailable      ErrorCode = "PEER_UNAVAILABLE"
)

// Frame size caps, checked before any parsing.
const (
	MaxSignalingMessage = 10 << 10
	MaxRelayFrame       = 8 << 10
)

var ErrMalformed = errors.New("malformed message")

type envelope struct {
	T Type `json:"type"`
}

// PeekType extracts the type discriminator without decoding the rest.
func PeekType(data []byte) (Type, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.T == "" {
		return "", fmt.Errorf("%w: no type", ErrMalformed)
	}
	return e.T, nil
}

// Unwrap decodes data into a fresh T, nil on any error.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

// Wrap encodes a message for the wire. Contract messages are known
// shapes, an encoding failure is a programming error.
func Wrap(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("api: unencodable message %T: %v", v, err))
	}
	return b
}

type Error struct {
	T       Type      `json:"type"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"`
}

func NewError(code ErrorCode) Error { return Error{T: ErrorType, Code: code} }

func NewErrorf(code ErrorCode, format string, args ...any) Error {
	return Error{T: ErrorType, Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e Error) Error() string {
	if e.Message != "" {
		return string(e.Code) + ": " + e.Message
	}
	return string(e.Code)
}
