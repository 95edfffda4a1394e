package orchestrator

// Transport names the channel currently carrying application messages.
type Transport string

const (
	TransportWebRTC Transport = "webrtc"
	TransportRelay  Transport = "relay"
)

type EventType int

const (
	// EventConnected fires on every transition into a connected state,
	// including migrations between transports.
	EventConnected EventType = iota
	// EventPeerLeft fires when the other player drops from the room or
	// the session.
	EventPeerLeft
	// EventFailed is terminal, emitted once reconnects are exhausted.
	EventFailed
)

type Event struct {
	T         EventType
	Transport Transport
	Err       error
}
