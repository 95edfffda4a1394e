package orchestrator

// State tracks where the client is in the connect sequence. Exactly one
// transport delivers application messages in any state.
type State int

const (
	Idle State = iota
	AwaitingHelloAck
	NegotiatingWebRTC
	ConnectedWebRTC
	FallingBackToRelay
	ConnectedRelay
	Reconnecting
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingHelloAck:
		return "awaiting-hello-ack"
	case NegotiatingWebRTC:
		return "negotiating-webrtc"
	case ConnectedWebRTC:
		return "connected-webrtc"
	case FallingBackToRelay:
		return "falling-back-to-relay"
	case ConnectedRelay:
		return "connected-relay"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	}
	return "unknown"
}
