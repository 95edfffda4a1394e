package orchestrator

// HostAuthority is the extension point for host-side authoritative
// logic. The host's simulation owns the truth; implementations can veto
// or rewrite guest inputs and adjust outgoing snapshots before they hit
// the wire.
type HostAuthority interface {
	// ReviewInput inspects a guest input payload. Returning false drops it.
	ReviewInput(payload []byte) bool
	// AmendState may rewrite an outgoing state snapshot payload.
	AmendState(payload []byte) []byte
}

// NopAuthority accepts every input and leaves snapshots untouched.
type NopAuthority struct{}

func (NopAuthority) ReviewInput([]byte) bool    { return true }
func (NopAuthority) AmendState(p []byte) []byte { return p }
