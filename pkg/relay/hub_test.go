package relay

import (
	"fmt"
	"testing"
	"time"

	"github.com/duelnet/duelnet/pkg/api"
	"github.com/duelnet/duelnet/pkg/com"
	"github.com/duelnet/duelnet/pkg/logger"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeConn struct {
	id        com.Uid
	ip        string
	closed    bool
	closeCode int
	closeText string
	sent      [][]byte
}

func newFakeConn(ip string) *fakeConn { return &fakeConn{id: com.NewUid(), ip: ip} }

func (c *fakeConn) Id() com.Uid      { return c.id }
func (c *fakeConn) IP() string       { return c.ip }
func (c *fakeConn) Send(data []byte) { c.sent = append(c.sent, data) }
func (c *fakeConn) Close()           { c.closed = true }
func (c *fakeConn) IsOpen() bool     { return !c.closed }

func (c *fakeConn) CloseWithReason(code int, reason string) {
	c.closed = true
	c.closeCode = code
	c.closeText = reason
}

func (c *fakeConn) last(t *testing.T) []byte {
	t.Helper()
	if len(c.sent) == 0 {
		t.Fatal("no frames were sent")
	}
	return c.sent[len(c.sent)-1]
}

func lastAs[T any](t *testing.T, c *fakeConn) *T {
	t.Helper()
	v := api.Unwrap[T](c.last(t))
	if v == nil {
		t.Fatalf("cannot decode %s", c.last(t))
	}
	return v
}

func expectError(t *testing.T, c *fakeConn, code api.ErrorCode) {
	t.Helper()
	e := lastAs[api.Error](t, c)
	if e.T != api.ErrorType || e.Code != code {
		t.Fatalf("expected error %v, got %+v", code, e)
	}
}

func testHub() (*Hub, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	h := NewHub(logger.Default())
	h.clock = clock
	return h, clock
}

func claim(h *Hub, c conn, role api.Role, room string) {
	h.handleMessage(c, api.Wrap(api.RoleRequest{T: api.RoleType, Role: role, Room: room}))
}

func pair(t *testing.T, h *Hub) (host, guest *fakeConn) {
	t.Helper()
	host, guest = newFakeConn("10.0.0.1"), newFakeConn("10.0.0.2")
	claim(h, host, api.RoleHost, "QK7N2M")
	claim(h, guest, api.RoleGuest, "QK7N2M")
	return host, guest
}

func TestRoleClaimCreatesSession(t *testing.T) {
	h, _ := testHub()
	host := newFakeConn("10.0.0.1")
	claim(h, host, api.RoleHost, "QK7N2M")

	ack := lastAs[api.RoleAck](t, host)
	if ack.T != api.RoleAckType || ack.Role != api.RoleHost || ack.Room != "QK7N2M" {
		t.Fatalf("bad ack: %+v", ack)
	}
	if len(h.sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(h.sessions))
	}
}

func TestDuplicateRoleReplaces(t *testing.T) {
	h, _ := testHub()
	host, _ := pair(t, h)

	next := newFakeConn("10.0.0.3")
	claim(h, next, api.RoleHost, "QK7N2M")

	if !host.closed || host.closeCode != 1000 || host.closeText != "Replaced by new host" {
		t.Fatalf("old host should be closed normally with a reason, got %d %q", host.closeCode, host.closeText)
	}
	if lastAs[api.RoleAck](t, next).Role != api.RoleHost {
		t.Fatal("new host should be acked")
	}
	if h.sessions["QK7N2M"].host != conn(next) {
		t.Fatal("new socket should hold the host seat")
	}
	if _, ok := h.members[host.Id()]; ok {
		t.Fatal("replaced socket must leave the membership index")
	}
}

func TestFrameForwarding(t *testing.T) {
	h, _ := testHub()
	host, guest := pair(t, h)

	input := api.Wrap(api.NewInput(1, 1700000000123, []byte(`{"keys":["ArrowUp"]}`)))
	h.handleMessage(guest, input)
	if string(host.last(t)) != string(input) {
		t.Fatalf("input should reach the host unmodified, got %s", host.last(t))
	}

	state := api.Wrap(api.NewState(7, 1700000000456, []byte(`{"ball":{"x":3,"y":9}}`)))
	h.handleMessage(host, state)
	if string(guest.last(t)) != string(state) {
		t.Fatalf("state should reach the guest unmodified, got %s", guest.last(t))
	}
}

func TestFrameDirectionEnforced(t *testing.T) {
	h, _ := testHub()
	host, guest := pair(t, h)
	hostSent, guestSent := len(host.sent), len(guest.sent)

	h.handleMessage(host, api.Wrap(api.NewInput(1, 0, []byte(`{}`))))
	h.handleMessage(guest, api.Wrap(api.NewState(1, 0, []byte(`{}`))))

	if len(guest.sent) != guestSent || len(host.sent) != hostSent {
		t.Fatal("misdirected frames are dropped silently, not forwarded or errored")
	}
}

func TestFrameWithoutSession(t *testing.T) {
	h, _ := testHub()
	c := newFakeConn("10.0.0.1")
	h.handleMessage(c, api.Wrap(api.NewInput(1, 0, []byte(`{}`))))
	expectError(t, c, api.ErrNotInSession)
}

func TestFrameToAbsentPeer(t *testing.T) {
	h, _ := testHub()
	guest := newFakeConn("10.0.0.2")
	claim(h, guest, api.RoleGuest, "QK7N2M")
	h.handleMessage(guest, api.Wrap(api.NewInput(1, 0, []byte(`{}`))))
	expectError(t, guest, api.ErrPeerUnavailable)
	if !guest.IsOpen() {
		t.Fatal("an absent peer is not a connection error")
	}
}

func TestOversizeFrameRejected(t *testing.T) {
	h, _ := testHub()
	_, guest := pair(t, h)

	big := make([]byte, api.MaxRelayFrame+1)
	h.handleMessage(guest, big)
	expectError(t, guest, api.ErrMessageTooLarge)
	if !guest.IsOpen() {
		t.Fatal("oversize frames are dropped, not fatal")
	}
}

func TestRateLimit(t *testing.T) {
	h, _ := testHub()
	host, guest := pair(t, h)
	before := len(host.sent)
	// the guest's role claim already counts against its budget
	for i := 0; i < maxFramesPerIP-1; i++ {
		h.handleMessage(guest, api.Wrap(api.NewInput(uint64(i), 0, []byte(`{}`))))
	}
	if got := len(host.sent) - before; got != maxFramesPerIP-1 {
		t.Fatalf("the in-budget frames should all pass, forwarded %d", got)
	}
	h.handleMessage(guest, api.Wrap(api.NewInput(99, 0, []byte(`{}`))))
	expectError(t, guest, api.ErrRateLimited)
	if !guest.IsOpen() {
		t.Fatal("rate violations are dropped, not fatal")
	}
	if got := len(host.sent) - before; got != maxFramesPerIP-1 {
		t.Fatal("the over-budget frame must not be forwarded")
	}
}

func TestRateLimitWindowSlides(t *testing.T) {
	h, clock := testHub()
	host, guest := pair(t, h)
	for i := 0; i < maxFramesPerIP+5; i++ {
		h.handleMessage(guest, api.Wrap(api.NewInput(uint64(i), 0, []byte(`{}`))))
	}
	clock.advance(frameWindow + time.Millisecond)
	before := len(host.sent)
	h.handleMessage(guest, api.Wrap(api.NewInput(100, 0, []byte(`{}`))))
	if len(host.sent) != before+1 {
		t.Fatal("budget should recover after the window slides")
	}
}

func TestPingRefreshesActivity(t *testing.T) {
	h, clock := testHub()
	host, _ := pair(t, h)

	clock.advance(sessionIdleTTL - time.Second)
	h.handleMessage(host, api.Wrap(api.NewPing()))
	if lastAs[api.Pong](t, host).T != api.PongType {
		t.Fatal("ping should be answered with pong")
	}

	clock.advance(sessionIdleTTL - time.Second)
	h.sweep()
	if _, ok := h.sessions["QK7N2M"]; !ok {
		t.Fatal("pinged session should survive the sweep")
	}
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	h, clock := testHub()
	host, guest := pair(t, h)

	clock.advance(sessionIdleTTL + time.Second)
	h.sweep()
	if len(h.sessions) != 0 {
		t.Fatal("idle session should be swept")
	}
	if !host.closed || !guest.closed {
		t.Fatal("occupant sockets close with their swept session")
	}
	if len(h.members) != 0 {
		t.Fatal("membership index should be clean")
	}
}

func TestDisconnectNotifiesPeer(t *testing.T) {
	h, _ := testHub()
	host, guest := pair(t, h)
	h.disconnect(guest)
	n := lastAs[api.PlayerDisconnected](t, host)
	if n.T != api.PlayerDisconnectedType || n.Role != api.RoleGuest {
		t.Fatalf("bad notification: %+v", n)
	}
	if _, ok := h.sessions["QK7N2M"]; !ok {
		t.Fatal("session with a remaining occupant must survive the disconnect")
	}
}

func TestSweepRemovesEmptySessions(t *testing.T) {
	h, _ := testHub()
	host, guest := pair(t, h)
	h.disconnect(host)
	h.disconnect(guest)
	if len(h.sessions) != 1 {
		t.Fatal("session outlives its occupants until the sweep")
	}
	h.sweep()
	if len(h.sessions) != 0 {
		t.Fatal("empty session should be swept")
	}
}

func TestShutdownClosesSockets(t *testing.T) {
	h, _ := testHub()
	host, guest := pair(t, h)
	h.closeAll()
	if !host.closed || !guest.closed {
		t.Fatal("shutdown should close every live socket")
	}
	if len(h.sessions) != 0 || len(h.members) != 0 {
		t.Fatal("shutdown should drain the tables")
	}
}

func TestInvalidRoleClaim(t *testing.T) {
	h, _ := testHub()
	for i, raw := range []string{
		`{"type":"role","room":"QK7N2M"}`,
		`{"type":"role","role":"host"}`,
		`{"type":"role","role":"referee","room":"QK7N2M"}`,
	} {
		c := newFakeConn(fmt.Sprintf("10.0.9.%d", i))
		h.handleMessage(c, []byte(raw))
		e := lastAs[api.Error](t, c)
		if e.Code != api.ErrInvalidRoleMessage && e.Code != api.ErrInvalidRole {
			t.Fatalf("claim %q should be rejected, got %+v", raw, e)
		}
		if len(h.sessions) != 0 {
			t.Fatalf("claim %q must not create a session", raw)
		}
	}
}
