package api

import (
	"errors"
	"testing"
)

func TestPeekType(t *testing.T) {
	tests := []struct {
		name string
		data string
		t    Type
		err  bool
	}{
		{name: "hello", data: `{"type":"hello","role":"host"}`, t: HelloType},
		{name: "unknown kept", data: `{"type":"wat"}`, t: Type("wat")},
		{name: "no type", data: `{"role":"host"}`, err: true},
		{name: "not json", data: `hello`, err: true},
		{name: "empty", data: ``, err: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			typ, err := PeekType([]byte(tc.data))
			if tc.err {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("expected malformed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if typ != tc.t {
				t.Fatalf("expected %q, got %q", tc.t, typ)
			}
		})
	}
}

func TestHelloValidate(t *testing.T) {
	tests := []struct {
		name string
		in   Hello
		code ErrorCode
	}{
		{name: "host ok", in: Hello{T: HelloType, Role: RoleHost}},
		{name: "guest with room ok", in: Hello{T: HelloType, Role: RoleGuest, Room: "ABC234"}},
		{name: "bad role", in: Hello{T: HelloType, Role: "spectator"}, code: ErrInvalidRole},
		{name: "guest no room", in: Hello{T: HelloType, Role: RoleGuest}, code: ErrRoomCodeRequired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %+v", err)
				}
				return
			}
			if err == nil || err.Code != tc.code {
				t.Fatalf("expected %v, got %+v", tc.code, err)
			}
		})
	}
}

func TestRoleRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		in   RoleRequest
		code ErrorCode
	}{
		{name: "ok", in: RoleRequest{T: RoleType, Role: RoleGuest, Room: "ABC234"}},
		{name: "no room", in: RoleRequest{T: RoleType, Role: RoleHost}, code: ErrInvalidRoleMessage},
		{name: "no role", in: RoleRequest{T: RoleType, Room: "ABC234"}, code: ErrInvalidRoleMessage},
		{name: "bad role", in: RoleRequest{T: RoleType, Role: "referee", Room: "ABC234"}, code: ErrInvalidRole},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %+v", err)
				}
				return
			}
			if err == nil || err.Code != tc.code {
				t.Fatalf("expected %v, got %+v", tc.code, err)
			}
		})
	}
}

func TestUnwrapRoundTrip(t *testing.T) {
	raw := Wrap(NewInput(7, 1234, []byte(`{"up":true}`)))
	f := Unwrap[Frame](raw)
	if f == nil {
		t.Fatal("frame should decode")
	}
	if f.T != InputType || f.Seq != 7 || f.Ts != 1234 || string(f.Payload) != `{"up":true}` {
		t.Fatalf("frame mangled: %+v", f)
	}
	if Unwrap[Frame]([]byte(`{{`)) != nil {
		t.Fatal("broken json should not decode")
	}
}

func TestSignalPayloadOpaque(t *testing.T) {
	payload := `{"sdp":{"type":"offer","sdp":"v=0..."}}`
	raw := Wrap(NewSignal([]byte(payload)))
	s := Unwrap[Signal](raw)
	if s == nil || string(s.Payload) != payload {
		t.Fatalf("signal payload should survive verbatim, got %+v", s)
	}
}

func TestRoleOpposite(t *testing.T) {
	if RoleHost.Opposite() != RoleGuest || RoleGuest.Opposite() != RoleHost {
		t.Fatal("opposite roles broken")
	}
}
