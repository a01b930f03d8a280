package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gopper-lcd/protocol"
)

type response struct {
	Name string
	Args []uint32
}

// captureResponses routes SendResponse into a scratch buffer.
func captureResponses(t *testing.T) *protocol.ScratchOutput {
	t.Helper()
	InitCoreCommands()
	out := protocol.NewScratchOutput()
	SetGlobalTransport(protocol.NewTransport(out, nil))
	return out
}

// decodeResponses splits out into frames and decodes each message's
// integer arguments.
func decodeResponses(t *testing.T, out []byte) []response {
	t.Helper()
	var got []response
	for len(out) > 0 {
		n := int(out[protocol.MessagePositionLen])
		if n < protocol.MessageLengthMin || n > len(out) {
			t.Fatalf("bad frame length %d", n)
		}
		payload := out[protocol.MessageHeaderSize : n-protocol.MessageTrailerSize]
		out = out[n:]
		if len(payload) == 0 {
			continue // ack
		}
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			t.Fatalf("decode id: %v", err)
		}
		cmd, ok := GetGlobalRegistry().GetCommand(uint16(id))
		if !ok {
			t.Fatalf("unknown response id %d", id)
		}
		r := response{Name: cmd.Name}
		for len(payload) > 0 {
			v, err := protocol.DecodeVLQUint(&payload)
			if err != nil {
				t.Fatalf("decode %s: %v", cmd.Name, err)
			}
			r.Args = append(r.Args, v)
		}
		got = append(got, r)
	}
	return got
}

func TestShutdownReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrEmergencyStop, "Command request"},
		{&OIDError{OID: 1, Err: ErrOIDInUse, alloc: true}, "Can't assign oid"},
		{&OIDError{OID: 9, Err: ErrOIDRange, alloc: true}, "Can't assign oid"},
		{&OIDError{OID: 9, Err: ErrOIDRange}, "Invalid oid type"},
		{&OIDError{OID: 1, Err: ErrOIDType}, "Invalid oid type"},
		{&PinError{Pin: 4, Err: ErrPinInUse}, "Pin already in use"},
		{ErrUnknownCommand, "Invalid command"},
		{protocol.ErrInvalidVLQ, "Command parser error"},
		{protocol.ErrBufferTooSmall, "Command parser error"},
		{ErrConfigResetNotAllowed, "config_reset only available when shutdown"},
		{errors.New("something else"), "Unknown reason"},
		{nil, "Unknown reason"},
	}
	for _, tt := range tests {
		if got := ShutdownReason(tt.err); got != tt.want {
			t.Errorf("ShutdownReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestStaticStringIDs(t *testing.T) {
	for i, s := range staticStrings {
		if got := StaticStringID(s); got != uint16(i) {
			t.Errorf("StaticStringID(%q) = %d, want %d", s, got, i)
		}
	}
	if StaticStringID("not a reason") != 0 {
		t.Error("unknown reason should map to 0")
	}
}

func TestTryShutdownReportsOnce(t *testing.T) {
	env := newTestEnv(t)
	out := captureResponses(t)

	var calls []string
	RegisterShutdown("test_a", func() { calls = append(calls, "a") })
	RegisterShutdown("test_panics", func() { panic("hook failure") })
	RegisterShutdown("test_b", func() { calls = append(calls, "b") })
	t.Cleanup(func() {
		// Registered hooks persist; make them inert for later tests.
		RegisterShutdown("test_a", func() {})
		RegisterShutdown("test_panics", func() {})
		RegisterShutdown("test_b", func() {})
	})

	env.clock.set(5555)
	TryShutdown(ErrEmergencyStop)
	TryShutdown(ErrUnknownCommand)

	if diff := cmp.Diff([]string{"a", "b"}, calls); diff != "" {
		t.Errorf("hooks (-want +got):\n%s", diff)
	}
	want := []response{{"shutdown", []uint32{5555, uint32(StaticStringID("Command request"))}}}
	if diff := cmp.Diff(want, decodeResponses(t, out.Result())); diff != "" {
		t.Errorf("responses (-want +got):\n%s", diff)
	}

	found := false
	for _, evt := range TimingEvents() {
		if evt.EventType == EvtShutdown && evt.Clock == 5555 {
			found = true
		}
	}
	if !found {
		t.Error("shutdown not recorded in timing ring")
	}
}

func TestIsShutdownResponse(t *testing.T) {
	newTestEnv(t)
	out := captureResponses(t)

	TryShutdown(&PinError{Pin: 2, Err: ErrPinInUse})
	out.Reset()

	cmd, _ := GetGlobalRegistry().GetCommandByName("allocate_oids")
	data := []byte{4}
	if err := DispatchCommand(cmd.ID, &data); err != nil {
		t.Fatalf("DispatchCommand: %v", err)
	}
	want := []response{{"is_shutdown", []uint32{uint32(StaticStringID("Pin already in use"))}}}
	if diff := cmp.Diff(want, decodeResponses(t, out.Result())); diff != "" {
		t.Errorf("responses (-want +got):\n%s", diff)
	}
}
