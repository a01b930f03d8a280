package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"gopper-lcd/protocol"
)

func dispatchByName(t *testing.T, name string, args ...uint32) error {
	t.Helper()
	cmd, ok := GetGlobalRegistry().GetCommandByName(name)
	if !ok {
		t.Fatalf("%s not registered", name)
	}
	output := protocol.NewScratchOutput()
	for _, a := range args {
		protocol.EncodeVLQUint(output, a)
	}
	data := append([]byte(nil), output.Result()...)
	return DispatchCommand(cmd.ID, &data)
}

func TestIdentifyCommandsFirst(t *testing.T) {
	newTestEnv(t)
	InitCoreCommands()

	// The host's bootstrap dictionary hard codes these two ids.
	resp, _ := GetGlobalRegistry().GetCommandByName("identify_response")
	ident, _ := GetGlobalRegistry().GetCommandByName("identify")
	if resp.ID != 0 || ident.ID != 1 {
		t.Errorf("identify_response=%d identify=%d, want 0 and 1", resp.ID, ident.ID)
	}
}

func TestGetClockAndConfig(t *testing.T) {
	env := newTestEnv(t)
	out := captureResponses(t)
	env.clock.set(123456)

	if err := dispatchByName(t, "get_clock"); err != nil {
		t.Fatal(err)
	}
	if err := dispatchByName(t, "allocate_oids", 3); err != nil {
		t.Fatal(err)
	}
	if err := dispatchByName(t, "get_config"); err != nil {
		t.Fatal(err)
	}
	if err := dispatchByName(t, "finalize_config", 0xBEEF); err != nil {
		t.Fatal(err)
	}
	if err := dispatchByName(t, "get_config"); err != nil {
		t.Fatal(err)
	}

	want := []response{
		{"clock", []uint32{123456}},
		{"config", []uint32{0, 0, 0, 16}},
		{"config", []uint32{1, 0xBEEF, 0, 16}},
	}
	if diff := cmp.Diff(want, decodeResponses(t, out.Result())); diff != "" {
		t.Errorf("responses (-want +got):\n%s", diff)
	}
}

func TestGetUptime(t *testing.T) {
	newTestEnv(t)
	out := captureResponses(t)
	SetClockSource(func() uint32 { return 7 }, func() uint64 { return 3<<32 | 7 })

	if err := dispatchByName(t, "get_uptime"); err != nil {
		t.Fatal(err)
	}
	want := []response{{"uptime", []uint32{3, 7}}}
	if diff := cmp.Diff(want, decodeResponses(t, out.Result())); diff != "" {
		t.Errorf("responses (-want +got):\n%s", diff)
	}
}

func TestIdentifyReturnsDictionaryChunks(t *testing.T) {
	newTestEnv(t)
	out := captureResponses(t)
	GetGlobalDictionary().BuildDictionary()
	full := GetGlobalDictionary().Generate()

	cmd, _ := GetGlobalRegistry().GetCommandByName("identify")
	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 0)
	protocol.EncodeVLQUint(output, 40)
	data := append([]byte(nil), output.Result()...)
	if err := DispatchCommand(cmd.ID, &data); err != nil {
		t.Fatal(err)
	}

	frame := out.Result()
	payload := frame[protocol.MessageHeaderSize : len(frame)-protocol.MessageTrailerSize]
	id, _ := protocol.DecodeVLQUint(&payload)
	offset, _ := protocol.DecodeVLQUint(&payload)
	chunk, err := protocol.DecodeVLQBytes(&payload)
	if err != nil {
		t.Fatal(err)
	}
	if id != 0 || offset != 0 {
		t.Errorf("id %d offset %d", id, offset)
	}
	if diff := cmp.Diff(full[:40], chunk); diff != "" {
		t.Errorf("chunk (-want +got):\n%s", diff)
	}
}

func TestConfigResetOnlyWhenShutdown(t *testing.T) {
	env := newTestEnv(t)
	ndelayBypass = true
	captureResponses(t)
	InitHD44780Commands()

	mustConfig(t, lcd0)
	if err := dispatchByName(t, "finalize_config", 1); err != nil {
		t.Fatal(err)
	}

	// Outside shutdown config_reset is itself fatal.
	err := dispatchByName(t, "config_reset")
	if err != ErrConfigResetNotAllowed {
		t.Fatalf("expected ErrConfigResetNotAllowed, got %v", err)
	}
	if !IsShutdown() {
		t.Fatal("rejected config_reset did not shut down")
	}
	if env.gpio.levels[lcd0.EPin] {
		t.Error("shutdown left E high")
	}

	if err := dispatchByName(t, "config_reset"); err != nil {
		t.Fatalf("config_reset while shut down: %v", err)
	}
	if IsShutdown() {
		t.Error("config_reset did not clear shutdown")
	}
	if _, err := LookupHD44780(lcd0.OID); err == nil {
		t.Error("display survived config_reset")
	}

	// Same pins and oid can be configured again.
	if err := dispatchByName(t, "allocate_oids", 2); err != nil {
		t.Fatal(err)
	}
	mustConfig(t, lcd0)
}

func TestEmergencyStop(t *testing.T) {
	newTestEnv(t)
	out := captureResponses(t)

	if err := dispatchByName(t, "emergency_stop"); err != nil {
		t.Fatal(err)
	}
	if !IsShutdown() {
		t.Fatal("emergency_stop did not shut down")
	}
	got := decodeResponses(t, out.Result())
	if len(got) != 1 || got[0].Name != "shutdown" || got[0].Args[1] != uint32(StaticStringID("Command request")) {
		t.Errorf("responses %+v", got)
	}
}

func TestResetDeferredToMainLoop(t *testing.T) {
	newTestEnv(t)
	InitCoreCommands()

	resets := 0
	SetResetHandler(func() { resets++ })
	t.Cleanup(func() {
		SetResetHandler(nil)
		resetPending = 0
	})

	CheckPendingReset()
	if err := dispatchByName(t, "reset"); err != nil {
		t.Fatal(err)
	}
	if resets != 0 {
		t.Fatal("reset ran inside the command handler")
	}
	CheckPendingReset()
	if resets != 1 {
		t.Errorf("reset handler ran %d times", resets)
	}
}
