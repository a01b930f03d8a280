package core

import (
	"errors"
	"testing"

	"gopper-lcd/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	// Register a command
	var called bool
	handler := func(data *[]byte) error {
		called = true
		return nil
	}

	id := registry.Register("test_command", "arg=%u", handler)

	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	// Verify command can be retrieved
	cmd, ok := registry.GetCommand(id)
	if !ok {
		t.Error("Failed to retrieve registered command")
	}

	if cmd.Name != "test_command" {
		t.Errorf("Expected command name 'test_command', got '%s'", cmd.Name)
	}

	// Test dispatch
	var data []byte
	err := registry.Dispatch(id, &data)
	if err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}

	if !called {
		t.Error("Command handler was not called")
	}

	// Test unknown command
	err = registry.Dispatch(999, &data)
	if err == nil {
		t.Error("Expected error for unknown command ID")
	}
}

func TestCommandRegistryMultiple(t *testing.T) {
	registry := NewCommandRegistry()

	id1 := registry.Register("command1", "arg1=%u", func(data *[]byte) error { return nil })
	id2 := registry.Register("command2", "arg2=%u", func(data *[]byte) error { return nil })
	id3 := registry.Register("command3", "arg3=%u", func(data *[]byte) error { return nil })

	if id1 != 0 || id2 != 1 || id3 != 2 {
		t.Errorf("Command IDs not sequential: %d, %d, %d", id1, id2, id3)
	}

	// Verify all commands exist
	for i := uint16(0); i < 3; i++ {
		if _, ok := registry.GetCommand(i); !ok {
			t.Errorf("Command %d not found", i)
		}
	}
}

func TestCommandRegistryDictionary(t *testing.T) {
	registry := NewCommandRegistry()

	registry.Register("get_uptime", "", func(data *[]byte) error { return nil })
	registry.Register("hd44780_send_cmds", "oid=%c cmds=%*s", func(data *[]byte) error { return nil })
	registry.RegisterFlags("clock", "clock=%u", 0, nil)

	want := "get_uptime\nhd44780_send_cmds oid=%c cmds=%*s\nclock clock=%u\n"
	if dict := registry.GetDictionary(); dict != want {
		t.Errorf("dictionary = %q, want %q", dict, want)
	}

	commands, responses := registry.GetCommandsAndResponses()
	if len(commands) != 2 || len(responses) != 1 || responses["clock clock=%u"] != 2 {
		t.Errorf("commands %v responses %v", commands, responses)
	}
}

func TestCommandRegistryDuplicateName(t *testing.T) {
	registry := NewCommandRegistry()
	id1 := registry.Register("dup", "a=%u", func(data *[]byte) error { return nil })
	id2 := registry.Register("dup", "b=%u", func(data *[]byte) error { return nil })
	if id1 != id2 || registry.Count() != 1 {
		t.Errorf("duplicate registration: ids %d %d, count %d", id1, id2, registry.Count())
	}
}

func TestCommandWithArguments(t *testing.T) {
	registry := NewCommandRegistry()

	var receivedValue uint32

	handler := func(data *[]byte) error {
		val, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		receivedValue = val
		return nil
	}

	id := registry.Register("test_args", "value=%u", handler)

	// Create test data
	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 12345)
	data := output.Result()

	err := registry.Dispatch(id, &data)
	if err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}

	if receivedValue != 12345 {
		t.Errorf("Expected value 12345, got %d", receivedValue)
	}
}

func TestGlobalRegistry(t *testing.T) {
	// Test the global registry functions
	RegisterCommand("global_test", "arg=%u", func(data *[]byte) error {
		return nil
	})

	dict := GetGlobalRegistry().GetDictionary()
	if dict == "" {
		t.Error("Global registry dictionary is empty")
	}
}

func TestDispatchCommandErrorShutsDown(t *testing.T) {
	newTestEnv(t)

	failing := errors.New("boom")
	id := RegisterCommand("test_failing", "", func(data *[]byte) error { return failing })

	var data []byte
	if err := DispatchCommand(id, &data); !errors.Is(err, failing) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if !IsShutdown() {
		t.Error("handler error did not shut down")
	}
}

func TestDispatchUnknownCommandShutsDown(t *testing.T) {
	newTestEnv(t)

	var data []byte
	if err := DispatchCommand(0xFFF0, &data); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	if !IsShutdown() {
		t.Error("unknown command did not shut down")
	}
}

func TestDispatchWhileShutdown(t *testing.T) {
	newTestEnv(t)

	var ranPlain, ranAllowed bool
	plain := RegisterCommand("test_plain", "v=%u", func(data *[]byte) error {
		ranPlain = true
		return nil
	})
	allowed := RegisterCommandFlags("test_allowed", "", HFInShutdown, func(data *[]byte) error {
		ranAllowed = true
		return nil
	})

	TryShutdown(ErrEmergencyStop)

	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 99)
	data := output.Result()
	if err := DispatchCommand(plain, &data); err != nil {
		t.Errorf("DispatchCommand(plain): %v", err)
	}
	if ranPlain {
		t.Error("plain command ran while shut down")
	}
	if len(data) != 0 {
		t.Errorf("%d argument bytes left after refused command", len(data))
	}

	var none []byte
	if err := DispatchCommand(allowed, &none); err != nil {
		t.Errorf("DispatchCommand(allowed): %v", err)
	}
	if !ranAllowed {
		t.Error("HFInShutdown command did not run")
	}
}
