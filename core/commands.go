package core

import (
	"sync/atomic"

	"gopper-lcd/protocol"
)

// FirmwareState holds the global firmware state
type FirmwareState struct {
	configCRC      uint32 // atomic
	isShutdown     uint32 // atomic bool
	shutdownReason uint32 // atomic static_string_id
	moveCount      uint16
}

var globalState = &FirmwareState{
	moveCount: 16, // Klipper's minimum command queue size
}

// InitCoreCommands registers all core protocol commands.
// identify_response and identify must stay ids 0 and 1: the host
// bootstraps with a hard-coded dictionary holding just those two.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")
	RegisterCommandFlags("identify", "offset=%u count=%c", HFInShutdown, handleIdentify)

	RegisterCommandFlags("get_uptime", "", HFInShutdown, handleGetUptime)
	RegisterCommandFlags("get_clock", "", HFInShutdown, handleGetClock)
	RegisterCommandFlags("get_config", "", HFInShutdown, handleGetConfig)
	RegisterCommandFlags("config_reset", "", HFInShutdown, handleConfigReset)
	RegisterCommand("finalize_config", "crc=%u", handleFinalizeConfig)
	RegisterCommand("allocate_oids", "count=%c", handleAllocateOids)
	RegisterCommandFlags("emergency_stop", "", HFInShutdown, handleEmergencyStop)
	RegisterCommandFlags("reset", "", HFInShutdown, handleReset)

	RegisterResponse("clock", "clock=%u")
	RegisterResponse("uptime", "high=%u clock=%u")
	RegisterResponse("config", "is_config=%c crc=%u is_shutdown=%c move_count=%hu")
	RegisterResponse("shutdown", "clock=%u static_string_id=%hu")
	RegisterResponse("is_shutdown", "static_string_id=%hu")

	RegisterConstant("STATS_SUMSQ_BASE", uint32(256))
	RegisterEnumeration("static_string_id", staticStrings)
}

// handleIdentify returns chunks of the data dictionary
func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQByte(data)
	if err != nil {
		return err
	}

	chunk := GetGlobalDictionary().GetChunk(offset, count)
	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func handleGetUptime(data *[]byte) error {
	uptime := GetUptime()
	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(uptime>>32))
		protocol.EncodeVLQUint(output, uint32(uptime))
	})
	return nil
}

func handleGetClock(data *[]byte) error {
	clock := GetTime()
	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
	})
	return nil
}

func handleGetConfig(data *[]byte) error {
	crc := atomic.LoadUint32(&globalState.configCRC)
	SendResponse("config", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, boolToUint(crc != 0))
		protocol.EncodeVLQUint(output, crc)
		protocol.EncodeVLQUint(output, boolToUint(IsShutdown()))
		protocol.EncodeVLQUint(output, uint32(globalState.moveCount))
	})
	return nil
}

// handleConfigReset discards every configured object. Only valid after a
// shutdown, when no object can be mid-operation.
func handleConfigReset(data *[]byte) error {
	if !IsShutdown() {
		return ErrConfigResetNotAllowed
	}
	ResetFirmwareState()
	return nil
}

func handleFinalizeConfig(data *[]byte) error {
	crc, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	oids.Finalize()
	atomic.StoreUint32(&globalState.configCRC, crc)
	return nil
}

func handleAllocateOids(data *[]byte) error {
	count, err := protocol.DecodeVLQByte(data)
	if err != nil {
		return err
	}
	oids.Allocate(count)
	return nil
}

func handleEmergencyStop(data *[]byte) error {
	TryShutdown(ErrEmergencyStop)
	return nil
}

// ResetFirmwareState returns the firmware to its unconfigured power-on
// state. Targets also call it when the host link reconnects.
func ResetFirmwareState() {
	oids.Reset()
	releasePins()
	atomic.StoreUint32(&globalState.configCRC, 0)
	atomic.StoreUint32(&globalState.shutdownReason, 0)
	atomic.StoreUint32(&globalState.isShutdown, 0)
}

func boolToUint(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Global transport for sending responses (set by main)
var globalTransport *protocol.Transport

// SetGlobalTransport sets the global transport for sending responses
func SetGlobalTransport(transport *protocol.Transport) {
	globalTransport = transport
}

// SendResponse encodes a registered response on the global transport.
// Without a transport (tests, early boot) the response is dropped.
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		panic("Response not registered: " + responseName)
	}
	globalTransport.SendCommand(cmd.ID, args)
}

// Global reset handler (set by target-specific code)
var globalResetHandler func()

// resetPending is set by the reset command; the main loop performs the
// reset once the ack is on the wire.
var resetPending uint32 // atomic bool

// SetResetHandler sets the platform-specific reset handler
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

func handleReset(_ *[]byte) error {
	atomic.StoreUint32(&resetPending, 1)
	return nil
}

// CheckPendingReset runs the reset handler if a reset was requested.
// Call it from the main loop after pending output has been flushed.
func CheckPendingReset() {
	if atomic.LoadUint32(&resetPending) != 0 && globalResetHandler != nil {
		globalResetHandler()
	}
}
