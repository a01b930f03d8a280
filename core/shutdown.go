package core

import (
	"errors"
	"sync/atomic"

	"gopper-lcd/protocol"
)

var (
	ErrEmergencyStop         = errors.New("emergency stop requested")
	ErrConfigResetNotAllowed = errors.New("config_reset only available when shutdown")
)

// staticStrings are the shutdown reasons reported to the host by index,
// published as the static_string_id enumeration.
var staticStrings = []string{
	"Unknown reason",
	"Command request",
	"Can't assign oid",
	"Invalid oid type",
	"Pin already in use",
	"Invalid command",
	"Command parser error",
	"config_reset only available when shutdown",
}

// shutdownReasons maps fatal errors onto staticStrings. The first match
// wins, so more specific errors come first.
var shutdownReasons = []struct {
	err    error
	reason string
}{
	{ErrEmergencyStop, "Command request"},
	{ErrOIDInUse, "Can't assign oid"},
	{ErrConfigFinalized, "Can't assign oid"},
	{ErrOIDType, "Invalid oid type"},
	{ErrPinInUse, "Pin already in use"},
	{ErrUnknownCommand, "Invalid command"},
	{protocol.ErrBufferTooSmall, "Command parser error"},
	{protocol.ErrInvalidVLQ, "Command parser error"},
	{ErrConfigResetNotAllowed, "config_reset only available when shutdown"},
}

type shutdownHook struct {
	name string
	fn   func()
}

var shutdownHooks []shutdownHook

// RegisterShutdown adds fn to the hooks run on every shutdown. A second
// registration under the same name replaces the first.
func RegisterShutdown(name string, fn func()) {
	for i := range shutdownHooks {
		if shutdownHooks[i].name == name {
			shutdownHooks[i].fn = fn
			return
		}
	}
	shutdownHooks = append(shutdownHooks, shutdownHook{name: name, fn: fn})
}

// StaticStringID returns the static_string_id of reason.
func StaticStringID(reason string) uint16 {
	for i, s := range staticStrings {
		if s == reason {
			return uint16(i)
		}
	}
	return 0
}

// ShutdownReason returns the static string reported for err.
func ShutdownReason(err error) string {
	// An out of range oid is reported like Klipper: on allocation as an
	// assignment failure, on lookup as a type mismatch.
	var oerr *OIDError
	if errors.As(err, &oerr) && errors.Is(oerr.Err, ErrOIDRange) {
		if oerr.alloc {
			return "Can't assign oid"
		}
		return "Invalid oid type"
	}
	for _, r := range shutdownReasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return staticStrings[0]
}

// TryShutdown moves the firmware into the shutdown state: every shutdown
// hook runs, the reason is logged and reported to the host. Further calls
// while already shut down do nothing.
func TryShutdown(err error) {
	if !atomic.CompareAndSwapUint32(&globalState.isShutdown, 0, 1) {
		return
	}
	reason := ShutdownReason(err)
	id := StaticStringID(reason)
	atomic.StoreUint32(&globalState.shutdownReason, uint32(id))

	now := GetTime()
	RecordTiming(EvtShutdown, 0, now, uint32(id), 0)
	if err != nil {
		DebugPrintln("[shutdown] " + reason + " (" + err.Error() + ")")
	}
	runShutdownHooks()
	DumpTimingRing()

	SendResponse("shutdown", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, now)
		protocol.EncodeVLQUint(output, uint32(id))
	})
}

// runShutdownHooks runs every hook; a panicking hook does not stop the
// others.
func runShutdownHooks() {
	for _, h := range shutdownHooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					DebugPrintln("[shutdown] hook " + h.name + " panicked")
				}
			}()
			h.fn()
		}()
	}
}

func sendIsShutdown() {
	id := atomic.LoadUint32(&globalState.shutdownReason)
	SendResponse("is_shutdown", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, id)
	})
}

// IsShutdown returns true if the firmware is in shutdown state
func IsShutdown() bool {
	return atomic.LoadUint32(&globalState.isShutdown) != 0
}
