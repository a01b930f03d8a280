package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures an event for post-mortem analysis
type TimingEvent struct {
	EventType uint8
	OID       uint8
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtLCDConfig    = 1 // config_hd44780: v1=delay_ticks v2=init duration
	EvtLCDCalibrate = 2 // calibration: v1=measured ticks v2=cmd_wait_ticks
	EvtLCDXmit      = 3 // send_cmds/send_data: v1=byte count v2=is_cmd
	EvtShutdown     = 4 // v1=static_string_id
)

const TimingRingSize = 32

var (
	// debugPrintln is set by platform code; no-op by default
	debugPrintln DebugWriter = func(s string) {}

	// Disabled by default; timing-sensitive paths must not block on output.
	debugEnabled bool = false

	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8 // Next write position
	timingEnabled  bool  = true
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordTiming captures an event in the ring buffer. It never blocks.
func RecordTiming(eventType, oid uint8, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		OID:       oid,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// TimingEvents returns the recorded events, oldest first.
func TimingEvents() []TimingEvent {
	var events []TimingEvent
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(timingRingHead+i)%TimingRingSize]
		if evt.EventType != 0 {
			events = append(events, evt)
		}
	}
	return events
}

func eventName(t uint8) string {
	switch t {
	case EvtLCDConfig:
		return "LCD_CONFIG"
	case EvtLCDCalibrate:
		return "LCD_CALIBRATE"
	case EvtLCDXmit:
		return "LCD_XMIT"
	case EvtShutdown:
		return "SHUTDOWN"
	}
	return "UNKNOWN"
}

// DumpTimingRing writes the ring through the debug writer. Called on
// shutdown.
func DumpTimingRing() {
	if !debugEnabled || debugPrintln == nil {
		return
	}
	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + eventName(evt.EventType) +
			" oid=" + itoa(int(evt.OID)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}
