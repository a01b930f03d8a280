package core

import (
	"errors"

	"gopper-lcd/protocol"
)

// HD44780 character LCD on an 8-bit parallel bus.

const oidTypeHD44780 OIDType = "hd44780"

// Rails settle before the first pin write, in microseconds.
const hd44780PowerOnDelay = 50000

// Bus timing, in nanoseconds.
const (
	hd44780GuardDelay = 320000 // before changing RS
	hd44780SetupDelay = 5000   // RS and data setup, E pulse width, hold
)

// Entry mode: increment, no shift. Resent during calibration since it has
// no visible effect.
const hd44780EntryMode = 0x06

// hd44780InitScript is the power-on sequence for 8-bit mode, each command
// followed by its settle time in microseconds.
var hd44780InitScript = []struct {
	cmd     byte
	delayUS uint32
}{
	{0x38, 4500}, // function set: 8-bit, 2 lines, 5x8
	{0x38, 150},
	{0x38, 150}, // third time recovers a controller left mid-transfer
	{0x0C, 50},  // display on, cursor and blink off
	{0x01, 2000},
	{hd44780EntryMode, 50},
}

var errHD44780Type = errors.New("oid is not an hd44780")

// HD44780 is one configured display.
type HD44780 struct {
	OID uint8

	// LastCmdTime is the clock at which the last byte finished.
	LastCmdTime uint32
	// CmdWaitTicks is the minimum spacing between bytes. Fixed at config.
	CmdWaitTicks uint32

	RS   GPIOOut
	E    GPIOOut
	Data [8]GPIOOut // Data[k] carries bit k
}

// hd44780XmitBits clocks one byte onto the bus. RS is low for commands.
func hd44780XmitBits(data byte, isCmd bool, rs, e GPIOOut, d *[8]GPIOOut) {
	NDelay(hd44780GuardDelay)
	rs.Write(!isCmd)
	NDelay(hd44780SetupDelay)
	for k := range d {
		d[k].Write((data>>uint(k))&1 == 1)
	}
	e.Write(true)
	NDelay(hd44780SetupDelay)
	e.Write(false)
	NDelay(hd44780SetupDelay)
}

func (h *HD44780) xmitByte(b byte, isCmd bool) {
	hd44780XmitBits(b, isCmd, h.RS, h.E, &h.Data)
}

// xmit sends buf in order, keeping at least CmdWaitTicks between bytes.
func (h *HD44780) xmit(buf []byte, isCmd bool) {
	last := h.LastCmdTime
	wait := h.CmdWaitTicks
	for _, b := range buf {
		for GetTime()-last < wait {
			IRQPoll()
		}
		h.xmitByte(b, isCmd)
		last = GetTime()
	}
	h.LastCmdTime = last
}

// initDisplay runs the power-on script, bypassing the byte spacing.
func (h *HD44780) initDisplay() {
	for _, step := range hd44780InitScript {
		h.xmitByte(step.cmd, true)
		usDelay(step.delayUS)
	}
}

// measureXmit returns the ticks one byte takes to send with interrupts
// masked.
func (h *HD44780) measureXmit() uint32 {
	irq := IRQDisable()
	defer IRQRestore(irq)

	start := GetTime()
	h.xmitByte(hd44780EntryMode, true)
	return GetTime() - start
}

// calibrate sets CmdWaitTicks to what remains of target once the cost of
// a transmit itself is paid.
func (h *HD44780) calibrate(target uint32) uint32 {
	diff := h.measureXmit()
	h.CmdWaitTicks = 0
	if target > diff {
		h.CmdWaitTicks = target - diff
	}
	return diff
}

// HD44780Config carries the decoded config_hd44780 arguments.
type HD44780Config struct {
	OID        uint8
	RSPin      GPIOPin
	EPin       GPIOPin
	DataPins   [8]GPIOPin
	DelayTicks uint32
}

// ConfigHD44780 allocates and initializes a display. An oid that cannot be
// assigned is rejected before any pin is touched.
func ConfigHD44780(cfg HD44780Config) (*HD44780, error) {
	h := &HD44780{OID: cfg.OID}
	if err := oids.Alloc(cfg.OID, oidTypeHD44780, h); err != nil {
		return nil, err
	}
	start := GetTime()

	usDelay(hd44780PowerOnDelay)

	var err error
	for k, pin := range cfg.DataPins {
		if h.Data[k], err = GPIOOutSetup(pin, false); err != nil {
			return nil, err
		}
	}
	if h.RS, err = GPIOOutSetup(cfg.RSPin, false); err != nil {
		return nil, err
	}
	if h.E, err = GPIOOutSetup(cfg.EPin, false); err != nil {
		return nil, err
	}

	h.initDisplay()

	if !haveStrictTiming {
		h.CmdWaitTicks = cfg.DelayTicks
	} else {
		diff := h.calibrate(cfg.DelayTicks)
		RecordTiming(EvtLCDCalibrate, h.OID, GetTime(), diff, h.CmdWaitTicks)
		DebugPrintln("[hd44780] oid=" + itoa(int(h.OID)) +
			" xmit=" + utoa(diff) + " wait=" + utoa(h.CmdWaitTicks))
	}

	h.LastCmdTime = GetTime()
	RecordTiming(EvtLCDConfig, h.OID, h.LastCmdTime, cfg.DelayTicks, h.LastCmdTime-start)
	return h, nil
}

// LookupHD44780 returns the display configured under oid.
func LookupHD44780(oid uint8) (*HD44780, error) {
	obj, err := oids.Lookup(oid, oidTypeHD44780)
	if err != nil {
		return nil, err
	}
	h, ok := obj.(*HD44780)
	if !ok {
		return nil, &OIDError{OID: oid, Err: errHD44780Type}
	}
	return h, nil
}

// Send transmits cmds (isCmd) or character data.
func (h *HD44780) Send(buf []byte, isCmd bool) {
	h.xmit(buf, isCmd)
	RecordTiming(EvtLCDXmit, h.OID, h.LastCmdTime, uint32(len(buf)), boolToUint(isCmd))
}

// Idle drives every line low.
func (h *HD44780) Idle() {
	h.RS.Write(false)
	h.E.Write(false)
	for k := range h.Data {
		h.Data[k].Write(false)
	}
}

// ShutdownAllHD44780 idles the bus of every configured display.
func ShutdownAllHD44780() {
	oids.Foreach(oidTypeHD44780, func(_ uint8, obj interface{}) {
		if h, ok := obj.(*HD44780); ok {
			h.Idle()
		}
	})
}

// InitHD44780Commands registers the display commands and the shutdown hook.
func InitHD44780Commands() {
	RegisterCommand("config_hd44780",
		"oid=%c rs_pin=%u e_pin=%u d0_pin=%u d1_pin=%u d2_pin=%u d3_pin=%u"+
			" d4_pin=%u d5_pin=%u d6_pin=%u d7_pin=%u delay_ticks=%u",
		handleConfigHD44780)
	RegisterCommand("hd44780_send_cmds", "oid=%c cmds=%*s", handleHD44780SendCmds)
	RegisterCommand("hd44780_send_data", "oid=%c data=%*s", handleHD44780SendData)
	RegisterShutdown("hd44780", ShutdownAllHD44780)
}

func handleConfigHD44780(data *[]byte) error {
	var cfg HD44780Config
	oid, err := protocol.DecodeVLQByte(data)
	if err != nil {
		return err
	}
	cfg.OID = oid

	// rs, e, d0..d7, delay_ticks
	var args [11]uint32
	for i := range args {
		if args[i], err = protocol.DecodeVLQUint(data); err != nil {
			return err
		}
	}
	cfg.RSPin = GPIOPin(args[0])
	cfg.EPin = GPIOPin(args[1])
	for k := range cfg.DataPins {
		cfg.DataPins[k] = GPIOPin(args[2+k])
	}
	cfg.DelayTicks = args[10]

	_, err = ConfigHD44780(cfg)
	return err
}

func handleHD44780Send(data *[]byte, isCmd bool) error {
	oid, err := protocol.DecodeVLQByte(data)
	if err != nil {
		return err
	}
	buf, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}
	h, err := LookupHD44780(oid)
	if err != nil {
		return err
	}
	h.Send(buf, isCmd)
	return nil
}

func handleHD44780SendCmds(data *[]byte) error {
	return handleHD44780Send(data, true)
}

func handleHD44780SendData(data *[]byte) error {
	return handleHD44780Send(data, false)
}
