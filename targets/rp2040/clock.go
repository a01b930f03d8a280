//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"unsafe"

	"gopper-lcd/core"
)

// Raw (unlatched) reads of the 64-bit 1MHz timer. The offsets are the same
// on both chips; only the peripheral base differs.
const (
	timerRawHOffset = 0x24
	timerRawLOffset = 0x28
)

var (
	timerRawH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerBase + timerRawHOffset)))
	timerRawL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerBase + timerRawLOffset)))
)

// InitClock installs the hardware timer as the core clock and publishes
// the MCU constants.
func InitClock() {
	core.SetTimerFrequency(core.DefaultTimerFreq)
	core.SetClockSource(GetHardwareTime, GetHardwareUptime)

	core.RegisterConstant("MCU", mcuName)
	core.RegisterConstant("CLOCK_FREQ", core.TimerFrequency())
}

// GetHardwareTime returns the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRawL.Get()
}

// GetHardwareUptime reads the full 64-bit counter
func GetHardwareUptime() uint64 {
	// Reread high until it is stable across the low read.
	for {
		high1 := timerRawH.Get()
		low := timerRawL.Get()
		high2 := timerRawH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}
