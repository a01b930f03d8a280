package core

import "sync/atomic"

// DefaultTimerFreq is the tick rate of the RP2040/RP2350 microsecond timer.
const DefaultTimerFreq = 1000000

var (
	timerFreq uint32 = DefaultTimerFreq

	// systemTicks backs GetTime on targets that push the time in with
	// SetTime instead of installing a clock source.
	systemTicks uint32

	clockSource  func() uint32
	uptimeSource func() uint64
)

// SetTimerFrequency sets the tick rate used by the TimerFrom* conversions.
func SetTimerFrequency(hz uint32) {
	timerFreq = hz
}

// TimerFrequency returns the tick rate reported as CLOCK_FREQ.
func TimerFrequency() uint32 {
	return timerFreq
}

// SetClockSource installs the free-running counter GetTime reads. uptime
// may be nil when the counter is only 32 bits wide.
func SetClockSource(now func() uint32, uptime func() uint64) {
	clockSource = now
	uptimeSource = uptime
}

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	if clockSource != nil {
		return clockSource()
	}
	return atomic.LoadUint32(&systemTicks)
}

// SetTime sets the current system time (for targets without a clock source)
func SetTime(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

// GetUptime returns 64-bit uptime in timer ticks
func GetUptime() uint64 {
	if uptimeSource != nil {
		return uptimeSource()
	}
	return uint64(GetTime())
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * uint64(timerFreq) / 1000000)
}

// TimerFromNS converts nanoseconds to timer ticks, rounding down
func TimerFromNS(ns uint32) uint32 {
	return uint32(uint64(ns) * uint64(timerFreq) / 1000000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / uint64(timerFreq))
}

// TimerIsBefore reports whether tick a comes before tick b, allowing for
// 32-bit wraparound.
func TimerIsBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
