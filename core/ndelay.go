package core

var (
	// haveStrictTiming selects on-device calibration of bus spacing.
	haveStrictTiming = platformStrictTiming
	// ndelayBypass turns NDelay into a no-op.
	ndelayBypass = platformSlowMCU
)

// NDelay busy-waits at least nsecs nanoseconds on the system timer,
// servicing IRQPoll on every iteration. It never masks interrupts.
func NDelay(nsecs uint32) {
	if ndelayBypass {
		return
	}
	end := GetTime() + TimerFromNS(nsecs)
	for TimerIsBefore(GetTime(), end) {
		IRQPoll()
	}
}

// usDelay busy-waits at least usecs microseconds. Unlike NDelay it is
// never bypassed, since controller settle times are far longer than any
// instruction cadence.
func usDelay(usecs uint32) {
	end := GetTime() + TimerFromUS(usecs)
	for TimerIsBefore(GetTime(), end) {
		IRQPoll()
	}
}
