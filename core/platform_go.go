//go:build !tinygo

package core

// Hosted builds run as an ordinary process: transmit latency is not
// reproducible enough to calibrate, and the CPU is far faster than any
// bus delay.
const (
	platformStrictTiming = false
	platformSlowMCU      = false
)
