//go:build tinygo && avr

package core

// AVR instruction cadence already exceeds the HD44780 setup and hold
// times, so NDelay compiles to nothing there.
const (
	platformStrictTiming = true
	platformSlowMCU      = true
)
