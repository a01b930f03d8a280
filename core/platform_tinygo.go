//go:build tinygo && !avr

package core

const (
	platformStrictTiming = true
	platformSlowMCU      = false
)
