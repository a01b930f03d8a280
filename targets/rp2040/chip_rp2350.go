//go:build rp2350

package main

const (
	mcuName   = "rp2350"
	timerBase = 0x400B0000 // TIMER0
	gpioCount = 48
)
