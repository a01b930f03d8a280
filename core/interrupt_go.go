//go:build !tinygo

package core

// irqState mirrors runtime/interrupt.State on hosted builds, where there
// are no interrupts to mask.
type irqState uintptr

func disableInterrupts() irqState {
	return 0
}

func restoreInterrupts(irqState) {}
