package core

// IRQState is the saved interrupt mask returned by IRQDisable.
type IRQState struct {
	state irqState
}

var (
	// irqDepth counts nested IRQDisable sections.
	irqDepth int
	pollHook func()
)

// SetIRQPollHook installs the background work IRQPoll services. Targets
// use it to pump the host link so bytes keep flowing during busy waits.
func SetIRQPollHook(fn func()) {
	pollHook = fn
}

// IRQDisable masks interrupts until the matching IRQRestore.
func IRQDisable() IRQState {
	s := IRQState{state: disableInterrupts()}
	irqDepth++
	return s
}

// IRQRestore undoes one IRQDisable.
func IRQRestore(s IRQState) {
	if irqDepth > 0 {
		irqDepth--
	}
	restoreInterrupts(s.state)
}

// IRQPoll runs pending background work. It is a no-op inside an
// IRQDisable section.
func IRQPoll() {
	if irqDepth > 0 || pollHook == nil {
		return
	}
	pollHook()
}
