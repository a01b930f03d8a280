//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"gopper-lcd/core"
	"gopper-lcd/protocol"
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	// Debug counters
	msgerrors                uint32
	linkWasDisconnected      bool
	consecutiveWriteFailures uint32
)

func main() {
	if err := linkInit(); err != nil {
		return
	}

	// Clear any watchdog state left by a previous reset.
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitClock()

	// identify must be registered first.
	core.InitCoreCommands()
	core.InitHD44780Commands()
	registerPins()
	core.RegisterConstant("SERIAL_LINK", linkName)

	core.SetGPIODriver(NewRPGPIODriver())

	core.GetGlobalDictionary().BuildDictionary()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, core.DispatchCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
		core.ResetFirmwareState()
	})
	// The host's serialqueue expects each ack ahead of any response.
	transport.SetFlushCallback(flushLink)
	core.SetGlobalTransport(transport)

	core.SetResetHandler(func() {
		// Watchdog reset also re-enumerates USB cleanly.
		if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1}); err != nil {
			return
		}
		if err := machine.Watchdog.Start(); err != nil {
			return
		}
		for {
			time.Sleep(time.Millisecond)
		}
	})

	// LCD busy-waits keep the link serviced through IRQPoll.
	core.SetIRQPollHook(pumpLink)

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			if linkWasDisconnected && linkBuffered() > 0 {
				// Host came back: start from a clean transport.
				linkWasDisconnected = false
				consecutiveWriteFailures = 0
				transport.Reset()
			}
			pumpLink()
			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
			}
			flushLink()

			// Only after the ack for reset is on the wire.
			core.CheckPendingReset()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// pumpLink moves received bytes into the input FIFO and pushes out any
// pending responses. It never dispatches commands, so it is safe to run
// from inside a command handler.
func pumpLink() {
	for linkBuffered() > 0 && inputBuffer.Free() > 0 {
		b, err := linkReadByte()
		if err != nil {
			msgerrors++
			break
		}
		inputBuffer.Write([]byte{b})
	}
	flushLink()
}

// flushLink writes the output buffer to the host link.
func flushLink() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := linkWrite(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			// Host went away: drop stale output and start clean on the
			// next byte received.
			if consecutiveWriteFailures > 10 {
				linkWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	if written > 0 {
		consecutiveWriteFailures = 0
		outputBuffer.Reset()
	}
}
