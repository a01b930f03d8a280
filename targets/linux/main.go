//go:build linux && !tinygo

// Command gopper-lcd-linux runs the LCD firmware as a Linux process: the
// host talks to it over a serial device and the display hangs off the
// board's GPIO header.
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"time"

	"periph.io/x/host/v3"

	"gopper-lcd/core"
	"gopper-lcd/protocol"
)

// clockFreq matches Klipper's linux MCU.
const clockFreq = 50000000

var (
	device = flag.String("device", "/dev/ttyAMA0", "Serial device the host connects to")
	baud   = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC and ptys)")
	debug  = flag.Bool("debug", false, "Enable debug output")
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport
	link         io.ReadWriteCloser
	linkRX       chan []byte
	pending      []byte // received bytes that did not fit the FIFO
)

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	if _, err := host.Init(); err != nil {
		log.Fatalf("periph host init: %v", err)
	}

	core.SetDebugWriter(func(s string) { log.Print(s) })
	core.SetDebugEnabled(*debug)

	start := time.Now()
	core.SetTimerFrequency(clockFreq)
	core.SetClockSource(
		func() uint32 { return uint32(monotonicTicks(start)) },
		func() uint64 { return monotonicTicks(start) },
	)

	core.InitCoreCommands()
	core.InitHD44780Commands()
	core.RegisterConstant("MCU", "linux")
	core.RegisterConstant("CLOCK_FREQ", uint32(clockFreq))
	registerPins()
	core.SetGPIODriver(NewPeriphGPIODriver())
	core.GetGlobalDictionary().BuildDictionary()

	var err error
	cfg := DefaultLinkConfig(*device)
	cfg.Baud = *baud
	link, err = OpenLink(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer link.Close()
	log.Printf("gopper-lcd %s on %s", protocol.Version, *device)

	inputBuffer = protocol.NewFifoBuffer(1024)
	outputBuffer = protocol.NewScratchOutput()
	transport = protocol.NewTransport(outputBuffer, core.DispatchCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
		pending = nil
		core.ResetFirmwareState()
	})
	transport.SetFlushCallback(flushLink)
	core.SetGlobalTransport(transport)

	core.SetResetHandler(func() {
		log.Print("reset requested")
		link.Close()
		os.Exit(0)
	})

	linkRX = make(chan []byte, 16)
	linkErr := make(chan error, 1)
	go readLink(link, linkRX, linkErr)

	core.SetIRQPollHook(pumpLink)

	for {
		select {
		case err := <-linkErr:
			log.Fatalf("serial link: %v", err)
		case chunk := <-linkRX:
			pending = append(pending, chunk...)
		case <-time.After(time.Millisecond):
		}
		pumpLink()
		if inputBuffer.Available() > 0 {
			transport.Receive(inputBuffer)
		}
		flushLink()
		core.CheckPendingReset()
	}
}

func monotonicTicks(start time.Time) uint64 {
	return uint64(time.Since(start).Nanoseconds()) / (1000000000 / clockFreq)
}

// pumpLink moves bytes from the reader goroutine into the input FIFO and
// flushes pending output. It never dispatches, so command handlers may
// call it through IRQPoll.
func pumpLink() {
	for drained := false; !drained; {
		select {
		case chunk := <-linkRX:
			pending = append(pending, chunk...)
		default:
			drained = true
		}
	}
	if len(pending) > 0 {
		n := inputBuffer.Write(pending)
		pending = pending[n:]
	}
	flushLink()
}

func flushLink() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}
	if _, err := link.Write(result); err != nil {
		log.Printf("serial write: %v", err)
	}
	outputBuffer.Reset()
}
