//go:build (rp2040 || rp2350) && uart

package main

import (
	"machine"

	"github.com/jangala-dev/tinygo-uartx/uartx"
)

// The host link is UART0 on GPIO0/GPIO1, driven by the interrupt-buffered
// uartx driver. Select it with -tags uart.

const (
	linkName = "uart0"
	linkBaud = 250000
)

func linkInit() error {
	return uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: linkBaud,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
}

func linkBuffered() int {
	return uartx.UART0.Buffered()
}

func linkReadByte() (byte, error) {
	return uartx.UART0.ReadByte()
}

func linkWrite(data []byte) (int, error) {
	return uartx.UART0.Write(data)
}
