//go:build (rp2040 || rp2350) && !uart

package main

import "machine"

// The host link is USB CDC-ACM, exposed by TinyGo as machine.Serial.

const linkName = "usb"

func linkInit() error {
	return machine.Serial.Configure(machine.UARTConfig{})
}

func linkBuffered() int {
	return machine.Serial.Buffered()
}

func linkReadByte() (byte, error) {
	return machine.Serial.ReadByte()
}

func linkWrite(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
