//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"

	"gopper-lcd/core"
)

var errPinRange = errors.New("no such gpio")

// RPGPIODriver implements core.GPIODriver on the RP2 GPIO bank.
type RPGPIODriver struct {
	configuredPins map[core.GPIOPin]machine.Pin
}

// NewRPGPIODriver creates a new RP2 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

func (d *RPGPIODriver) configure(pin core.GPIOPin, mode machine.PinMode) error {
	if pin >= gpioCount {
		return errPinRange
	}
	// GPIO numbers map directly onto machine.Pin.
	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: mode})
	d.configuredPins[pin] = machinePin
	return nil
}

func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinOutput)
}

// SetPin drives a configured pin. Writes to unconfigured pins are refused
// rather than reconfiguring them behind the owner's back.
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		return errPinRange
	}
	machinePin.Set(value)
	return nil
}

// registerPins publishes the "pin" enumeration: gpio0, gpio1 ...
func registerPins() {
	names := make([]string, gpioCount)
	for i := range names {
		names[i] = "gpio" + itoa(i)
	}
	core.RegisterEnumeration("pin", names)
}

func itoa(i int) string {
	var buf [12]byte
	pos := len(buf)
	for {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
		if i == 0 {
			break
		}
	}
	return string(buf[pos:])
}
