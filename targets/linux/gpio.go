//go:build linux && !tinygo

package main

import (
	"errors"
	"strconv"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"gopper-lcd/core"
)

var (
	errNoSuchPin     = errors.New("no such gpio")
	errNotConfigured = errors.New("gpio not configured")
)

// PeriphGPIODriver implements core.GPIODriver on the host's GPIO lines
// through periph. Pin n is the line periph registers as "GPIOn".
type PeriphGPIODriver struct {
	lookup func(name string) gpio.PinIO
	pins   map[core.GPIOPin]gpio.PinIO
}

// NewPeriphGPIODriver returns a driver over periph's pin registry. Call
// host.Init first.
func NewPeriphGPIODriver() *PeriphGPIODriver {
	return &PeriphGPIODriver{
		lookup: gpioreg.ByName,
		pins:   make(map[core.GPIOPin]gpio.PinIO),
	}
}

// pinName follows periph's gpioreg names ("GPIO17"), not the
// gpiochip0/gpio17 form of Klipper's linux MCU.
func pinName(pin core.GPIOPin) string {
	return "GPIO" + strconv.FormatUint(uint64(pin), 10)
}

func (d *PeriphGPIODriver) resolve(pin core.GPIOPin) (gpio.PinIO, error) {
	if p, ok := d.pins[pin]; ok {
		return p, nil
	}
	p := d.lookup(pinName(pin))
	if p == nil {
		return nil, errNoSuchPin
	}
	return p, nil
}

func (d *PeriphGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	p, err := d.resolve(pin)
	if err != nil {
		return err
	}
	if err := p.Out(gpio.Low); err != nil {
		return err
	}
	d.pins[pin] = p
	return nil
}

func (d *PeriphGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	p, ok := d.pins[pin]
	if !ok {
		return errNotConfigured
	}
	return p.Out(gpio.Level(value))
}

// registerPins publishes the "pin" enumeration for every GPIO line periph
// knows about, indexed by line number.
func registerPins() {
	var names []string
	for _, p := range gpioreg.All() {
		n := p.Number()
		if n < 0 || n > 1023 {
			continue
		}
		for len(names) <= n {
			names = append(names, "")
		}
		names[n] = pinName(core.GPIOPin(n))
	}
	core.RegisterEnumeration("pin", names)
}
