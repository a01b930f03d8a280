package core

import "errors"

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error
}

var ErrPinInUse = errors.New("pin already in use")

// PinError records the pin a claim or setup failed on.
type PinError struct {
	Pin GPIOPin
	Err error
}

func (e *PinError) Error() string {
	return "pin " + utoa(uint32(e.Pin)) + ": " + e.Err.Error()
}

func (e *PinError) Unwrap() error { return e.Err }

// Global singleton used by core code.
var gpioDriver GPIODriver

// claimedPins holds every pin handed out by GPIOOutSetup until the
// firmware configuration is reset.
var claimedPins = make(map[GPIOPin]struct{})

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}

// GPIOOut is an output pin owned by exactly one configured object. The
// zero value is an unconfigured handle whose writes are dropped.
type GPIOOut struct {
	Pin        GPIOPin
	configured bool
}

// GPIOOutSetup claims pin, configures it as an output and drives it to
// level. A pin already claimed by another object is rejected.
func GPIOOutSetup(pin GPIOPin, level bool) (GPIOOut, error) {
	if _, taken := claimedPins[pin]; taken {
		return GPIOOut{}, &PinError{Pin: pin, Err: ErrPinInUse}
	}
	drv := MustGPIO()
	if err := drv.ConfigureOutput(pin); err != nil {
		return GPIOOut{}, &PinError{Pin: pin, Err: err}
	}
	if err := drv.SetPin(pin, level); err != nil {
		return GPIOOut{}, &PinError{Pin: pin, Err: err}
	}
	claimedPins[pin] = struct{}{}
	return GPIOOut{Pin: pin, configured: true}, nil
}

// Write drives the pin. Drivers only fail on unconfigured pins, which a
// handle from GPIOOutSetup never is.
func (g GPIOOut) Write(level bool) {
	if !g.configured {
		return
	}
	_ = gpioDriver.SetPin(g.Pin, level)
}

// Configured reports whether g came from a successful GPIOOutSetup.
func (g GPIOOut) Configured() bool {
	return g.configured
}

func releasePins() {
	claimedPins = make(map[GPIOPin]struct{})
}
