package core

import (
	"errors"
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	// Register the firmware commands first so ids match a real build.
	InitCoreCommands()
	InitHD44780Commands()
	os.Exit(m.Run())
}

// fakeClock is a tick counter that only moves when told to.
type fakeClock struct {
	now uint32
}

func (c *fakeClock) read() uint32         { return c.now }
func (c *fakeClock) uptime() uint64       { return uint64(c.now) }
func (c *fakeClock) advance(ticks uint32) { c.now += ticks }
func (c *fakeClock) set(ticks uint32)     { c.now = ticks }

type pinEvent struct {
	Clock uint32
	Pin   GPIOPin
	Level bool
}

var errMockPin = errors.New("mock: pin not configured")

// mockGPIODriver records every pin write against the fake clock.
type mockGPIODriver struct {
	clock   *fakeClock
	outputs map[GPIOPin]bool
	levels  map[GPIOPin]bool
	events  []pinEvent

	// onSet runs after each successful SetPin.
	onSet func(pin GPIOPin, level bool)
}

func newMockGPIODriver(clock *fakeClock) *mockGPIODriver {
	return &mockGPIODriver{
		clock:   clock,
		outputs: make(map[GPIOPin]bool),
		levels:  make(map[GPIOPin]bool),
	}
}

func (m *mockGPIODriver) ConfigureOutput(pin GPIOPin) error {
	m.outputs[pin] = true
	return nil
}

func (m *mockGPIODriver) SetPin(pin GPIOPin, value bool) error {
	if !m.outputs[pin] {
		return errMockPin
	}
	m.levels[pin] = value
	m.events = append(m.events, pinEvent{Clock: m.clock.now, Pin: pin, Level: value})
	if m.onSet != nil {
		m.onSet(pin, value)
	}
	return nil
}

// testEnv wires a fake clock and mock GPIO into the core package and
// restores the package state when the test ends.
type testEnv struct {
	clock *fakeClock
	gpio  *mockGPIODriver
	polls int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{clock: &fakeClock{now: 1000}}
	env.gpio = newMockGPIODriver(env.clock)

	SetClockSource(env.clock.read, env.clock.uptime)
	SetTimerFrequency(DefaultTimerFreq)
	SetGPIODriver(env.gpio)
	// Every poll stands in for one tick of background work.
	SetIRQPollHook(func() {
		env.polls++
		env.clock.advance(1)
	})
	ResetFirmwareState()
	GetOIDTable().Allocate(8)
	ClearTimingRing()

	t.Cleanup(func() {
		SetClockSource(nil, nil)
		SetTimerFrequency(DefaultTimerFreq)
		SetIRQPollHook(nil)
		SetGPIODriver(nil)
		SetGlobalTransport(nil)
		haveStrictTiming = platformStrictTiming
		ndelayBypass = platformSlowMCU
		irqDepth = 0
		ResetFirmwareState()
	})
	return env
}
