//go:build linux && !tinygo

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// LinkConfig describes the serial device the host connects through.
type LinkConfig struct {
	// Device path, e.g. /dev/ttyAMA0 or one end of a pty pair
	Device string
	// Baud rate; USB CDC and ptys ignore it
	Baud int
	// ReadTimeout bounds each read so the reader notices shutdown
	ReadTimeout time.Duration
}

// DefaultLinkConfig returns the usual Klipper settings for device.
func DefaultLinkConfig(device string) LinkConfig {
	return LinkConfig{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 10 * time.Millisecond,
	}
}

// OpenLink opens the serial device described by cfg.
func OpenLink(cfg LinkConfig) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return port, nil
}

// readLink forwards everything read from r to out until r fails. A read
// that times out returns no bytes and is retried.
func readLink(r io.Reader, out chan<- []byte, errc chan<- error) {
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunk
		}
		if err != nil && err != io.EOF {
			errc <- err
			return
		}
	}
}
