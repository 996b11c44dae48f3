// Package device provides serial port implementations of the engine's
// device contract: a portable driver built on tarm/serial and a raw termios
// driver for Linux that takes the port in exclusive mode.
package device

import (
	"fmt"
	"time"

	"github.com/ooblab/serclient/internal/interfaces"
)

// Driver selects a port implementation.
type Driver string

const (
	// DriverSerial is the portable tarm/serial implementation.
	DriverSerial Driver = "serial"
	// DriverRaw is the Linux termios implementation (exclusive mode).
	DriverRaw Driver = "raw"
)

// Config describes how to open the serial port.
type Config struct {
	Driver   Driver
	Port     string
	Baud     int
	DataBits int
	Parity   string // "none", "even", "odd"
	StopBits int    // 1 or 2

	// ReadTimeout bounds a single device read; reads return empty on expiry.
	ReadTimeout time.Duration
}

// DefaultConfig returns the line settings the supervisor side uses.
func DefaultConfig(port string) Config {
	return Config{
		Driver:      DriverSerial,
		Port:        port,
		Baud:        115200,
		DataBits:    8,
		Parity:      "none",
		StopBits:    1,
		ReadTimeout: time.Second,
	}
}

// Open opens the configured port with the configured driver.
func Open(cfg Config, logger interfaces.Logger) (interfaces.SerialDevice, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}
	switch cfg.Driver {
	case DriverSerial, "":
		return openSerial(cfg, logger)
	case DriverRaw:
		return openRaw(cfg, logger)
	}
	return nil, fmt.Errorf("unknown serial driver %q", cfg.Driver)
}
