// Package serclient provides the main API for running the serial-line
// control agent: a packet-framed protocol engine that lets a supervisor
// drive a managed node over an RS-232 link when no network path exists.
package serclient

import (
	"context"
	"time"

	"github.com/ooblab/serclient/internal/constants"
	"github.com/ooblab/serclient/internal/device"
	"github.com/ooblab/serclient/internal/engine"
	"github.com/ooblab/serclient/internal/executor"
	"github.com/ooblab/serclient/internal/interfaces"
	"github.com/ooblab/serclient/internal/logging"
)

// Version is the service version banner; overridden at build time.
var Version = "dev"

// Params contains parameters for running the agent.
type Params struct {
	// Device is an already-open serial device. When nil, Serial is used to
	// open one.
	Device SerialDevice

	// Serial describes the port to open when Device is nil.
	Serial device.Config

	// CommandTimeout is the per-command execution deadline
	// (default: 5 minutes).
	CommandTimeout time.Duration

	// RootDir anchors the restart journal and update log
	// (default: current directory).
	RootDir string

	// PoolMaxBytes caps fragment reassembly buffering (default: 64 MiB).
	PoolMaxBytes int
}

// SerialDevice is the byte-oriented device contract; see the device package
// for the shipped implementations.
type SerialDevice = interfaces.SerialDevice

// Execution is the per-guid handle for an in-flight or finished command.
type Execution = interfaces.Execution

// Sink is the deferred-send capability handed to executors.
type Sink = interfaces.Sink

// Observer is the metrics collection hook; see NewPrometheusObserver.
type Observer = interfaces.Observer

// DefaultParams returns agent parameters for the given port.
func DefaultParams(port string) Params {
	return Params{
		Serial:         device.DefaultConfig(port),
		CommandTimeout: constants.DefaultCommandTimeout,
		RootDir:        ".",
	}
}

// Options contains additional options for running the agent.
type Options struct {
	// Logger for the engine and executors (if nil, the default logger).
	Logger *logging.Logger

	// Observer for metrics collection (if nil, no metrics).
	Observer Observer

	// Factory overrides command execution; mainly for tests.
	Factory interfaces.Factory
}

// Run opens the serial device (unless one was supplied), replays the restart
// journal, and drives the dispatch loop until ctx is cancelled. Failing to
// open the device is the one fatal condition; everything after that is
// retried or resynced.
func Run(ctx context.Context, params Params, options *Options) error {
	if options == nil {
		options = &Options{}
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Default()
	}

	if params.CommandTimeout <= 0 {
		params.CommandTimeout = constants.DefaultCommandTimeout
	}
	if params.RootDir == "" {
		params.RootDir = "."
	}

	dev := params.Device
	if dev == nil {
		logger.Infof("trying to open serial port %q", params.Serial.Port)
		opened, err := device.Open(params.Serial, logger)
		if err != nil {
			return NewError("open", ErrCodeOpenFailed, err.Error())
		}
		dev = opened
		defer dev.Close()
		logger.Infof("serial port open successfully")
	}
	logger.Infof("service version: %s", Version)

	factory := options.Factory
	if factory == nil {
		factory = executor.NewFactory(params.CommandTimeout, logger, options.Observer)
	}

	eng := engine.New(engine.Config{
		Device:       dev,
		Factory:      factory,
		RootDir:      params.RootDir,
		PoolMaxBytes: params.PoolMaxBytes,
		Logger:       logger,
		Observer:     options.Observer,
	})
	return eng.Run(ctx)
}
