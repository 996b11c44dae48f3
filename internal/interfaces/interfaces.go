// Package interfaces provides internal interface definitions for serclient.
// These are separate from the public surface to avoid circular imports
// between the root package and internal packages.
package interfaces

import (
	"github.com/ooblab/serclient/internal/command"
	"github.com/ooblab/serclient/internal/wire"
)

// SerialDevice is a bidirectional byte-oriented link to the supervisor.
// Implementations must bound every call by their configured timeout; neither
// Read nor Write may block indefinitely.
type SerialDevice interface {
	// Read returns up to max bytes. An empty slice with a nil error means
	// the read timed out with nothing available.
	Read(max int) ([]byte, error)

	// Write hands bytes to the device and returns how many were accepted,
	// which may be fewer than len(p).
	Write(p []byte) (n int, err error)

	Close() error
}

// Clock supplies wall-clock seconds for the reader's deadlines.
// Now returns -1 when the clock itself fails, at which point the reader
// short-circuits without touching the device.
type Clock interface {
	Now() int64
}

// Execution is one in-flight or finished command the engine tracks per guid.
// IsRunning is the only cross-thread datum in the engine; implementations
// synchronize it internally. Pre-baked completions (restart resume, rejected
// commands) report IsRunning false from the start.
type Execution interface {
	IsRunning() bool

	// ResponsePacket returns the final response once IsRunning is false.
	ResponsePacket() *wire.Packet
}

// Sink lets executors hand packets to the engine thread for deferred
// transmission. It is the only engine-owned state executors may touch.
type Sink interface {
	SendLater(p *wire.Packet)
}

// Factory spawns the execution for an accepted command request. Spawn must
// return immediately; the execution runs on its own goroutine and reports
// completion through sink and its own IsRunning state.
type Factory interface {
	Spawn(req command.Request, sink Sink) Execution
}

// Logger interface for optional logging.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Observer interface for metrics collection.
// Implementations must be thread-safe; executors call the command hooks from
// their own goroutines.
type Observer interface {
	ObservePacketIn(command string, bytes int)
	ObservePacketOut(command string, bytes int)
	ObserveResync(discarded int)
	ObserveLogicTimeout()
	ObserveShortWrite()
	ObserveCommandStart(blocking bool)
	ObserveCommandDone(latencyNs uint64, success bool)
	ObserveQueueDepth(pending, inflight int)
}
