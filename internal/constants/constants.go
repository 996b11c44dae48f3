package constants

import "time"

// Protocol constants shared by the reader, writer, and engine.
const (
	// SerialMinRead is the maximum byte count requested per device read.
	SerialMinRead = 100000

	// WriteChunkSize is the outbound chunk size handed to the device per write.
	WriteChunkSize = 8 * 1024

	// LogicTimeoutSeconds bounds how long a parsed header may wait for its
	// body before the reader solicits retransmission.
	LogicTimeoutSeconds = 30

	// ReadPollTimeoutSeconds is the per-tick deadline of the engine's read.
	ReadPollTimeoutSeconds = 1

	// ResyncScanCap bounds the per-iteration scan for a start sentinel after
	// a framing error.
	ResyncScanCap = 5000
)

// Default configuration constants.
const (
	// DefaultPoolMaxBytes caps the fragment bodies buffered for reassembly.
	DefaultPoolMaxBytes = 64 << 20

	// DefaultCommandTimeout is the per-command execution deadline.
	DefaultCommandTimeout = 5 * time.Minute
)

// Well-known file names under the agent root directory.
const (
	// RestartFileName records the guid of a response that must survive an
	// agent restart.
	RestartFileName = "serclient.restart"

	// UpdateLogFileName holds the output of the last software update; its
	// contents become the body of the restart-resume response when present.
	UpdateLogFileName = "serclient.update.log"
)
