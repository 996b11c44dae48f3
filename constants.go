package serclient

import "github.com/ooblab/serclient/internal/constants"

// Re-export constants for public API
const (
	SerialMinRead          = constants.SerialMinRead
	WriteChunkSize         = constants.WriteChunkSize
	LogicTimeoutSeconds    = constants.LogicTimeoutSeconds
	ReadPollTimeoutSeconds = constants.ReadPollTimeoutSeconds
	ResyncScanCap          = constants.ResyncScanCap
	DefaultPoolMaxBytes    = constants.DefaultPoolMaxBytes
	DefaultCommandTimeout  = constants.DefaultCommandTimeout
	RestartFileName        = constants.RestartFileName
)
