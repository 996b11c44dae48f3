// Package serio implements the byte-level serial I/O layer: a resyncing
// packet reader with a logic timeout, and a chunking packet writer.
package serio

import "time"

// SystemClock reports wall-clock seconds from the OS.
type SystemClock struct{}

// Now returns the current time in seconds since the epoch.
func (SystemClock) Now() int64 {
	return time.Now().Unix()
}
