// Package command parses the XML body of an inbound Command packet into a
// request the engine can queue for execution.
package command

import (
	"strings"

	"github.com/google/uuid"
)

// Request is one accepted command awaiting dispatch.
type Request struct {
	// Command is the shell command string supplied by the host.
	Command string

	// GUID labels the request/response cycle; allocated by the host.
	GUID uuid.UUID

	// BinaryPath is the temporary file holding the decoded binary
	// attachment, empty when the command carried none. The executor owns
	// the file and removes it after the run.
	BinaryPath string
}

// IsBlocking reports whether the command must run alone. Restarts and
// software updates may terminate the agent, so nothing else may be in flight
// while they run.
func (r Request) IsBlocking() bool {
	return r.Command == "restart" || r.IsUpdateSoftware()
}

// IsUpdateSoftware reports whether the request invokes the software update
// mechanism. The host passes update arguments after the verb, so only the
// first token is inspected.
func (r Request) IsUpdateSoftware() bool {
	verb, _, _ := strings.Cut(strings.TrimSpace(r.Command), " ")
	return verb == "updateSoftware"
}
