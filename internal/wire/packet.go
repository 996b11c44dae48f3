// Package wire defines the framed packet model spoken over the serial link
// and the byte-exact codec for it.
package wire

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// CommandType identifies the role of a packet on the wire.
type CommandType byte

const (
	// Ack is a loopback probe; the agent answers with an Ack for the same guid.
	Ack CommandType = 1
	// Command carries an XML command body to execute locally.
	Command CommandType = 2
	// Received acknowledges one fragment (or a whole single-packet message).
	Received CommandType = 3
	// AuthResponse announces that a response is (or should be) ready for a guid.
	AuthResponse CommandType = 4
	// Response carries the final result of a command execution.
	Response CommandType = 5
)

// String returns the wire name of the command type, used in logs and metrics.
func (c CommandType) String() string {
	switch c {
	case Ack:
		return "ack"
	case Command:
		return "command"
	case Received:
		return "received"
	case AuthResponse:
		return "authresponse"
	case Response:
		return "response"
	}
	return fmt.Sprintf("unknown(%d)", byte(c))
}

func (c CommandType) valid() bool {
	return c >= Ack && c <= Response
}

// Outcome is the result carried by a Response packet.
type Outcome byte

const (
	Success Outcome = 0
	Error   Outcome = 1
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "error"
}

const (
	// StartSentinel opens every packet header (ASCII STX).
	StartSentinel byte = 0x02
	// FooterSentinel closes every packet body (ASCII ETX).
	FooterSentinel byte = 0x03

	// HeaderLen is the fixed, self-delimiting header size in bytes.
	HeaderLen = 31
	// FooterLen is the footer size in bytes.
	FooterLen = 1

	// MaxBodyLen bounds the declared body length of a single packet. A header
	// announcing more than this is treated as malformed rather than buffered.
	MaxBodyLen = 16 << 20

	flagLost    byte = 1 << 0
	flagOutcome byte = 1 << 1
)

// telnetIAC is the telnet Interpret-As-Command byte. Some supervisor paths
// tunnel the serial link through telnet, where an unescaped 0xFF is mangled.
const telnetIAC byte = 0xFF

// Packet is one framed message. A logical message with Count > 1 is split
// into fragments sharing a guid; see the reassembly package.
type Packet struct {
	GUID    uuid.UUID
	Command CommandType
	Number  uint32
	Count   uint32
	Body    []byte

	// Outcome is meaningful only on Response packets.
	Outcome Outcome
	// Lost is meaningful only on Received packets: it marks a speculative
	// acknowledgement for a fragment whose body never arrived.
	Lost bool
}

// IsSinglePacket reports whether the packet is a complete logical message.
func (p *Packet) IsSinglePacket() bool {
	return p.Count == 1
}

// Size returns the encoded size of the packet in bytes.
func (p *Packet) Size() int {
	return HeaderLen + len(p.Body) + FooterLen
}

// HasTelnetIAC reports whether the encoded packet contains a telnet IAC byte.
func (p *Packet) HasTelnetIAC() bool {
	return bytes.IndexByte(Encode(p), telnetIAC) >= 0
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s guid=%s number=%d count=%d body=%dB",
		p.Command, p.GUID, p.Number, p.Count, len(p.Body))
}

// NewAck builds a loopback acknowledgement for guid.
func NewAck(guid uuid.UUID) *Packet {
	return &Packet{GUID: guid, Command: Ack, Number: 1, Count: 1}
}

// NewCommand builds a single-packet command message. Used by the host side
// and by tests; the agent only consumes these.
func NewCommand(guid uuid.UUID, body []byte) *Packet {
	return &Packet{GUID: guid, Command: Command, Number: 1, Count: 1, Body: body}
}

// NewReceived builds a per-fragment acknowledgement. lost marks a speculative
// ack sent after the logic timeout expired for the fragment.
func NewReceived(guid uuid.UUID, number, count uint32, lost bool) *Packet {
	return &Packet{GUID: guid, Command: Received, Number: number, Count: count, Lost: lost}
}

// NewReceivedAll acknowledges a fully received logical message.
func NewReceivedAll(guid uuid.UUID) *Packet {
	return NewReceived(guid, 1, 1, false)
}

// NewAuthResponse builds the "a response is ready for guid" announcement.
func NewAuthResponse(guid uuid.UUID) *Packet {
	return &Packet{GUID: guid, Command: AuthResponse, Number: 1, Count: 1}
}

// NewResponse builds the final response for guid.
func NewResponse(guid uuid.UUID, outcome Outcome, body []byte) *Packet {
	return &Packet{GUID: guid, Command: Response, Number: 1, Count: 1, Body: body, Outcome: outcome}
}
