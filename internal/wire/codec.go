package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Codec errors. The reader branches on these to pick a resync strategy, so
// they are sentinels rather than one-off values.
var (
	ErrMalformedHeader = errors.New("malformed packet header")
	ErrMalformedBody   = errors.New("malformed packet body")
)

// Header is the decoded fixed-size packet header.
type Header struct {
	GUID    uuid.UUID
	Command CommandType
	Number  uint32
	Count   uint32
	BodyLen uint32
	Lost    bool
	Outcome Outcome
}

// Size returns the full encoded packet size the header announces.
func (h Header) Size() int {
	return HeaderLen + int(h.BodyLen) + FooterLen
}

// HasHeader reports whether b holds at least a full header starting with the
// start sentinel. It does not validate the header fields.
func HasHeader(b []byte) bool {
	return len(b) >= HeaderLen && b[0] == StartSentinel
}

// ExtractHeader parses and validates the header at the front of b.
// b must satisfy HasHeader.
func ExtractHeader(b []byte) (Header, error) {
	var h Header
	if !HasHeader(b) {
		return h, fmt.Errorf("%w: short buffer", ErrMalformedHeader)
	}

	h.Command = CommandType(b[1])
	flags := b[2]
	copy(h.GUID[:], b[3:19])
	h.Number = binary.LittleEndian.Uint32(b[19:23])
	h.Count = binary.LittleEndian.Uint32(b[23:27])
	h.BodyLen = binary.LittleEndian.Uint32(b[27:31])
	h.Lost = flags&flagLost != 0
	if flags&flagOutcome != 0 {
		h.Outcome = Error
	}

	switch {
	case !h.Command.valid():
		return h, fmt.Errorf("%w: unknown command %d", ErrMalformedHeader, b[1])
	case h.Number == 0 || h.Count == 0:
		return h, fmt.Errorf("%w: zero fragment index", ErrMalformedHeader)
	case h.Number > h.Count:
		return h, fmt.Errorf("%w: number %d > count %d", ErrMalformedHeader, h.Number, h.Count)
	case h.BodyLen > MaxBodyLen:
		return h, fmt.Errorf("%w: body length %d exceeds limit", ErrMalformedHeader, h.BodyLen)
	}
	return h, nil
}

// HasHeaderAndFooter reports whether b holds the complete packet the header
// at its front announces. b must hold a header that ExtractHeader accepts.
func HasHeaderAndFooter(b []byte) bool {
	h, err := ExtractHeader(b)
	if err != nil {
		return false
	}
	return len(b) >= h.Size()
}

// Decode parses one packet from the front of b and returns it together with
// the number of bytes consumed. It fails with ErrMalformedBody when the byte
// at the announced footer position is not the footer sentinel.
func Decode(b []byte) (*Packet, int, error) {
	h, err := ExtractHeader(b)
	if err != nil {
		return nil, 0, err
	}
	size := h.Size()
	if len(b) < size {
		return nil, 0, fmt.Errorf("%w: truncated packet", ErrMalformedBody)
	}
	if b[size-1] != FooterSentinel {
		return nil, 0, fmt.Errorf("%w: footer sentinel missing at offset %d", ErrMalformedBody, size-1)
	}

	p := &Packet{
		GUID:    h.GUID,
		Command: h.Command,
		Number:  h.Number,
		Count:   h.Count,
		Outcome: h.Outcome,
		Lost:    h.Lost,
	}
	if h.BodyLen > 0 {
		p.Body = make([]byte, h.BodyLen)
		copy(p.Body, b[HeaderLen:HeaderLen+int(h.BodyLen)])
	}
	return p, size, nil
}

// Encode renders p into its wire form.
func Encode(p *Packet) []byte {
	buf := make([]byte, p.Size())

	buf[0] = StartSentinel
	buf[1] = byte(p.Command)
	var flags byte
	if p.Lost {
		flags |= flagLost
	}
	if p.Outcome == Error {
		flags |= flagOutcome
	}
	buf[2] = flags
	copy(buf[3:19], p.GUID[:])
	binary.LittleEndian.PutUint32(buf[19:23], p.Number)
	binary.LittleEndian.PutUint32(buf[23:27], p.Count)
	binary.LittleEndian.PutUint32(buf[27:31], uint32(len(p.Body)))
	copy(buf[HeaderLen:], p.Body)
	buf[len(buf)-1] = FooterSentinel

	return buf
}
