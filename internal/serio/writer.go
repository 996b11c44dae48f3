package serio

import (
	"sync"

	"github.com/ooblab/serclient/internal/constants"
	"github.com/ooblab/serclient/internal/interfaces"
	"github.com/ooblab/serclient/internal/wire"
)

// Writer encodes packets and writes them to the device in chunks.
//
// A short write advances by the accepted byte count and retries from the
// first unaccepted byte; a failed write retries the same chunk. There is no
// retry cap — liveness is the protocol layer's problem, not the writer's.
// An internal mutex serializes senders so two packets never interleave on
// the wire.
type Writer struct {
	dev      interfaces.SerialDevice
	logger   interfaces.Logger
	observer interfaces.Observer
	mu       sync.Mutex
}

// NewWriter creates a writer for dev. logger and observer may be nil.
func NewWriter(dev interfaces.SerialDevice, logger interfaces.Logger, observer interfaces.Observer) *Writer {
	return &Writer{dev: dev, logger: logger, observer: observer}
}

// Send encodes p and writes it fully to the device.
func (w *Writer) Send(p *wire.Packet) {
	if w.logger != nil {
		w.logger.Infof("sending packet: %s", p)
		if p.HasTelnetIAC() {
			w.logger.Debugf("outbound packet contains telnet IAC byte")
		}
	}

	raw := wire.Encode(p)

	w.mu.Lock()
	defer w.mu.Unlock()

	for off := 0; off < len(raw); {
		end := off + constants.WriteChunkSize
		if end > len(raw) {
			end = len(raw)
		}
		n, err := w.dev.Write(raw[off:end])
		if err != nil {
			if w.logger != nil {
				w.logger.Warnf("could not write to serial port: %v", err)
			}
			if w.observer != nil {
				w.observer.ObserveShortWrite()
			}
			continue
		}
		if n < end-off {
			if w.logger != nil {
				w.logger.Warnf("short write to serial port: %d/%d bytes", n, end-off)
			}
			if w.observer != nil {
				w.observer.ObserveShortWrite()
			}
		}
		off += n
		if w.logger != nil {
			w.logger.Debugf("written to serial port: %d/%d bytes", off, len(raw))
		}
	}

	if w.observer != nil {
		w.observer.ObservePacketOut(p.Command.String(), len(raw))
	}
}
