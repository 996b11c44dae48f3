package serio

import (
	"errors"

	"github.com/ooblab/serclient/internal/constants"
	"github.com/ooblab/serclient/internal/interfaces"
	"github.com/ooblab/serclient/internal/reassembly"
	"github.com/ooblab/serclient/internal/wire"
)

// Reader pulls bytes from the serial device and extracts whole logical
// packets. It resynchronizes on framing errors by scanning forward to the
// next start sentinel, acknowledges multi-packet fragments as they arrive,
// and solicits retransmission when a parsed header's body never completes
// within the logic timeout.
//
// The reader owns its buffer and pool; it runs on the engine goroutine only.
type Reader struct {
	dev      interfaces.SerialDevice
	clock    interfaces.Clock
	pool     *reassembly.Pool
	writer   *Writer
	logger   interfaces.Logger
	observer interfaces.Observer

	buf []byte

	// logicTimer is when the header at the front of buf was first seen
	// valid, -1 when unset. It survives across ReadOne calls so the logic
	// timeout spans the engine's short polling ticks.
	logicTimer int64
}

// NewReader creates a reader over dev. Fragment acknowledgements and
// speculative lost-Received packets are transmitted through writer.
func NewReader(dev interfaces.SerialDevice, clock interfaces.Clock, pool *reassembly.Pool,
	writer *Writer, logger interfaces.Logger, observer interfaces.Observer) *Reader {
	return &Reader{
		dev:      dev,
		clock:    clock,
		pool:     pool,
		writer:   writer,
		logger:   logger,
		observer: observer,

		logicTimer: -1,
	}
}

// ReadOne runs the extraction state machine until a full logical packet is
// available, the deadline passes, or the clock fails. timeoutSec = 0 means
// no deadline; such a call also returns nil as soon as the buffer is empty
// and the device has nothing to give. Returns nil when no packet was
// extracted in time.
func (r *Reader) ReadOne(timeoutSec int64) *wire.Packet {
	started := r.clock.Now()

	for started != -1 {
		now := r.clock.Now()
		if now == -1 {
			break
		}
		if timeoutSec != 0 && now-started > timeoutSec {
			break
		}

		if !wire.HasHeader(r.buf) {
			r.logicTimer = -1
			if len(r.buf) >= wire.HeaderLen {
				// Header-sized buffer without a leading start sentinel:
				// garbage in front, hunt for the next sentinel.
				r.resync()
				continue
			}
			if !r.fill() && len(r.buf) == 0 && timeoutSec == 0 {
				// Nothing buffered, nothing arriving, no deadline to wait
				// for: report no packet rather than spin.
				break
			}
			continue
		}

		h, err := wire.ExtractHeader(r.buf)
		if err != nil {
			r.resync()
			continue
		}

		if r.logicTimer == -1 {
			r.logicTimer = now
		} else if now-r.logicTimer > constants.LogicTimeoutSeconds {
			if r.logger != nil {
				r.logger.Debugf("logic timeout for guid=%s, soliciting retransmission", h.GUID)
			}
			if r.observer != nil {
				r.observer.ObserveLogicTimeout()
			}
			r.writer.Send(wire.NewReceived(h.GUID, h.Number, h.Count, true))
			r.consume(1)
			r.logicTimer = -1
			continue
		}

		if !wire.HasHeaderAndFooter(r.buf) {
			r.fill()
			continue
		}

		p, size, err := wire.Decode(r.buf)
		if err != nil {
			if r.logger != nil && errors.Is(err, wire.ErrMalformedBody) {
				r.logger.Errorf("error decoding packet: %v", err)
			}
			r.consume(1)
			if r.observer != nil {
				r.observer.ObserveResync(1)
			}
			continue
		}
		r.consume(size)
		r.logicTimer = -1

		if r.logger != nil {
			r.logger.Debugf("packet received: %s", p)
		}

		if p.IsSinglePacket() {
			return p
		}

		r.pool.Add(p)
		if r.pool.HasAll(p.GUID, p.Count) {
			full := r.pool.TakeFull(p.GUID)
			r.pool.Remove(p.GUID)
			if r.logger != nil {
				r.logger.Debugf("multi-packet message aggregated: guid=%s", p.GUID)
			}
			return full
		}
		r.writer.Send(wire.NewReceived(p.GUID, p.Number, p.Count, false))
	}

	return nil
}

// fill requests more bytes from the device and reports whether any arrived.
// Device errors are transient by policy; they are logged and retried on the
// next tick.
func (r *Reader) fill() bool {
	v, err := r.dev.Read(constants.SerialMinRead)
	if err != nil {
		if r.logger != nil {
			r.logger.Debugf("serial read failed: %v", err)
		}
		return false
	}
	if len(v) == 0 {
		return false
	}
	r.buf = append(r.buf, v...)
	if r.logger != nil {
		r.logger.Debugf("read %d bytes, buffer size %d", len(v), len(r.buf))
	}
	return true
}

// resync discards bytes up to the next start sentinel, scanning at most
// ResyncScanCap bytes per pass. At least one byte is always consumed, which
// guarantees forward progress on arbitrary garbage.
func (r *Reader) resync() {
	s := 1
	for s < len(r.buf) && s < constants.ResyncScanCap && r.buf[s] != wire.StartSentinel {
		s++
	}
	r.consume(s)
	if r.logger != nil {
		r.logger.Debugf("header not found: skipped %d bytes from read buffer", s)
	}
	if r.observer != nil {
		r.observer.ObserveResync(s)
	}
}

func (r *Reader) consume(n int) {
	r.buf = r.buf[:copy(r.buf, r.buf[n:])]
}

// Buffered returns the number of bytes waiting in the reader's buffer.
func (r *Reader) Buffered() int {
	return len(r.buf)
}
