package serio

import (
	"sync"

	"github.com/ooblab/serclient/internal/wire"
)

// fakeDevice scripts reads and captures writes.
type fakeDevice struct {
	mu      sync.Mutex
	pending [][]byte
	written []byte

	// acceptLimit caps bytes accepted per write; 0 accepts everything.
	acceptLimit int
	writeCalls  int
}

func (d *fakeDevice) feed(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	chunk := make([]byte, len(b))
	copy(chunk, b)
	d.pending = append(d.pending, chunk)
}

func (d *fakeDevice) feedPacket(p *wire.Packet) {
	d.feed(wire.Encode(p))
}

func (d *fakeDevice) Read(max int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return nil, nil
	}
	chunk := d.pending[0]
	if len(chunk) <= max {
		d.pending = d.pending[1:]
		return chunk, nil
	}
	d.pending[0] = chunk[max:]
	return chunk[:max], nil
}

func (d *fakeDevice) Write(b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeCalls++
	n := len(b)
	if d.acceptLimit > 0 && n > d.acceptLimit {
		n = d.acceptLimit
	}
	d.written = append(d.written, b[:n]...)
	return n, nil
}

func (d *fakeDevice) Close() error { return nil }

func (d *fakeDevice) writtenPackets() []*wire.Packet {
	d.mu.Lock()
	buf := make([]byte, len(d.written))
	copy(buf, d.written)
	d.mu.Unlock()

	var out []*wire.Packet
	for len(buf) > 0 {
		p, n, err := wire.Decode(buf)
		if err != nil {
			break
		}
		out = append(out, p)
		buf = buf[n:]
	}
	return out
}

// fakeClock steps forward on every Now call.
type fakeClock struct {
	mu   sync.Mutex
	now  int64
	step int64
	fail bool
}

func (c *fakeClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return -1
	}
	now := c.now
	c.now += c.step
	return now
}
