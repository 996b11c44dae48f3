// Package reassembly buffers fragments of multi-packet messages keyed by
// guid until the full set has arrived.
package reassembly

import (
	"sort"

	"github.com/google/uuid"

	"github.com/ooblab/serclient/internal/constants"
	"github.com/ooblab/serclient/internal/wire"
)

// Pool stages fragments per guid. It is owned by a single reader and is not
// safe for concurrent use.
//
// Total buffered body bytes are capped; inserting past the cap evicts whole
// guids oldest-first until the new fragment fits. The guid being inserted is
// never evicted, so a single guid larger than the cap stays buffered and the
// total then exceeds the cap. An evicted message is
// simply retransmitted by the host after its logic timeout.
type Pool struct {
	maxBytes int
	bytes    int
	entries  map[uuid.UUID]*entry
	order    []uuid.UUID // guid first-arrival order, oldest first
}

type entry struct {
	count     uint32
	fragments map[uint32]*wire.Packet
	bytes     int
}

// New creates a pool capped at maxBytes of buffered fragment bodies.
// maxBytes <= 0 selects the default cap.
func New(maxBytes int) *Pool {
	if maxBytes <= 0 {
		maxBytes = constants.DefaultPoolMaxBytes
	}
	return &Pool{
		maxBytes: maxBytes,
		entries:  make(map[uuid.UUID]*entry),
	}
}

// Add stages one fragment. A duplicate (same guid and number) replaces the
// earlier copy.
func (p *Pool) Add(pk *wire.Packet) {
	e, ok := p.entries[pk.GUID]
	if !ok {
		e = &entry{count: pk.Count, fragments: make(map[uint32]*wire.Packet)}
		p.entries[pk.GUID] = e
		p.order = append(p.order, pk.GUID)
	}

	if prev, ok := e.fragments[pk.Number]; ok {
		e.bytes -= len(prev.Body)
		p.bytes -= len(prev.Body)
	}
	e.fragments[pk.Number] = pk
	e.bytes += len(pk.Body)
	p.bytes += len(pk.Body)

	p.evict(pk.GUID)
}

// evict drops whole guids oldest-first until the pool fits its cap, never
// touching keep.
func (p *Pool) evict(keep uuid.UUID) {
	for p.bytes > p.maxBytes {
		evicted := false
		for _, g := range p.order {
			if g == keep {
				continue
			}
			p.Remove(g)
			evicted = true
			break
		}
		if !evicted {
			return
		}
	}
}

// HasAll reports whether every fragment of guid has arrived.
func (p *Pool) HasAll(guid uuid.UUID, count uint32) bool {
	e, ok := p.entries[guid]
	return ok && uint32(len(e.fragments)) == count
}

// TakeFull assembles the complete logical message for guid, concatenating
// fragment bodies in ascending number order. The assembled packet carries
// count = 1 and number = 1. Returns nil while fragments are missing.
// The entry stays in the pool until Remove.
func (p *Pool) TakeFull(guid uuid.UUID) *wire.Packet {
	e, ok := p.entries[guid]
	if !ok || uint32(len(e.fragments)) != e.count {
		return nil
	}

	numbers := make([]int, 0, len(e.fragments))
	for n := range e.fragments {
		numbers = append(numbers, int(n))
	}
	sort.Ints(numbers)

	body := make([]byte, 0, e.bytes)
	for _, n := range numbers {
		body = append(body, e.fragments[uint32(n)].Body...)
	}

	first := e.fragments[uint32(numbers[0])]
	return &wire.Packet{
		GUID:    guid,
		Command: first.Command,
		Number:  1,
		Count:   1,
		Body:    body,
		Outcome: first.Outcome,
	}
}

// Remove drops every staged fragment for guid.
func (p *Pool) Remove(guid uuid.UUID) {
	e, ok := p.entries[guid]
	if !ok {
		return
	}
	p.bytes -= e.bytes
	delete(p.entries, guid)
	for i, g := range p.order {
		if g == guid {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Bytes returns the total buffered fragment body bytes.
func (p *Pool) Bytes() int {
	return p.bytes
}
