// Package dedupe tracks match submission ids so a retried submission is
// applied at most once.
package dedupe

import (
	"context"
	"sync"
)

// DefaultMaxSize is the number of ids remembered when no size is configured.
const DefaultMaxSize = 50000

// Deduper records seen match ids.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a submission that could not be accepted (for
	// example under queue backpressure) can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type entry struct {
	id  string
	gen uint64
}

// inMemoryDeduper remembers the most recent maxSize ids. The ring holds ids
// in arrival order; when it is full the oldest id is forgotten. Every record
// gets a generation so a slot left behind by Unrecord never evicts a later
// record of the same id.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64
	ring    []entry
	next    int
	gen     uint64
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]uint64)
	if d.maxSize > 0 {
		d.ring = make([]entry, 0, d.maxSize)
	}
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	d.gen++
	d.seen[id] = d.gen
	if d.maxSize <= 0 {
		return false
	}

	e := entry{id: id, gen: d.gen}
	if len(d.ring) < d.maxSize {
		d.ring = append(d.ring, e)
		return false
	}

	oldest := d.ring[d.next]
	if gen, ok := d.seen[oldest.id]; ok && gen == oldest.gen {
		delete(d.seen, oldest.id)
	}
	d.ring[d.next] = e
	d.next = (d.next + 1) % d.maxSize
	return false
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

// Size returns the number of remembered ids.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
