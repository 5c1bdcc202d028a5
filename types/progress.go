package types

import (
	"sync"
	"sync/atomic"
)

// Progress is the shared browse sink.
//
// The dispatcher worker appends every discovered tag the instant it is found;
// any other goroutine may read the counter or take a snapshot concurrently.
// This is what makes timeout-tolerant partial harvesting possible: a caller
// whose wait expires can still collect everything discovered so far.
//
// The lock is held only for the duration of a slice append or copy, never
// across a native call, so readers never meaningfully block the worker.
type Progress struct {
	count atomic.Int64

	mu   sync.Mutex
	tags []string
}

// NewProgress creates an empty progress sink.
func NewProgress() *Progress {
	return &Progress{}
}

// Add appends a discovered tag and increments the counter.
// Called only by the dispatcher worker.
func (p *Progress) Add(tag string) {
	p.mu.Lock()
	p.tags = append(p.tags, tag)
	p.mu.Unlock()
	p.count.Add(1)
}

// Count returns the number of tags discovered so far.
//
// Safe for concurrent use; does not take the dispatcher's execution slot.
func (p *Progress) Count() int {
	return int(p.count.Load())
}

// Snapshot returns a copy of the tags discovered so far, in discovery order.
//
// Safe for concurrent use; the returned slice is owned by the caller.
func (p *Progress) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.tags))
	copy(out, p.tags)

	return out
}
