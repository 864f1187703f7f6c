// Package dedupe tracks submission fingerprints so exact resubmits are
// acknowledged without being processed twice.
package dedupe

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

// Deduper records seen fingerprints to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes a key so the submission can be retried. Used when a
	// recorded submission could not be enqueued.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Fingerprint identifies a submission by case, record kind, record id and
// the exact body. An edited record yields a new fingerprint.
func Fingerprint(caseID, kind, recordID string, body []byte) string {
	h := sha256.New()
	for _, part := range []string{caseID, kind, recordID} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// inMemoryDeduper keeps fingerprints in insertion order. In bounded mode the
// oldest entry is evicted first; with maxSize <= 0 nothing is evicted.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[key] = d.order.PushBack(key)
	d.size.Add(1)
	return false
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, exists := d.seen[key]; exists {
		d.order.Remove(el)
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// evictOldest drops the first recorded key. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	d.order.Remove(front)
	delete(d.seen, front.Value.(string))
	d.size.Add(-1)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
