package subscription

import (
	"sync"

	"github.com/pushmodel-dev/pushmodel/pkg/observe"
)

// Scheduler runs a callback on the next scheduling turn.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func())

// Schedule calls f(fn).
func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

// Batcher coalesces patches enqueued during one turn into one send.
//
// A non-empty queue always has exactly one flush scheduled. Flushes send in
// the order they were scheduled.
type Batcher struct {
	mu        sync.Mutex
	queue     []observe.Patch
	scheduled bool

	// sendMu orders concurrent flushes.
	sendMu sync.Mutex

	scheduler Scheduler
	send      func([]observe.Patch)
}

// NewBatcher creates a batcher that hands each flushed batch to send.
func NewBatcher(scheduler Scheduler, send func([]observe.Patch)) *Batcher {
	return &Batcher{scheduler: scheduler, send: send}
}

// Enqueue appends p and schedules a flush if none is pending.
func (b *Batcher) Enqueue(p observe.Patch) {
	b.mu.Lock()
	b.queue = append(b.queue, p)
	schedule := !b.scheduled
	b.scheduled = true
	b.mu.Unlock()

	if schedule {
		b.scheduler.Schedule(b.Flush)
	}
}

// Flush sends the queued patches, if any, and empties the queue.
func (b *Batcher) Flush() {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	b.mu.Lock()
	batch := b.queue
	b.queue = nil
	b.scheduled = false
	b.mu.Unlock()

	if len(batch) > 0 {
		b.send(batch)
	}
}

// Len returns the number of queued patches.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
