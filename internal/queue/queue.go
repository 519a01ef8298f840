// ABOUTME: Bounded thread-safe FIFO of PCM packets
// ABOUTME: Single hand-off point between network producer and device consumer
package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// Queue is a bounded FIFO of owned packet copies. The producer enqueues,
// the device-side reader dequeues, and the watchdog reads the consumption
// counters; all three may run concurrently. Enqueue never blocks on the
// consumer: when the queue is full the packet is rejected, not the caller.
type Queue struct {
	mu      sync.Mutex
	packets [][]byte
	head    int
	count   int

	// Consumption counters, readable without the producer's lock.
	lastRead      atomic.Int64 // unix nanos of the most recent dequeue
	bytesConsumed atomic.Int64
	enqueued      atomic.Int64
	rejected      atomic.Int64
}

// New creates a queue holding at most capacity packets
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue{
		packets: make([][]byte, capacity),
	}
	q.lastRead.Store(time.Now().UnixNano())
	return q
}

// Enqueue copies data into queue-owned storage and appends it. Returns
// false when the queue is at capacity or the packet is empty; the packet
// is dropped rather than evicting older audio or growing unbounded.
func (q *Queue) Enqueue(data []byte) bool {
	if len(data) == 0 {
		q.rejected.Add(1)
		return false
	}

	q.mu.Lock()
	if q.count == len(q.packets) {
		q.mu.Unlock()
		q.rejected.Add(1)
		return false
	}

	owned := make([]byte, len(data))
	copy(owned, data)

	tail := (q.head + q.count) % len(q.packets)
	q.packets[tail] = owned
	q.count++
	q.mu.Unlock()

	q.enqueued.Add(1)
	return true
}

// Dequeue pops the oldest packet. Never blocks; returns false when empty.
func (q *Queue) Dequeue() ([]byte, bool) {
	q.mu.Lock()
	if q.count == 0 {
		q.mu.Unlock()
		return nil, false
	}

	pkt := q.packets[q.head]
	q.packets[q.head] = nil
	q.head = (q.head + 1) % len(q.packets)
	q.count--
	q.mu.Unlock()

	q.lastRead.Store(time.Now().UnixNano())
	q.bytesConsumed.Add(int64(len(pkt)))
	return pkt, true
}

// Clear drains all queued packets and re-primes the read timestamp
func (q *Queue) Clear() {
	q.mu.Lock()
	for i := range q.packets {
		q.packets[i] = nil
	}
	q.head = 0
	q.count = 0
	q.mu.Unlock()

	q.lastRead.Store(time.Now().UnixNano())
}

// Len returns the number of queued packets
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Capacity returns the maximum number of queued packets
func (q *Queue) Capacity() int {
	return len(q.packets)
}

// LastRead returns the time of the most recent dequeue. The value is
// primed on creation, Clear and Touch so a fresh queue never looks starved.
func (q *Queue) LastRead() time.Time {
	return time.Unix(0, q.lastRead.Load())
}

// Touch re-primes the read timestamp, used when playback (re)starts
func (q *Queue) Touch() {
	q.lastRead.Store(time.Now().UnixNano())
}

// BytesConsumed returns the total bytes handed to the consumer
func (q *Queue) BytesConsumed() int64 {
	return q.bytesConsumed.Load()
}

// Enqueued returns the total packets accepted
func (q *Queue) Enqueued() int64 {
	return q.enqueued.Load()
}

// Rejected returns the total packets refused at capacity
func (q *Queue) Rejected() int64 {
	return q.rejected.Load()
}
