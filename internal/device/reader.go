// ABOUTME: Queue-backed pull source for playback sessions
// ABOUTME: Feeds silence through network gaps so the render thread never sees EOF
package device

import (
	"io"
	"sync"

	"github.com/Airwave-Project/airwave-go/internal/audio"
	"github.com/Airwave-Project/airwave-go/internal/queue"
)

// QueueReader adapts the sample queue to io.Reader for pull backends.
// While open it always satisfies the full read: when the queue runs dry
// the remainder is silence, never a short read or io.EOF — an EOF is what
// makes backends terminate the render thread irrecoverably.
type QueueReader struct {
	q       *queue.Queue
	mu      sync.Mutex
	pending []byte
	closed  bool
}

// NewQueueReader creates a reader draining the given queue
func NewQueueReader(q *queue.Queue) *QueueReader {
	return &QueueReader{q: q}
}

func (r *QueueReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) {
		if len(r.pending) == 0 {
			pkt, ok := r.q.Dequeue()
			if !ok {
				break
			}
			r.pending = pkt
		}
		c := copy(p[n:], r.pending)
		r.pending = r.pending[c:]
		n += c
	}

	if n < len(p) {
		audio.Silence(p[n:])
	}
	return len(p), nil
}

// Close makes subsequent reads return io.EOF, letting the backend wind
// down its render thread when the session is released deliberately.
func (r *QueueReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}
