// ABOUTME: Playback state machine
// ABOUTME: Validates packets, prebuffers, and starts device sessions exactly once
package player

import (
	"log"
	"sync"

	"github.com/Airwave-Project/airwave-go/internal/audio"
	"github.com/Airwave-Project/airwave-go/internal/device"
	"github.com/Airwave-Project/airwave-go/internal/queue"
)

// State is the playback controller state
type State int

const (
	StateIdle State = iota
	StatePrebuffering
	StatePlaying
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrebuffering:
		return "prebuffering"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Controller drives the device session from the sample queue. It owns the
// Idle → Prebuffering → Playing → Stopped transitions; the engine owns
// recovery back out of Stopped.
type Controller struct {
	cfg     Config
	backend device.Backend
	queue   *queue.Queue

	// OnPlaying fires once per session when playback starts.
	// OnStartFailed fires when a session dies during start; the session
	// is discarded wholesale, never partially reused.
	// OnCorruption fires when the malformed-packet run hits threshold.
	// All three must be set before the first Submit.
	OnPlaying     func(device.Session)
	OnStartFailed func(device.Session, error)
	OnCorruption  func()

	mu      sync.Mutex
	state   State
	session device.Session
	reader  *device.QueueReader
	skips   int
}

// NewController creates a controller in the Idle state
func NewController(cfg Config, backend device.Backend, q *queue.Queue) *Controller {
	return &Controller{
		cfg:     cfg,
		backend: backend,
		queue:   q,
		state:   StateIdle,
	}
}

// Begin allocates a fresh, not-yet-started session and enters
// Prebuffering. Valid from Idle and Stopped.
func (c *Controller) Begin() error {
	session, err := c.backend.NewSession()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = StateStopped
		return err
	}

	c.session = session
	c.skips = 0
	c.state = StatePrebuffering
	return nil
}

// Submit validates and enqueues one packet from the producer. Returns
// false when the packet was dropped, for either malformation or a full
// queue. Never blocks on the consumer.
func (c *Controller) Submit(buf []byte, offset, length int) bool {
	if !audio.ValidPacket(buf, offset, length) {
		c.mu.Lock()
		c.skips++
		// An unbroken run re-escalates at every threshold multiple; a
		// reset that did not take gets requested again.
		hit := c.skips%c.cfg.CorruptionThreshold == 0
		cb := c.OnCorruption
		c.mu.Unlock()

		// The controller cannot repair corrupt audio, only refuse to
		// propagate it; a sustained run is escalated to the decoder.
		if hit && cb != nil {
			cb()
		}
		return false
	}

	c.mu.Lock()
	c.skips = 0
	c.mu.Unlock()

	ok := c.queue.Enqueue(buf[offset : offset+length])
	c.maybeStart()
	return ok
}

// maybeStart transitions Prebuffering → Playing once the queue has
// reached the prebuffer target. The state flips under the lock so start
// happens exactly once no matter how many producers race here.
func (c *Controller) maybeStart() {
	c.mu.Lock()
	if c.state != StatePrebuffering || c.session == nil || c.queue.Len() < c.cfg.PrebufferPackets {
		c.mu.Unlock()
		return
	}
	session := c.session
	reader := device.NewQueueReader(c.queue)
	c.reader = reader
	c.state = StatePlaying
	c.mu.Unlock()

	session.Attach(reader)
	c.queue.Touch()

	if err := session.Start(); err != nil {
		log.Printf("Device session start failed: %v", err)
		// A flush or recovery may have installed a fresh session while
		// Start was in flight; the superseded session's outcome must not
		// clobber the fresh session's state.
		c.mu.Lock()
		if c.session != session {
			c.mu.Unlock()
			return
		}
		c.state = StateStopped
		c.mu.Unlock()
		if c.OnStartFailed != nil {
			c.OnStartFailed(session, err)
		}
		return
	}

	c.mu.Lock()
	if c.session != session {
		c.mu.Unlock()
		session.Stop()
		session.Release()
		return
	}
	c.mu.Unlock()

	log.Printf("Playback started (session %s, %d packets buffered)", session.ID(), c.queue.Len())
	if c.OnPlaying != nil {
		c.OnPlaying(session)
	}
}

// Halt tears down to Stopped: detaches the reader and stops and releases
// the session, swallowing backend errors. Teardown always succeeds from
// the caller's perspective.
func (c *Controller) Halt() {
	c.mu.Lock()
	session := c.session
	reader := c.reader
	c.session = nil
	c.reader = nil
	c.state = StateStopped
	c.mu.Unlock()

	if reader != nil {
		reader.Close()
	}
	if session != nil {
		session.Stop()
		session.Release()
	}
}

// Flush handles a track boundary: the content stream changed but the
// backend is assumed healthy, so this is cheaper than full recreation.
// The queue is emptied, the old session released, and a fresh unstarted
// session accumulates the next track's prebuffer.
func (c *Controller) Flush() error {
	c.mu.Lock()
	session := c.session
	reader := c.reader
	c.session = nil
	c.reader = nil
	c.skips = 0
	c.mu.Unlock()

	if reader != nil {
		reader.Close()
	}
	if session != nil {
		session.Stop()
		session.Release()
	}
	c.queue.Clear()

	return c.Begin()
}

// State returns the current controller state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the active device session, or nil
func (c *Controller) Session() device.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}
