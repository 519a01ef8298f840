// ABOUTME: Streaming audio engine facade and lifecycle manager
// ABOUTME: Owns the teardown/settle/rebuild recovery protocol
package player

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Airwave-Project/airwave-go/internal/audio"
	"github.com/Airwave-Project/airwave-go/internal/device"
	"github.com/Airwave-Project/airwave-go/internal/queue"
)

// Engine is the resilient audio output engine: the producer pushes PCM
// packets in, the device drains them at its own cadence, and the engine
// detects and recovers from backend failure on its own. Only decoder
// corruption ever crosses the module boundary outward, because only the
// decoder can fix its own output.
type Engine struct {
	cfg     Config
	format  audio.Format
	backend device.Backend
	queue   *queue.Queue
	ctrl    *Controller

	// OnDecoderReset asks the decoder collaborator to reinitialize after
	// sustained malformed input. OnPlaybackFailed notifies a supervisor
	// that autonomous recovery has begun; it is never waited on.
	// Both must be set before Initialize.
	OnDecoderReset   func()
	OnPlaybackFailed func(Reason)

	// lifeMu serializes recovery, flush and dispose so overlapping
	// failure signals cannot race into a double teardown. It is the only
	// lock in the engine held across a sleep, and the producer path
	// never takes it.
	lifeMu sync.Mutex

	mu       sync.Mutex
	watchdog *Watchdog
	sessDone chan struct{}
	disposed bool

	signals chan signalMsg
	done    chan struct{}

	recoveries  atomic.Int64
	lastFailure atomic.Value // Reason
}

// signalMsg tags a failure with the session it was observed against, so
// a stale watchdog or backend monitor cannot tear down its successor.
type signalMsg struct {
	reason    Reason
	sessionID string
}

// New creates an engine on the given backend
func New(cfg Config, backend device.Backend) *Engine {
	q := queue.New(cfg.MaxQueuePackets)
	ctrl := NewController(cfg, backend, q)

	e := &Engine{
		cfg:     cfg,
		format:  audio.DefaultFormat(),
		backend: backend,
		queue:   q,
		ctrl:    ctrl,
		signals: make(chan signalMsg, 8),
		done:    make(chan struct{}),
	}

	ctrl.OnPlaying = e.handlePlaying
	ctrl.OnStartFailed = e.handleStartFailed
	ctrl.OnCorruption = e.handleCorruption

	return e
}

// Initialize opens the backend, enters Prebuffering, and starts the
// recovery loop
func (e *Engine) Initialize() error {
	if err := e.backend.Open(e.format); err != nil {
		return fmt.Errorf("failed to open audio backend: %w", err)
	}
	if err := e.ctrl.Begin(); err != nil {
		return fmt.Errorf("failed to allocate device session: %w", err)
	}

	go e.recoverLoop()

	log.Printf("Engine initialized: backend=%s, queue=%d packets, prebuffer=%d",
		e.backend.Name(), e.cfg.MaxQueuePackets, e.cfg.PrebufferPackets)
	return nil
}

// OnPCMPacket accepts one packet from the network producer. Never blocks:
// malformed packets are dropped and counted, and a full queue rejects
// rather than stalls.
func (e *Engine) OnPCMPacket(buf []byte, offset, length int) {
	e.mu.Lock()
	disposed := e.disposed
	e.mu.Unlock()
	if disposed {
		return
	}

	e.ctrl.Submit(buf, offset, length)
}

// OnTrackFlush handles a track boundary with the lightweight flush path
func (e *Engine) OnTrackFlush() {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	log.Printf("Track flush: clearing queue and rebuffering")
	e.stopSessionMonitors()

	if err := e.ctrl.Flush(); err != nil {
		log.Printf("Flush session allocation failed: %v", err)
		e.enqueueSignal(signalMsg{reason: ReasonTrackChange})
	}
}

// Dispose releases all backend resources deterministically, whatever
// state the engine is in
func (e *Engine) Dispose() {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	e.mu.Unlock()

	close(e.done)
	e.stopSessionMonitors()
	e.ctrl.Halt()
	e.queue.Clear()

	if err := e.backend.Close(); err != nil {
		log.Printf("Warning: backend close error: %v", err)
	}

	log.Printf("Engine disposed")
}

// handlePlaying arms a fresh watchdog and backend error monitor for the
// session that just started
func (e *Engine) handlePlaying(session device.Session) {
	e.mu.Lock()
	if e.watchdog != nil {
		e.watchdog.Stop()
	}
	if e.sessDone != nil {
		close(e.sessDone)
	}

	sessionID := session.ID()
	w := NewWatchdog(e.cfg, e.queue, func(reason Reason) {
		e.enqueueSignal(signalMsg{reason: reason, sessionID: sessionID})
	})
	sessDone := make(chan struct{})
	e.watchdog = w
	e.sessDone = sessDone
	e.mu.Unlock()

	go w.Run()
	go e.watchSession(session, sessDone)
}

// watchSession forwards the backend's own failure notification
func (e *Engine) watchSession(session device.Session, sessDone chan struct{}) {
	select {
	case err := <-session.Err():
		log.Printf("Backend reported failure: %v", err)
		e.enqueueSignal(signalMsg{reason: ReasonBackendError, sessionID: session.ID()})
	case <-sessDone:
	case <-e.done:
	}
}

// handleStartFailed treats a session that died during start as a backend
// failure; the session is discarded wholesale
func (e *Engine) handleStartFailed(session device.Session, err error) {
	e.enqueueSignal(signalMsg{reason: ReasonBackendError, sessionID: session.ID()})
}

// handleCorruption escalates sustained malformed input to the decoder
func (e *Engine) handleCorruption() {
	log.Printf("Sustained decoder corruption detected, requesting decoder reset")
	e.lastFailure.Store(ReasonDecoderCorruption)
	if e.OnDecoderReset != nil {
		e.OnDecoderReset()
	}
}

// enqueueSignal never blocks a signalling goroutine; an overflowing
// signal is redundant with one already queued
func (e *Engine) enqueueSignal(sig signalMsg) {
	select {
	case e.signals <- sig:
	default:
	}
}

// recoverLoop is the single consumer of failure signals
func (e *Engine) recoverLoop() {
	for {
		select {
		case <-e.done:
			return
		case sig := <-e.signals:
			e.recover(sig)
		}
	}
}

// recover runs the full recreation protocol: cancel the watchdog, stop
// and release the broken session, wait the settle interval for the
// backend to release exclusive device resources, then rebuild from
// scratch. The settle sleep holds only lifeMu, which the producer path
// never touches, so inbound packets keep landing in the queue throughout.
func (e *Engine) recover(sig signalMsg) {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	currentID := ""
	if session := e.ctrl.Session(); session != nil {
		currentID = session.ID()
	}
	if sig.sessionID != currentID {
		log.Printf("Ignoring stale failure signal (%s) for superseded session", sig.reason)
		return
	}

	log.Printf("Playback failed (%s), recreating device session", sig.reason)

	e.stopSessionMonitors()
	e.ctrl.Halt()

	e.recoveries.Add(1)
	e.lastFailure.Store(sig.reason)
	if e.OnPlaybackFailed != nil {
		e.OnPlaybackFailed(sig.reason)
	}

	time.Sleep(e.cfg.SettleDelay)

	if err := e.ctrl.Begin(); err != nil {
		log.Printf("Device session allocation failed, will retry: %v", err)
		e.enqueueSignal(signalMsg{reason: sig.reason})
		return
	}

	log.Printf("Device session recreated, prebuffering")
}

// stopSessionMonitors cancels the active watchdog and backend monitor
func (e *Engine) stopSessionMonitors() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.watchdog != nil {
		e.watchdog.Stop()
		e.watchdog = nil
	}
	if e.sessDone != nil {
		close(e.sessDone)
		e.sessDone = nil
	}
}

// State returns the playback state
func (e *Engine) State() State {
	return e.ctrl.State()
}

// Stats is a point-in-time snapshot for supervision and the TUI
type Stats struct {
	State         State
	Backend       string
	Queued        int
	QueueCapacity int
	Enqueued      int64
	Rejected      int64
	BytesConsumed int64
	Recoveries    int64
	LastFailure   string
}

// Stats returns current engine statistics
func (e *Engine) Stats() Stats {
	s := Stats{
		State:         e.ctrl.State(),
		Backend:       e.backend.Name(),
		Queued:        e.queue.Len(),
		QueueCapacity: e.queue.Capacity(),
		Enqueued:      e.queue.Enqueued(),
		Rejected:      e.queue.Rejected(),
		BytesConsumed: e.queue.BytesConsumed(),
		Recoveries:    e.recoveries.Load(),
	}
	if reason, ok := e.lastFailure.Load().(Reason); ok {
		s.LastFailure = reason.String()
	}
	return s
}
