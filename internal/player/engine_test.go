// ABOUTME: Tests for the engine lifecycle manager
// ABOUTME: Tests autonomous recovery, session replacement and flush handling
package player

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func engineConfig() Config {
	cfg := DefaultConfig()
	cfg.PrebufferPackets = 3
	cfg.SettleDelay = 10 * time.Millisecond
	cfg.WatchdogInterval = 10 * time.Millisecond
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startedEngine(t *testing.T, cfg Config) (*Engine, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	e := New(cfg, backend)

	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	t.Cleanup(e.Dispose)
	return e, backend
}

func feedUntilPlaying(t *testing.T, e *Engine, cfg Config) {
	t.Helper()
	pkt := make([]byte, 1024)
	for i := 0; i < cfg.PrebufferPackets; i++ {
		e.OnPCMPacket(pkt, 0, len(pkt))
	}
	waitFor(t, "playing state", func() bool { return e.State() == StatePlaying })
}

func TestInitializeEntersPrebuffering(t *testing.T) {
	e, backend := startedEngine(t, engineConfig())

	if !backend.opened {
		t.Error("expected backend to be opened")
	}
	if e.State() != StatePrebuffering {
		t.Errorf("expected prebuffering, got %s", e.State())
	}
	if backend.session(0).startCount() != 0 {
		t.Error("device must not start before prebuffer fills")
	}
}

func TestBackendErrorTriggersFullRecreation(t *testing.T) {
	cfg := engineConfig()
	backend := newFakeBackend()
	e := New(cfg, backend)

	var mu sync.Mutex
	var failures []Reason
	e.OnPlaybackFailed = func(r Reason) {
		mu.Lock()
		failures = append(failures, r)
		mu.Unlock()
	}

	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer e.Dispose()

	feedUntilPlaying(t, e, cfg)
	old := backend.session(0)

	old.fail(fmt.Errorf("device unplugged"))

	waitFor(t, "session recreation", func() bool {
		return backend.sessionCount() == 2 && e.State() == StatePrebuffering
	})

	if old.releaseCount() != 1 {
		t.Errorf("expected broken session released exactly once, got %d", old.releaseCount())
	}

	mu.Lock()
	if len(failures) != 1 || failures[0] != ReasonBackendError {
		t.Errorf("expected one backend-error notification, got %v", failures)
	}
	mu.Unlock()

	// The replacement is a strictly new session; the old one never
	// starts again.
	feedUntilPlaying(t, e, cfg)
	if old.startCount() != 1 {
		t.Errorf("broken session was reused: %d starts", old.startCount())
	}
	if backend.session(1).startCount() != 1 {
		t.Errorf("expected fresh session started once, got %d", backend.session(1).startCount())
	}
}

func TestWatchdogStarvationTriggersRecovery(t *testing.T) {
	cfg := engineConfig()
	cfg.PrebufferPackets = 15
	cfg.StarvationAfter = 20 * time.Millisecond
	cfg.StarvationMinQueued = 10

	backend := newFakeBackend()
	e := New(cfg, backend)

	var mu sync.Mutex
	var got Reason
	var notified bool
	e.OnPlaybackFailed = func(r Reason) {
		mu.Lock()
		got = r
		notified = true
		mu.Unlock()
	}

	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer e.Dispose()

	// Fake sessions never drain the queue, so once playing the watchdog
	// must see reads stall while packets pile up.
	feedUntilPlaying(t, e, cfg)

	waitFor(t, "starvation recovery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return notified
	})

	mu.Lock()
	if got != ReasonReadStarvation {
		t.Errorf("expected read starvation, got %s", got)
	}
	mu.Unlock()

	waitFor(t, "recreated session", func() bool { return backend.sessionCount() == 2 })
}

func TestTrackFlushWhilePlaying(t *testing.T) {
	cfg := engineConfig()
	e, backend := startedEngine(t, cfg)

	feedUntilPlaying(t, e, cfg)

	// Pile up a mid-track backlog, then flush at the boundary.
	pkt := make([]byte, 1024)
	for i := 0; i < 200; i++ {
		e.OnPCMPacket(pkt, 0, len(pkt))
	}

	e.OnTrackFlush()

	if got := e.Stats().Queued; got != 0 {
		t.Errorf("expected empty queue after flush, got %d", got)
	}
	if e.State() != StatePrebuffering {
		t.Errorf("expected prebuffering after flush, got %s", e.State())
	}
	if got := backend.session(0).releaseCount(); got != 1 {
		t.Errorf("expected old session released exactly once, got %d", got)
	}

	// Next track plays on the fresh session.
	feedUntilPlaying(t, e, cfg)
	if backend.session(1).startCount() != 1 {
		t.Errorf("expected new session started once, got %d", backend.session(1).startCount())
	}
}

func TestCorruptionEscalatesWithoutRecreation(t *testing.T) {
	cfg := engineConfig()
	cfg.CorruptionThreshold = 100

	backend := newFakeBackend()
	e := New(cfg, backend)

	resets := 0
	e.OnDecoderReset = func() { resets++ }

	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer e.Dispose()

	for i := 0; i < 100; i++ {
		e.OnPCMPacket(nil, 0, 10)
	}

	if resets != 1 {
		t.Errorf("expected exactly one decoder reset, got %d", resets)
	}
	if backend.sessionCount() != 1 {
		t.Errorf("corruption must not recreate the device, got %d sessions", backend.sessionCount())
	}
	if e.Stats().Recoveries != 0 {
		t.Errorf("corruption must not count as recovery, got %d", e.Stats().Recoveries)
	}
}

func TestStaleSignalIgnored(t *testing.T) {
	cfg := engineConfig()
	e, backend := startedEngine(t, cfg)

	feedUntilPlaying(t, e, cfg)

	e.enqueueSignal(signalMsg{reason: ReasonBackendError, sessionID: "long-gone"})

	// Give the recovery loop time to see it; nothing must change.
	time.Sleep(100 * time.Millisecond)

	if backend.sessionCount() != 1 {
		t.Errorf("stale signal recreated the session: %d sessions", backend.sessionCount())
	}
	if e.Stats().Recoveries != 0 {
		t.Errorf("stale signal counted as recovery: %d", e.Stats().Recoveries)
	}
}

func TestPacketsAcceptedDuringRecovery(t *testing.T) {
	cfg := engineConfig()
	cfg.SettleDelay = 150 * time.Millisecond
	e, backend := startedEngine(t, cfg)

	feedUntilPlaying(t, e, cfg)
	backend.session(0).fail(fmt.Errorf("boom"))

	// Keep producing straight through the settle window.
	pkt := make([]byte, 256)
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		e.OnPCMPacket(pkt, 0, len(pkt))
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, "recovery", func() bool { return backend.sessionCount() == 2 })

	if e.Stats().Enqueued <= int64(cfg.PrebufferPackets) {
		t.Error("expected packets to keep landing in the queue during recovery")
	}
}

func TestDisposeIsIdempotentAndTerminal(t *testing.T) {
	cfg := engineConfig()
	backend := newFakeBackend()
	e := New(cfg, backend)

	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	e.Dispose()
	e.Dispose()

	if !backend.closed {
		t.Error("expected backend closed on dispose")
	}
	if got := backend.session(0).releaseCount(); got != 1 {
		t.Errorf("expected session released exactly once, got %d", got)
	}

	// Producer calls after dispose are no-ops.
	e.OnPCMPacket(make([]byte, 64), 0, 64)
	if e.Stats().Queued != 0 {
		t.Error("packet accepted after dispose")
	}
}

func TestStatsSnapshot(t *testing.T) {
	cfg := engineConfig()
	e, _ := startedEngine(t, cfg)

	pkt := make([]byte, 100)
	e.OnPCMPacket(pkt, 0, len(pkt))

	s := e.Stats()
	if s.Backend != "fake" {
		t.Errorf("expected backend name fake, got %s", s.Backend)
	}
	if s.QueueCapacity != cfg.MaxQueuePackets {
		t.Errorf("expected capacity %d, got %d", cfg.MaxQueuePackets, s.QueueCapacity)
	}
	if s.Enqueued != 1 {
		t.Errorf("expected 1 enqueued, got %d", s.Enqueued)
	}
}
