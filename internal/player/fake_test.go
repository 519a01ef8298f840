// ABOUTME: Fake device backend for player tests
// ABOUTME: Records session lifecycle calls and injects backend failures
package player

import (
	"fmt"
	"io"
	"sync"

	"github.com/Airwave-Project/airwave-go/internal/audio"
	"github.com/Airwave-Project/airwave-go/internal/device"
)

type fakeBackend struct {
	mu          sync.Mutex
	opened      bool
	closed      bool
	failSession bool
	sessions    []*fakeSession
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{}
}

func (b *fakeBackend) Open(format audio.Format) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened = true
	return nil
}

func (b *fakeBackend) NewSession() (device.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failSession {
		return nil, fmt.Errorf("injected allocation failure")
	}

	s := &fakeSession{
		id:   fmt.Sprintf("fake-%d", len(b.sessions)),
		errs: make(chan error, 1),
	}
	b.sessions = append(b.sessions, s)
	return s, nil
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBackend) session(i int) *fakeSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i >= len(b.sessions) {
		return nil
	}
	return b.sessions[i]
}

func (b *fakeBackend) sessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

type fakeSession struct {
	id   string
	errs chan error

	mu        sync.Mutex
	src       io.Reader
	failStart bool
	starts    int
	stops     int
	releases  int

	// blockStart, when set, holds Start open until closed; startEntered
	// is closed once Start is in flight.
	blockStart   chan struct{}
	startEntered chan struct{}
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Attach(src io.Reader) {
	s.mu.Lock()
	s.src = src
	s.mu.Unlock()
}

func (s *fakeSession) Start() error {
	s.mu.Lock()
	if s.src == nil {
		s.mu.Unlock()
		return fmt.Errorf("no source attached")
	}
	entered := s.startEntered
	block := s.blockStart
	s.mu.Unlock()

	// Blocking happens outside the lock; Stop and Release must stay
	// callable while Start is held open.
	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStart {
		return fmt.Errorf("injected start failure")
	}
	s.starts++
	return nil
}

func (s *fakeSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeSession) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	return nil
}

func (s *fakeSession) Err() <-chan error { return s.errs }

// fail injects an asynchronous backend failure
func (s *fakeSession) fail(err error) {
	s.errs <- err
}

func (s *fakeSession) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func (s *fakeSession) releaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}
