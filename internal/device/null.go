// ABOUTME: Null playback backend
// ABOUTME: Drains audio at wall-clock rate without touching hardware
package device

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Airwave-Project/airwave-go/internal/audio"
	"github.com/google/uuid"
)

// NullBackend consumes audio at the format's realtime byte rate and
// discards it. Useful for tests and for exercising the full engine path
// on machines with no audio hardware.
type NullBackend struct {
	format audio.Format
	opened bool
}

// NewNull creates a null backend
func NewNull() *NullBackend {
	return &NullBackend{}
}

// Open records the format; there is no device to initialize
func (b *NullBackend) Open(format audio.Format) error {
	b.format = format
	b.opened = true
	return nil
}

// NewSession allocates a discarding playback session
func (b *NullBackend) NewSession() (Session, error) {
	if !b.opened {
		return nil, fmt.Errorf("backend not opened")
	}

	return &nullSession{
		id:     uuid.New().String(),
		format: b.format,
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}, nil
}

// Name identifies the backend for logs
func (b *NullBackend) Name() string { return "null" }

// Close releases nothing
func (b *NullBackend) Close() error { return nil }

type nullSession struct {
	id     string
	format audio.Format
	errs   chan error
	done   chan struct{}

	mu       sync.Mutex
	src      io.Reader
	running  bool
	released bool
}

func (s *nullSession) ID() string { return s.id }

func (s *nullSession) Attach(src io.Reader) {
	s.mu.Lock()
	s.src = src
	s.mu.Unlock()
}

func (s *nullSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src == nil {
		return fmt.Errorf("no source attached")
	}
	if s.running {
		return fmt.Errorf("session already started")
	}
	if s.released {
		return fmt.Errorf("session already released")
	}

	s.running = true
	go s.drain(s.src)
	return nil
}

// drain pulls from the source at the realtime byte rate
func (s *nullSession) drain(src io.Reader) {
	const tick = 20 * time.Millisecond
	chunk := make([]byte, s.format.BytesPerSecond()/50)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return
			}
			if _, err := src.Read(chunk); err != nil {
				return
			}
		}
	}
}

func (s *nullSession) Stop() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *nullSession) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.released = true
	s.running = false
	close(s.done)
	return nil
}

func (s *nullSession) Err() <-chan error { return s.errs }
