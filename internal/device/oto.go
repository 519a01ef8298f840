// ABOUTME: Oto-based playback backend
// ABOUTME: One oto context per process, one oto player per device session
package device

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Airwave-Project/airwave-go/internal/audio"
	"github.com/ebitengine/oto/v3"
	"github.com/google/uuid"
)

// OtoBackend wraps the oto library. Oto allows only one context per
// process, so the context lives on the backend and each session wraps a
// fresh oto player; releasing a session closes its player only.
type OtoBackend struct {
	ctx    *oto.Context
	format audio.Format
}

// NewOto creates an oto backend
func NewOto() *OtoBackend {
	return &OtoBackend{}
}

// Open initializes the oto context for the given format
func (b *OtoBackend) Open(format audio.Format) error {
	if b.ctx != nil {
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	b.ctx = ctx
	b.format = format

	log.Printf("Audio backend ready: oto %dHz, %d channels", format.SampleRate, format.Channels)
	return nil
}

// NewSession allocates a playback session; no player exists until Start
func (b *OtoBackend) NewSession() (Session, error) {
	if b.ctx == nil {
		return nil, fmt.Errorf("backend not opened")
	}

	return &otoSession{
		id:   uuid.New().String(),
		ctx:  b.ctx,
		errs: make(chan error, 1),
		done: make(chan struct{}),
	}, nil
}

// Name identifies the backend for logs
func (b *OtoBackend) Name() string { return "oto" }

// Close suspends the oto context (oto contexts cannot be destroyed)
func (b *OtoBackend) Close() error {
	if b.ctx != nil {
		return b.ctx.Suspend()
	}
	return nil
}

type otoSession struct {
	id   string
	ctx  *oto.Context
	errs chan error
	done chan struct{}

	mu       sync.Mutex
	src      io.Reader
	player   *oto.Player
	released bool
}

func (s *otoSession) ID() string { return s.id }

func (s *otoSession) Attach(src io.Reader) {
	s.mu.Lock()
	s.src = src
	s.mu.Unlock()
}

func (s *otoSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src == nil {
		return fmt.Errorf("no source attached")
	}
	if s.player != nil {
		return fmt.Errorf("session already started")
	}
	if s.released {
		return fmt.Errorf("session already released")
	}

	s.player = s.ctx.NewPlayer(s.src)
	s.player.Play()

	// Oto reports player failure by polling, not callback.
	go s.watchErr()

	return nil
}

// watchErr polls the player for a backend-reported failure
func (s *otoSession) watchErr() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			player := s.player
			s.mu.Unlock()
			if player == nil {
				return
			}
			if err := player.Err(); err != nil {
				select {
				case s.errs <- err:
				default:
				}
				return
			}
		}
	}
}

func (s *otoSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player != nil && s.player.IsPlaying() {
		s.player.Pause()
	}
	return nil
}

func (s *otoSession) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.released = true
	close(s.done)

	if s.player != nil {
		if err := s.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		s.player = nil
	}
	return nil
}

func (s *otoSession) Err() <-chan error { return s.errs }
