// ABOUTME: Malgo/miniaudio-based playback backend
// ABOUTME: Callback-driven pull with stop-callback failure reporting
package device

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Airwave-Project/airwave-go/internal/audio"
	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
)

// MalgoBackend wraps the miniaudio library via malgo. Unlike oto it
// reports unexpected device stops through a callback, which maps straight
// onto the session's error channel.
type MalgoBackend struct {
	ctx    *malgo.AllocatedContext
	format audio.Format
}

// NewMalgo creates a malgo backend
func NewMalgo() *MalgoBackend {
	return &MalgoBackend{}
}

// Open initializes the malgo context for the given format
func (b *MalgoBackend) Open(format audio.Format) error {
	if b.ctx != nil {
		return nil
	}
	if format.BitsPerSample != 16 {
		return fmt.Errorf("unsupported bit depth: %d", format.BitsPerSample)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	b.ctx = ctx
	b.format = format

	log.Printf("Audio backend ready: malgo %dHz, %d channels", format.SampleRate, format.Channels)
	return nil
}

// NewSession allocates a playback session; the device is created in Start
func (b *MalgoBackend) NewSession() (Session, error) {
	if b.ctx == nil {
		return nil, fmt.Errorf("backend not opened")
	}

	return &malgoSession{
		id:      uuid.New().String(),
		backend: b,
		errs:    make(chan error, 1),
	}, nil
}

// Name identifies the backend for logs
func (b *MalgoBackend) Name() string { return "malgo" }

// Close uninitializes the malgo context
func (b *MalgoBackend) Close() error {
	if b.ctx != nil {
		if err := b.ctx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		b.ctx.Free()
		b.ctx = nil
	}
	return nil
}

type malgoSession struct {
	id      string
	backend *MalgoBackend
	errs    chan error

	mu       sync.Mutex
	src      io.Reader
	device   *malgo.Device
	stopping bool
	released bool
}

func (s *malgoSession) ID() string { return s.id }

func (s *malgoSession) Attach(src io.Reader) {
	s.mu.Lock()
	s.src = src
	s.mu.Unlock()
}

func (s *malgoSession) Start() error {
	s.mu.Lock()
	if s.src == nil {
		s.mu.Unlock()
		return fmt.Errorf("no source attached")
	}
	if s.device != nil {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	if s.released {
		s.mu.Unlock()
		return fmt.Errorf("session already released")
	}
	// The data callback runs on the audio thread as soon as the device
	// starts; the mutex must not be held across device init.
	s.mu.Unlock()

	format := s.backend.format
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onDeviceStop,
	}

	device, err := malgo.InitDevice(s.backend.ctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	s.mu.Lock()
	s.device = device
	s.mu.Unlock()
	return nil
}

// onData fills the device buffer from the attached source. The source is
// a QueueReader, so the read always completes with audio or silence.
func (s *malgoSession) onData(pOutput, _ []byte, _ uint32) {
	s.mu.Lock()
	src := s.src
	s.mu.Unlock()

	if src == nil {
		audio.Silence(pOutput)
		return
	}
	if _, err := src.Read(pOutput); err != nil {
		audio.Silence(pOutput)
	}
}

// onDeviceStop fires when the device stops; a stop nobody asked for is
// the backend self-reporting fatal failure.
func (s *malgoSession) onDeviceStop() {
	s.mu.Lock()
	deliberate := s.stopping || s.released
	s.mu.Unlock()

	if deliberate {
		return
	}

	select {
	case s.errs <- fmt.Errorf("audio device stopped unexpectedly"):
	default:
	}
}

func (s *malgoSession) Stop() error {
	s.mu.Lock()
	s.stopping = true
	device := s.device
	s.mu.Unlock()

	if device != nil {
		if err := device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
	}
	return nil
}

func (s *malgoSession) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	device := s.device
	s.device = nil
	s.mu.Unlock()

	// Uninit can fire the stop callback synchronously; the mutex must not
	// be held here.
	if device != nil {
		device.Uninit()
	}
	return nil
}

func (s *malgoSession) Err() <-chan error { return s.errs }
