// ABOUTME: Audio device adapter interfaces
// ABOUTME: Common contract for playback backends and their sessions
package device

import (
	"io"

	"github.com/Airwave-Project/airwave-go/internal/audio"
)

// Backend owns the platform audio context. Open is called once; sessions
// are allocated per playback attempt and never reused after a failure.
type Backend interface {
	// Open initializes the backend for the given format
	Open(format audio.Format) error

	// NewSession allocates a device session in a not-yet-started state.
	// Nothing is pulled from the source until Start; starting a render
	// path against an empty source makes several backends treat the
	// stream as ended and kill the render thread for good.
	NewSession() (Session, error)

	// Name identifies the backend for logs
	Name() string

	// Close releases the backend context
	Close() error
}

// Session is one playback attempt against the device. A session that
// errors is released and discarded wholesale; the backend's internal
// fault state is unobservable, so partial reuse is never attempted.
type Session interface {
	// ID returns the session's unique identity
	ID() string

	// Attach binds the pull source. Must be called before Start.
	Attach(src io.Reader)

	// Start begins playback, pulling from the attached source
	Start() error

	// Stop pauses consumption; idempotent
	Stop() error

	// Release frees device resources; idempotent, swallows backend errors
	Release() error

	// Err delivers at most one asynchronous backend failure
	Err() <-chan error
}
