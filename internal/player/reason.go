// ABOUTME: Failure and recovery reason enumeration
// ABOUTME: Drives which recovery path the engine takes
package player

// Reason classifies why playback was interrupted
type Reason int

const (
	// ReasonBackendError is the backend self-reporting fatal failure
	ReasonBackendError Reason = iota

	// ReasonReadStarvation means the backend stopped pulling entirely
	ReasonReadStarvation

	// ReasonConsumerStalled means the backend pulls too slowly to keep up
	ReasonConsumerStalled

	// ReasonDecoderCorruption is sustained malformed input; escalated to
	// the decoder collaborator, never handled by device recreation
	ReasonDecoderCorruption

	// ReasonTrackChange is an expected track boundary, not a failure
	ReasonTrackChange
)

func (r Reason) String() string {
	switch r {
	case ReasonBackendError:
		return "backend error"
	case ReasonReadStarvation:
		return "read starvation"
	case ReasonConsumerStalled:
		return "consumer stalled"
	case ReasonDecoderCorruption:
		return "decoder corruption"
	case ReasonTrackChange:
		return "track change"
	default:
		return "unknown"
	}
}
