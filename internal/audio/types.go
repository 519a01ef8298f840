// ABOUTME: Audio type definitions
// ABOUTME: Defines the fixed PCM stream format and packet validation helpers
package audio

// Format describes a PCM stream format
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is the only format the engine plays: 16-bit stereo 44.1kHz.
// Fixed for the process lifetime; there is no negotiation.
func DefaultFormat() Format {
	return Format{
		SampleRate:    44100,
		Channels:      2,
		BitsPerSample: 16,
	}
}

// BytesPerSecond returns the PCM byte rate for the format
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// BytesPerFrame returns the size of one sample frame (all channels)
func (f Format) BytesPerFrame() int {
	return f.Channels * f.BitsPerSample / 8
}

// ValidPacket reports whether buf[offset:offset+length] is a structurally
// sound PCM packet. Only the bounds are inspected, never the samples.
func ValidPacket(buf []byte, offset, length int) bool {
	if buf == nil {
		return false
	}
	if length <= 0 || offset < 0 {
		return false
	}
	return offset+length <= len(buf)
}

// Silence overwrites dst with PCM silence (zero samples)
func Silence(dst []byte) {
	for i := range dst {
		dst[i] = 0
	}
}
