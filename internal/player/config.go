// ABOUTME: Engine policy configuration
// ABOUTME: All health and buffering thresholds are tunable, not hard-coded
package player

import "time"

// Config holds the engine's policy values. The defaults absorb bursty
// delivery of roughly 280 packets/sec from the source; every value is a
// tunable, surfaced as a flag in main.
type Config struct {
	// MaxQueuePackets bounds the sample queue; packets beyond it are
	// rejected rather than growing memory without bound.
	MaxQueuePackets int

	// PrebufferPackets is how many packets must accumulate before the
	// device is started, absorbing decode/network jitter at track start.
	PrebufferPackets int

	// CorruptionThreshold is the run of consecutive malformed packets
	// interpreted as upstream decoder corruption.
	CorruptionThreshold int

	// WatchdogInterval is the health check period.
	WatchdogInterval time.Duration

	// StarvationAfter declares the backend dead when nothing has been
	// read for this long while StarvationMinQueued packets are waiting.
	StarvationAfter     time.Duration
	StarvationMinQueued int

	// StallTicks consecutive watchdog ticks with the queue within
	// StallSlack packets of capacity declare the consumer stalled.
	StallTicks int
	StallSlack int

	// SettleDelay is how long to wait after releasing a broken session
	// for the backend to let go of exclusive device resources.
	SettleDelay time.Duration
}

// DefaultConfig returns the stock policy values
func DefaultConfig() Config {
	return Config{
		MaxQueuePackets:     500,
		PrebufferPackets:    50,
		CorruptionThreshold: 100,
		WatchdogInterval:    2 * time.Second,
		StarvationAfter:     3 * time.Second,
		StarvationMinQueued: 10,
		StallTicks:          5,
		StallSlack:          8,
		SettleDelay:         200 * time.Millisecond,
	}
}
