// ABOUTME: Test app that drives a sine tone through the full engine path
// ABOUTME: Exercises prebuffer, steady-state playback and track flush end to end
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Airwave-Project/airwave-go/internal/audio"
	"github.com/Airwave-Project/airwave-go/internal/device"
	"github.com/Airwave-Project/airwave-go/internal/player"
)

var (
	backend   = flag.String("backend", "oto", "Audio backend: oto, malgo, null")
	frequency = flag.Float64("freq", 440.0, "Tone frequency in Hz")
	duration  = flag.Duration("duration", 10*time.Second, "How long to play")
	flushAt   = flag.Duration("flush-at", 0, "Inject a track flush after this long (0 = never)")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	fmt.Println("=== Airwave Tone Test ===")
	fmt.Printf("Backend: %s, frequency: %.1fHz, duration: %s\n", *backend, *frequency, *duration)

	var audioBackend device.Backend
	switch *backend {
	case "oto":
		audioBackend = device.NewOto()
	case "malgo":
		audioBackend = device.NewMalgo()
	case "null":
		audioBackend = device.NewNull()
	default:
		log.Fatalf("unknown backend %q", *backend)
	}

	engine := player.New(player.DefaultConfig(), audioBackend)
	engine.OnPlaybackFailed = func(reason player.Reason) {
		log.Printf("Recovery: %s", reason)
	}

	if err := engine.Initialize(); err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}
	defer engine.Dispose()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Push ~20ms packets at real-time rate, the cadence of a network
	// producer.
	format := audio.DefaultFormat()
	packetFrames := format.SampleRate / 50
	packet := make([]byte, packetFrames*format.BytesPerFrame())

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(*duration)

	var flushTimer <-chan time.Time
	if *flushAt > 0 {
		flushTimer = time.After(*flushAt)
	}

	var sampleIndex uint64
	for {
		select {
		case <-ticker.C:
			fillSine(packet, format, *frequency, &sampleIndex)
			engine.OnPCMPacket(packet, 0, len(packet))
		case <-flushTimer:
			log.Printf("Injecting track flush")
			engine.OnTrackFlush()
			flushTimer = nil
		case <-deadline:
			fmt.Println("Done")
			return
		case <-sigChan:
			fmt.Println("Interrupted")
			return
		}
	}
}

// fillSine writes interleaved 16-bit stereo sine samples into buf
func fillSine(buf []byte, format audio.Format, freq float64, sampleIndex *uint64) {
	frames := len(buf) / format.BytesPerFrame()

	for i := 0; i < frames; i++ {
		t := float64(*sampleIndex+uint64(i)) / float64(format.SampleRate)
		sample := math.Sin(2 * math.Pi * freq * t)

		pcmValue := int16(sample * 32767.0 * 0.5) // 50% volume

		for ch := 0; ch < format.Channels; ch++ {
			off := (i*format.Channels + ch) * 2
			buf[off] = byte(pcmValue)
			buf[off+1] = byte(pcmValue >> 8)
		}
	}

	*sampleIndex += uint64(frames)
}
