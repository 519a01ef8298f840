// ABOUTME: Entry point for the Airwave audio receiver
// ABOUTME: Parses CLI flags, wires the engine to the ingest listener, runs the TUI
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Airwave-Project/airwave-go/internal/device"
	"github.com/Airwave-Project/airwave-go/internal/ingest"
	"github.com/Airwave-Project/airwave-go/internal/player"
	"github.com/Airwave-Project/airwave-go/internal/ui"
	"github.com/Airwave-Project/airwave-go/internal/version"
)

var (
	listenAddr = flag.String("listen", ":8765", "Ingest listen address")
	backend    = flag.String("backend", "oto", "Audio backend: oto, malgo, null")
	logFile    = flag.String("log-file", "airwave.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs = flag.Bool("stream-logs", false, "Alias for -no-tui")

	queuePackets  = flag.Int("queue-packets", 500, "Sample queue capacity in packets")
	prebuffer     = flag.Int("prebuffer-packets", 50, "Packets to buffer before starting playback")
	corruptionRun = flag.Int("corruption-threshold", 100, "Consecutive malformed packets before decoder reset")
	watchdogTick  = flag.Duration("watchdog-interval", 2*time.Second, "Health check period")
	starvation    = flag.Duration("starvation-after", 3*time.Second, "Silence on a non-empty queue declared starvation after this long")
	starvationMin = flag.Int("starvation-min-queued", 10, "Minimum queued packets for silence to count as starvation")
	stallTicks    = flag.Int("stall-ticks", 5, "Consecutive full-queue checks before declaring a stall")
	stallSlack    = flag.Int("stall-slack", 8, "How close to capacity the queue must sit to count as full")
	settleDelay   = flag.Duration("settle-delay", 200*time.Millisecond, "Wait after teardown before recreating the device")
)

func main() {
	flag.Parse()

	useTUI := !(*noTUI || *streamLogs)

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	log.Printf("Starting %s %s", version.Product, version.Version)

	cfg := player.DefaultConfig()
	cfg.MaxQueuePackets = *queuePackets
	cfg.PrebufferPackets = *prebuffer
	cfg.CorruptionThreshold = *corruptionRun
	cfg.WatchdogInterval = *watchdogTick
	cfg.StarvationAfter = *starvation
	cfg.StarvationMinQueued = *starvationMin
	cfg.StallTicks = *stallTicks
	cfg.StallSlack = *stallSlack
	cfg.SettleDelay = *settleDelay

	var audioBackend device.Backend
	switch *backend {
	case "oto":
		audioBackend = device.NewOto()
	case "malgo":
		audioBackend = device.NewMalgo()
	case "null":
		audioBackend = device.NewNull()
	default:
		log.Fatalf("unknown backend %q (want oto, malgo or null)", *backend)
	}

	engine := player.New(cfg, audioBackend)
	engine.OnDecoderReset = func() {
		log.Printf("Decoder reset requested; producer must resynchronize")
	}
	engine.OnPlaybackFailed = func(reason player.Reason) {
		log.Printf("Playback recovery started: %s", reason)
	}

	if err := engine.Initialize(); err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	listener := ingest.New(ingest.Config{Addr: *listenAddr}, engine)

	// TUI setup
	var tuiProg *tea.Program
	if useTUI {
		tuiProg, err = ui.Run()
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
	}

	tuiDone := make(chan struct{})
	if tuiProg != nil {
		go func() {
			tuiProg.Run()
			close(tuiDone)
		}()
		go statsUpdateLoop(engine, listener, tuiProg)
	}

	listenerErr := make(chan error, 1)
	go func() {
		listenerErr <- listener.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Printf("Shutdown signal received")
	case <-tuiDone:
		log.Printf("TUI quit requested")
	case err := <-listenerErr:
		if err != nil {
			log.Printf("Ingest failed: %v", err)
		}
	}

	if tuiProg != nil {
		tuiProg.Quit()
	}
	listener.Stop()
	engine.Dispose()

	log.Printf("Receiver stopped")
}

// statsUpdateLoop periodically feeds engine statistics to the TUI
func statsUpdateLoop(engine *player.Engine, listener *ingest.Listener, prog *tea.Program) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		stats := engine.Stats()
		addr := listener.ProducerAddr()

		prog.Send(ui.StatusMsg{
			State:         stats.State.String(),
			Backend:       stats.Backend,
			Queued:        stats.Queued,
			Capacity:      stats.QueueCapacity,
			Enqueued:      stats.Enqueued,
			Rejected:      stats.Rejected,
			BytesConsumed: stats.BytesConsumed,
			Recoveries:    stats.Recoveries,
			LastFailure:   stats.LastFailure,
			ProducerAddr:  &addr,
		})
	}
}
