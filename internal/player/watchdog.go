// ABOUTME: Periodic playback health watchdog
// ABOUTME: Detects silent backend death from queue consumption stats alone
package player

import (
	"context"
	"time"

	"github.com/Airwave-Project/airwave-go/internal/queue"
)

// Watchdog observes the queue's consumption counters on an independent
// timer. It reads only atomics, never a lock the producer could be
// holding, so health checks cannot affect producer throughput. It emits
// at most one recovery signal and then stops itself; whoever re-enters
// Playing starts a fresh watchdog, so one watchdog maps to one session.
type Watchdog struct {
	cfg    Config
	queue  *queue.Queue
	signal func(Reason)

	ctx    context.Context
	cancel context.CancelFunc

	now          func() time.Time
	stalledTicks int
}

// NewWatchdog creates a watchdog reporting through signal
func NewWatchdog(cfg Config, q *queue.Queue, signal func(Reason)) *Watchdog {
	ctx, cancel := context.WithCancel(context.Background())

	return &Watchdog{
		cfg:    cfg,
		queue:  q,
		signal: signal,
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
}

// Run ticks until cancelled or until one anomaly has been signalled
func (w *Watchdog) Run() {
	ticker := time.NewTicker(w.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if reason, unhealthy := w.check(w.now()); unhealthy {
				w.signal(reason)
				return
			}
		}
	}
}

// Stop cancels the watchdog; effective within one tick
func (w *Watchdog) Stop() {
	w.cancel()
}

// check runs one health evaluation. Health is a sliding window: any
// healthy tick resets the stall streak, so a transient burst does not
// trip recovery.
func (w *Watchdog) check(now time.Time) (Reason, bool) {
	queued := w.queue.Len()

	// Nothing read for too long with plenty queued: the backend has
	// stopped pulling entirely.
	if now.Sub(w.queue.LastRead()) > w.cfg.StarvationAfter && queued > w.cfg.StarvationMinQueued {
		return ReasonReadStarvation, true
	}

	// Queue pinned near capacity across consecutive ticks: the backend
	// is pulling, but too slowly to keep up.
	if queued >= w.queue.Capacity()-w.cfg.StallSlack {
		w.stalledTicks++
		if w.stalledTicks >= w.cfg.StallTicks {
			return ReasonConsumerStalled, true
		}
	} else {
		w.stalledTicks = 0
	}

	return 0, false
}
