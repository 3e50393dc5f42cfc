// Package loops runs the service's independent background tasks — conflict
// detection, mission transitions, conformance polling, telemetry flush, and
// upstream UTM synchronization — each as its own goroutine sharing only the
// world façade and a cancellation context, per the no-cross-loop-locks
// concurrency model.
package loops

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/asgard/atc/internal/platform/observability"
)

// heartbeats records the last successful tick per loop name.
type heartbeats struct {
	mu   sync.RWMutex
	last map[string]time.Time
}

func newHeartbeats() *heartbeats { return &heartbeats{last: make(map[string]time.Time)} }

func (h *heartbeats) mark(name string) {
	h.mu.Lock()
	h.last[name] = time.Now()
	h.mu.Unlock()
}

// Snapshot returns a copy of the last-tick time for every loop that has
// ticked at least once.
func (h *heartbeats) Snapshot() map[string]time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]time.Time, len(h.last))
	for k, v := range h.last {
		out[k] = v
	}
	return out
}

// runTicker ticks fn at interval until ctx is cancelled, finishing the
// in-flight iteration before returning.
func runTicker(ctx context.Context, name string, interval time.Duration, hb *heartbeats, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("[%s] started", name)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[%s] stopped", name)
			return
		case <-ticker.C:
			tickStart := time.Now()
			fn(ctx)
			observability.RecordLoopTick(name, time.Since(tickStart))
			hb.mark(name)
		}
	}
}
