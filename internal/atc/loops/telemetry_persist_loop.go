package loops

import (
	"context"
	"log"
	"time"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/observability"
)

// TelemetryPersister commits the latest per-drone position snapshot in one
// transaction. nil disables persistence entirely.
type TelemetryPersister func(ctx context.Context, drones []world.Drone) error

// TelemetryPersistLoop coalesces the latest telemetry per drone and flushes
// it to durable storage on a fixed cadence, rather than writing on every
// inbound telemetry frame.
type TelemetryPersistLoop struct {
	Store    *world.Store
	Persist  TelemetryPersister
	Interval time.Duration

	backoff *Backoff
}

// NewTelemetryPersistLoop builds a flush loop at the default 1s cadence.
func NewTelemetryPersistLoop(store *world.Store, persist TelemetryPersister) *TelemetryPersistLoop {
	return &TelemetryPersistLoop{Store: store, Persist: persist, Interval: 1 * time.Second, backoff: NewBackoff()}
}

func (l *TelemetryPersistLoop) Run(ctx context.Context, hb *heartbeats) {
	runTicker(ctx, "telemetry-persist", l.Interval, hb, l.tick)
}

func (l *TelemetryPersistLoop) tick(ctx context.Context) {
	if l.Persist == nil {
		return
	}
	drones := l.Store.ListDrones("", 0)
	if len(drones) == 0 {
		return
	}
	if err := l.Persist(ctx, drones); err != nil {
		observability.RecordLoopError("telemetry-persist")
		delay := l.backoff.Next()
		observability.UpdateLoopBackoff("telemetry-persist", delay)
		log.Printf("[telemetry-persist] flush failed, backing off %s: %v", delay, err)
		return
	}
	l.backoff.Reset()
	observability.UpdateLoopBackoff("telemetry-persist", 0)
}
