package loops

import (
	"context"
	"log"
	"time"

	"github.com/asgard/atc/internal/atc/dispatch"
	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/observability"
)

// ConformanceStatus is one drone's latest pulled conformance state.
type ConformanceStatus struct {
	Conforming     bool
	GeofenceBreach bool
	Code           string
	Message        string
}

// ConformancePuller resolves a single drone's current conformance status
// from upstream UTM.
type ConformancePuller func(ctx context.Context, droneID string) (ConformanceStatus, error)

// ConformanceLoop polls conformance status per drone, records it as an
// advisory, and hands the transition to the dispatcher's Hold/Resume
// policy.
type ConformanceLoop struct {
	Store      *world.Store
	Dispatcher *dispatch.Dispatcher
	Pull       ConformancePuller
	Interval   time.Duration

	backoff *Backoff
}

// NewConformanceLoop builds a conformance loop at the default 10s cadence.
func NewConformanceLoop(store *world.Store, dispatcher *dispatch.Dispatcher, pull ConformancePuller) *ConformanceLoop {
	return &ConformanceLoop{
		Store:      store,
		Dispatcher: dispatcher,
		Pull:       pull,
		Interval:   10 * time.Second,
		backoff:    NewBackoff(),
	}
}

func (l *ConformanceLoop) Run(ctx context.Context, hb *heartbeats) {
	runTicker(ctx, "conformance", l.Interval, hb, l.tick)
}

func (l *ConformanceLoop) tick(ctx context.Context) {
	if l.Pull == nil {
		return
	}
	now := time.Now()
	anyFailed := false

	for _, drone := range l.Store.ListDrones("", 0) {
		status, err := l.Pull(ctx, drone.DroneID)
		if err != nil {
			anyFailed = true
			continue
		}

		severity := world.SeverityInfo
		if !status.Conforming {
			severity = world.SeverityWarning
		}
		l.Store.UpsertAdvisory(world.Advisory{
			AdvisoryID: "conformance:" + drone.DroneID,
			DroneID:    drone.DroneID,
			Code:       status.Code,
			Message:    status.Message,
			Severity:   severity,
			CreatedAt:  now,
			Resolved:   status.Conforming,
		})

		l.Dispatcher.EvaluateConformance(drone.DroneID, status.Conforming, status.GeofenceBreach, status.Code, now)
	}

	if anyFailed {
		observability.RecordLoopError("conformance")
		delay := l.backoff.Next()
		observability.UpdateLoopBackoff("conformance", delay)
		log.Printf("[conformance] one or more UTM pulls failed this tick, backing off %s", delay)
	} else {
		l.backoff.Reset()
		observability.UpdateLoopBackoff("conformance", 0)
	}
}
