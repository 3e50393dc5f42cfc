package loops

import (
	"context"
	"time"

	"github.com/asgard/atc/internal/atc/world"
)

// SchedulerLock serializes an intent-expiry sweep against other planners
// writing reservations, typically backed by a Postgres advisory lock.
// Acquire blocks until the lock is held or ctx is done; the returned
// release must be called exactly once Acquire succeeds.
type SchedulerLock interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// IntentExpiryLoop cancels Reserved flight plans whose reservation window
// has lapsed, under a cross-process scheduler lock so two service
// instances never race on the same reservation.
type IntentExpiryLoop struct {
	Store    *world.Store
	Lock     SchedulerLock
	Interval time.Duration
}

// NewIntentExpiryLoop builds an expiry loop at the default 5s cadence.
func NewIntentExpiryLoop(store *world.Store, lock SchedulerLock) *IntentExpiryLoop {
	return &IntentExpiryLoop{Store: store, Lock: lock, Interval: 5 * time.Second}
}

func (l *IntentExpiryLoop) Run(ctx context.Context, hb *heartbeats) {
	runTicker(ctx, "intent-expiry", l.Interval, hb, l.tick)
}

func (l *IntentExpiryLoop) tick(ctx context.Context) {
	if l.Lock != nil {
		release, err := l.Lock.Acquire(ctx)
		if err != nil {
			return
		}
		defer release()
	}

	now := time.Now()
	for _, plan := range l.Store.ListReservedPlans() {
		if plan.ReservedUntil != nil && now.After(*plan.ReservedUntil) {
			l.Store.MutateFlightPlan(plan.FlightID, func(p *world.FlightPlan) {
				p.Status = world.PlanCancelled
			})
		}
	}
}
