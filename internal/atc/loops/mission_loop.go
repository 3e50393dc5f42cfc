package loops

import (
	"context"
	"log"
	"time"

	"github.com/asgard/atc/internal/atc/dispatch"
	"github.com/asgard/atc/internal/atc/world"
)

// MissionLoop drives flight plan transitions: Approved to Active once
// departure has passed (issuing a Reroute), Active to Completed on arrival,
// and Active to Cancelled if the drone goes Lost or Inactive mid-flight.
type MissionLoop struct {
	Store      *world.Store
	Dispatcher *dispatch.Dispatcher
	Interval   time.Duration
}

// NewMissionLoop builds a mission loop at the default 2s cadence.
func NewMissionLoop(store *world.Store, dispatcher *dispatch.Dispatcher) *MissionLoop {
	return &MissionLoop{Store: store, Dispatcher: dispatcher, Interval: 2 * time.Second}
}

func (l *MissionLoop) Run(ctx context.Context, hb *heartbeats) {
	runTicker(ctx, "mission", l.Interval, hb, l.tick)
}

func (l *MissionLoop) tick(ctx context.Context) {
	now := time.Now()
	l.Dispatcher.Sweep(now)

	for _, plan := range l.Store.ListFlightPlans("") {
		switch plan.Status {
		case world.PlanApproved:
			if _, issued := l.Dispatcher.EvaluateMissionStart(plan, now); issued {
				l.Store.MutateFlightPlan(plan.FlightID, func(p *world.FlightPlan) {
					p.Status = world.PlanActive
				})
			}

		case world.PlanActive:
			drone, ok := l.Store.GetDrone(plan.DroneID)
			if !ok {
				continue
			}
			if drone.Status == world.StatusLost || drone.Status == world.StatusInactive {
				l.Store.MutateFlightPlan(plan.FlightID, func(p *world.FlightPlan) {
					p.Status = world.PlanCancelled
				})
				log.Printf("[mission] cancelled flight %s: drone %s is %s", plan.FlightID, drone.DroneID, drone.Status)
				continue
			}
			if l.Dispatcher.HasArrived(drone, plan) {
				arrived := now
				l.Store.MutateFlightPlan(plan.FlightID, func(p *world.FlightPlan) {
					p.Status = world.PlanCompleted
					p.ArrivalTime = &arrived
				})
			}
		}
	}
}
