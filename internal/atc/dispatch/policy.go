package dispatch

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asgard/atc/internal/atc/spatial"
	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/observability"
)

// holdTriggerCodes are the conformance codes that, independent of the
// geofence-breach flag, escalate straight to a Hold. Codes outside this set
// still trigger a Hold if geofenceBreach is set; the set is not exhaustive
// upstream, so geofence breach remains the canonical trigger.
var holdTriggerCodes = map[string]bool{"C7a": true, "C7b": true, "C8": true}

// conformanceTracker remembers each drone's last reported conforming state
// so EvaluateConformance can detect the conforming/nonconforming transition
// without the caller threading that state through itself.
type conformanceTracker struct {
	mu    sync.Mutex
	prior map[string]bool
}

func newConformanceTracker() conformanceTracker {
	return conformanceTracker{prior: make(map[string]bool)}
}

func (t *conformanceTracker) swap(droneID string, conforming bool) (previous bool, known bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	previous, known = t.prior[droneID]
	t.prior[droneID] = conforming
	return previous, known
}

// EvaluateConformance applies the conformance loop's per-drone status pull
// to the conflict->command policy: a Hold when nonconforming with a
// geofence breach or an escalating code, a Resume on the transition back to
// conforming. Both are gated by the conformance cooldown. Returns the issued
// command and true, or a zero command and false if nothing was issued.
func (d *Dispatcher) EvaluateConformance(droneID string, conforming, geofenceBreach bool, code string, now time.Time) (world.Command, bool) {
	previous, known := d.transitions.swap(droneID, conforming)

	if !conforming && (geofenceBreach || holdTriggerCodes[code]) {
		if !d.store.CanIssueCommand(droneID, d.cfg.ConformanceCooldownSecs, now) {
			return world.Command{}, false
		}
		cmd := d.enqueueInternal(droneID, world.CommandHold, d.cfg.HoldDurationSecs, nil, "", 0, now)
		d.store.MarkCommandIssued(droneID, now)
		return cmd, true
	}

	if conforming && known && !previous {
		if !d.store.CanIssueCommand(droneID, d.cfg.ConformanceCooldownSecs, now) {
			return world.Command{}, false
		}
		cmd := d.enqueueInternal(droneID, world.CommandResume, 0, nil, "", 0, now)
		d.store.MarkCommandIssued(droneID, now)
		return cmd, true
	}

	return world.Command{}, false
}

// EvaluateMissionStart issues a Reroute once an Approved plan's departure
// time has passed, gated by the (shorter) mission cooldown.
func (d *Dispatcher) EvaluateMissionStart(plan world.FlightPlan, now time.Time) (world.Command, bool) {
	if plan.Status != world.PlanApproved || now.Before(plan.DepartureTime) {
		return world.Command{}, false
	}
	if !d.store.CanIssueCommand(plan.DroneID, d.cfg.MissionCooldownSecs, now) {
		return world.Command{}, false
	}
	cmd := d.enqueueInternal(plan.DroneID, world.CommandReroute, 0, plan.Waypoints, "mission start", 0, now)
	d.store.MarkCommandIssued(plan.DroneID, now)
	return cmd, true
}

// HasArrived reports whether a drone lies within the configured
// horizontal/vertical arrival window of a plan's final waypoint. Arrival
// marks the plan Completed; it issues no command.
func (d *Dispatcher) HasArrived(drone world.Drone, plan world.FlightPlan) bool {
	if len(plan.Waypoints) == 0 {
		return false
	}
	final := plan.Waypoints[len(plan.Waypoints)-1]
	horizontal := spatial.HaversineDistance(drone.Lat, drone.Lon, final.Lat, final.Lon)
	vertical := math.Abs(drone.AltitudeM - final.AltitudeM)
	return horizontal <= d.cfg.ArrivalHorizontalM && vertical <= d.cfg.ArrivalVerticalM
}

func (d *Dispatcher) enqueueInternal(droneID string, kind world.CommandKind, durationSecs int, waypoints []world.Waypoint, reason string, targetAltitudeM float64, now time.Time) world.Command {
	expiresAt := now.Add(time.Duration(d.cfg.DefaultExpiresInSecs * float64(time.Second)))
	cmd := world.Command{
		CommandID:       uuid.NewString(),
		DroneID:         droneID,
		Kind:            kind,
		DurationSecs:    durationSecs,
		Waypoints:       waypoints,
		Reason:          reason,
		TargetAltitudeM: targetAltitudeM,
		IssuedAt:        now,
		ExpiresAt:       &expiresAt,
	}
	d.store.EnqueueCommand(cmd)
	observability.RecordCommandIssued(string(kind))
	observability.UpdateDispatchQueueDepth(len(d.store.ListPendingCommands()))
	return cmd
}
