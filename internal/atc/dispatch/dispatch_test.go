package dispatch

import (
	"testing"
	"time"

	"github.com/asgard/atc/internal/atc/world"
)

func newTestDispatcher() (*Dispatcher, *world.Store) {
	store := world.NewStore()
	return NewDispatcher(store, DefaultConfig()), store
}

func registerDrone(store *world.Store, id, owner string) {
	store.UpsertDrone(world.Drone{DroneID: id, OwnerID: owner, Status: world.StatusActive, LastUpdate: time.Now()})
}

func TestIssueExternalUnknownDroneNotFound(t *testing.T) {
	d, _ := newTestDispatcher()
	_, err := d.IssueExternal("", "ghost", world.CommandHold, 30, nil, "", 0)
	if err == nil {
		t.Fatal("expected an error for an unregistered drone")
	}
}

func TestIssueExternalOwnerMismatchForbidden(t *testing.T) {
	d, store := newTestDispatcher()
	registerDrone(store, "drone-1", "owner-a")
	_, err := d.IssueExternal("owner-b", "drone-1", world.CommandHold, 30, nil, "", 0)
	if err == nil {
		t.Fatal("expected an owner mismatch to be rejected")
	}
}

func TestCommandLifecycleIssuePollAckSweep(t *testing.T) {
	d, store := newTestDispatcher()
	registerDrone(store, "drone-1", "")

	cmd, err := d.IssueExternal("", "drone-1", world.CommandHold, 30, nil, "", 0)
	if err != nil {
		t.Fatalf("unexpected error issuing command: %v", err)
	}

	peeked, ok := store.PeekNextCommand("drone-1")
	if !ok || peeked.CommandID != cmd.CommandID {
		t.Fatal("expected the issued command to be the head of the drone's queue")
	}

	if !d.Ack(cmd.CommandID) {
		t.Fatal("expected ack to succeed for a known command id")
	}
	if _, ok := store.PeekNextCommand("drone-1"); ok {
		t.Fatal("expected the queue to be empty after ack")
	}

	// Acking again is a no-op, not an error.
	if d.Ack(cmd.CommandID) {
		t.Fatal("expected a repeat ack of an already-removed command to report false")
	}
}

func TestSweepRemovesExpiredCommand(t *testing.T) {
	d, store := newTestDispatcher()
	registerDrone(store, "drone-1", "")
	cmd, _ := d.IssueExternal("", "drone-1", world.CommandHold, 30, nil, "", 0)

	future := time.Now().Add(2 * time.Minute)
	removed := d.Sweep(future)
	if removed < 1 {
		t.Fatal("expected the sweep to remove the now-expired command")
	}
	if _, ok := store.PeekNextCommand("drone-1"); ok {
		t.Fatal("expected the expired command to be gone from the queue")
	}
	_ = cmd
}

func TestFIFOOrderingPreservedAcrossIssues(t *testing.T) {
	d, store := newTestDispatcher()
	registerDrone(store, "drone-1", "")

	first, _ := d.IssueExternal("", "drone-1", world.CommandHold, 30, nil, "", 0)
	second, _ := d.IssueExternal("", "drone-1", world.CommandResume, 0, nil, "", 0)

	peeked, _ := store.PeekNextCommand("drone-1")
	if peeked.CommandID != first.CommandID {
		t.Fatalf("expected FIFO order to surface %s before %s", first.CommandID, second.CommandID)
	}
	d.Ack(first.CommandID)
	peeked, _ = store.PeekNextCommand("drone-1")
	if peeked.CommandID != second.CommandID {
		t.Fatal("expected the second command to surface once the first is acked")
	}
}

func TestEvaluateConformanceIssuesHoldOnGeofenceBreach(t *testing.T) {
	d, store := newTestDispatcher()
	registerDrone(store, "drone-1", "")
	now := time.Now()

	cmd, issued := d.EvaluateConformance("drone-1", false, true, "", now)
	if !issued || cmd.Kind != world.CommandHold {
		t.Fatalf("expected a Hold command for a geofence breach, got issued=%v kind=%v", issued, cmd.Kind)
	}
}

func TestEvaluateConformanceIssuesHoldOnEscalationCode(t *testing.T) {
	d, store := newTestDispatcher()
	registerDrone(store, "drone-1", "")
	now := time.Now()

	cmd, issued := d.EvaluateConformance("drone-1", false, false, "C7a", now)
	if !issued || cmd.Kind != world.CommandHold {
		t.Fatalf("expected a Hold command for escalation code C7a, got issued=%v kind=%v", issued, cmd.Kind)
	}
}

func TestEvaluateConformanceIgnoresUnrelatedCode(t *testing.T) {
	d, store := newTestDispatcher()
	registerDrone(store, "drone-1", "")
	now := time.Now()

	_, issued := d.EvaluateConformance("drone-1", false, false, "C1", now)
	if issued {
		t.Fatal("expected no command for a nonconforming status with no breach and an unrelated code")
	}
}

func TestEvaluateConformanceIssuesResumeOnRecovery(t *testing.T) {
	d, store := newTestDispatcher()
	registerDrone(store, "drone-1", "")
	now := time.Now()

	d.EvaluateConformance("drone-1", false, true, "", now)
	later := now.Add(150 * time.Second)
	cmd, issued := d.EvaluateConformance("drone-1", true, false, "", later)
	if !issued || cmd.Kind != world.CommandResume {
		t.Fatalf("expected a Resume command on recovery, got issued=%v kind=%v", issued, cmd.Kind)
	}
}

func TestEvaluateConformanceRespectsConformanceCooldown(t *testing.T) {
	d, store := newTestDispatcher()
	registerDrone(store, "drone-1", "")
	now := time.Now()

	d.EvaluateConformance("drone-1", false, true, "", now)
	soon := now.Add(5 * time.Second)
	_, issued := d.EvaluateConformance("drone-1", false, true, "", soon)
	if issued {
		t.Fatal("expected the conformance cooldown to suppress a second Hold issued 5s later")
	}
}

func TestEvaluateConformanceNoTransitionNoResume(t *testing.T) {
	d, store := newTestDispatcher()
	registerDrone(store, "drone-1", "")
	now := time.Now()

	// First call establishes the "conforming" baseline with no prior state,
	// so it must not be treated as a recovery transition.
	_, issued := d.EvaluateConformance("drone-1", true, false, "", now)
	if issued {
		t.Fatal("expected no Resume on the first-ever observation of a conforming drone")
	}
}

func TestEvaluateMissionStartIssuesRerouteAfterDeparture(t *testing.T) {
	d, store := newTestDispatcher()
	registerDrone(store, "drone-1", "")
	now := time.Now()
	plan := world.FlightPlan{
		FlightID:      "flight-1",
		DroneID:       "drone-1",
		Status:        world.PlanApproved,
		DepartureTime: now.Add(-1 * time.Minute),
		Waypoints:     []world.Waypoint{{Lat: 1, Lon: 2}, {Lat: 3, Lon: 4}},
	}
	cmd, issued := d.EvaluateMissionStart(plan, now)
	if !issued || cmd.Kind != world.CommandReroute {
		t.Fatalf("expected a Reroute command once departure has passed, got issued=%v kind=%v", issued, cmd.Kind)
	}
	if len(cmd.Waypoints) != len(plan.Waypoints) {
		t.Fatal("expected the reroute command to carry the plan's waypoints")
	}
}

func TestEvaluateMissionStartNoOpBeforeDeparture(t *testing.T) {
	d, store := newTestDispatcher()
	registerDrone(store, "drone-1", "")
	now := time.Now()
	plan := world.FlightPlan{
		DroneID:       "drone-1",
		Status:        world.PlanApproved,
		DepartureTime: now.Add(1 * time.Minute),
	}
	_, issued := d.EvaluateMissionStart(plan, now)
	if issued {
		t.Fatal("expected no reroute before the plan's departure time")
	}
}

func TestHasArrivedWithinThresholds(t *testing.T) {
	d, _ := newTestDispatcher()
	plan := world.FlightPlan{Waypoints: []world.Waypoint{{Lat: 33.68, Lon: -117.83, AltitudeM: 100}}}
	drone := world.Drone{Lat: 33.68, Lon: -117.83, AltitudeM: 105}
	if !d.HasArrived(drone, plan) {
		t.Fatal("expected arrival within 20m horizontal / 15m vertical to report true")
	}
}

func TestHasArrivedOutsideThresholds(t *testing.T) {
	d, _ := newTestDispatcher()
	plan := world.FlightPlan{Waypoints: []world.Waypoint{{Lat: 33.68, Lon: -117.83, AltitudeM: 100}}}
	drone := world.Drone{Lat: 33.70, Lon: -117.83, AltitudeM: 100}
	if d.HasArrived(drone, plan) {
		t.Fatal("expected a drone 2km away to not count as arrived")
	}
}
