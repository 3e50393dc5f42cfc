package loops

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/asgard/atc/internal/atc/dispatch"
	"github.com/asgard/atc/internal/atc/world"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := &Backoff{Base: 100 * time.Millisecond, Cap: 400 * time.Millisecond, Jitter: 0}
	first := b.Next()
	second := b.Next()
	third := b.Next()
	fourth := b.Next()

	if first != 100*time.Millisecond {
		t.Fatalf("expected first delay to equal base, got %v", first)
	}
	if second != 200*time.Millisecond {
		t.Fatalf("expected second delay to double, got %v", second)
	}
	if third != 400*time.Millisecond {
		t.Fatalf("expected third delay to double again to the cap, got %v", third)
	}
	if fourth != 400*time.Millisecond {
		t.Fatalf("expected delay to stay capped, got %v", fourth)
	}
}

func TestBackoffResetReturnsToBase(t *testing.T) {
	b := &Backoff{Base: 50 * time.Millisecond, Cap: time.Second, Jitter: 0}
	b.Next()
	b.Next()
	b.Reset()
	if got := b.Next(); got != 50*time.Millisecond {
		t.Fatalf("expected a reset backoff to restart at base, got %v", got)
	}
}

func TestConflictLoopDetectsCrossingDrones(t *testing.T) {
	store := world.NewStore()
	now := time.Now()
	store.UpsertDrone(world.Drone{DroneID: "alpha", Lat: 33.6845, Lon: -117.8265, AltitudeM: 100, HeadingDeg: 90, SpeedMps: 15, LastUpdate: now})
	store.UpsertDrone(world.Drone{DroneID: "bravo", Lat: 33.6845, Lon: -117.8200, AltitudeM: 100, HeadingDeg: 270, SpeedMps: 15, LastUpdate: now})

	loop := NewConflictLoop(store)
	loop.tick(context.Background())

	conflicts := store.ListConflicts()
	if len(conflicts) != 1 {
		t.Fatalf("expected exactly one conflict, got %d", len(conflicts))
	}
	if conflicts[0].Drone1ID != "alpha" || conflicts[0].Drone2ID != "bravo" {
		t.Fatalf("expected lexicographic drone ordering, got %s/%s", conflicts[0].Drone1ID, conflicts[0].Drone2ID)
	}
}

func TestMissionLoopTransitionsApprovedToActive(t *testing.T) {
	store := world.NewStore()
	d := dispatch.NewDispatcher(store, dispatch.DefaultConfig())
	store.UpsertDrone(world.Drone{DroneID: "drone-1", Status: world.StatusActive, LastUpdate: time.Now()})
	store.AddFlightPlan(world.FlightPlan{
		FlightID:      "flight-1",
		DroneID:       "drone-1",
		Status:        world.PlanApproved,
		DepartureTime: time.Now().Add(-time.Minute),
		Waypoints:     []world.Waypoint{{Lat: 1, Lon: 2}},
	})

	loop := NewMissionLoop(store, d)
	loop.tick(context.Background())

	plan, ok := store.GetFlightPlan("flight-1")
	if !ok || plan.Status != world.PlanActive {
		t.Fatalf("expected the plan to transition to Active, got %v", plan.Status)
	}
}

func TestMissionLoopCancelsOnLostDrone(t *testing.T) {
	store := world.NewStore()
	d := dispatch.NewDispatcher(store, dispatch.DefaultConfig())
	store.UpsertDrone(world.Drone{DroneID: "drone-1", Status: world.StatusLost, LastUpdate: time.Now()})
	store.AddFlightPlan(world.FlightPlan{
		FlightID: "flight-1",
		DroneID:  "drone-1",
		Status:   world.PlanActive,
	})

	loop := NewMissionLoop(store, d)
	loop.tick(context.Background())

	plan, _ := store.GetFlightPlan("flight-1")
	if plan.Status != world.PlanCancelled {
		t.Fatalf("expected the plan to cancel when its drone is lost, got %v", plan.Status)
	}
}

func TestMissionLoopCompletesOnArrival(t *testing.T) {
	store := world.NewStore()
	d := dispatch.NewDispatcher(store, dispatch.DefaultConfig())
	store.UpsertDrone(world.Drone{DroneID: "drone-1", Status: world.StatusActive, Lat: 33.68, Lon: -117.83, AltitudeM: 100, LastUpdate: time.Now()})
	store.AddFlightPlan(world.FlightPlan{
		FlightID:  "flight-1",
		DroneID:   "drone-1",
		Status:    world.PlanActive,
		Waypoints: []world.Waypoint{{Lat: 33.68, Lon: -117.83, AltitudeM: 100}},
	})

	loop := NewMissionLoop(store, d)
	loop.tick(context.Background())

	plan, _ := store.GetFlightPlan("flight-1")
	if plan.Status != world.PlanCompleted {
		t.Fatalf("expected the plan to complete on arrival, got %v", plan.Status)
	}
	if plan.ArrivalTime == nil {
		t.Fatal("expected an arrival time to be recorded")
	}
}

func TestConformanceLoopIssuesHoldOnBreach(t *testing.T) {
	store := world.NewStore()
	d := dispatch.NewDispatcher(store, dispatch.DefaultConfig())
	store.UpsertDrone(world.Drone{DroneID: "drone-1", Status: world.StatusActive, LastUpdate: time.Now()})

	pull := func(ctx context.Context, droneID string) (ConformanceStatus, error) {
		return ConformanceStatus{Conforming: false, GeofenceBreach: true, Code: "C9"}, nil
	}
	loop := NewConformanceLoop(store, d, pull)
	loop.tick(context.Background())

	cmd, ok := store.PeekNextCommand("drone-1")
	if !ok || cmd.Kind != world.CommandHold {
		t.Fatalf("expected a Hold command queued for a breaching drone, got ok=%v kind=%v", ok, cmd.Kind)
	}

	advisories := store.ListAdvisories(true)
	if len(advisories) != 1 {
		t.Fatalf("expected one active advisory, got %d", len(advisories))
	}
}

func TestConformanceLoopTracksPullFailureWithoutCrashing(t *testing.T) {
	store := world.NewStore()
	d := dispatch.NewDispatcher(store, dispatch.DefaultConfig())
	store.UpsertDrone(world.Drone{DroneID: "drone-1", Status: world.StatusActive, LastUpdate: time.Now()})

	pull := func(ctx context.Context, droneID string) (ConformanceStatus, error) {
		return ConformanceStatus{}, errors.New("upstream unavailable")
	}
	loop := NewConformanceLoop(store, d, pull)
	loop.tick(context.Background())

	if _, ok := store.PeekNextCommand("drone-1"); ok {
		t.Fatal("expected no command to be issued when the conformance pull fails")
	}
}

func TestTelemetryPersistLoopFlushesAndResetsBackoffOnSuccess(t *testing.T) {
	store := world.NewStore()
	store.UpsertDrone(world.Drone{DroneID: "drone-1", LastUpdate: time.Now()})

	var flushed []world.Drone
	persist := func(ctx context.Context, drones []world.Drone) error {
		flushed = drones
		return nil
	}
	loop := NewTelemetryPersistLoop(store, persist)
	loop.tick(context.Background())

	if len(flushed) != 1 {
		t.Fatalf("expected 1 drone flushed, got %d", len(flushed))
	}
}

func TestTelemetryPersistLoopSkipsWhenEmpty(t *testing.T) {
	store := world.NewStore()
	called := false
	persist := func(ctx context.Context, drones []world.Drone) error {
		called = true
		return nil
	}
	loop := NewTelemetryPersistLoop(store, persist)
	loop.tick(context.Background())
	if called {
		t.Fatal("expected no flush call when there are no drones")
	}
}

func TestBlenderMirrorLoopPushesOnlyChangedUntilResync(t *testing.T) {
	store := world.NewStore()
	now := time.Now()
	store.UpsertDrone(world.Drone{DroneID: "drone-1", LastUpdate: now})
	store.UpsertDrone(world.Drone{DroneID: "drone-2", LastUpdate: now})

	var lastBatch []world.Drone
	var lastFull bool
	push := func(ctx context.Context, drones []world.Drone, full bool) error {
		lastBatch = drones
		lastFull = full
		return nil
	}
	loop := NewBlenderMirrorLoop(store, push)
	loop.tick(context.Background())
	if !lastFull || len(lastBatch) != 2 {
		t.Fatalf("expected the first tick to be a full resync of both drones, got full=%v n=%d", lastFull, len(lastBatch))
	}

	// No changes since: next tick before resync interval should push nothing.
	calledAgain := false
	loop.Push = func(ctx context.Context, drones []world.Drone, full bool) error {
		calledAgain = true
		return nil
	}
	loop.tick(context.Background())
	if calledAgain {
		t.Fatal("expected no push when nothing changed and resync has not elapsed")
	}
}

func TestRIDPullLoopNormalizesObservationsAndPurgesStale(t *testing.T) {
	store := world.NewStore()
	subscribeCalls := 0
	subscribe := func(ctx context.Context) error {
		subscribeCalls++
		return nil
	}
	pull := func(ctx context.Context) ([]RIDObservation, error) {
		return []RIDObservation{{DroneID: "ext-1", Lat: 1, Lon: 2, AltitudeM: 50}}, nil
	}
	loop := NewRIDPullLoop(store, subscribe, pull)
	loop.tick(context.Background())

	if subscribeCalls != 1 {
		t.Fatalf("expected the first tick to refresh the subscription, got %d calls", subscribeCalls)
	}
	traffic := store.ListExternalTraffic()
	if len(traffic) != 1 || traffic[0].DroneID != "ext-1" {
		t.Fatalf("expected the observation normalized into external traffic, got %v", traffic)
	}
}

func TestGeofenceSyncLoopAddsUpdatesAndRemoves(t *testing.T) {
	store := world.NewStore()
	upstream := []UpstreamGeofence{
		{Fingerprint: "v1", Geofence: world.Geofence{ID: "fence-1", Active: true}},
	}
	source := func(ctx context.Context) ([]UpstreamGeofence, error) {
		return upstream, nil
	}
	loop := NewGeofenceSyncLoop(store, source)
	loop.tick(context.Background())

	if _, ok := store.GetGeofence("fence-1"); !ok {
		t.Fatal("expected fence-1 to be added")
	}

	upstream = nil
	loop.tick(context.Background())
	if _, ok := store.GetGeofence("fence-1"); ok {
		t.Fatal("expected fence-1 to be removed once no longer reported upstream")
	}
}

func TestIntentExpiryLoopCancelsLapsedReservations(t *testing.T) {
	store := world.NewStore()
	past := time.Now().Add(-time.Minute)
	store.AddFlightPlan(world.FlightPlan{
		FlightID:      "flight-1",
		Status:        world.PlanReserved,
		ReservedUntil: &past,
	})

	loop := NewIntentExpiryLoop(store, nil)
	loop.tick(context.Background())

	plan, _ := store.GetFlightPlan("flight-1")
	if plan.Status != world.PlanCancelled {
		t.Fatalf("expected a lapsed reservation to be cancelled, got %v", plan.Status)
	}
}

func TestSupervisorStartAndWaitRespectsCancellation(t *testing.T) {
	store := world.NewStore()
	sup := NewSupervisor()
	ctx, cancel := context.WithCancel(context.Background())

	loop := NewConflictLoop(store)
	loop.Interval = 10 * time.Millisecond
	sup.Start(ctx, loop)

	time.Sleep(30 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the supervisor to finish shortly after cancellation")
	}

	if len(sup.Heartbeats()) == 0 {
		t.Fatal("expected at least one heartbeat to have been recorded")
	}
}
