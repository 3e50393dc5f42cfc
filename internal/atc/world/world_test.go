package world

import (
	"testing"
	"time"
)

func square() Geofence {
	return Geofence{
		ID:   "gf1",
		Type: GeofenceNoFlyZone,
		Vertices: []LatLon{
			{Lat: 33.0, Lon: -117.0},
			{Lat: 33.0, Lon: -116.9},
			{Lat: 33.1, Lon: -116.9},
			{Lat: 33.1, Lon: -117.0},
		},
		LowerAltitudeM: 0,
		UpperAltitudeM: 200,
		Active:         true,
	}
}

func TestGeofenceContainsPoint(t *testing.T) {
	g := square()
	if !g.ContainsPoint(33.05, -116.95, 50) {
		t.Fatal("expected point inside polygon and altitude band to be contained")
	}
	if g.ContainsPoint(32.5, -116.95, 50) {
		t.Fatal("expected point outside polygon to not be contained")
	}
	if g.ContainsPoint(33.05, -116.95, 500) {
		t.Fatal("expected point above altitude band to not be contained")
	}
}

func TestGeofenceContainsPointWindingIndependent(t *testing.T) {
	g := square()
	reversed := make([]LatLon, len(g.Vertices))
	for i, v := range g.Vertices {
		reversed[len(g.Vertices)-1-i] = v
	}
	g2 := g
	g2.Vertices = reversed

	if g.ContainsPoint(33.05, -116.95, 50) != g2.ContainsPoint(33.05, -116.95, 50) {
		t.Fatal("expected contains_point to be independent of vertex winding order")
	}
}

func TestGeofenceContainsPointIdempotent(t *testing.T) {
	g := square()
	first := g.ContainsPoint(33.05, -116.95, 50)
	for i := 0; i < 5; i++ {
		if g.ContainsPoint(33.05, -116.95, 50) != first {
			t.Fatal("expected contains_point to be idempotent across repeated calls")
		}
	}
}

func TestCommandAtMostOnceDelivery(t *testing.T) {
	s := NewStore()
	s.UpsertDrone(Drone{DroneID: "d1", Status: StatusActive})

	s.EnqueueCommand(Command{CommandID: "c1", DroneID: "d1", Kind: CommandHold, IssuedAt: time.Now()})
	s.EnqueueCommand(Command{CommandID: "c2", DroneID: "d1", Kind: CommandResume, IssuedAt: time.Now()})

	head, ok := s.PeekNextCommand("d1")
	if !ok || head.CommandID != "c1" {
		t.Fatalf("expected c1 first, got %+v (ok=%v)", head, ok)
	}

	if _, ok := s.AckCommand("c1"); !ok {
		t.Fatal("expected ack of c1 to succeed")
	}
	if _, ok := s.AckCommand("c1"); ok {
		t.Fatal("expected second ack of c1 to be a no-op, not succeed again")
	}

	next, ok := s.PeekNextCommand("d1")
	if !ok || next.CommandID != "c2" {
		t.Fatalf("expected c2 to surface after c1 acked, got %+v (ok=%v)", next, ok)
	}
}

func TestCommandFIFOOrder(t *testing.T) {
	s := NewStore()
	s.UpsertDrone(Drone{DroneID: "d1", Status: StatusActive})
	s.EnqueueCommand(Command{CommandID: "a", DroneID: "d1", Kind: CommandHold, IssuedAt: time.Now()})
	s.EnqueueCommand(Command{CommandID: "b", DroneID: "d1", Kind: CommandResume, IssuedAt: time.Now()})

	head, _ := s.PeekNextCommand("d1")
	if head.CommandID != "a" {
		t.Fatalf("expected FIFO order a before b, got %s first", head.CommandID)
	}
}

func TestSweepExpiredCommands(t *testing.T) {
	s := NewStore()
	s.UpsertDrone(Drone{DroneID: "d1", Status: StatusActive})
	past := time.Now().Add(-time.Minute)
	s.EnqueueCommand(Command{CommandID: "c1", DroneID: "d1", Kind: CommandHold, IssuedAt: past, ExpiresAt: &past})

	removed := s.SweepExpiredCommands(time.Now(), 0)
	if removed != 1 {
		t.Fatalf("expected 1 expired command removed, got %d", removed)
	}
	if _, ok := s.PeekNextCommand("d1"); ok {
		t.Fatal("expected no command left after sweep")
	}
}

func TestTelemetryRoundTrip(t *testing.T) {
	s := NewStore()
	s.UpsertDrone(Drone{DroneID: "d1", Status: StatusActive})

	for i := 0; i < 5; i++ {
		s.UpdateFromTelemetry("d1", 34.0+float64(i)*0.001, -118.0, 100, 1, 0, 0, 90, 10, time.Now())
	}

	d, ok := s.GetDrone("d1")
	if !ok {
		t.Fatal("expected drone to exist")
	}
	if d.Lat != 34.004 {
		t.Fatalf("expected latest telemetry frame retained, got lat=%v", d.Lat)
	}
}

func TestGeofenceDeleteRoundTrip(t *testing.T) {
	s := NewStore()
	before := s.ListGeofences()
	s.AddGeofence(square())
	if !s.RemoveGeofence("gf1") {
		t.Fatal("expected removal to succeed")
	}
	after := s.ListGeofences()
	if len(after) != len(before) {
		t.Fatalf("expected geofence list to return to prior state, got %d vs %d", len(after), len(before))
	}
}
