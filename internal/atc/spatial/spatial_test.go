package spatial

import (
	"math"
	"testing"
)

func TestHaversineDistanceSymmetric(t *testing.T) {
	d1 := HaversineDistance(33.6845, -117.8265, 33.6890, -117.8265)
	d2 := HaversineDistance(33.6890, -117.8265, 33.6845, -117.8265)
	if math.Abs(d1-d2) > 1e-6 {
		t.Fatalf("expected symmetric distance, got %v vs %v", d1, d2)
	}
}

func TestHaversineDistanceZero(t *testing.T) {
	d := HaversineDistance(10, 10, 10, 10)
	if d != 0 {
		t.Fatalf("expected zero distance for identical points, got %v", d)
	}
}

func TestForwardAzimuthAntipodesStable(t *testing.T) {
	// Antipodal points are degenerate for bearing, but the formula must not
	// produce NaN.
	az := ForwardAzimuth(0, 0, 0, 180)
	if math.IsNaN(az) {
		t.Fatal("expected finite bearing at antipodes, got NaN")
	}
}

func TestOffsetByBearingRoundTrip(t *testing.T) {
	lat, lon := 34.05, -118.25
	destLat, destLon := OffsetByBearing(lat, lon, 1000, math.Pi/2) // due east
	d := HaversineDistance(lat, lon, destLat, destLon)
	if math.Abs(d-1000) > 1.0 {
		t.Fatalf("expected ~1000m offset, got %v (dest %v,%v)", d, destLat, destLon)
	}
}

func TestProjectorRoundTrip(t *testing.T) {
	p := NewProjector(34.0, -118.0)
	east, north := p.ToENU(34.001, -118.001)
	lat, lon := p.FromENU(east, north)
	if math.Abs(lat-34.001) > 1e-9 || math.Abs(lon-(-118.001)) > 1e-9 {
		t.Fatalf("round trip mismatch: got (%v,%v)", lat, lon)
	}
}

func TestProjectorClampsCosineNearPoles(t *testing.T) {
	p := NewProjector(89.9999, 0)
	if p.metersPerLon <= 0 {
		t.Fatal("expected positive meters-per-degree-lon even near the pole")
	}
}

func TestFinite(t *testing.T) {
	if !Finite(1.0, 2.0, -3.5) {
		t.Fatal("expected finite values to pass")
	}
	if Finite(math.NaN()) {
		t.Fatal("expected NaN to fail")
	}
	if Finite(math.Inf(1)) {
		t.Fatal("expected +Inf to fail")
	}
}

func TestNormalizeAltitude(t *testing.T) {
	if got := NormalizeAltitude(100, AltitudeAMSL, 30); got != 100 {
		t.Fatalf("AMSL input should pass through unchanged, got %v", got)
	}
	if got := NormalizeAltitude(130, AltitudeEllipsoidal, 30); got != 100 {
		t.Fatalf("expected geoid offset applied, got %v", got)
	}
}
