package routing

import (
	"context"
	"testing"

	"github.com/asgard/atc/internal/atc/world"
)

func straightWaypoints(distanceM float64) []world.Waypoint {
	metersPerDegLat := 111_320.0
	latSpan := distanceM / metersPerDegLat
	return []world.Waypoint{
		{Lat: 33.6800, Lon: -117.8300, AltitudeM: 0},
		{Lat: 33.6800 + latSpan, Lon: -117.8300, AltitudeM: 0},
	}
}

func TestBuildLaneOffsetsIncludesZeroAndIsSorted(t *testing.T) {
	offsets := buildLaneOffsets(30.0, 10.0)
	foundZero := false
	for i, v := range offsets {
		if v == 0.0 {
			foundZero = true
		}
		if i > 0 && offsets[i-1] > v {
			t.Fatalf("offsets not sorted: %v", offsets)
		}
	}
	if !foundZero {
		t.Fatalf("expected a zero offset, got %v", offsets)
	}
}

func TestBuildLaneOffsetsOddCountCenteredOnZero(t *testing.T) {
	offsets := buildLaneOffsets(20.0, 10.0)
	if len(offsets)%2 != 1 {
		t.Fatalf("expected an odd number of lanes (symmetric around zero), got %d", len(offsets))
	}
}

func TestResolveGridSpacingWidensForLongRoutes(t *testing.T) {
	short := []world.Waypoint{{Lat: 33.68, Lon: -117.83}, {Lat: 33.6810, Lon: -117.83}}
	long := []world.Waypoint{{Lat: 33.68, Lon: -117.83}, {Lat: 33.78, Lon: -117.83}}

	shortSpacing := resolveGridSpacing(short, 5.0)
	longSpacing := resolveGridSpacing(long, 5.0)

	if shortSpacing != 5.0 {
		t.Fatalf("expected short route to keep requested spacing, got %v", shortSpacing)
	}
	if longSpacing <= shortSpacing {
		t.Fatalf("expected long route to widen spacing, got %v vs %v", longSpacing, shortSpacing)
	}
}

func TestGenerateGridSamplesCoversAllLanes(t *testing.T) {
	waypoints := straightWaypoints(200.0)
	offsets := buildLaneOffsets(30.0, 10.0)
	grid := generateGridSamples(waypoints, 10.0, offsets)
	if grid == nil {
		t.Fatal("expected a grid")
	}
	if len(grid.Lanes) != len(offsets) {
		t.Fatalf("expected %d lanes, got %d", len(offsets), len(grid.Lanes))
	}
	for i, lane := range grid.Lanes {
		if len(lane) != len(grid.Lanes[0]) {
			t.Fatalf("lane %d has mismatched step count %d vs %d", i, len(lane), len(grid.Lanes[0]))
		}
	}
	if len(grid.WaypointIndices) < 2 {
		t.Fatalf("expected at least start and end waypoint indices, got %v", grid.WaypointIndices)
	}
}

func TestApplyObstaclesRaisesCeilingNearObstacle(t *testing.T) {
	waypoints := straightWaypoints(200.0)
	offsets := buildLaneOffsets(10.0, 10.0)
	grid := generateGridSamples(waypoints, 10.0, offsets)

	midLat := (waypoints[0].Lat + waypoints[1].Lat) / 2
	height := 80.0
	obstacles := []Obstacle{{Lat: midLat, Lon: waypoints[0].Lon, RadiusM: 25.0, HeightM: &height}}

	applyObstacles(grid, obstacles, func(lat, lon float64) float64 { return 0.0 })

	foundRaised := false
	for _, lane := range grid.Lanes {
		for _, pt := range lane {
			if pt.ObstacleHeightM > 0 {
				foundRaised = true
			}
		}
	}
	if !foundRaised {
		t.Fatal("expected at least one grid point to have a raised obstacle ceiling")
	}
}

func TestComputePathNodesFindsDirectPathWhenUnobstructed(t *testing.T) {
	waypoints := straightWaypoints(300.0)
	offsets := buildLaneOffsets(30.0, 10.0)
	grid := generateGridSamples(waypoints, 15.0, offsets)
	applyObstacles(grid, nil, func(lat, lon float64) float64 { return 0.0 })

	cfg := DefaultConfig()
	result, errs := computePathNodes(grid, nil, cfg, nil)
	if errs != nil {
		t.Fatalf("expected a path, got errors: %v", errs)
	}
	if result == nil || len(result.smoothedPath) < 2 {
		t.Fatal("expected a non-trivial smoothed path")
	}

	centerLane := len(grid.Lanes) / 2
	first := result.smoothedPath[0]
	last := result.smoothedPath[len(result.smoothedPath)-1]
	if first.lane != centerLane || last.lane != centerLane {
		t.Fatalf("expected start/end on center lane %d, got %d/%d", centerLane, first.lane, last.lane)
	}
}

func TestComputePathNodesDetoursAroundCenterObstacle(t *testing.T) {
	waypoints := straightWaypoints(300.0)
	offsets := buildLaneOffsets(60.0, 10.0)
	grid := generateGridSamples(waypoints, 10.0, offsets)

	midStep := len(grid.Lanes[0]) / 2
	centerLane := len(grid.Lanes) / 2
	height := 500.0
	obstacleLat := grid.Lanes[centerLane][midStep].Lat
	obstacleLon := grid.Lanes[centerLane][midStep].Lon
	obstacles := []Obstacle{{Lat: obstacleLat, Lon: obstacleLon, RadiusM: 15.0, HeightM: &height}}
	applyObstacles(grid, obstacles, func(lat, lon float64) float64 { return 0.0 })

	cfg := DefaultConfig()
	result, errs := computePathNodes(grid, nil, cfg, nil)
	if errs != nil {
		t.Fatalf("expected a detour path, got errors: %v", errs)
	}

	detoured := false
	for _, n := range result.smoothedPath {
		if n.step == midStep && n.lane != centerLane {
			detoured = true
		}
	}
	if !detoured {
		t.Fatal("expected the path to detour off the center lane around the obstacle")
	}
}

func TestComputePathNodesFailsWhenGeofenceBlocksOnlyCorridor(t *testing.T) {
	waypoints := straightWaypoints(300.0)
	offsets := buildLaneOffsets(5.0, 5.0)
	grid := generateGridSamples(waypoints, 10.0, offsets)
	applyObstacles(grid, nil, func(lat, lon float64) float64 { return 0.0 })

	fence := world.Geofence{
		ID:             "nfz-1",
		Type:           world.GeofenceNoFlyZone,
		Active:         true,
		LowerAltitudeM: 0,
		UpperAltitudeM: 500,
		Vertices: []world.LatLon{
			{Lat: waypoints[0].Lat - 0.01, Lon: waypoints[0].Lon - 0.01},
			{Lat: waypoints[0].Lat - 0.01, Lon: waypoints[0].Lon + 0.01},
			{Lat: waypoints[1].Lat + 0.01, Lon: waypoints[0].Lon + 0.01},
			{Lat: waypoints[1].Lat + 0.01, Lon: waypoints[0].Lon - 0.01},
		},
	}

	cfg := DefaultConfig()
	_, errs := computePathNodes(grid, []world.Geofence{fence}, cfg, nil)
	if errs == nil {
		t.Fatal("expected the geofence to block every candidate lane and fail the search")
	}
}

func TestAdvisoryGeofenceDoesNotBlockPath(t *testing.T) {
	waypoints := straightWaypoints(300.0)
	offsets := buildLaneOffsets(10.0, 10.0)
	grid := generateGridSamples(waypoints, 10.0, offsets)
	applyObstacles(grid, nil, func(lat, lon float64) float64 { return 0.0 })

	fence := world.Geofence{
		ID:             "advisory-1",
		Type:           world.GeofenceAdvisory,
		Active:         true,
		LowerAltitudeM: 0,
		UpperAltitudeM: 500,
		Vertices: []world.LatLon{
			{Lat: waypoints[0].Lat - 0.01, Lon: waypoints[0].Lon - 0.01},
			{Lat: waypoints[0].Lat - 0.01, Lon: waypoints[0].Lon + 0.01},
			{Lat: waypoints[1].Lat + 0.01, Lon: waypoints[0].Lon + 0.01},
			{Lat: waypoints[1].Lat + 0.01, Lon: waypoints[0].Lon - 0.01},
		},
	}

	cfg := DefaultConfig()
	_, errs := computePathNodes(grid, []world.Geofence{fence}, cfg, nil)
	if errs != nil {
		t.Fatalf("advisory geofences must not be treated as hard constraints, got: %v", errs)
	}
}

func TestTerrainGridSampleClampsOutOfBounds(t *testing.T) {
	grid := &TerrainGrid{
		minLat: 33.0, minLon: -118.0,
		maxLat: 33.1, maxLon: -117.9,
		latStepDeg: 0.05, lonStepDeg: 0.05,
		rows: 3, cols: 3,
		elevationsM: []float64{0, 10, 20, 10, 20, 30, 20, 30, 40},
	}
	inBounds := grid.Sample(33.05, -117.95)
	if inBounds <= 0 {
		t.Fatalf("expected a positive interpolated elevation, got %v", inBounds)
	}
	belowBounds := grid.Sample(30.0, -120.0)
	corner := grid.Sample(33.0, -118.0)
	if belowBounds != corner {
		t.Fatalf("expected out-of-bounds sample to clamp to the nearest corner: %v vs %v", belowBounds, corner)
	}
}

func TestTerrainGridSampleNonFiniteReturnsZero(t *testing.T) {
	grid := &TerrainGrid{
		minLat: 33.0, minLon: -118.0,
		maxLat: 33.1, maxLon: -117.9,
		latStepDeg: 0.05, lonStepDeg: 0.05,
		rows: 3, cols: 3,
		elevationsM: []float64{0, 10, 20, 10, 20, 30, 20, 30, 40},
	}
	if v := grid.Sample(nan(), -117.95); v != 0.0 {
		t.Fatalf("expected NaN input to yield 0, got %v", v)
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestPlanRouteDirectFlightSucceeds(t *testing.T) {
	planner := NewPlanner(nil, nil)
	req := PlanRequest{Waypoints: straightWaypoints(300.0)}
	result := planner.PlanRoute(context.Background(), req)
	if !result.OK {
		t.Fatalf("expected a direct unobstructed route to succeed, got errors: %v", result.Errors)
	}
	if len(result.Waypoints) < 2 {
		t.Fatalf("expected optimized waypoints, got %d", len(result.Waypoints))
	}
}

func TestPlanRouteRejectsZeroLengthRoute(t *testing.T) {
	planner := NewPlanner(nil, nil)
	wp := world.Waypoint{Lat: 33.68, Lon: -117.83}
	req := PlanRequest{Waypoints: []world.Waypoint{wp, wp}}
	result := planner.PlanRoute(context.Background(), req)
	if result.OK {
		t.Fatal("expected a zero-length route to be rejected")
	}
}

func TestPlanRouteWithObstacleSourceDetours(t *testing.T) {
	height := 500.0
	midLat := 33.6800 + (300.0/111_320.0)/2
	obstacleSource := func(ctx context.Context, waypoints []world.Waypoint, clearanceM, searchRadiusM float64) ([]Obstacle, error) {
		return []Obstacle{{Lat: midLat, Lon: -117.8300, RadiusM: 20.0, HeightM: &height}}, nil
	}
	planner := NewPlanner(nil, obstacleSource)
	req := PlanRequest{Waypoints: straightWaypoints(300.0), LaneRadiusM: 60.0}
	result := planner.PlanRoute(context.Background(), req)
	if !result.OK {
		t.Fatalf("expected the planner to route around the obstacle, got errors: %v", result.Errors)
	}
	if len(result.Hazards) != 1 {
		t.Fatalf("expected 1 reported hazard, got %d", len(result.Hazards))
	}
}

func TestPlanRouteFailsWhenGeofenceBlocksEntireCorridor(t *testing.T) {
	waypoints := straightWaypoints(300.0)
	fence := world.Geofence{
		ID:             "nfz-full",
		Type:           world.GeofenceNoFlyZone,
		Active:         true,
		LowerAltitudeM: 0,
		UpperAltitudeM: 500,
		Vertices: []world.LatLon{
			{Lat: waypoints[0].Lat - 0.01, Lon: waypoints[0].Lon - 0.01},
			{Lat: waypoints[0].Lat - 0.01, Lon: waypoints[0].Lon + 0.01},
			{Lat: waypoints[1].Lat + 0.01, Lon: waypoints[0].Lon + 0.01},
			{Lat: waypoints[1].Lat + 0.01, Lon: waypoints[0].Lon - 0.01},
		},
	}
	planner := NewPlanner(nil, nil)
	ctx := WithGeofences(context.Background(), []world.Geofence{fence})
	req := PlanRequest{Waypoints: waypoints, LaneRadiusM: 30.0, MaxLaneRadiusM: 100.0}
	result := planner.PlanRoute(ctx, req)
	if result.OK {
		t.Fatal("expected planning to fail when a no-fly zone covers the entire corridor")
	}
}

func TestBuildSegmentsSplitsLongLegs(t *testing.T) {
	waypoints := straightWaypoints(5000.0)
	segments := buildSegments(waypoints, 1000.0)
	if len(segments) < 4 {
		t.Fatalf("expected a 5km leg split into several <=1km segments, got %d", len(segments))
	}
	for i := 1; i < len(segments); i++ {
		if segments[i][0] != segments[i-1][len(segments[i-1])-1] {
			t.Fatalf("expected segment %d to start where segment %d ended", i, i-1)
		}
	}
}

func TestPlanRouteSegmentsLongRoutes(t *testing.T) {
	planner := NewPlanner(nil, nil)
	req := PlanRequest{Waypoints: straightWaypoints(10_000.0)}
	result := planner.PlanRoute(context.Background(), req)
	if !result.OK {
		t.Fatalf("expected a long unobstructed route to succeed via segmentation, got errors: %v", result.Errors)
	}
	if len(result.Waypoints) < 2 {
		t.Fatal("expected waypoints from a segmented plan")
	}
}

func TestNearestHazardsSortsByDistanceAndTruncates(t *testing.T) {
	var obstacles []Obstacle
	h := 10.0
	for i := 0; i < 60; i++ {
		obstacles = append(obstacles, Obstacle{Lat: 33.68 + float64(i)*0.001, Lon: -117.83, RadiusM: 5.0, HeightM: &h})
	}
	hazards := nearestHazards(obstacles, 33.68, -117.83)
	if len(hazards) != maxReportedHazards {
		t.Fatalf("expected truncation to %d hazards, got %d", maxReportedHazards, len(hazards))
	}
	for i := 1; i < len(hazards); i++ {
		if hazards[i].DistanceM < hazards[i-1].DistanceM {
			t.Fatal("expected hazards sorted nearest-first")
		}
	}
}
