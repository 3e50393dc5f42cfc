package admission

import (
	"context"
	"testing"
	"time"

	"github.com/asgard/atc/internal/atc/world"
)

// shortCtx bounds tests that exercise Validate end-to-end so a reachable
// (or unreachable) weather/obstacle provider can't slow the suite; the
// assertions below hold regardless of whether those calls succeed.
func shortCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func straightPlan() []world.Waypoint {
	return []world.Waypoint{
		{Lat: 33.60, Lon: -117.80, AltitudeM: 100},
		{Lat: 33.61, Lon: -117.80, AltitudeM: 100},
	}
}

func TestValidateWaypointsRejectsSingleWaypoint(t *testing.T) {
	err := validateWaypoints([]world.Waypoint{{Lat: 1, Lon: 1}})
	if err == nil {
		t.Fatal("expected a single-waypoint plan to be rejected")
	}
}

func TestValidateWaypointsRejectsOutOfRangeCoordinate(t *testing.T) {
	err := validateWaypoints([]world.Waypoint{
		{Lat: 200, Lon: 0},
		{Lat: 1, Lon: 1},
	})
	if err == nil {
		t.Fatal("expected an out-of-range latitude to be rejected")
	}
}

func TestValidateWaypointsRejectsNegativeAltitude(t *testing.T) {
	err := validateWaypoints([]world.Waypoint{
		{Lat: 1, Lon: 1, AltitudeM: -5},
		{Lat: 2, Lon: 2, AltitudeM: 10},
	})
	if err == nil {
		t.Fatal("expected a negative altitude to be rejected")
	}
}

func TestBlockingGeofenceBreachesFlagsNoFlyZoneIntersection(t *testing.T) {
	waypoints := []world.Waypoint{{Lat: 33.605, Lon: -117.80, AltitudeM: 50}}
	fence := world.Geofence{
		ID:   "fence-1",
		Name: "Restricted Corridor",
		Type: world.GeofenceNoFlyZone,
		Vertices: []world.LatLon{
			{Lat: 33.60, Lon: -117.81},
			{Lat: 33.60, Lon: -117.79},
			{Lat: 33.61, Lon: -117.79},
			{Lat: 33.61, Lon: -117.81},
		},
		LowerAltitudeM: 0,
		UpperAltitudeM: 200,
		Active:         true,
	}
	reasons := blockingGeofenceBreaches(waypoints, []world.Geofence{fence})
	if len(reasons) != 1 {
		t.Fatalf("expected one blocking reason, got %d", len(reasons))
	}
}

func TestBlockingGeofenceBreachesIgnoresAdvisoryZones(t *testing.T) {
	waypoints := []world.Waypoint{{Lat: 33.605, Lon: -117.80, AltitudeM: 50}}
	fence := world.Geofence{
		ID:   "fence-1",
		Type: world.GeofenceAdvisory,
		Vertices: []world.LatLon{
			{Lat: 33.60, Lon: -117.81},
			{Lat: 33.60, Lon: -117.79},
			{Lat: 33.61, Lon: -117.79},
			{Lat: 33.61, Lon: -117.81},
		},
		LowerAltitudeM: 0,
		UpperAltitudeM: 200,
		Active:         true,
	}
	reasons := blockingGeofenceBreaches(waypoints, []world.Geofence{fence})
	if len(reasons) != 0 {
		t.Fatalf("expected an advisory geofence to never block, got %v", reasons)
	}
}

func TestBlockingGeofenceBreachesIgnoresInactiveGeofence(t *testing.T) {
	waypoints := []world.Waypoint{{Lat: 33.605, Lon: -117.80, AltitudeM: 50}}
	fence := world.Geofence{
		ID:   "fence-1",
		Type: world.GeofenceNoFlyZone,
		Vertices: []world.LatLon{
			{Lat: 33.60, Lon: -117.81},
			{Lat: 33.60, Lon: -117.79},
			{Lat: 33.61, Lon: -117.79},
			{Lat: 33.61, Lon: -117.81},
		},
		LowerAltitudeM: 0,
		UpperAltitudeM: 200,
		Active:         false,
	}
	reasons := blockingGeofenceBreaches(waypoints, []world.Geofence{fence})
	if len(reasons) != 0 {
		t.Fatalf("expected an inactive geofence to never block, got %v", reasons)
	}
}

func TestBuildRouteMetricsComputesDistanceAndTime(t *testing.T) {
	speed := 10.0
	points := []RoutePoint{
		{Lat: 33.60, Lon: -117.80, AltitudeM: 100},
		{Lat: 33.61, Lon: -117.80, AltitudeM: 100},
	}
	route := buildRouteMetrics(points, &speed)
	if !route.HasRoute {
		t.Fatal("expected a route with two points to be marked HasRoute")
	}
	if route.DistanceM <= 0 {
		t.Fatalf("expected a positive distance, got %f", route.DistanceM)
	}
	if route.EstimatedMinutes <= 0 {
		t.Fatalf("expected a positive estimated flight time, got %f", route.EstimatedMinutes)
	}
}

func TestBuildRouteMetricsSingleWaypointHasNoRoute(t *testing.T) {
	route := buildRouteMetrics([]RoutePoint{{Lat: 1, Lon: 1}}, nil)
	if route.HasRoute {
		t.Fatal("expected a single-point route to report HasRoute=false")
	}
}

func TestEvaluateWeatherPassesWithinThresholds(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	wind, gust, precip := 2.0, 3.0, 0.0
	check := e.evaluateWeather(weatherCurrent{WindSpeed10m: &wind, WindGusts10m: &gust, Precipitation: &precip})
	if check.Status != StatusPass {
		t.Fatalf("expected calm weather to pass, got %s", check.Status)
	}
}

func TestEvaluateWeatherFailsAboveMaxWind(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	wind, gust, precip := 20.0, 25.0, 0.0
	check := e.evaluateWeather(weatherCurrent{WindSpeed10m: &wind, WindGusts10m: &gust, Precipitation: &precip})
	if check.Status != StatusFail {
		t.Fatalf("expected high wind to fail, got %s", check.Status)
	}
}

func TestEvaluateWeatherPendingWhenValuesMissing(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	check := e.evaluateWeather(weatherCurrent{})
	if check.Status != StatusPending {
		t.Fatalf("expected missing weather values to be Pending, got %s", check.Status)
	}
}

func TestEvaluateBatteryFailsWhenReserveViolated(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	speed, capacity, reserve := 10.0, 15.0, 10.0
	route := RouteMetrics{HasRoute: true, DistanceM: 6000, EstimatedMinutes: 10}
	check := e.evaluateBattery(route, &speed, &capacity, &reserve)
	if check.Status != StatusFail {
		t.Fatalf("expected insufficient remaining battery to fail, got %s", check.Status)
	}
}

func TestEvaluateBatteryPassesWithAmpleMargin(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	speed, capacity, reserve := 10.0, 60.0, 5.0
	route := RouteMetrics{HasRoute: true, DistanceM: 3000, EstimatedMinutes: 5}
	check := e.evaluateBattery(route, &speed, &capacity, &reserve)
	if check.Status != StatusPass {
		t.Fatalf("expected ample battery margin to pass, got %s", check.Status)
	}
}

func TestEvaluateBatteryPendingWithoutRoute(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	check := e.evaluateBattery(RouteMetrics{}, nil, nil, nil)
	if check.Status != StatusPending {
		t.Fatalf("expected missing battery inputs to be Pending, got %s", check.Status)
	}
}

func TestEvaluatePopulationFailsAboveAbsoluteMax(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	check := e.evaluatePopulation(false, obstacleAnalysis{density: 6000})
	if check.Status != StatusFail {
		t.Fatalf("expected extreme density to fail, got %s", check.Status)
	}
}

func TestEvaluatePopulationFailsForBVLOSAboveBVLOSMax(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	check := e.evaluatePopulation(true, obstacleAnalysis{density: 3000})
	if check.Status != StatusFail {
		t.Fatalf("expected BVLOS over its density ceiling to fail, got %s", check.Status)
	}
}

func TestEvaluatePopulationPassesForVLOSAboveBVLOSMax(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	check := e.evaluatePopulation(false, obstacleAnalysis{density: 3000})
	if check.Status == StatusFail {
		t.Fatal("expected VLOS flights to tolerate density above the BVLOS-only ceiling")
	}
}

func TestEvaluateObstaclesFlagsConflictWithinClearance(t *testing.T) {
	points := []RoutePoint{{Lat: 33.6459, Lon: -117.8422, AltitudeM: 50}}
	analysis := obstacleAnalysis{}
	check := evaluateObstacles(points, 50.0, analysis)
	if check.Status != StatusFail {
		t.Fatalf("expected a route through the charted tower to fail, got %s", check.Status)
	}
	if len(check.Conflicts) == 0 {
		t.Fatal("expected at least one obstacle conflict to be reported")
	}
}

func TestEvaluateObstaclesPassesFarFromHazards(t *testing.T) {
	points := []RoutePoint{{Lat: 10.0, Lon: 10.0, AltitudeM: 50}}
	check := evaluateObstacles(points, 50.0, obstacleAnalysis{})
	if check.Status != StatusPass {
		t.Fatalf("expected a distant route to pass, got %s", check.Status)
	}
}

func TestEvaluateObstaclesPendingWithoutRoute(t *testing.T) {
	check := evaluateObstacles(nil, 50.0, obstacleAnalysis{})
	if check.Status != StatusPending {
		t.Fatalf("expected a missing route to be Pending, got %s", check.Status)
	}
}

func TestDistanceToRouteMetersZeroOnExactPoint(t *testing.T) {
	points := []RoutePoint{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}
	d := distanceToRouteMeters(1, 1, points)
	if d > 1 {
		t.Fatalf("expected ~0 distance for a point on the route, got %f", d)
	}
}

func TestClassifyDensityBuckets(t *testing.T) {
	cases := map[float64]string{
		50:    "rural",
		500:   "suburban",
		1500:  "urban",
		3000:  "dense",
	}
	for density, want := range cases {
		if got := classifyDensity(density); got != want {
			t.Fatalf("density %f: expected %s, got %s", density, want, got)
		}
	}
}

func TestSummarizeStatusPrioritizesFailOverPendingOverWarn(t *testing.T) {
	checks := ComplianceChecks{
		Weather:    WeatherCheck{Status: StatusWarn},
		Battery:    BatteryCheck{Status: StatusPending},
		Population: PopulationCheck{Status: StatusFail},
		Obstacles:  ObstaclesCheck{Status: StatusPass},
	}
	if got := summarizeStatus(checks); got != StatusFail {
		t.Fatalf("expected Fail to take priority, got %s", got)
	}
}

func TestValidatorRejectsPlanThroughNoFlyZone(t *testing.T) {
	v := NewValidator(DefaultConfig())
	waypoints := []world.Waypoint{
		{Lat: 33.605, Lon: -117.80, AltitudeM: 50},
		{Lat: 33.606, Lon: -117.80, AltitudeM: 50},
	}
	fence := world.Geofence{
		ID:   "fence-1",
		Name: "Restricted Corridor",
		Type: world.GeofenceNoFlyZone,
		Vertices: []world.LatLon{
			{Lat: 33.60, Lon: -117.81},
			{Lat: 33.60, Lon: -117.79},
			{Lat: 33.61, Lon: -117.79},
			{Lat: 33.61, Lon: -117.81},
		},
		LowerAltitudeM: 0,
		UpperAltitudeM: 200,
		Active:         true,
	}
	decision := v.Validate(shortCtx(t), waypoints, []world.Geofence{fence}, SubmissionMetadata{})
	if decision.Accepted {
		t.Fatal("expected a plan crossing a no-fly zone to be rejected")
	}
}

func TestValidatorRejectsTooFewWaypointsBeforeComplianceRuns(t *testing.T) {
	v := NewValidator(DefaultConfig())
	decision := v.Validate(shortCtx(t), []world.Waypoint{{Lat: 1, Lon: 1}}, nil, SubmissionMetadata{})
	if decision.Accepted {
		t.Fatal("expected a single-waypoint plan to be rejected")
	}
}
