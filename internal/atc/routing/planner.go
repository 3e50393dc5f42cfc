package routing

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/asgard/atc/internal/atc/spatial"
	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/observability"
)

// PlanRequest is a single ground-to-ground or airborne-replan routing
// request. StartAltitudeOverride, when set, pins the first grid sample's
// altitude to the drone's current altitude instead of ground level, for an
// airborne reroute where there is no ground departure leg.
type PlanRequest struct {
	Waypoints             []world.Waypoint
	LaneRadiusM           float64
	LaneSpacingM          float64
	SampleSpacingM        float64
	SafetyBufferM         float64
	MaxLaneRadiusM        float64
	LaneExpansionStepM    float64
	StartAltitudeOverride *float64
}

// PlanResult is a completed or failed routing attempt.
type PlanResult struct {
	OK              bool
	Waypoints       []world.Waypoint
	NodesVisited    int
	OptimizedPoints int
	SamplePoints    int
	Hazards         []Hazard
	Errors          []string
}

// TerrainSampler resolves ground elevation for a batch of points; nil means
// routing proceeds with zero terrain everywhere.
type TerrainSampler func(ctx context.Context, lats, lons []float64, gridSpacingM float64) (*TerrainGrid, error)

// ObstacleSource resolves nearby hazards for a route corridor; nil means no
// obstacle avoidance beyond geofences and terrain.
type ObstacleSource func(ctx context.Context, waypoints []world.Waypoint, clearanceM, searchRadiusM float64) ([]Obstacle, error)

// Planner ties the grid/A*/smoothing primitives to live terrain and
// obstacle sources and the geofence set a route must avoid.
type Planner struct {
	Config    Config
	Terrain   TerrainSampler
	Obstacles ObstacleSource
	sem       *semaphore.Weighted
}

// NewPlanner constructs a planner with the default A* cost model and the
// segment-prefetch concurrency used for long-route planning.
func NewPlanner(terrain TerrainSampler, obstacles ObstacleSource) *Planner {
	return &Planner{
		Config:    DefaultConfig(),
		Terrain:   terrain,
		Obstacles: obstacles,
		sem:       semaphore.NewWeighted(segmentPrefetchConcurrency),
	}
}

// laneRadiusCandidates is the Cartesian retry schedule: start at the
// requested radius and widen by expansionStep until maxRadius, so a
// corridor blocked by a close-in obstacle gets progressively more room to
// route around it before the request is given up on.
func laneRadiusCandidates(radius, maxRadius, expansionStep float64) []float64 {
	var out []float64
	for r := radius; r <= maxRadius+1e-6; r += expansionStep {
		out = append(out, r)
	}
	if len(out) == 0 {
		out = []float64{radius}
	}
	return out
}

// laneSpacingCandidates retries at progressively coarser lateral spacing
// once the requested spacing fails to find a path, capped by the minimum
// usable spacing.
func laneSpacingCandidates(spacing float64) []float64 {
	out := []float64{spacing}
	widened := spacing * 2
	if widened > spacing && widened <= 250.0 {
		out = append(out, widened)
	}
	return out
}

// PlanRoute resolves a route between two or more waypoints, retrying at
// increasing lane radius and lane spacing until a feasible path is found or
// every candidate has been exhausted. Routes longer than the default
// segment length are split and planned segment by segment with bounded
// concurrent prefetch of terrain/obstacle data.
func (p *Planner) PlanRoute(ctx context.Context, req PlanRequest) PlanResult {
	start := time.Now()
	if len(req.Waypoints) < 2 {
		observability.RecordPlannerAttempt("single", "failed", time.Since(start), 0)
		return PlanResult{Errors: []string{"need at least 2 waypoints"}}
	}

	laneRadius := valueOr(req.LaneRadiusM, defaultLaneRadiusM)
	laneSpacing := clampF(valueOr(req.LaneSpacingM, defaultLaneSpacingM), minLaneSpacingM, 250.0)
	defaultSpacing := clampF(valueOr(req.SampleSpacingM, defaultSampleSpacingM), 1.0, maxSampleSpacingM)
	clearanceM := clampF(valueOr(req.SafetyBufferM, 20.0), 0.0, hardMaxSafetyBufferM)
	maxLaneRadius := clampF(valueOr(req.MaxLaneRadiusM, defaultMaxLaneRadiusM), defaultMaxLaneRadiusM, hardMaxLaneRadiusM)
	expansionStep := valueOr(req.LaneExpansionStepM, defaultLaneExpansionStepM)

	totalDistance := routeDistanceM(req.Waypoints)
	if totalDistance <= 1e-9 {
		observability.RecordPlannerAttempt("single", "failed", time.Since(start), 0)
		return PlanResult{Errors: []string{"route distance is zero (start and end waypoints must differ)"}}
	}

	if totalDistance <= defaultSegmentLengthM {
		result := p.planSingle(ctx, req.Waypoints, laneRadius, laneSpacing, defaultSpacing, clearanceM, maxLaneRadius, expansionStep, req.StartAltitudeOverride)
		if result.OK {
			observability.RecordPlannerAttempt("single", "ok", time.Since(start), len(result.Waypoints))
			return result
		}
	}

	result := p.planSegmented(ctx, req.Waypoints, laneRadius, laneSpacing, defaultSpacing, clearanceM, maxLaneRadius, expansionStep)
	status := "ok"
	if !result.OK {
		status = "failed"
	}
	observability.RecordPlannerAttempt("segmented", status, time.Since(start), len(result.Waypoints))
	return result
}

func (p *Planner) planSingle(ctx context.Context, waypoints []world.Waypoint, laneRadius, laneSpacing, defaultSpacing, clearanceM, maxLaneRadius, expansionStep float64, startAltOverride *float64) PlanResult {
	baseSpacing := resolveGridSpacing(waypoints, defaultSpacing)

	var obstacles []Obstacle
	if p.Obstacles != nil {
		var err error
		obstacles, err = p.Obstacles(ctx, waypoints, clearanceM, maxLaneRadius+clearanceM)
		if err != nil {
			return PlanResult{Errors: []string{fmt.Sprintf("obstacle fetch failed: %v", err)}}
		}
	}

	var terrain *TerrainGrid
	if p.Terrain != nil {
		lats := make([]float64, len(waypoints))
		lons := make([]float64, len(waypoints))
		for i, wp := range waypoints {
			lats[i], lons[i] = wp.Lat, wp.Lon
		}
		grid, err := p.Terrain(ctx, lats, lons, baseSpacing)
		if err != nil {
			return PlanResult{Errors: []string{fmt.Sprintf("terrain fetch failed: %v", err)}}
		}
		terrain = grid
	}

	var lastErrors []string
	lastSamplePoints := 0

	for _, radius := range laneRadiusCandidates(laneRadius, maxLaneRadius, expansionStep) {
		for _, spacing := range laneSpacingCandidates(laneSpacing) {
			laneOffsets := buildLaneOffsets(radius, spacing)
			estimated := gridPointCount(laneOffsets, waypoints, baseSpacing)
			if estimated > maxRouteGridPoints {
				lastErrors = []string{fmt.Sprintf("route grid too large (estimated %d points)", estimated)}
				continue
			}

			grid := generateGridSamples(waypoints, baseSpacing, laneOffsets)
			if grid == nil {
				lastErrors = []string{"failed to generate grid"}
				continue
			}
			samplePoints := 0
			if len(grid.Lanes) > 0 {
				samplePoints = len(grid.Lanes[0]) * len(grid.Lanes)
			}
			lastSamplePoints = samplePoints

			terrainFn := func(lat, lon float64) float64 {
				if terrain == nil {
					return 0.0
				}
				return terrain.Sample(lat, lon)
			}
			applyObstacles(grid, obstacles, terrainFn)

			cfg := p.Config
			cfg.SafetyBufferM = clearanceM
			cfg.GeofenceSampleStepM = clampF(baseSpacing, 5.0, 25.0)

			result, errs := computePathNodes(grid, p.geofences(ctx), cfg, startAltOverride)
			if errs != nil {
				lastErrors = errs
				continue
			}

			waypointsOut := buildSegmentWaypoints(result, grid, startAltOverride != nil)
			return PlanResult{
				OK:              true,
				Waypoints:       waypointsOut,
				NodesVisited:    result.nodesVisited,
				OptimizedPoints: len(waypointsOut),
				SamplePoints:    samplePoints,
				Hazards:         nearestHazards(obstacles, waypoints[0].Lat, waypoints[0].Lon),
			}
		}
	}

	if lastErrors == nil {
		lastErrors = []string{"A* failed to find a path"}
	}
	lastErrors = append(lastErrors, fmt.Sprintf("no path within lane radius %.1fm", maxLaneRadius))
	return PlanResult{Errors: lastErrors, SamplePoints: lastSamplePoints, Hazards: nearestHazards(obstacles, waypoints[0].Lat, waypoints[0].Lon)}
}

// geofences is a seam for wiring the live world store. Planner itself holds
// no state reference, so callers inject the active set per call through
// WithGeofences.
func (p *Planner) geofences(ctx context.Context) []world.Geofence {
	if fences, ok := ctx.Value(geofenceContextKey{}).([]world.Geofence); ok {
		return fences
	}
	return nil
}

type geofenceContextKey struct{}

// WithGeofences attaches the geofence set an upcoming PlanRoute call must
// avoid. The A* search treats every active, non-advisory fence in this set
// as a hard constraint.
func WithGeofences(ctx context.Context, geofences []world.Geofence) context.Context {
	return context.WithValue(ctx, geofenceContextKey{}, geofences)
}

// buildSegmentWaypoints converts a smoothed node path into output waypoints,
// tagging ground legs for a ground-to-ground plan or a flat CRUISE tag for
// an airborne-only replan.
func buildSegmentWaypoints(result *pathResult, grid *Grid, airborneOnly bool) []world.Waypoint {
	if airborneOnly {
		out := make([]world.Waypoint, 0, len(result.smoothedPath))
		for _, n := range result.smoothedPath {
			point := grid.Lanes[n.lane][n.step]
			out = append(out, world.Waypoint{Lat: point.Lat, Lon: point.Lon, AltitudeM: n.alt, Phase: "CRUISE"})
		}
		return out
	}

	numSteps := len(grid.Lanes[0])
	centerLane := len(grid.Lanes) / 2
	waypointIndices := grid.WaypointIndices
	if len(waypointIndices) == 0 {
		waypointIndices = []int{0, numSteps - 1}
	}

	const maxSegmentDistanceM = 15.0
	var out []world.Waypoint

	for idx, stepIdx := range waypointIndices {
		point := grid.Lanes[centerLane][stepIdx]
		isFirst := idx == 0
		isLast := idx+1 == len(waypointIndices)
		phase := "GROUND_WAYPOINT"
		if isFirst {
			phase = "GROUND_START"
		} else if isLast {
			phase = "GROUND_END"
		}
		out = append(out, world.Waypoint{Lat: point.Lat, Lon: point.Lon, AltitudeM: point.TerrainHeightM, Phase: phase})

		if isLast {
			continue
		}
		nextStepIdx := waypointIndices[idx+1]

		segmentCruiseAlt := 0.0
		for _, n := range result.smoothedPath {
			if n.step > stepIdx && n.step < nextStepIdx {
				segmentCruiseAlt = math.Max(segmentCruiseAlt, n.alt)
			}
		}
		segmentPlannedAlt, maxObstacle := 0.0, 0.0
		for step := stepIdx; step <= nextStepIdx; step++ {
			pt := grid.Lanes[centerLane][step]
			segmentPlannedAlt = math.Max(segmentPlannedAlt, pt.AltitudeM)
			maxObstacle = math.Max(maxObstacle, math.Max(pt.ObstacleHeightM, pt.TerrainHeightM))
		}
		minSafeAlt := maxObstacle + 20.0
		segmentCruiseAlt = math.Max(segmentCruiseAlt, math.Max(minSafeAlt, segmentPlannedAlt))

		out = append(out, world.Waypoint{Lat: point.Lat, Lon: point.Lon, AltitudeM: segmentCruiseAlt, Phase: "VERTICAL_ASCENT"})

		lastOutputLane := centerLane
		var lastOutputNode *node
		for i := range result.smoothedPath {
			n := result.smoothedPath[i]
			if n.step <= stepIdx || n.step >= nextStepIdx {
				continue
			}
			nodePoint := grid.Lanes[n.lane][n.step]

			if n.lane != lastOutputLane {
				out = append(out, world.Waypoint{Lat: nodePoint.Lat, Lon: nodePoint.Lon, AltitudeM: segmentCruiseAlt, Phase: "CRUISE_CORNER"})
				out = append(out, world.Waypoint{Lat: nodePoint.Lat, Lon: nodePoint.Lon, AltitudeM: segmentCruiseAlt, Phase: "CRUISE"})
				lastOutputLane = n.lane
				cp := n
				lastOutputNode = &cp
			} else if lastOutputNode != nil {
				lastPoint := grid.Lanes[lastOutputNode.lane][lastOutputNode.step]
				dist := spatial.HaversineDistance(lastPoint.Lat, lastPoint.Lon, nodePoint.Lat, nodePoint.Lon)
				if dist > maxSegmentDistanceM {
					out = append(out, world.Waypoint{Lat: nodePoint.Lat, Lon: nodePoint.Lon, AltitudeM: segmentCruiseAlt, Phase: "CRUISE_INTERMEDIATE"})
					cp := n
					lastOutputNode = &cp
				}
			}
		}

		nextPoint := grid.Lanes[centerLane][nextStepIdx]
		out = append(out, world.Waypoint{Lat: nextPoint.Lat, Lon: nextPoint.Lon, AltitudeM: segmentCruiseAlt, Phase: "VERTICAL_DESCENT"})
	}

	return out
}

func valueOr(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}

func routeDistanceM(waypoints []world.Waypoint) float64 {
	total := 0.0
	for i := 1; i < len(waypoints); i++ {
		total += spatial.HaversineDistance(waypoints[i-1].Lat, waypoints[i-1].Lon, waypoints[i].Lat, waypoints[i].Lon)
	}
	return total
}
