package routing

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/asgard/atc/internal/atc/spatial"
	"github.com/asgard/atc/internal/atc/world"
)

const segmentRetryAttempts = 4

// buildSegments splits a waypoint chain into legs no longer than
// maxLengthM, inserting intermediate points along straight-line legs as
// needed. Already-short legs pass through untouched.
func buildSegments(waypoints []world.Waypoint, maxLengthM float64) [][]world.Waypoint {
	if len(waypoints) < 2 || maxLengthM <= 0 {
		return nil
	}
	var segments [][]world.Waypoint
	current := []world.Waypoint{waypoints[0]}

	for i := 0; i < len(waypoints)-1; i++ {
		start, end := waypoints[i], waypoints[i+1]
		legDistance := spatial.HaversineDistance(start.Lat, start.Lon, end.Lat, end.Lon)
		if legDistance <= maxLengthM {
			current = append(current, end)
			if legDistance >= maxLengthM*0.999 {
				segments = append(segments, current)
				current = []world.Waypoint{end}
			}
			continue
		}

		heading := spatial.ForwardAzimuth(start.Lat, start.Lon, end.Lat, end.Lon)
		steps := int(legDistance/maxLengthM) + 1
		for s := 1; s <= steps; s++ {
			fraction := float64(s) / float64(steps)
			lat, lon := spatial.OffsetByBearing(start.Lat, start.Lon, legDistance*fraction, heading)
			alt := start.AltitudeM + fraction*(end.AltitudeM-start.AltitudeM)
			point := world.Waypoint{Lat: lat, Lon: lon, AltitudeM: alt}
			current = append(current, point)
			segments = append(segments, current)
			current = []world.Waypoint{point}
		}
	}

	if len(current) > 1 {
		segments = append(segments, current)
	}
	return segments
}

type segmentInputs struct {
	terrain   *TerrainGrid
	obstacles []Obstacle
}

// planSegmented plans a long route leg by leg, prefetching each segment's
// terrain and obstacle data under a bounded-concurrency semaphore (so a
// route with hundreds of segments doesn't open hundreds of simultaneous
// upstream requests), then running A* on each segment in turn and
// concatenating the results. If a full pass fails, the segment length is
// halved (down to a 1km floor) and the whole pass is retried, up to 4
// attempts.
func (p *Planner) planSegmented(ctx context.Context, waypoints []world.Waypoint, laneRadius, laneSpacing, defaultSpacing, clearanceM, maxLaneRadius, expansionStep float64) PlanResult {
	totalDistance := routeDistanceM(waypoints)
	segmentLength := defaultSegmentLengthM
	if totalDistance < segmentLength {
		segmentLength = totalDistance
	}

	var lastErrors []string

	for attempt := 0; attempt < segmentRetryAttempts; attempt++ {
		segments := buildSegments(waypoints, segmentLength)
		if len(segments) == 0 {
			return PlanResult{Errors: []string{"failed to segment route"}}
		}

		inputs := make([]segmentInputs, len(segments))
		fetchErrs := make([]error, len(segments))

		group, gctx := errgroup.WithContext(ctx)
		for i, seg := range segments {
			i, seg := i, seg
			if err := p.sem.Acquire(gctx, 1); err != nil {
				return PlanResult{Errors: []string{"failed to acquire segment prefetch permit"}}
			}
			group.Go(func() error {
				defer p.sem.Release(1)
				baseSpacing := resolveGridSpacing(seg, defaultSpacing)
				segMaxRadius := resolveMaxLaneRadius(routeDistanceM(seg), laneRadius, maxLaneRadius)

				var obstacles []Obstacle
				if p.Obstacles != nil {
					obs, err := p.Obstacles(gctx, seg, clearanceM, segMaxRadius+clearanceM)
					if err != nil {
						fetchErrs[i] = err
						return nil
					}
					obstacles = obs
				}
				var terrain *TerrainGrid
				if p.Terrain != nil {
					lats := make([]float64, len(seg))
					lons := make([]float64, len(seg))
					for j, wp := range seg {
						lats[j], lons[j] = wp.Lat, wp.Lon
					}
					grid, err := p.Terrain(gctx, lats, lons, baseSpacing)
					if err != nil {
						fetchErrs[i] = err
						return nil
					}
					terrain = grid
				}
				inputs[i] = segmentInputs{terrain: terrain, obstacles: obstacles}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return PlanResult{Errors: []string{fmt.Sprintf("segment prefetch failed: %v", err)}}
		}

		var combined []world.Waypoint
		var hazards []Hazard
		nodesVisited, optimizedPoints, samplePoints := 0, 0, 0
		failed := false

		for i, seg := range segments {
			if fetchErrs[i] != nil {
				lastErrors = []string{fmt.Sprintf("segment %d input fetch failed: %v", i, fetchErrs[i])}
				failed = true
				break
			}

			baseSpacing := resolveGridSpacing(seg, defaultSpacing)
			segMaxRadius := resolveMaxLaneRadius(routeDistanceM(seg), laneRadius, maxLaneRadius)

			segResult := p.planSingleWithInputs(ctx, seg, laneRadius, laneSpacing, baseSpacing, clearanceM, segMaxRadius, expansionStep, inputs[i])
			if !segResult.OK {
				lastErrors = segResult.Errors
				failed = true
				break
			}

			if i > 0 && len(combined) > 0 {
				segResult.Waypoints = segResult.Waypoints[1:]
			}
			combined = append(combined, segResult.Waypoints...)
			hazards = append(hazards, segResult.Hazards...)
			nodesVisited += segResult.NodesVisited
			optimizedPoints += segResult.OptimizedPoints
			samplePoints += segResult.SamplePoints
		}

		if !failed {
			return PlanResult{
				OK:              true,
				Waypoints:       combined,
				NodesVisited:    nodesVisited,
				OptimizedPoints: optimizedPoints,
				SamplePoints:    samplePoints,
				Hazards:         hazards,
			}
		}

		segmentLength /= 2
		if segmentLength < minSegmentLengthM {
			segmentLength = minSegmentLengthM
		}
	}

	if lastErrors == nil {
		lastErrors = []string{"segmented route planning failed"}
	}
	return PlanResult{Errors: lastErrors}
}

// resolveMaxLaneRadius scales the per-segment lane radius ceiling down for
// short segments so a single short leg doesn't search a radius sized for
// the whole route.
func resolveMaxLaneRadius(segmentDistanceM, laneRadius, maxLaneRadius float64) float64 {
	if segmentDistanceM < defaultSegmentLengthM {
		scaled := laneRadius + (maxLaneRadius-laneRadius)*(segmentDistanceM/defaultSegmentLengthM)
		if scaled > laneRadius {
			return scaled
		}
	}
	return maxLaneRadius
}

// planSingleWithInputs runs a single segment's A* search against
// pre-fetched terrain and obstacle data, skipping the fetch calls
// planSingle would otherwise make.
func (p *Planner) planSingleWithInputs(ctx context.Context, waypoints []world.Waypoint, laneRadius, laneSpacing, baseSpacing, clearanceM, maxLaneRadius, expansionStep float64, inputs segmentInputs) PlanResult {
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
				if inputs.terrain == nil {
					return 0.0
				}
				return inputs.terrain.Sample(lat, lon)
			}
			applyObstacles(grid, inputs.obstacles, terrainFn)

			cfg := p.Config
			cfg.SafetyBufferM = clearanceM
			cfg.GeofenceSampleStepM = clampF(baseSpacing, 5.0, 25.0)

			result, errs := computePathNodes(grid, p.geofences(ctx), cfg, nil)
			if errs != nil {
				lastErrors = errs
				continue
			}

			waypointsOut := buildSegmentWaypoints(result, grid, false)
			return PlanResult{
				OK:              true,
				Waypoints:       waypointsOut,
				NodesVisited:    result.nodesVisited,
				OptimizedPoints: len(waypointsOut),
				SamplePoints:    samplePoints,
				Hazards:         nearestHazards(inputs.obstacles, waypoints[0].Lat, waypoints[0].Lon),
			}
		}
	}

	if lastErrors == nil {
		lastErrors = []string{"A* failed to find a path"}
	}
	return PlanResult{Errors: lastErrors, SamplePoints: lastSamplePoints}
}
