// Package routing plans 3D flight paths through an A* search over a
// lane-offset grid sampled along the requested waypoints, then smooths and
// phase-tags the result for delivery to a drone's autopilot.
package routing

import (
	"math"
	"sort"

	"github.com/asgard/atc/internal/atc/spatial"
	"github.com/asgard/atc/internal/atc/world"
)

const (
	defaultLaneRadiusM        = 90.0
	defaultLaneSpacingM       = 15.0
	minLaneSpacingM           = 5.0
	defaultSampleSpacingM     = 5.0
	defaultMaxLaneRadiusM     = 800.0
	defaultLaneExpansionStepM = 50.0
	maxRouteGridPoints        = 500_000
	defaultSegmentLengthM     = 8_000.0
	minSegmentLengthM         = 1_000.0
	maxSampleSpacingM         = 75.0
	segmentPrefetchConcurrency = 4
	hardMaxLaneRadiusM        = 5_000.0
	hardMaxSafetyBufferM      = 500.0
)

// GridPoint is one lane-offset sample along the route, carrying the terrain
// and obstacle heights needed for feasibility checks during search.
type GridPoint struct {
	Lat              float64
	Lon              float64
	AltitudeM        float64
	TerrainHeightM   float64
	ObstacleHeightM  float64
}

// Grid is the full set of lane-offset samples along a waypoint chain, plus
// the step indices at which an original waypoint falls.
type Grid struct {
	Lanes            [][]GridPoint
	WaypointIndices  []int
}

// buildLaneOffsets returns the signed lateral offsets (in meters) the grid
// samples at every step, always including a zero ("center line") offset.
func buildLaneOffsets(radiusM, spacingM float64) []float64 {
	spacing := math.Max(spacingM, 1.0)
	steps := int(math.Floor(radiusM / spacing))
	offsets := make([]float64, 0, 2*steps+1)
	for i := -steps; i <= steps; i++ {
		offsets = append(offsets, float64(i)*spacing)
	}
	hasZero := false
	for _, v := range offsets {
		if math.Abs(v) < 1e-12 {
			hasZero = true
			break
		}
	}
	if !hasZero {
		offsets = append(offsets, 0.0)
	}
	sort.Float64s(offsets)
	return offsets
}

// resolveGridSpacing widens along-track sample spacing for long routes so
// the grid point count stays manageable; short hops keep the caller's
// requested spacing for precision near obstacles.
func resolveGridSpacing(waypoints []world.Waypoint, defaultSpacing float64) float64 {
	if len(waypoints) < 2 {
		return defaultSpacing
	}
	distanceM := 0.0
	for i := 1; i < len(waypoints); i++ {
		distanceM += spatial.HaversineDistance(waypoints[i-1].Lat, waypoints[i-1].Lon, waypoints[i].Lat, waypoints[i].Lon)
	}
	switch {
	case distanceM > 8000.0:
		return 10.0
	case distanceM > 4000.0:
		return 7.5
	case distanceM > 2000.0:
		return 6.0
	default:
		return defaultSpacing
	}
}

// generateGridSamples lays out one lane-offset grid per waypoint-to-waypoint
// leg, sampling at spacingM along-track and at each offset in laneOffsets
// laterally. Returns nil if fewer than two waypoints are given.
func generateGridSamples(waypoints []world.Waypoint, spacingM float64, laneOffsets []float64) *Grid {
	if len(waypoints) < 2 {
		return nil
	}
	spacing := math.Max(spacingM, 1.0)
	lanes := make([][]GridPoint, len(laneOffsets))
	waypointIndices := []int{0}

	for i := 0; i < len(waypoints)-1; i++ {
		start := waypoints[i]
		end := waypoints[i+1]
		distanceM := spatial.HaversineDistance(start.Lat, start.Lon, end.Lat, end.Lon)
		heading := spatial.ForwardAzimuth(start.Lat, start.Lon, end.Lat, end.Lon)
		numSteps := int(math.Max(math.Ceil(distanceM/spacing), 1))

		for stepIdx := 0; stepIdx <= numSteps; stepIdx++ {
			if stepIdx == numSteps && i < len(waypoints)-2 {
				continue
			}
			fraction := float64(stepIdx) / float64(numSteps)
			centerLat, centerLon := spatial.OffsetByBearing(start.Lat, start.Lon, distanceM*fraction, heading)
			altitudeM := start.AltitudeM + fraction*(end.AltitudeM-start.AltitudeM)

			for laneIdx, offset := range laneOffsets {
				var lat, lon float64
				if math.Abs(offset) < 1e-12 {
					lat, lon = centerLat, centerLon
				} else {
					lateralBearing := heading + math.Pi/2
					if offset < 0.0 {
						lateralBearing = heading - math.Pi/2
					}
					lat, lon = spatial.OffsetByBearing(centerLat, centerLon, math.Abs(offset), lateralBearing)
				}
				lanes[laneIdx] = append(lanes[laneIdx], GridPoint{Lat: lat, Lon: lon, AltitudeM: altitudeM})
			}
		}

		totalSteps := 0
		if len(lanes) > 0 {
			totalSteps = len(lanes[0])
		}
		if i < len(waypoints)-2 && totalSteps > 0 {
			waypointIndices = append(waypointIndices, totalSteps-1)
		}
	}

	if len(lanes) > 0 && len(lanes[0]) > 0 {
		waypointIndices = append(waypointIndices, len(lanes[0])-1)
	}

	return &Grid{Lanes: lanes, WaypointIndices: waypointIndices}
}

// gridPointCount reports the total sample count, used against
// maxRouteGridPoints before committing to an A* search.
func gridPointCount(laneOffsets []float64, waypoints []world.Waypoint, spacingM float64) int {
	total := 0
	for i := 0; i < len(waypoints)-1; i++ {
		d := spatial.HaversineDistance(waypoints[i].Lat, waypoints[i].Lon, waypoints[i+1].Lat, waypoints[i+1].Lon)
		steps := int(math.Max(math.Ceil(d/math.Max(spacingM, 1.0)), 1))
		total += steps + 1
	}
	return total * len(laneOffsets)
}

// Obstacle is a disk-approximated hazard: a cylindrical no-go column with
// an optional height (unbounded upward if absent).
type Obstacle struct {
	Lat      float64
	Lon      float64
	RadiusM  float64
	HeightM  *float64
}

// applyObstacles stamps terrain and obstacle heights onto every grid point.
// terrainHeight samples ground elevation; obstacles closer than their own
// radius raise a point's obstacle ceiling above the terrain.
func applyObstacles(grid *Grid, obstacles []Obstacle, terrainHeight func(lat, lon float64) float64) {
	for laneIdx := range grid.Lanes {
		lane := grid.Lanes[laneIdx]
		for i := range lane {
			point := &lane[i]
			terrain := math.Max(terrainHeight(point.Lat, point.Lon), 0.0)
			point.TerrainHeightM = terrain
			point.ObstacleHeightM = terrain

			for _, obstacle := range obstacles {
				distance := spatial.HaversineDistance(point.Lat, point.Lon, obstacle.Lat, obstacle.Lon)
				if distance > obstacle.RadiusM {
					continue
				}
				height := 0.0
				if obstacle.HeightM != nil {
					height = *obstacle.HeightM
				}
				obstacleAlt := terrain + height
				if obstacleAlt > point.ObstacleHeightM {
					point.ObstacleHeightM = obstacleAlt
				}
			}
		}
	}
}
