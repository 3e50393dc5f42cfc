package routing

import (
	"math"

	"github.com/asgard/atc/internal/atc/world"
)

// smoothPath greedily collapses a raw A* node chain down to the furthest
// mutually-visible waypoints, trading search-grid jaggedness for a route an
// autopilot can fly as a sequence of straight legs.
func smoothPath(pathNodes []node, grid *Grid, geofences []world.Geofence, cfg Config) []node {
	if len(pathNodes) <= 2 {
		return pathNodes
	}

	smoothed := []node{pathNodes[0]}
	currentIdx := 0

	for currentIdx < len(pathNodes)-1 {
		current := pathNodes[currentIdx]
		furthestValid := currentIdx + 1

		for targetIdx := currentIdx + 2; targetIdx < len(pathNodes); targetIdx++ {
			target := pathNodes[targetIdx]
			if isLineOfSightClear(current, target, pathNodes, currentIdx, targetIdx, grid, geofences, cfg) {
				furthestValid = targetIdx
			}
		}

		smoothed = append(smoothed, pathNodes[furthestValid])
		currentIdx = furthestValid
	}

	return smoothed
}

// isLineOfSightClear samples at least 5 points (and at least 2 per
// intervening node) along the straight step/lane/altitude interpolation
// between start and end, rejecting the shortcut if any sample violates the
// safety buffer above terrain/obstacles, a neighboring lane's ceiling, or an
// active geofence.
func isLineOfSightClear(start, end node, allNodes []node, startIdx, endIdx int, grid *Grid, geofences []world.Geofence, cfg Config) bool {
	maxAlt := math.Max(start.alt, end.alt)
	for idx := startIdx; idx <= endIdx; idx++ {
		maxAlt = math.Max(maxAlt, allNodes[idx].alt)
	}

	numLanes := len(grid.Lanes)
	numSteps := len(grid.Lanes[0])
	numSamples := int(math.Max(float64((endIdx-startIdx)*2), 5))

	stepDelta := end.step - start.step
	laneDelta := end.lane - start.lane

	for i := 1; i < numSamples; i++ {
		t := float64(i) / float64(numSamples)
		midStep := int(math.Round(float64(start.step) + t*float64(stepDelta)))
		midLane := int(math.Round(float64(start.lane) + t*float64(laneDelta)))
		if midLane < 0 || midLane >= numLanes || midStep < 0 || midStep >= numSteps {
			return false
		}

		gridPoint := grid.Lanes[midLane][midStep]
		obstacleHeight := math.Max(gridPoint.ObstacleHeightM, gridPoint.TerrainHeightM)
		minSafeAlt := obstacleHeight + cfg.SafetyBufferM

		if len(geofences) > 0 {
			sampleAlt := start.alt + t*(end.alt-start.alt)
			if geofenceBlocksPoint(geofences, gridPoint.Lat, gridPoint.Lon, sampleAlt) {
				return false
			}
		}
		if minSafeAlt > maxAlt {
			return false
		}
		if midLane > 0 {
			left := grid.Lanes[midLane-1][midStep]
			leftHeight := math.Max(left.ObstacleHeightM, left.TerrainHeightM)
			if leftHeight+cfg.SafetyBufferM > maxAlt {
				return false
			}
		}
		if midLane+1 < numLanes {
			right := grid.Lanes[midLane+1][midStep]
			rightHeight := math.Max(right.ObstacleHeightM, right.TerrainHeightM)
			if rightHeight+cfg.SafetyBufferM > maxAlt {
				return false
			}
		}
	}

	return true
}
