package routing

import (
	"math"

	"github.com/asgard/atc/internal/atc/spatial"
	"github.com/asgard/atc/internal/atc/world"
)

// Config tunes the cost model and feasibility rules the search enforces.
type Config struct {
	FAALimitAGL           float64
	SafetyBufferM         float64
	ClimbSpeedMps         float64
	CruiseSpeedMps        float64
	DescentSpeedMps       float64
	CostTimeWeight        float64
	CostClimbPenalty      float64
	CostLaneChange        float64
	CostProximityPenalty  float64
	GeofenceSampleStepM   float64
}

// DefaultConfig mirrors civilian small-UAS routing assumptions: a 121m AGL
// ceiling (FAA Part 107 default), a 20m safety buffer above any obstacle or
// terrain feature, and cruise at 15 m/s.
func DefaultConfig() Config {
	return Config{
		FAALimitAGL:          121.0,
		SafetyBufferM:        20.0,
		ClimbSpeedMps:        2.0,
		CruiseSpeedMps:       15.0,
		DescentSpeedMps:      3.0,
		CostTimeWeight:       1.0,
		CostClimbPenalty:     15.0,
		CostLaneChange:       50.0,
		CostProximityPenalty: 100.0,
		GeofenceSampleStepM:  25.0,
	}
}

// node is one A* search state: a (step, lane) grid cell plus the altitude
// the search committed to reach it.
type node struct {
	step, lane int
	gScore     float64
	fScore     float64
	alt        float64
}

type nodeKey struct{ step, lane int }

func (n node) key() nodeKey { return nodeKey{n.step, n.lane} }

type pathResult struct {
	smoothedPath  []node
	nodesVisited  int
	maxCruiseAlt  float64
}

// computePathNodes runs a grid-constrained A* from the center lane at
// step 0 to the center lane at the final step, honoring the FAA AGL ceiling
// and active geofences as hard feasibility constraints and penalizing climb,
// lane changes, and proximity to blocked neighboring lanes in the cost.
// startAltitudeOverride pins the starting altitude (airborne replanning);
// nil uses the grid's own ground-relative starting altitude.
func computePathNodes(grid *Grid, geofences []world.Geofence, cfg Config, startAltitudeOverride *float64) (*pathResult, []string) {
	if len(grid.Lanes) == 0 || len(grid.Lanes[0]) == 0 {
		return nil, []string{"grid is empty"}
	}

	activeGeofences := make([]world.Geofence, 0, len(geofences))
	for _, g := range geofences {
		if g.Active && g.Type != world.GeofenceAdvisory {
			activeGeofences = append(activeGeofences, g)
		}
	}

	numLanes := len(grid.Lanes)
	numSteps := len(grid.Lanes[0])
	centerLane := numLanes / 2

	startPoint := grid.Lanes[centerLane][0]
	startAlt := math.Max(startPoint.AltitudeM, startPoint.TerrainHeightM)
	if startAltitudeOverride != nil {
		startAlt = *startAltitudeOverride
	}

	startNode := node{step: 0, lane: centerLane, gScore: 0, fScore: 0, alt: startAlt}

	open := []node{startNode}
	closed := make(map[nodeKey]bool)
	gScore := map[nodeKey]float64{startNode.key(): 0}
	cameFrom := make(map[nodeKey]node)

	var finalNode *node
	nodesVisited := 0

	for len(open) > 0 {
		bestIdx := 0
		for i := 1; i < len(open); i++ {
			if open[i].fScore < open[bestIdx].fScore {
				bestIdx = i
			}
		}
		current := open[bestIdx]
		open = append(open[:bestIdx], open[bestIdx+1:]...)
		nodesVisited++

		if current.step == numSteps-1 && current.lane == centerLane {
			cp := current
			finalNode = &cp
			break
		}

		closed[current.key()] = true
		nextStep := current.step + 1
		if nextStep >= numSteps {
			continue
		}

		for _, nextLane := range []int{current.lane - 1, current.lane, current.lane + 1} {
			if nextLane < 0 || nextLane >= numLanes {
				continue
			}
			nextKey := nodeKey{nextStep, nextLane}
			if closed[nextKey] {
				continue
			}

			nextPoint := grid.Lanes[nextLane][nextStep]
			featureHeight := math.Max(nextPoint.ObstacleHeightM, nextPoint.TerrainHeightM)
			minSafeAlt := math.Max(featureHeight+cfg.SafetyBufferM, nextPoint.AltitudeM)
			faaCeiling := nextPoint.TerrainHeightM + cfg.FAALimitAGL
			if minSafeAlt > faaCeiling {
				continue
			}

			currPoint := grid.Lanes[current.lane][current.step]
			dist := spatial.HaversineDistance(currPoint.Lat, currPoint.Lon, nextPoint.Lat, nextPoint.Lon)
			timeToTravel := dist / math.Max(cfg.CruiseSpeedMps, 1.0)

			targetAlt := minSafeAlt
			altCost := 0.0
			if current.alt < targetAlt {
				altCost = (targetAlt - current.alt) * cfg.CostClimbPenalty
			}

			cruiseAlt := math.Max(current.alt, targetAlt)
			if len(activeGeofences) > 0 && geofenceBlocksSegment(activeGeofences, currPoint, nextPoint, current.alt, cruiseAlt, cfg.GeofenceSampleStepM) {
				continue
			}

			laneChangeCost := math.Abs(float64(nextLane-current.lane)) * cfg.CostLaneChange

			proximityCost := 0.0
			if nextLane > 0 {
				left := grid.Lanes[nextLane-1][nextStep]
				leftMinSafe := math.Max(left.ObstacleHeightM, left.TerrainHeightM) + cfg.SafetyBufferM
				if leftMinSafe > cruiseAlt {
					proximityCost += cfg.CostProximityPenalty
				}
			}
			if nextLane+1 < numLanes {
				right := grid.Lanes[nextLane+1][nextStep]
				rightMinSafe := math.Max(right.ObstacleHeightM, right.TerrainHeightM) + cfg.SafetyBufferM
				if rightMinSafe > cruiseAlt {
					proximityCost += cfg.CostProximityPenalty
				}
			}

			stepCost := timeToTravel + altCost + laneChangeCost + proximityCost
			tentativeG := gScore[current.key()] + stepCost

			existingG, hasExisting := gScore[nextKey]
			if !hasExisting || tentativeG < existingG {
				cameFrom[nextKey] = current
				gScore[nextKey] = tentativeG

				endPoint := grid.Lanes[centerLane][numSteps-1]
				distToEnd := spatial.HaversineDistance(nextPoint.Lat, nextPoint.Lon, endPoint.Lat, endPoint.Lon)
				hScore := distToEnd / math.Max(cfg.CruiseSpeedMps, 1.0)

				newAlt := math.Max(current.alt, targetAlt)
				found := false
				for i := range open {
					if open[i].step == nextStep && open[i].lane == nextLane {
						open[i].gScore = tentativeG
						open[i].fScore = tentativeG + hScore
						open[i].alt = newAlt
						found = true
						break
					}
				}
				if !found {
					open = append(open, node{step: nextStep, lane: nextLane, gScore: tentativeG, fScore: tentativeG + hScore, alt: newAlt})
				}
			}
		}
	}

	if finalNode == nil {
		return nil, []string{"A* failed to find a path"}
	}

	var pathNodes []node
	cur := *finalNode
	for {
		pathNodes = append(pathNodes, cur)
		prev, ok := cameFrom[cur.key()]
		if !ok {
			break
		}
		cur = prev
	}
	for i, j := 0, len(pathNodes)-1; i < j; i, j = i+1, j-1 {
		pathNodes[i], pathNodes[j] = pathNodes[j], pathNodes[i]
	}

	smoothed := smoothPath(pathNodes, grid, activeGeofences, cfg)
	maxCruiseAlt := 0.0
	for _, n := range pathNodes {
		maxCruiseAlt = math.Max(maxCruiseAlt, n.alt)
	}

	return &pathResult{smoothedPath: smoothed, nodesVisited: nodesVisited, maxCruiseAlt: maxCruiseAlt}, nil
}

func geofenceBlocksPoint(geofences []world.Geofence, lat, lon, altitudeM float64) bool {
	for _, g := range geofences {
		if g.ContainsPoint(lat, lon, altitudeM) {
			return true
		}
	}
	return false
}

func geofenceBlocksSegment(geofences []world.Geofence, start, end GridPoint, startAlt, endAlt, stepM float64) bool {
	if len(geofences) == 0 {
		return false
	}
	distanceM := spatial.HaversineDistance(start.Lat, start.Lon, end.Lat, end.Lon)
	step := math.Max(stepM, 1.0)
	steps := int(math.Min(math.Max(math.Ceil(distanceM/step), 1), 1000))
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		lat := start.Lat + t*(end.Lat-start.Lat)
		lon := start.Lon + t*(end.Lon-start.Lon)
		alt := startAlt + t*(endAlt-startAlt)
		if geofenceBlocksPoint(geofences, lat, lon, alt) {
			return true
		}
	}
	return false
}
