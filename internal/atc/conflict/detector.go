// Package conflict predicts near-term loss of separation between tracked
// aircraft. Detection is a pure function of a position snapshot: it holds no
// state across calls, so the same input always yields the same output and
// callers are free to run it on any cadence they choose.
package conflict

import (
	"math"
	"sort"
)

const metersPerDegLat = 111_320.0

// cpaEps guards the quadratic/linear solves below against division by a
// relative velocity that is only nonzero due to floating-point noise.
const cpaEps = 1e-9

// Severity ranks how serious a predicted encounter is.
type Severity string

const (
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
)

// Position is one aircraft's instantaneous state, in the shape shared by
// world.Drone and world.ExternalTrack. Both drones and external tracks can
// be mixed into a single DetectConflicts call; callers decide which pairs of
// the resulting Conflicts warrant a command (external tracks are traffic to
// avoid, never recipients of one).
type Position struct {
	DroneID    string
	Lat        float64
	Lon        float64
	AltitudeM  float64
	HeadingDeg float64
	SpeedMps   float64
	VelocityZ  float64
}

// Conflict is a predicted or immediate loss of separation between two
// tracks, identified in canonical order (Drone1ID <= Drone2ID).
type Conflict struct {
	Drone1ID        string
	Drone2ID        string
	Severity        Severity
	DistanceM       float64 // current horizontal+vertical separation at t=0
	TimeToClosestS  float64
	ClosestDistance float64
	CPALat          float64
	CPALon          float64
	CPAAltitudeM    float64
}

// Detector holds the configurable separation thresholds. The zero value is
// not usable; construct with DefaultDetector or set all four fields.
type Detector struct {
	LookaheadSeconds      float64
	SeparationHorizontalM float64
	SeparationVerticalM   float64
	WarningMultiplier     float64
}

// DefaultDetector matches the thresholds used for civilian low-altitude
// separation: a 20s lookahead, 50m horizontal and 30m vertical minima, and a
// warning band at twice those minima.
func DefaultDetector() Detector {
	return Detector{
		LookaheadSeconds:      20.0,
		SeparationHorizontalM: 50.0,
		SeparationVerticalM:   30.0,
		WarningMultiplier:     2.0,
	}
}

type closestApproach struct {
	distanceM float64
	timeS     float64
	pos1      [3]float64 // lat, lon, altitude_m
	pos2      [3]float64
}

// DetectConflicts predicts, for every pair of tracks, whether they will
// violate the horizontal or vertical separation minima within the lookahead
// window, and returns one Conflict per violating pair. Tracks are projected
// into a single local ENU frame anchored at the centroid of the whole input
// for the broad-phase grid; each pair's closest-approach math reprojects
// around its own midpoint, matching the precision a two-body solve wants
// when the tracked fleet spans a wide area.
func (d Detector) DetectConflicts(tracks []Position) []Conflict {
	var conflicts []Conflict
	if len(tracks) < 2 {
		return conflicts
	}

	maxSpeed := 0.0
	for _, t := range tracks {
		if t.SpeedMps > maxSpeed {
			maxSpeed = t.SpeedMps
		}
	}
	warnH := d.SeparationHorizontalM * d.WarningMultiplier
	warnV := d.SeparationVerticalM * d.WarningMultiplier
	maxThreshold := math.Max(d.SeparationHorizontalM, warnH)
	cellSize := math.Max(maxThreshold+maxSpeed*d.LookaheadSeconds, 1.0)

	refLat, refLon := averageLatLon(tracks)
	type cell struct{ x, y int }
	grid := make(map[cell][]int, len(tracks))
	projected := make([][2]float64, len(tracks))

	for idx, t := range tracks {
		x, y := projectXY(t.Lat, t.Lon, refLat, refLon)
		projected[idx] = [2]float64{x, y}
		c := cell{int(math.Floor(x / cellSize)), int(math.Floor(y / cellSize))}
		grid[c] = append(grid[c], idx)
	}

	for i := range tracks {
		drone1 := tracks[i]
		x, y := projected[i][0], projected[i][1]
		cellX := int(math.Floor(x / cellSize))
		cellY := int(math.Floor(y / cellSize))
		searchRadius := maxThreshold + (drone1.SpeedMps+maxSpeed)*d.LookaheadSeconds
		searchCells := int(math.Ceil(searchRadius / cellSize))

		for dx := -searchCells; dx <= searchCells; dx++ {
			for dy := -searchCells; dy <= searchCells; dy++ {
				indices, ok := grid[cell{cellX + dx, cellY + dy}]
				if !ok {
					continue
				}
				for _, j := range indices {
					if j <= i {
						continue
					}
					drone2 := tracks[j]

					hDist := haversineDistance(drone1.Lat, drone1.Lon, drone2.Lat, drone2.Lon)
					vDist := math.Abs(drone1.AltitudeM - drone2.AltitudeM)
					maxPossibleDist := maxThreshold + (drone1.SpeedMps+drone2.SpeedMps)*d.LookaheadSeconds
					if hDist > maxPossibleDist {
						continue
					}
					currentDistance := math.Sqrt(hDist*hDist + vDist*vDist)

					if hDist < d.SeparationHorizontalM && vDist < d.SeparationVerticalM {
						id1, id2 := canonicalOrder(drone1.DroneID, drone2.DroneID)
						conflicts = append(conflicts, Conflict{
							Drone1ID:        id1,
							Drone2ID:        id2,
							Severity:        SeverityCritical,
							DistanceM:       currentDistance,
							TimeToClosestS:  0.0,
							ClosestDistance: currentDistance,
							CPALat:          (drone1.Lat + drone2.Lat) / 2.0,
							CPALon:          (drone1.Lon + drone2.Lon) / 2.0,
							CPAAltitudeM:    (drone1.AltitudeM + drone2.AltitudeM) / 2.0,
						})
						continue
					}

					severity, timeToClosest, closestDistance, cpaLat, cpaLon, cpaAlt, found :=
						d.predictConflict(drone1, drone2, warnH, warnV)
					if !found {
						continue
					}

					id1, id2 := canonicalOrder(drone1.DroneID, drone2.DroneID)
					conflicts = append(conflicts, Conflict{
						Drone1ID:        id1,
						Drone2ID:        id2,
						Severity:        severity,
						DistanceM:       currentDistance,
						TimeToClosestS:  timeToClosest,
						ClosestDistance: closestDistance,
						CPALat:          cpaLat,
						CPALon:          cpaLon,
						CPAAltitudeM:    cpaAlt,
					})
				}
			}
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Drone1ID != conflicts[j].Drone1ID {
			return conflicts[i].Drone1ID < conflicts[j].Drone1ID
		}
		return conflicts[i].Drone2ID < conflicts[j].Drone2ID
	})
	return conflicts
}

// predictConflict finds the time and distance of closest approach for a
// pair already known to be within max-possible-distance range, trying the
// critical thresholds first and falling back to the (wider) warning
// thresholds. Projection for this pair uses its own midpoint as reference,
// independent of the broad-phase grid's reference.
func (d Detector) predictConflict(drone1, drone2 Position, warnH, warnV float64) (severity Severity, timeToClosest, closestDistance, cpaLat, cpaLon, cpaAlt float64, found bool) {
	lookahead := math.Max(d.LookaheadSeconds, 0.0)
	if lookahead <= 0.0 {
		return "", 0, 0, 0, 0, 0, false
	}

	refLat := (drone1.Lat + drone2.Lat) / 2.0
	refLon := (drone1.Lon + drone2.Lon) / 2.0

	d1x, d1y := projectXY(drone1.Lat, drone1.Lon, refLat, refLon)
	d2x, d2y := projectXY(drone2.Lat, drone2.Lon, refLat, refLon)

	v1x, v1y := velocityXY(drone1)
	v2x, v2y := velocityXY(drone2)

	relPosX := d2x - d1x
	relPosY := d2y - d1y
	relPosZ := drone2.AltitudeM - drone1.AltitudeM

	relVelX := v2x - v1x
	relVelY := v2y - v1y
	relVelZ := drone2.VelocityZ - drone1.VelocityZ

	var approach closestApproach
	if window, ok := conflictTimeWindow(relPosX, relPosY, relVelX, relVelY, relPosZ, relVelZ,
		d.SeparationHorizontalM, d.SeparationVerticalM, lookahead); ok {
		severity = SeverityCritical
		approach = bestApproachInWindow(drone1, drone2, window)
	} else if window, ok := conflictTimeWindow(relPosX, relPosY, relVelX, relVelY, relPosZ, relVelZ,
		warnH, warnV, lookahead); ok {
		severity = SeverityWarning
		approach = bestApproachInWindow(drone1, drone2, window)
	} else {
		return "", 0, 0, 0, 0, 0, false
	}

	cpaLat = (approach.pos1[0] + approach.pos2[0]) / 2.0
	cpaLon = (approach.pos1[1] + approach.pos2[1]) / 2.0
	cpaAlt = (approach.pos1[2] + approach.pos2[2]) / 2.0
	return severity, approach.timeS, approach.distanceM, cpaLat, cpaLon, cpaAlt, true
}

func canonicalOrder(id1, id2 string) (string, string) {
	if id1 <= id2 {
		return id1, id2
	}
	return id2, id1
}

func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6_371_000.0
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

func averageLatLon(tracks []Position) (float64, float64) {
	var sumLat, sumLon float64
	for _, t := range tracks {
		sumLat += t.Lat
		sumLon += t.Lon
	}
	n := float64(len(tracks))
	return sumLat / n, sumLon / n
}

func projectXY(lat, lon, refLat, refLon float64) (float64, float64) {
	metersPerDegLon := math.Max(math.Abs(math.Cos(refLat*math.Pi/180)), 0.01) * metersPerDegLat
	x := (lon - refLon) * metersPerDegLon
	y := (lat - refLat) * metersPerDegLat
	return x, y
}

// velocityXY decomposes heading/speed into local ENU components; heading 0
// is north, 90 is east, matching compass convention.
func velocityXY(p Position) (float64, float64) {
	if math.Abs(p.SpeedMps) <= cpaEps {
		return 0.0, 0.0
	}
	headingRad := p.HeadingDeg * math.Pi / 180
	return p.SpeedMps * math.Sin(headingRad), p.SpeedMps * math.Cos(headingRad)
}

// conflictTimeWindow intersects the horizontal and vertical violation
// windows; a pair is only in violation when both are simultaneously true.
func conflictTimeWindow(relPosX, relPosY, relVelX, relVelY, relPosZ, relVelZ,
	horizThreshold, vertThreshold, lookaheadS float64) ([2]float64, bool) {

	hStart, hEnd, hOK := horizontalTimeWindow(relPosX, relPosY, relVelX, relVelY, horizThreshold, lookaheadS)
	if !hOK {
		return [2]float64{}, false
	}
	vStart, vEnd, vOK := verticalTimeWindow(relPosZ, relVelZ, vertThreshold, lookaheadS)
	if !vOK {
		return [2]float64{}, false
	}

	start := math.Max(hStart, vStart)
	end := math.Min(hEnd, vEnd)
	if start > end {
		return [2]float64{}, false
	}
	return [2]float64{start, end}, true
}

// horizontalTimeWindow solves |relPos + relVel*t| <= threshold for t within
// [0, lookaheadS], a quadratic in t. A near-zero relative velocity degrades
// to a constant-distance check across the whole window.
func horizontalTimeWindow(relPosX, relPosY, relVelX, relVelY, threshold, lookaheadS float64) (float64, float64, bool) {
	a := relVelX*relVelX + relVelY*relVelY
	b := 2.0 * (relPosX*relVelX + relPosY*relVelY)
	c := relPosX*relPosX + relPosY*relPosY - threshold*threshold

	if math.Abs(a) <= cpaEps {
		if c <= 0.0 {
			return 0.0, lookaheadS, true
		}
		return 0, 0, false
	}

	disc := b*b - 4.0*a*c
	if disc < 0.0 {
		return 0, 0, false
	}
	sqrtDisc := math.Sqrt(disc)
	tLow := (-b - sqrtDisc) / (2.0 * a)
	tHigh := (-b + sqrtDisc) / (2.0 * a)

	start := math.Max(math.Min(tLow, tHigh), 0.0)
	end := math.Min(math.Max(tLow, tHigh), lookaheadS)
	if start > end {
		return 0, 0, false
	}
	return start, end, true
}

// verticalTimeWindow solves |relPosZ + relVelZ*t| <= threshold, linear in t.
func verticalTimeWindow(relPosZ, relVelZ, threshold, lookaheadS float64) (float64, float64, bool) {
	if math.Abs(relVelZ) <= cpaEps {
		if math.Abs(relPosZ) <= threshold {
			return 0.0, lookaheadS, true
		}
		return 0, 0, false
	}

	t1 := (-threshold - relPosZ) / relVelZ
	t2 := (threshold - relPosZ) / relVelZ

	start := math.Max(math.Min(t1, t2), 0.0)
	end := math.Min(math.Max(t1, t2), lookaheadS)
	if start > end {
		return 0, 0, false
	}
	return start, end, true
}

// bestApproachInWindow evaluates relative separation at the window bounds
// and at the unconstrained closest-approach instant t*, clamped into the
// window, and returns whichever of the three candidates is closest.
func bestApproachInWindow(drone1, drone2 Position, window [2]float64) closestApproach {
	startS := math.Max(window[0], 0.0)
	endS := math.Max(window[1], startS)

	refLat := (drone1.Lat + drone2.Lat) / 2.0
	refLon := (drone1.Lon + drone2.Lon) / 2.0

	d1x, d1y := projectXY(drone1.Lat, drone1.Lon, refLat, refLon)
	d2x, d2y := projectXY(drone2.Lat, drone2.Lon, refLat, refLon)

	v1x, v1y := velocityXY(drone1)
	v2x, v2y := velocityXY(drone2)

	relPosX := d2x - d1x
	relPosY := d2y - d1y
	relPosZ := drone2.AltitudeM - drone1.AltitudeM

	relVelX := v2x - v1x
	relVelY := v2y - v1y
	relVelZ := drone2.VelocityZ - drone1.VelocityZ

	relSpeedSq := relVelX*relVelX + relVelY*relVelY + relVelZ*relVelZ

	var tStar float64
	if math.Abs(relSpeedSq) <= cpaEps {
		tStar = startS
	} else {
		dot := relPosX*relVelX + relPosY*relVelY + relPosZ*relVelZ
		tStar = clamp(-dot/relSpeedSq, startS, endS)
	}

	candidates := [3]float64{startS, tStar, endS}
	var best *closestApproach

	for _, t := range candidates {
		dx := relPosX + relVelX*t
		dy := relPosY + relVelY*t
		dz := relPosZ + relVelZ*t
		distanceM := math.Sqrt(dx*dx + dy*dy + dz*dz)

		pos1 := predictPosition(drone1, t)
		pos2 := predictPosition(drone2, t)

		if best == nil || distanceM < best.distanceM {
			best = &closestApproach{distanceM: distanceM, timeS: t, pos1: pos1, pos2: pos2}
		}
	}

	return *best
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// predictPosition projects a track forward by t seconds at constant
// heading/speed/vertical rate, returning [lat, lon, altitude_m]. A
// non-positive speed only advances altitude, matching the original's
// treatment of a parked or reversing track.
func predictPosition(p Position, t float64) [3]float64 {
	if p.SpeedMps <= 0.0 {
		return [3]float64{p.Lat, p.Lon, p.AltitudeM + p.VelocityZ*t}
	}
	distanceM := p.SpeedMps * t
	headingRad := p.HeadingDeg * math.Pi / 180
	lat, lon := offsetByBearing(p.Lat, p.Lon, distanceM, headingRad)
	return [3]float64{lat, lon, p.AltitudeM + p.VelocityZ*t}
}

func offsetByBearing(lat, lon, distanceM, bearingRad float64) (float64, float64) {
	const earthRadiusM = 6_371_000.0
	phi1 := lat * math.Pi / 180
	lambda1 := lon * math.Pi / 180
	angularDist := distanceM / earthRadiusM

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(angularDist) +
		math.Cos(phi1)*math.Sin(angularDist)*math.Cos(bearingRad))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angularDist)*math.Cos(phi1),
		math.Cos(angularDist)-math.Sin(phi1)*math.Sin(phi2),
	)

	return phi2 * 180 / math.Pi, lambda2 * 180 / math.Pi
}
