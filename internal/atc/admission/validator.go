package admission

import (
	"context"
	"fmt"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/observability"
)

// Validator runs the full admission pipeline for a proposed flight plan:
// waypoint sanity, geofence intersection, and compliance evaluation.
type Validator struct {
	evaluator           *Evaluator
	geofenceSampleSpacingM float64
}

// NewValidator builds a validator around the given compliance config.
func NewValidator(cfg Config) *Validator {
	spacing := cfg.GeofenceSampleSpacingM
	if spacing <= 0 {
		spacing = 25.0
	}
	return &Validator{evaluator: NewEvaluator(cfg), geofenceSampleSpacingM: spacing}
}

// Decision is the outcome of validating one flight plan submission.
type Decision struct {
	Accepted   bool
	Reasons    []string // human-readable reasons for rejection; empty when accepted
	Compliance ComplianceEvaluation
}

// Validate checks waypoint shape and geofence intersection, then runs a
// compliance evaluation, and folds all three into one admission decision.
// Breaching a NoFlyZone or RestrictedArea geofence rejects outright;
// Advisory and TemporaryRestriction geofences are surfaced but never block.
func (v *Validator) Validate(ctx context.Context, waypoints []world.Waypoint, geofences []world.Geofence, meta SubmissionMetadata) Decision {
	var reasons []string

	if err := validateWaypoints(waypoints); err != nil {
		reasons = append(reasons, err.Error())
	}

	reasons = append(reasons, blockingGeofenceBreaches(waypoints, geofences, v.geofenceSampleSpacingM)...)

	points := make([]RoutePoint, len(waypoints))
	for i, wp := range waypoints {
		points[i] = RoutePoint{Lat: wp.Lat, Lon: wp.Lon, AltitudeM: wp.AltitudeM}
	}
	evaluation := v.evaluator.Evaluate(ctx, meta, points)
	if !evaluation.OK {
		for _, b := range evaluation.Blocking {
			reasons = append(reasons, fmt.Sprintf("compliance check failed: %s", b))
		}
	}

	accepted := len(reasons) == 0
	observability.RecordAdmissionDecision(accepted)

	return Decision{
		Accepted:   accepted,
		Reasons:    reasons,
		Compliance: evaluation,
	}
}

func validateWaypoints(waypoints []world.Waypoint) error {
	if len(waypoints) < 2 {
		return fmt.Errorf("flight plan needs at least two waypoints")
	}
	for i, wp := range waypoints {
		if wp.Lat < -90 || wp.Lat > 90 || wp.Lon < -180 || wp.Lon > 180 {
			return fmt.Errorf("waypoint %d has an out-of-range coordinate", i)
		}
		if wp.AltitudeM < 0 {
			return fmt.Errorf("waypoint %d has a negative altitude", i)
		}
	}
	return nil
}

// blockingGeofenceBreaches checks both waypoints and the straight segments
// between consecutive waypoints, so a route that merely clips through a
// geofence without any waypoint landing inside it still gets caught.
func blockingGeofenceBreaches(waypoints []world.Waypoint, geofences []world.Geofence, sampleSpacingM float64) []string {
	var reasons []string
	for _, g := range geofences {
		if !g.Active {
			continue
		}
		if g.Type != world.GeofenceNoFlyZone && g.Type != world.GeofenceRestrictedArea {
			continue
		}

		breached := false
		for _, wp := range waypoints {
			if g.ContainsPoint(wp.Lat, wp.Lon, wp.AltitudeM) {
				breached = true
				break
			}
		}
		if !breached {
			for i := 0; i+1 < len(waypoints); i++ {
				a, b := waypoints[i], waypoints[i+1]
				if g.IntersectsSegment(a.Lat, a.Lon, a.AltitudeM, b.Lat, b.Lon, b.AltitudeM, sampleSpacingM) {
					breached = true
					break
				}
			}
		}
		if breached {
			reasons = append(reasons, fmt.Sprintf("route intersects %s %q", g.Type, g.Name))
		}
	}
	return reasons
}
