// Package services provides business logic services for the API.
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/asgard/atc/internal/atc/admission"
	"github.com/asgard/atc/internal/atc/routing"
	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/db"
	"github.com/asgard/atc/internal/repositories"
	"github.com/google/uuid"
)

// FlightPlanService runs the full submit-to-admission pipeline: route
// planning, compliance validation, and persistence of the resulting plan.
type FlightPlanService struct {
	store     *world.Store
	planner   *routing.Planner
	validator *admission.Validator
	repo      *repositories.FlightPlanRepository
	auditRepo *repositories.AuditRepository
	routing   db.ServiceConfig
}

// NewFlightPlanService creates a new flight plan service.
func NewFlightPlanService(
	store *world.Store,
	planner *routing.Planner,
	validator *admission.Validator,
	repo *repositories.FlightPlanRepository,
	auditRepo *repositories.AuditRepository,
	routingCfg db.ServiceConfig,
) *FlightPlanService {
	return &FlightPlanService{store: store, planner: planner, validator: validator, repo: repo, auditRepo: auditRepo, routing: routingCfg}
}

// SubmitRequest is the caller-provided shape of a flight plan submission.
type SubmitRequest struct {
	DroneID       string
	OwnerID       uuid.UUID
	Waypoints     []world.Waypoint
	DepartureTime time.Time
	Metadata      admission.SubmissionMetadata
}

// Submit plans a route through the requested waypoints, validates it against
// geofences and compliance checks, and persists the result whether accepted
// or rejected.
func (s *FlightPlanService) Submit(ctx context.Context, req SubmitRequest) (world.FlightPlan, admission.Decision, error) {
	planCtx := routing.WithGeofences(ctx, s.store.ListGeofences())

	result := s.planner.PlanRoute(planCtx, routing.PlanRequest{
		Waypoints:          req.Waypoints,
		LaneRadiusM:        s.routing.DefaultLaneRadiusM,
		LaneSpacingM:       s.routing.DefaultGridSpacingM,
		SampleSpacingM:     s.routing.DefaultGridSpacingM,
		SafetyBufferM:      s.planner.Config.SafetyBufferM,
		MaxLaneRadiusM:      s.routing.DefaultLaneRadiusM * 4,
		LaneExpansionStepM: s.routing.DefaultGridSpacingM,
	})

	flightID := uuid.New().String()
	now := time.Now()

	if !result.OK {
		decision := admission.Decision{Accepted: false, Reasons: result.Errors}
		plan := world.FlightPlan{
			FlightID:      flightID,
			DroneID:       req.DroneID,
			OwnerID:       req.OwnerID.String(),
			Waypoints:     req.Waypoints,
			Status:        world.PlanRejected,
			DepartureTime: req.DepartureTime,
			CreatedAt:     now,
		}
		s.persist(plan, decision)
		return plan, decision, nil
	}

	decision := s.validator.Validate(ctx, result.Waypoints, s.store.ListGeofences(), req.Metadata)

	status := world.PlanRejected
	if decision.Accepted {
		status = world.PlanApproved
	}

	plan := world.FlightPlan{
		FlightID:      flightID,
		DroneID:       req.DroneID,
		OwnerID:       req.OwnerID.String(),
		Waypoints:     result.Waypoints,
		Status:        status,
		DepartureTime: req.DepartureTime,
		CreatedAt:     now,
		Metadata:      map[string]any{"bvlos": req.Metadata.BVLOS},
	}

	if decision.Accepted {
		s.store.AddFlightPlan(plan)
	}
	s.persist(plan, decision)

	return plan, decision, nil
}

func (s *FlightPlanService) persist(plan world.FlightPlan, decision admission.Decision) {
	waypointsJSON, _ := json.Marshal(plan.Waypoints)
	metadataJSON, _ := json.Marshal(plan.Metadata)

	ownerID, err := uuid.Parse(plan.OwnerID)
	if err != nil {
		return
	}

	row := &db.FlightPlanRow{
		FlightID:      plan.FlightID,
		DroneID:       plan.DroneID,
		OwnerID:       ownerID,
		Waypoints:     waypointsJSON,
		TrajectoryLog: []byte("[]"),
		Status:        string(plan.Status),
		DepartureTime: plan.DepartureTime,
		CreatedAt:     plan.CreatedAt,
		Metadata:      metadataJSON,
	}
	if err := s.repo.Create(row); err != nil {
		return
	}

	if !decision.Accepted && s.auditRepo != nil {
		reasonsJSON, _ := json.Marshal(decision.Reasons)
		_ = s.auditRepo.Record("admission", "flight_plan_rejected", plan.OwnerID, reasonsJSON)
	}
}

// ListByOwner returns every flight plan submitted by an operator.
func (s *FlightPlanService) ListByOwner(ownerID string) []world.FlightPlan {
	return s.store.ListFlightPlans(ownerID)
}

// Get retrieves a single flight plan by ID from the live store.
func (s *FlightPlanService) Get(flightID string) (world.FlightPlan, bool) {
	return s.store.GetFlightPlan(flightID)
}
