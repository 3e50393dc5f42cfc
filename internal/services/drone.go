// Package services provides business logic services for the API.
package services

import (
	"fmt"
	"time"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/db"
	"github.com/asgard/atc/internal/repositories"
	"github.com/google/uuid"
)

// DroneService handles drone registration and telemetry ingestion, keeping
// the authoritative world.Store and the persisted drones table in sync.
type DroneService struct {
	store     *world.Store
	droneRepo *repositories.DroneRepository
	auth      *AuthService
}

// NewDroneService creates a new drone service.
func NewDroneService(store *world.Store, droneRepo *repositories.DroneRepository, auth *AuthService) *DroneService {
	return &DroneService{store: store, droneRepo: droneRepo, auth: auth}
}

// Register creates a drone record owned by the given operator and issues a
// session token for subsequent telemetry submissions. Returns the assigned
// drone ID (generated when the caller omits one) alongside the token.
func (s *DroneService) Register(ownerID uuid.UUID, droneID string) (string, string, error) {
	if droneID == "" {
		droneID = uuid.New().String()
	}

	now := time.Now()
	row := &db.DroneRow{
		DroneID:    droneID,
		OwnerID:    ownerID,
		Status:     string(world.StatusInactive),
		LastUpdate: now,
		CreatedAt:  now,
	}
	if err := s.droneRepo.Create(row); err != nil {
		return "", "", fmt.Errorf("failed to register drone: %w", err)
	}

	s.store.UpsertDrone(world.Drone{
		DroneID:    droneID,
		OwnerID:    ownerID.String(),
		Status:     world.StatusInactive,
		LastUpdate: now,
	})

	token, err := s.auth.RegisterDrone(droneID)
	if err != nil {
		return "", "", err
	}
	return droneID, token, nil
}

// IngestTelemetry records a drone's self-reported state in the live store.
// Callers must already have authenticated the drone's session token.
func (s *DroneService) IngestTelemetry(droneID string, lat, lon, alt, vx, vy, vz, heading, speed float64) error {
	if !s.store.UpdateFromTelemetry(droneID, lat, lon, alt, vx, vy, vz, heading, speed, time.Now()) {
		return fmt.Errorf("drone not registered")
	}
	return nil
}

// ListFleet returns every drone owned by an operator, or the full fleet when
// ownerFilter is empty (admin view).
func (s *DroneService) ListFleet(ownerFilter string, timeoutSecs float64) []world.Drone {
	return s.store.ListDrones(ownerFilter, timeoutSecs)
}

// Get returns a single drone's live state.
func (s *DroneService) Get(droneID string) (world.Drone, bool) {
	return s.store.GetDrone(droneID)
}
