package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/db"
	"github.com/asgard/atc/internal/repositories"
	"github.com/google/uuid"
)

// GeofenceService manages administrator-authored geofences, keeping the live
// store and persisted rows in sync. Upstream-synced geofences are written by
// the geofence sync loop directly through GeofenceRepository; this service
// covers the locally administered set.
type GeofenceService struct {
	store *world.Store
	repo  *repositories.GeofenceRepository
}

// NewGeofenceService creates a new geofence service.
func NewGeofenceService(store *world.Store, repo *repositories.GeofenceRepository) *GeofenceService {
	return &GeofenceService{store: store, repo: repo}
}

// CreateRequest is the caller-provided shape of a geofence definition.
type CreateRequest struct {
	Name           string
	Type           world.GeofenceType
	Vertices       []world.LatLon
	LowerAltitudeM float64
	UpperAltitudeM float64
}

// Create persists a new geofence and adds it to the live store.
func (s *GeofenceService) Create(req CreateRequest) (world.Geofence, error) {
	if len(req.Vertices) < 3 {
		return world.Geofence{}, fmt.Errorf("geofence requires at least 3 vertices")
	}

	fence := world.Geofence{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Type:           req.Type,
		Vertices:       req.Vertices,
		LowerAltitudeM: req.LowerAltitudeM,
		UpperAltitudeM: req.UpperAltitudeM,
		Active:         true,
	}

	verticesJSON, err := json.Marshal(fence.Vertices)
	if err != nil {
		return world.Geofence{}, err
	}

	now := time.Now()
	row := &db.GeofenceRow{
		ID:             fence.ID,
		Name:           fence.Name,
		Type:           string(fence.Type),
		Vertices:       verticesJSON,
		LowerAltitudeM: fence.LowerAltitudeM,
		UpperAltitudeM: fence.UpperAltitudeM,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Upsert(row); err != nil {
		return world.Geofence{}, fmt.Errorf("failed to persist geofence: %w", err)
	}

	s.store.AddGeofence(fence)
	return fence, nil
}

// Remove deactivates a geofence in storage and drops it from the live store.
func (s *GeofenceService) Remove(id string) error {
	if err := s.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete geofence: %w", err)
	}
	s.store.RemoveGeofence(id)
	return nil
}

// List returns every active geofence in the live store.
func (s *GeofenceService) List() []world.Geofence {
	return s.store.ListGeofences()
}

// Get returns a single geofence by ID.
func (s *GeofenceService) Get(id string) (world.Geofence, bool) {
	return s.store.GetGeofence(id)
}
