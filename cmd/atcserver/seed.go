package main

import (
	"encoding/json"
	"log"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/repositories"
)

// seedWorld hydrates the in-memory store from persisted rows at startup, so
// a restarted instance doesn't start with an empty sky. Rows that fail to
// decode are skipped and logged rather than aborting startup.
func seedWorld(store *world.Store, droneRepo *repositories.DroneRepository, planRepo *repositories.FlightPlanRepository, geofenceRepo *repositories.GeofenceRepository) {
	drones, err := droneRepo.ListActive()
	if err != nil {
		log.Printf("[seed] failed to list active drones: %v", err)
	}
	for _, row := range drones {
		store.UpsertDrone(world.Drone{
			DroneID:    row.DroneID,
			OwnerID:    row.OwnerID.String(),
			Lat:        row.Lat,
			Lon:        row.Lon,
			AltitudeM:  row.AltitudeM,
			VX:         row.VX,
			VY:         row.VY,
			VZ:         row.VZ,
			HeadingDeg: row.HeadingDeg,
			SpeedMps:   row.SpeedMps,
			LastUpdate: row.LastUpdate,
			Status:     world.DroneStatus(row.Status),
		})
	}
	log.Printf("[seed] loaded %d active drones", len(drones))

	plans, err := planRepo.ListActive()
	if err != nil {
		log.Printf("[seed] failed to list active flight plans: %v", err)
	}
	for _, row := range plans {
		var waypoints []world.Waypoint
		if err := json.Unmarshal(row.Waypoints, &waypoints); err != nil {
			log.Printf("[seed] skipping flight plan %s: bad waypoints: %v", row.FlightID, err)
			continue
		}
		var metadata map[string]any
		if len(row.Metadata) > 0 {
			json.Unmarshal(row.Metadata, &metadata)
		}

		plan := world.FlightPlan{
			FlightID:      row.FlightID,
			DroneID:       row.DroneID,
			OwnerID:       row.OwnerID.String(),
			Waypoints:     waypoints,
			Status:        world.FlightPlanStatus(row.Status),
			DepartureTime: row.DepartureTime,
			CreatedAt:     row.CreatedAt,
			Metadata:      metadata,
		}
		if row.ArrivalTime.Valid {
			t := row.ArrivalTime.Time
			plan.ArrivalTime = &t
		}
		if row.ReservedUntil.Valid {
			t := row.ReservedUntil.Time
			plan.ReservedUntil = &t
		}
		store.AddFlightPlan(plan)
	}
	log.Printf("[seed] loaded %d active flight plans", len(plans))

	geofences, err := geofenceRepo.ListActive()
	if err != nil {
		log.Printf("[seed] failed to list active geofences: %v", err)
	}
	for _, row := range geofences {
		var vertices []world.LatLon
		if err := json.Unmarshal(row.Vertices, &vertices); err != nil {
			log.Printf("[seed] skipping geofence %s: bad vertices: %v", row.ID, err)
			continue
		}
		store.AddGeofence(world.Geofence{
			ID:             row.ID,
			Name:           row.Name,
			Type:           world.GeofenceType(row.Type),
			Vertices:       vertices,
			LowerAltitudeM: row.LowerAltitudeM,
			UpperAltitudeM: row.UpperAltitudeM,
			Active:         row.Active,
		})
	}
	log.Printf("[seed] loaded %d active geofences", len(geofences))
}
