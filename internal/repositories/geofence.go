// Package repositories provides data access layer for database operations.
package repositories

import (
	"database/sql"
	"fmt"

	"github.com/asgard/atc/internal/platform/db"
)

// GeofenceRepository handles geofence database operations.
type GeofenceRepository struct {
	db *db.PostgresDB
}

// NewGeofenceRepository creates a new geofence repository.
func NewGeofenceRepository(pgDB *db.PostgresDB) *GeofenceRepository {
	return &GeofenceRepository{db: pgDB}
}

// ListActive returns every active geofence, used to seed the in-memory store
// and to compute admission-time breaches.
func (r *GeofenceRepository) ListActive() ([]*db.GeofenceRow, error) {
	query := `
		SELECT id, name, type, vertices, lower_altitude_m, upper_altitude_m,
		       active, created_at, updated_at
		FROM geofences
		WHERE active = true
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query geofences: %w", err)
	}
	defer rows.Close()
	return scanGeofences(rows)
}

// ListAll returns every geofence regardless of active state.
func (r *GeofenceRepository) ListAll() ([]*db.GeofenceRow, error) {
	rows, err := r.db.Query(`
		SELECT id, name, type, vertices, lower_altitude_m, upper_altitude_m,
		       active, created_at, updated_at
		FROM geofences
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query geofences: %w", err)
	}
	defer rows.Close()
	return scanGeofences(rows)
}

func scanGeofences(rows *sql.Rows) ([]*db.GeofenceRow, error) {
	var fences []*db.GeofenceRow
	for rows.Next() {
		fence := &db.GeofenceRow{}
		if err := rows.Scan(
			&fence.ID, &fence.Name, &fence.Type, &fence.Vertices,
			&fence.LowerAltitudeM, &fence.UpperAltitudeM,
			&fence.Active, &fence.CreatedAt, &fence.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan geofence: %w", err)
		}
		fences = append(fences, fence)
	}
	return fences, rows.Err()
}

// Upsert inserts or replaces a geofence by ID, used by the upstream sync loop
// reconciling against the published geofence set.
func (r *GeofenceRepository) Upsert(fence *db.GeofenceRow) error {
	query := `
		INSERT INTO geofences (id, name, type, vertices, lower_altitude_m, upper_altitude_m,
		                        active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			vertices = EXCLUDED.vertices,
			lower_altitude_m = EXCLUDED.lower_altitude_m,
			upper_altitude_m = EXCLUDED.upper_altitude_m,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(query,
		fence.ID, fence.Name, fence.Type, fence.Vertices,
		fence.LowerAltitudeM, fence.UpperAltitudeM,
		fence.Active, fence.CreatedAt, fence.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert geofence: %w", err)
	}
	return nil
}

// Delete removes a geofence no longer present upstream.
func (r *GeofenceRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM geofences WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete geofence: %w", err)
	}
	return nil
}

// GetSyncState returns the last-synced fingerprint recorded for a geofence.
func (r *GeofenceRepository) GetSyncState(geofenceID string) (*db.GeofenceSyncState, error) {
	state := &db.GeofenceSyncState{}
	err := r.db.QueryRow(`
		SELECT geofence_id, fingerprint, synced_at FROM geofence_sync_state WHERE geofence_id = $1
	`, geofenceID).Scan(&state.GeofenceID, &state.Fingerprint, &state.SyncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query geofence sync state: %w", err)
	}
	return state, nil
}

// SetSyncState records the fingerprint last reconciled for a geofence.
func (r *GeofenceRepository) SetSyncState(geofenceID, fingerprint string) error {
	query := `
		INSERT INTO geofence_sync_state (geofence_id, fingerprint, synced_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (geofence_id) DO UPDATE SET fingerprint = EXCLUDED.fingerprint, synced_at = NOW()
	`
	_, err := r.db.Exec(query, geofenceID, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to set geofence sync state: %w", err)
	}
	return nil
}
