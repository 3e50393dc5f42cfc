// Package repositories provides data access layer for database operations.
package repositories

import (
	"database/sql"
	"fmt"

	"github.com/asgard/atc/internal/platform/db"
)

// AuditRepository records administrative and lifecycle actions for
// post-incident review.
type AuditRepository struct {
	db *db.PostgresDB
}

// NewAuditRepository creates a new audit log repository.
func NewAuditRepository(pgDB *db.PostgresDB) *AuditRepository {
	return &AuditRepository{db: pgDB}
}

// Record appends an audit log entry. metadata may be nil.
func (r *AuditRepository) Record(component, action, actorID string, metadata []byte) error {
	var actor sql.NullString
	if actorID != "" {
		actor = sql.NullString{String: actorID, Valid: true}
	}
	query := `
		INSERT INTO audit_logs (component, action, actor_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := r.db.Exec(query, component, action, actor, metadata)
	if err != nil {
		return fmt.Errorf("failed to record audit log: %w", err)
	}
	return nil
}

// ListRecent returns the most recent audit entries, newest first.
func (r *AuditRepository) ListRecent(limit int) ([]*db.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	query := `
		SELECT id, component, action, actor_id, metadata, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*db.AuditLog, 0, limit)
	for rows.Next() {
		entry := &db.AuditLog{}
		if err := rows.Scan(&entry.ID, &entry.Component, &entry.Action, &entry.ActorID, &entry.Metadata, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
