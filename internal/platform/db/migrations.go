package db

import "context"

// schemaStatements are idempotent DDL statements applied in order. Each uses
// IF NOT EXISTS so re-running the tool against an already-migrated database
// is a no-op; missing columns on flight_plans are added in place rather than
// requiring a destructive rebuild.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS operators (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		display_name TEXT,
		role TEXT NOT NULL DEFAULT 'operator',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_login TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS drones (
		drone_id TEXT PRIMARY KEY,
		owner_id UUID NOT NULL REFERENCES operators(id),
		lat DOUBLE PRECISION NOT NULL DEFAULT 0,
		lon DOUBLE PRECISION NOT NULL DEFAULT 0,
		altitude_m DOUBLE PRECISION NOT NULL DEFAULT 0,
		vx DOUBLE PRECISION NOT NULL DEFAULT 0,
		vy DOUBLE PRECISION NOT NULL DEFAULT 0,
		vz DOUBLE PRECISION NOT NULL DEFAULT 0,
		heading_deg DOUBLE PRECISION NOT NULL DEFAULT 0,
		speed_mps DOUBLE PRECISION NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'Inactive',
		last_update TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS drone_tokens (
		token_hash TEXT PRIMARY KEY,
		drone_id TEXT NOT NULL REFERENCES drones(drone_id),
		issued_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS flight_plans (
		flight_id TEXT PRIMARY KEY,
		drone_id TEXT NOT NULL REFERENCES drones(drone_id),
		owner_id UUID NOT NULL REFERENCES operators(id),
		waypoints JSONB NOT NULL DEFAULT '[]',
		trajectory_log JSONB NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'Pending',
		departure_time TIMESTAMPTZ NOT NULL,
		arrival_time TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		reserved_until TIMESTAMPTZ,
		metadata JSONB NOT NULL DEFAULT '{}'
	)`,
	`ALTER TABLE flight_plans ADD COLUMN IF NOT EXISTS metadata JSONB NOT NULL DEFAULT '{}'`,
	`ALTER TABLE flight_plans ADD COLUMN IF NOT EXISTS reserved_until TIMESTAMPTZ`,
	`CREATE TABLE IF NOT EXISTS commands (
		command_id TEXT PRIMARY KEY,
		drone_id TEXT NOT NULL REFERENCES drones(drone_id),
		command_type JSONB NOT NULL,
		reason TEXT,
		issued_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ,
		acknowledged BOOLEAN NOT NULL DEFAULT false,
		acked_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS geofences (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		vertices JSONB NOT NULL,
		lower_altitude_m DOUBLE PRECISION NOT NULL DEFAULT 0,
		upper_altitude_m DOUBLE PRECISION NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS geofence_sync_state (
		geofence_id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		synced_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		component TEXT NOT NULL,
		action TEXT NOT NULL,
		actor_id TEXT,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_flight_plans_drone_id ON flight_plans(drone_id)`,
	`CREATE INDEX IF NOT EXISTS idx_flight_plans_status ON flight_plans(status)`,
	`CREATE INDEX IF NOT EXISTS idx_commands_drone_id ON commands(drone_id)`,
}

// ATCTables lists every table migrated above, in creation order; used by the
// migration tool to report row counts after a successful run.
var ATCTables = []string{
	"operators", "drones", "drone_tokens", "flight_plans", "commands",
	"geofences", "geofence_sync_state", "audit_logs",
}

// Migrate applies every schema statement in order inside a single
// transaction, so a mid-migration failure leaves the database untouched.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RowCount returns the number of rows in the given table. Table names are
// drawn exclusively from ATCTables, never from request input.
func (db *PostgresDB) RowCount(ctx context.Context, table string) (int64, error) {
	var count int64
	query := "SELECT COUNT(*) FROM " + table
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
