// Package dispatch turns conflict, conformance, and mission-lifecycle events
// into commands queued on the world façade, and admits commands requested
// directly by an operator or an external system.
package dispatch

import (
	"time"

	"github.com/google/uuid"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/observability"
	"github.com/asgard/atc/internal/utils"
)

// Config tunes expiry, cooldown, and policy constants. Zero-value fields are
// replaced by DefaultConfig's values where a field is left unset by the
// caller.
type Config struct {
	DefaultExpiresInSecs    float64
	AckTimeoutSecs          float64
	MissionCooldownSecs     float64
	ConformanceCooldownSecs float64
	HoldDurationSecs        int
	ArrivalHorizontalM      float64
	ArrivalVerticalM        float64
}

// DefaultConfig matches the cooldown and arrival thresholds used across the
// policy functions in policy.go.
func DefaultConfig() Config {
	return Config{
		DefaultExpiresInSecs:    60,
		AckTimeoutSecs:          0,
		MissionCooldownSecs:     10,
		ConformanceCooldownSecs: 120,
		HoldDurationSecs:        60,
		ArrivalHorizontalM:      20.0,
		ArrivalVerticalM:        15.0,
	}
}

// Dispatcher is the per-drone command FIFO's policy layer: it decides when a
// command may be issued (cooldown, ownership) and builds the command records
// the world store actually queues.
type Dispatcher struct {
	store *world.Store
	cfg   Config

	transitions conformanceTracker
}

// NewDispatcher builds a dispatcher over an existing world façade.
func NewDispatcher(store *world.Store, cfg Config) *Dispatcher {
	return &Dispatcher{
		store:       store,
		cfg:         cfg,
		transitions: newConformanceTracker(),
	}
}

// IssueExternal admits a command requested by an operator or external caller
// (as opposed to one generated internally by a loop's policy). Unknown drone
// is ErrNotFound; an owner mismatch against a drone with a registered owner
// is ErrForbidden.
func (d *Dispatcher) IssueExternal(issuerOwnerID, droneID string, kind world.CommandKind, durationSecs int, waypoints []world.Waypoint, reason string, targetAltitudeM float64) (world.Command, error) {
	drone, ok := d.store.GetDrone(droneID)
	if !ok {
		return world.Command{}, utils.ErrNotFound
	}
	if drone.OwnerID != "" && issuerOwnerID != "" && drone.OwnerID != issuerOwnerID {
		return world.Command{}, utils.ErrForbidden
	}

	now := time.Now()
	expiresAt := now.Add(time.Duration(d.cfg.DefaultExpiresInSecs * float64(time.Second)))
	cmd := world.Command{
		CommandID:       uuid.NewString(),
		DroneID:         droneID,
		Kind:            kind,
		DurationSecs:    durationSecs,
		Waypoints:       waypoints,
		Reason:          reason,
		TargetAltitudeM: targetAltitudeM,
		IssuedAt:        now,
		ExpiresAt:       &expiresAt,
	}
	d.store.EnqueueCommand(cmd)
	observability.RecordCommandIssued(string(kind))
	observability.UpdateDispatchQueueDepth(len(d.store.ListPendingCommands()))
	return cmd, nil
}

// Ack acknowledges and dequeues a command by id.
func (d *Dispatcher) Ack(commandID string) bool {
	cmd, ok := d.store.AckCommand(commandID)
	if !ok {
		return false
	}
	observability.RecordCommandAck(string(cmd.Kind), cmd.AckedAt.Sub(cmd.IssuedAt))
	observability.UpdateDispatchQueueDepth(len(d.store.ListPendingCommands()))
	return true
}

// Sweep removes expired (and, if configured, stale-unacknowledged) commands
// across every drone. Run periodically by the mission loop.
func (d *Dispatcher) Sweep(now time.Time) int {
	removed := d.store.SweepExpiredCommands(now, d.cfg.AckTimeoutSecs)
	if removed > 0 {
		observability.UpdateDispatchQueueDepth(len(d.store.ListPendingCommands()))
	}
	return removed
}
