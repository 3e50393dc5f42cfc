// Package services provides business logic services for the API.
package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/asgard/atc/internal/atc/dispatch"
	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/db"
	"github.com/asgard/atc/internal/repositories"
)

// CommandService issues drone commands through the dispatcher and mirrors
// the resulting command into persisted storage for audit and acknowledgement
// tracking.
type CommandService struct {
	dispatcher *dispatch.Dispatcher
	repo       *repositories.CommandRepository
}

// NewCommandService creates a new command service.
func NewCommandService(dispatcher *dispatch.Dispatcher, repo *repositories.CommandRepository) *CommandService {
	return &CommandService{dispatcher: dispatcher, repo: repo}
}

// Issue dispatches a command to a drone on behalf of an operator and
// persists it for the acknowledgement trail.
func (s *CommandService) Issue(issuerOwnerID, droneID string, kind world.CommandKind, durationSecs int, waypoints []world.Waypoint, reason string, targetAltitudeM float64) (world.Command, error) {
	cmd, err := s.dispatcher.IssueExternal(issuerOwnerID, droneID, kind, durationSecs, waypoints, reason, targetAltitudeM)
	if err != nil {
		return world.Command{}, err
	}

	typeJSON, _ := json.Marshal(map[string]any{
		"kind":              cmd.Kind,
		"duration_secs":     cmd.DurationSecs,
		"waypoints":         cmd.Waypoints,
		"target_altitude_m": cmd.TargetAltitudeM,
	})

	row := &db.CommandRow{
		CommandID:   cmd.CommandID,
		DroneID:     cmd.DroneID,
		CommandType: typeJSON,
		IssuedAt:    cmd.IssuedAt,
	}
	if cmd.Reason != "" {
		row.Reason.String = cmd.Reason
		row.Reason.Valid = true
	}
	if cmd.ExpiresAt != nil {
		row.ExpiresAt.Time = *cmd.ExpiresAt
		row.ExpiresAt.Valid = true
	}
	if err := s.repo.Create(row); err != nil {
		return cmd, fmt.Errorf("command issued but failed to persist: %w", err)
	}

	return cmd, nil
}

// Acknowledge marks a command acknowledged both in the live queue and in
// persisted storage.
func (s *CommandService) Acknowledge(commandID string) (bool, error) {
	ok := s.dispatcher.Ack(commandID)
	if !ok {
		return false, nil
	}
	if err := s.repo.Acknowledge(commandID); err != nil {
		return true, fmt.Errorf("command acknowledged but failed to persist: %w", err)
	}
	return true, nil
}

// SweepExpired removes expired, unacknowledged commands from the live queue.
func (s *CommandService) SweepExpired(now time.Time) int {
	return s.dispatcher.Sweep(now)
}
