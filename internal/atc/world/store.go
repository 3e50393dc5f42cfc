package world

import (
	"sort"
	"sync"
	"time"

	"github.com/asgard/atc/internal/atc/conflict"
)

// Store is the world façade. Every field is guarded independently so that a
// read of drones never blocks a write to geofences; operations are
// linearizable per entity, not across entity kinds, per the concurrency
// contract in the data model.
type Store struct {
	Events *Broadcaster

	dronesMu sync.RWMutex
	drones   map[string]*Drone

	trafficMu sync.RWMutex
	traffic   map[string]*ExternalTrack

	geofencesMu sync.RWMutex
	geofences   map[string]*Geofence

	plansMu sync.RWMutex
	plans   map[string]*FlightPlan

	advisoriesMu sync.RWMutex
	advisories   map[string]*Advisory

	conflictsMu sync.RWMutex
	conflicts   []conflict.Conflict

	queues *commandQueues
}

// NewStore creates an empty world state.
func NewStore() *Store {
	return &Store{
		Events:     NewBroadcaster(),
		drones:     make(map[string]*Drone),
		traffic:    make(map[string]*ExternalTrack),
		geofences:  make(map[string]*Geofence),
		plans:      make(map[string]*FlightPlan),
		advisories: make(map[string]*Advisory),
		queues:     newCommandQueues(),
	}
}

// IsIdle reports whether the world holds no active work: no flight plans in
// {Approved, Active, Reserved} and no queued commands. Used by the admin
// reset endpoint when require_idle is set, so a reset cannot be issued out
// from under an in-progress mission.
func (s *Store) IsIdle() bool {
	s.plansMu.RLock()
	for _, p := range s.plans {
		if p.Status == PlanApproved || p.Status == PlanActive || p.Status == PlanReserved {
			s.plansMu.RUnlock()
			return false
		}
	}
	s.plansMu.RUnlock()

	return len(s.ListPendingCommands()) == 0
}

// Reset clears all in-memory world state: drones, external traffic,
// geofences, flight plans, advisories, conflicts, and command queues.
// Persisted rows in the database are untouched; callers that want a durable
// reset must also truncate storage.
func (s *Store) Reset() {
	s.dronesMu.Lock()
	s.drones = make(map[string]*Drone)
	s.dronesMu.Unlock()

	s.trafficMu.Lock()
	s.traffic = make(map[string]*ExternalTrack)
	s.trafficMu.Unlock()

	s.geofencesMu.Lock()
	s.geofences = make(map[string]*Geofence)
	s.geofencesMu.Unlock()

	s.plansMu.Lock()
	s.plans = make(map[string]*FlightPlan)
	s.plansMu.Unlock()

	s.advisoriesMu.Lock()
	s.advisories = make(map[string]*Advisory)
	s.advisoriesMu.Unlock()

	s.conflictsMu.Lock()
	s.conflicts = nil
	s.conflictsMu.Unlock()

	s.queues = newCommandQueues()
}

// --- Drones ---

// UpsertDrone inserts or replaces a drone record wholesale (used by
// registration). UpdateFromTelemetry is the hot path for position updates.
func (s *Store) UpsertDrone(d Drone) {
	s.dronesMu.Lock()
	cp := d
	s.drones[d.DroneID] = &cp
	s.dronesMu.Unlock()
	s.Events.Publish(EventDrone, d.DroneID, d.OwnerID, cp)
}

// UpdateFromTelemetry mutates an existing drone's live position fields.
// Returns false if the drone is not registered.
func (s *Store) UpdateFromTelemetry(droneID string, lat, lon, alt, vx, vy, vz, heading, speed float64, ts time.Time) bool {
	s.dronesMu.Lock()
	d, ok := s.drones[droneID]
	if !ok {
		s.dronesMu.Unlock()
		return false
	}
	d.Lat, d.Lon, d.AltitudeM = lat, lon, alt
	d.VX, d.VY, d.VZ = vx, vy, vz
	d.HeadingDeg, d.SpeedMps = heading, speed
	d.LastUpdate = ts
	if d.Status == StatusLost || d.Status == StatusInactive {
		d.Status = StatusActive
	}
	cp := *d
	s.dronesMu.Unlock()
	s.Events.Publish(EventDrone, droneID, cp.OwnerID, cp)
	return true
}

// RemoveDrone deletes a drone record (admin reset).
func (s *Store) RemoveDrone(droneID string) {
	s.dronesMu.Lock()
	delete(s.drones, droneID)
	s.dronesMu.Unlock()
	s.queues.remove(droneID)
}

// GetDrone returns a copy of a single drone, if present.
func (s *Store) GetDrone(droneID string) (Drone, bool) {
	s.dronesMu.RLock()
	defer s.dronesMu.RUnlock()
	d, ok := s.drones[droneID]
	if !ok {
		return Drone{}, false
	}
	return *d, true
}

// ListDrones returns a consistent copy of all drones, optionally filtered by
// owner. Forces status to Lost for entries that have timed out.
func (s *Store) ListDrones(ownerFilter string, timeoutSecs float64) []Drone {
	now := time.Now()
	s.dronesMu.Lock()
	out := make([]Drone, 0, len(s.drones))
	for _, d := range s.drones {
		if timeoutSecs > 0 && now.Sub(d.LastUpdate).Seconds() > timeoutSecs && d.Status != StatusLost {
			d.Status = StatusLost
		}
		if ownerFilter != "" && d.OwnerID != ownerFilter {
			continue
		}
		out = append(out, *d)
	}
	s.dronesMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DroneID < out[j].DroneID })
	return out
}

// --- External traffic ---

// UpsertExternalTraffic inserts or replaces a third-party track.
func (s *Store) UpsertExternalTraffic(t ExternalTrack) {
	s.trafficMu.Lock()
	cp := t
	s.traffic[t.DroneID] = &cp
	s.trafficMu.Unlock()
}

// PurgeExternalTraffic removes tracks older than ttlSecs.
func (s *Store) PurgeExternalTraffic(ttlSecs float64) int {
	now := time.Now()
	s.trafficMu.Lock()
	defer s.trafficMu.Unlock()
	removed := 0
	for id, t := range s.traffic {
		if now.Sub(t.LastUpdate).Seconds() > ttlSecs {
			delete(s.traffic, id)
			removed++
		}
	}
	return removed
}

// ListExternalTraffic returns a consistent copy of all external tracks.
func (s *Store) ListExternalTraffic() []ExternalTrack {
	s.trafficMu.RLock()
	defer s.trafficMu.RUnlock()
	out := make([]ExternalTrack, 0, len(s.traffic))
	for _, t := range s.traffic {
		out = append(out, *t)
	}
	return out
}

// --- Geofences ---

// AddGeofence inserts or replaces a geofence.
func (s *Store) AddGeofence(g Geofence) {
	s.geofencesMu.Lock()
	cp := g
	s.geofences[g.ID] = &cp
	s.geofencesMu.Unlock()
	s.Events.Publish(EventGeofence, "", "", cp)
}

// RemoveGeofence deletes a geofence by id.
func (s *Store) RemoveGeofence(id string) bool {
	s.geofencesMu.Lock()
	_, ok := s.geofences[id]
	delete(s.geofences, id)
	s.geofencesMu.Unlock()
	if ok {
		s.Events.Publish(EventGeofence, "", "", id)
	}
	return ok
}

// GetGeofence returns a copy of a single geofence.
func (s *Store) GetGeofence(id string) (Geofence, bool) {
	s.geofencesMu.RLock()
	defer s.geofencesMu.RUnlock()
	g, ok := s.geofences[id]
	if !ok {
		return Geofence{}, false
	}
	return *g, true
}

// ListGeofences returns a consistent copy of all geofences.
func (s *Store) ListGeofences() []Geofence {
	s.geofencesMu.RLock()
	defer s.geofencesMu.RUnlock()
	out := make([]Geofence, 0, len(s.geofences))
	for _, g := range s.geofences {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- Flight plans ---

// AddFlightPlan inserts a new flight plan.
func (s *Store) AddFlightPlan(p FlightPlan) {
	s.plansMu.Lock()
	cp := p
	s.plans[p.FlightID] = &cp
	s.plansMu.Unlock()
}

// ListFlightPlans returns a consistent copy of all flight plans, optionally
// filtered by owner.
func (s *Store) ListFlightPlans(ownerFilter string) []FlightPlan {
	s.plansMu.RLock()
	defer s.plansMu.RUnlock()
	out := make([]FlightPlan, 0, len(s.plans))
	for _, p := range s.plans {
		if ownerFilter != "" && p.OwnerID != ownerFilter {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FlightID < out[j].FlightID })
	return out
}

// GetFlightPlan returns a copy of a single flight plan.
func (s *Store) GetFlightPlan(id string) (FlightPlan, bool) {
	s.plansMu.RLock()
	defer s.plansMu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return FlightPlan{}, false
	}
	return *p, true
}

// HasActivePlan reports whether droneID already has a plan in
// {Approved, Active} — flight plans enforce at most one such plan per drone.
func (s *Store) HasActivePlan(droneID string) bool {
	s.plansMu.RLock()
	defer s.plansMu.RUnlock()
	for _, p := range s.plans {
		if p.DroneID == droneID && (p.Status == PlanApproved || p.Status == PlanActive) {
			return true
		}
	}
	return false
}

// MutateFlightPlan applies fn to the named plan under the plans lock and
// persists the result. Returns false if the plan does not exist.
func (s *Store) MutateFlightPlan(id string, fn func(*FlightPlan)) bool {
	s.plansMu.Lock()
	defer s.plansMu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return false
	}
	fn(p)
	return true
}

// ListReservedPlans returns plans in Reserved status, for the intent-expiry
// loop.
func (s *Store) ListReservedPlans() []FlightPlan {
	s.plansMu.RLock()
	defer s.plansMu.RUnlock()
	out := make([]FlightPlan, 0)
	for _, p := range s.plans {
		if p.Status == PlanReserved {
			out = append(out, *p)
		}
	}
	return out
}

// --- Advisories ---

// UpsertAdvisory inserts or updates an advisory record by its stable id.
func (s *Store) UpsertAdvisory(a Advisory) {
	s.advisoriesMu.Lock()
	cp := a
	s.advisories[a.AdvisoryID] = &cp
	s.advisoriesMu.Unlock()
}

// ListAdvisories returns a consistent copy, optionally filtered to active
// (unresolved) advisories only.
func (s *Store) ListAdvisories(activeOnly bool) []Advisory {
	s.advisoriesMu.RLock()
	defer s.advisoriesMu.RUnlock()
	out := make([]Advisory, 0, len(s.advisories))
	for _, a := range s.advisories {
		if activeOnly && a.Resolved {
			continue
		}
		out = append(out, *a)
	}
	return out
}

// LatestAdvisoryForDrone returns the most recently created, unresolved
// advisory for a drone, used by the conformance loop to detect transitions.
func (s *Store) LatestAdvisoryForDrone(droneID string) (Advisory, bool) {
	s.advisoriesMu.RLock()
	defer s.advisoriesMu.RUnlock()
	var best *Advisory
	for _, a := range s.advisories {
		if a.DroneID != droneID || a.Resolved {
			continue
		}
		if best == nil || a.CreatedAt.After(best.CreatedAt) {
			best = a
		}
	}
	if best == nil {
		return Advisory{}, false
	}
	return *best, true
}

// --- Conflicts ---

// ReplaceConflicts atomically replaces the full conflict set with the result
// of the latest detector tick and publishes a conflict event.
func (s *Store) ReplaceConflicts(conflicts []conflict.Conflict) {
	s.conflictsMu.Lock()
	s.conflicts = conflicts
	s.conflictsMu.Unlock()
	s.Events.Publish(EventConflict, "", "", conflicts)
}

// ListConflicts returns a consistent copy of the current conflict set.
func (s *Store) ListConflicts() []conflict.Conflict {
	s.conflictsMu.RLock()
	defer s.conflictsMu.RUnlock()
	out := make([]conflict.Conflict, len(s.conflicts))
	copy(out, s.conflicts)
	return out
}
