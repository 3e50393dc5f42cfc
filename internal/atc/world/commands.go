package world

import (
	"sync"
	"time"
)

// commandQueues holds the per-drone FIFO plus the auxiliary structures
// described for the command dispatcher: a last-issued timestamp per drone
// for cooldown enforcement and a global by-id index for O(1) ack.
type commandQueues struct {
	mu         sync.Mutex
	byDrone    map[string][]*Command
	byID       map[string]*Command
	lastIssued map[string]time.Time
}

func newCommandQueues() *commandQueues {
	return &commandQueues{
		byDrone:    make(map[string][]*Command),
		byID:       make(map[string]*Command),
		lastIssued: make(map[string]time.Time),
	}
}

func (q *commandQueues) remove(droneID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.byDrone[droneID] {
		delete(q.byID, c.CommandID)
	}
	delete(q.byDrone, droneID)
	delete(q.lastIssued, droneID)
}

// EnqueueCommand appends a command to its drone's FIFO.
func (s *Store) EnqueueCommand(c Command) {
	q := s.queues
	q.mu.Lock()
	cp := c
	q.byDrone[c.DroneID] = append(q.byDrone[c.DroneID], &cp)
	q.byID[c.CommandID] = &cp
	q.mu.Unlock()
	s.Events.Publish(EventCommand, c.DroneID, "", cp)
}

// PeekNextCommand returns the head command for a drone without removing it.
func (s *Store) PeekNextCommand(droneID string) (Command, bool) {
	q := s.queues
	q.mu.Lock()
	defer q.mu.Unlock()
	fifo := q.byDrone[droneID]
	if len(fifo) == 0 {
		return Command{}, false
	}
	return *fifo[0], true
}

// AckCommand marks a command acknowledged and removes it from its drone's
// FIFO. Returns false if the id is unknown (not an error — acking an unknown
// or already-removed command is a no-op from the caller's perspective).
func (s *Store) AckCommand(commandID string) (Command, bool) {
	q := s.queues
	q.mu.Lock()
	defer q.mu.Unlock()

	c, ok := q.byID[commandID]
	if !ok {
		return Command{}, false
	}
	now := time.Now()
	c.Acknowledged = true
	c.AckedAt = &now
	delete(q.byID, commandID)

	fifo := q.byDrone[c.DroneID]
	for i, entry := range fifo {
		if entry.CommandID == commandID {
			q.byDrone[c.DroneID] = append(fifo[:i], fifo[i+1:]...)
			break
		}
	}
	return *c, true
}

// SweepExpiredCommands removes commands whose ExpiresAt has passed, and,
// when ackTimeoutSecs > 0, unacknowledged commands older than that timeout
// regardless of an explicit expiry. Returns the number removed.
func (s *Store) SweepExpiredCommands(now time.Time, ackTimeoutSecs float64) int {
	q := s.queues
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for droneID, fifo := range q.byDrone {
		kept := fifo[:0]
		for _, c := range fifo {
			expired := c.ExpiresAt != nil && now.After(*c.ExpiresAt)
			stale := ackTimeoutSecs > 0 && !c.Acknowledged && now.Sub(c.IssuedAt).Seconds() > ackTimeoutSecs
			if expired || stale {
				delete(q.byID, c.CommandID)
				removed++
				continue
			}
			kept = append(kept, c)
		}
		q.byDrone[droneID] = kept
	}
	return removed
}

// HasActiveCommand reports whether droneID has a non-empty queue whose head
// command has not expired.
func (s *Store) HasActiveCommand(droneID string, now time.Time) bool {
	q := s.queues
	q.mu.Lock()
	defer q.mu.Unlock()
	fifo := q.byDrone[droneID]
	if len(fifo) == 0 {
		return false
	}
	head := fifo[0]
	return head.ExpiresAt == nil || !now.After(*head.ExpiresAt)
}

// CanIssueCommand reports whether enough time has passed since the last
// command issued to droneID to issue another, under cooldownSecs.
func (s *Store) CanIssueCommand(droneID string, cooldownSecs float64, now time.Time) bool {
	q := s.queues
	q.mu.Lock()
	defer q.mu.Unlock()
	last, ok := q.lastIssued[droneID]
	if !ok {
		return true
	}
	return now.Sub(last).Seconds() >= cooldownSecs
}

// MarkCommandIssued records now as the last-issued timestamp for droneID.
func (s *Store) MarkCommandIssued(droneID string, now time.Time) {
	q := s.queues
	q.mu.Lock()
	q.lastIssued[droneID] = now
	q.mu.Unlock()
}

// ListPendingCommands returns every queued command across all drones, for
// debugging/admin views.
func (s *Store) ListPendingCommands() []Command {
	q := s.queues
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Command, 0, len(q.byID))
	for _, fifo := range q.byDrone {
		for _, c := range fifo {
			out = append(out, *c)
		}
	}
	return out
}
