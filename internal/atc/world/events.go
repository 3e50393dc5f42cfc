package world

import (
	"log"
	"sync"
	"time"
)

// EventKind identifies what changed in an Event.
type EventKind string

const (
	EventDrone    EventKind = "drone"
	EventConflict EventKind = "conflict"
	EventCommand  EventKind = "command"
	EventGeofence EventKind = "geofence"
)

// Event is a single world-state change, published for realtime fan-out.
// Events are advisory: a subscriber that misses one can always recover
// authoritative state via the List* operations, so a dropped event is never
// a correctness problem, only a latency one.
type Event struct {
	Kind      EventKind
	DroneID   string // empty for geofence events
	OwnerID   string // best-effort, for subscriber-side filtering
	Timestamp time.Time
	Payload   any
}

// Broadcaster is a fan-out hub for world events. It is deliberately
// independent of any transport (no websocket import here); internal/api/realtime
// wraps it to push events over a websocket connection.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates an empty event hub.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[chan Event]struct{})}
}

// Subscribe registers a new channel for events. The returned unsubscribe
// function must be called when the subscriber goes away.
func (b *Broadcaster) Subscribe(buffer int) (ch chan Event, unsubscribe func()) {
	ch = make(chan Event, buffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
}

// Publish fans an event out to every subscriber without blocking; a
// subscriber whose buffer is full has the event dropped for it and a lag is
// logged, matching the "late subscribers may drop" contract.
func (b *Broadcaster) Publish(kind EventKind, droneID, ownerID string, payload any) {
	event := Event{
		Kind:      kind,
		DroneID:   droneID,
		OwnerID:   ownerID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			log.Printf("[world] subscriber lagging, dropping %s event for drone %s", kind, droneID)
		}
	}
}
