// Package realtime bridges the in-process world event bus onto NATS, so
// multiple atcserver instances behind a load balancer share one event
// stream instead of each seeing only its own store's changes.
package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/observability"
	"github.com/nats-io/nats.go"
)

const subjectPrefix = "atc.events."

// wireEvent is the JSON form of world.Event published to and consumed from
// NATS. world.Event itself isn't serialized directly since its Payload is
// `any` and its EventKind needs to travel as a plain string subject suffix.
type wireEvent struct {
	DroneID   string          `json:"drone_id,omitempty"`
	OwnerID   string          `json:"owner_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Origin    string          `json:"origin"`
}

// BridgeConfig configures the connection to the NATS cluster.
type BridgeConfig struct {
	URL           string
	ReconnectWait time.Duration
	MaxReconnects int
	PingInterval  time.Duration
	InstanceID    string
}

// DefaultBridgeConfig returns sane defaults for a local development cluster.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		URL:           nats.DefaultURL,
		ReconnectWait: 2 * time.Second,
		MaxReconnects: 60,
		PingInterval:  30 * time.Second,
		InstanceID:    "atcserver",
	}
}

// Bridge republishes local world.Store events onto NATS and applies events
// published by other instances back into the local store's broadcaster.
type Bridge struct {
	nc   *nats.Conn
	subs []*nats.Subscription
	cfg  BridgeConfig

	mu      sync.Mutex
	running bool
}

// NewBridge dials NATS and returns an unstarted Bridge.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.PingInterval(cfg.PingInterval),
		nats.Name(cfg.InstanceID),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[realtime] reconnected to %s", nc.ConnectedUrl())
			observability.UpdateNATSConnectionStatus(true)
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("[realtime] disconnected: %v", err)
			}
			observability.UpdateNATSConnectionStatus(false)
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Printf("[realtime] error: %v", err)
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		observability.UpdateNATSConnectionStatus(false)
		return nil, err
	}
	observability.UpdateNATSConnectionStatus(true)

	return &Bridge{nc: nc, cfg: cfg}, nil
}

// Publish forwards store events onto NATS as they're emitted locally. It
// blocks until ctx's subscription channel closes, so callers run it in a
// goroutine; Store.Events.Subscribe's buffer absorbs bursts.
func (b *Bridge) Publish(store *world.Store) {
	ch, unsubscribe := store.Events.Subscribe(256)
	defer unsubscribe()

	for evt := range ch {
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			log.Printf("[realtime] marshal event payload: %v", err)
			continue
		}
		wire := wireEvent{
			DroneID:   evt.DroneID,
			OwnerID:   evt.OwnerID,
			Timestamp: evt.Timestamp,
			Payload:   payload,
			Origin:    b.cfg.InstanceID,
		}
		data, err := json.Marshal(wire)
		if err != nil {
			log.Printf("[realtime] marshal wire event: %v", err)
			continue
		}

		subject := subjectPrefix + string(evt.Kind)
		if err := b.nc.Publish(subject, data); err != nil {
			log.Printf("[realtime] publish to %s: %v", subject, err)
			continue
		}
		observability.GetMetrics().NATSMessagesPublished.WithLabelValues(subject).Inc()
	}
}

// Subscribe applies remote events back into store's broadcaster, skipping
// events this same instance originated to avoid an echo loop.
func (b *Bridge) Subscribe(store *world.Store) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}

	kinds := []world.EventKind{world.EventDrone, world.EventConflict, world.EventCommand, world.EventGeofence}
	for _, kind := range kinds {
		subject := subjectPrefix + string(kind)
		sub, err := b.nc.Subscribe(subject, b.handler(kind, store))
		if err != nil {
			return err
		}
		b.subs = append(b.subs, sub)
	}

	b.running = true
	log.Printf("[realtime] subscribed to %d subjects", len(kinds))
	return nil
}

func (b *Bridge) handler(kind world.EventKind, store *world.Store) nats.MsgHandler {
	return func(msg *nats.Msg) {
		start := time.Now()
		observability.GetMetrics().NATSMessagesReceived.WithLabelValues(msg.Subject).Inc()

		var wire wireEvent
		if err := json.Unmarshal(msg.Data, &wire); err != nil {
			log.Printf("[realtime] unmarshal wire event: %v", err)
			return
		}
		if wire.Origin == b.cfg.InstanceID {
			return
		}

		var payload any
		if err := json.Unmarshal(wire.Payload, &payload); err != nil {
			log.Printf("[realtime] unmarshal event payload: %v", err)
			return
		}

		store.Events.Publish(kind, wire.DroneID, wire.OwnerID, payload)
		observability.RecordEventProcessed(string(kind), wire.Origin)
		observability.RecordEventLatency(string(kind), time.Since(start))
	}
}

// Close unsubscribes and closes the NATS connection.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.subs = nil
	b.running = false
	observability.UpdateNATSConnectionStatus(false)
	b.nc.Close()
}

// IsConnected reports whether the bridge currently holds a live connection.
func (b *Bridge) IsConnected() bool {
	return b.nc != nil && b.nc.IsConnected()
}
