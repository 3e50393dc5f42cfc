package loops

import (
	"context"
	"log"
	"time"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/observability"
)

// UpstreamGeofence is a geofence as reported by upstream UTM, keyed by a
// stable fingerprint so unchanged geofences aren't rewritten every sync.
type UpstreamGeofence struct {
	Fingerprint string
	Geofence    world.Geofence
}

// GeofenceSource resolves the full current upstream geofence set.
type GeofenceSource func(ctx context.Context) ([]UpstreamGeofence, error)

// GeofenceSyncLoop reconciles the local geofence set against upstream UTM:
// new fingerprints are added, changed ones updated in place, and ones no
// longer reported upstream are removed locally.
type GeofenceSyncLoop struct {
	Store    *world.Store
	Source   GeofenceSource
	Interval time.Duration

	backoff *Backoff
	known   map[string]string // geofence id -> fingerprint
}

// NewGeofenceSyncLoop builds a sync loop at the default 15s cadence.
func NewGeofenceSyncLoop(store *world.Store, source GeofenceSource) *GeofenceSyncLoop {
	return &GeofenceSyncLoop{Store: store, Source: source, Interval: 15 * time.Second, backoff: NewBackoff(), known: make(map[string]string)}
}

func (l *GeofenceSyncLoop) Run(ctx context.Context, hb *heartbeats) {
	runTicker(ctx, "geofence-sync", l.Interval, hb, l.tick)
}

func (l *GeofenceSyncLoop) tick(ctx context.Context) {
	if l.Source == nil {
		return
	}
	upstream, err := l.Source(ctx)
	if err != nil {
		observability.RecordLoopError("geofence-sync")
		delay := l.backoff.Next()
		observability.UpdateLoopBackoff("geofence-sync", delay)
		log.Printf("[geofence-sync] fetch failed, backing off %s: %v", delay, err)
		return
	}
	l.backoff.Reset()
	observability.UpdateLoopBackoff("geofence-sync", 0)

	seen := make(map[string]bool, len(upstream))
	for _, u := range upstream {
		seen[u.Geofence.ID] = true
		if prior, ok := l.known[u.Geofence.ID]; ok && prior == u.Fingerprint {
			continue
		}
		l.Store.AddGeofence(u.Geofence)
		l.known[u.Geofence.ID] = u.Fingerprint
	}

	for id := range l.known {
		if !seen[id] {
			l.Store.RemoveGeofence(id)
			delete(l.known, id)
		}
	}
}
