package loops

import (
	"context"
	"log"
	"time"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/observability"
)

// BlenderPusher pushes a drone snapshot batch to the upstream UTM
// observation stream; full indicates a complete resync rather than a
// changed-only delta.
type BlenderPusher func(ctx context.Context, drones []world.Drone, full bool) error

// BlenderMirrorLoop mirrors local drone state to upstream UTM: most ticks it
// pushes only drones whose position changed since the last push, and every
// ResyncInterval it pushes the full snapshot regardless of change.
type BlenderMirrorLoop struct {
	Store          *world.Store
	Push           BlenderPusher
	Interval       time.Duration
	ResyncInterval time.Duration

	backoff    *Backoff
	lastPushed map[string]time.Time
	lastResync time.Time
}

// NewBlenderMirrorLoop builds a mirror loop at the default 2s cadence with a
// 30s full resync.
func NewBlenderMirrorLoop(store *world.Store, push BlenderPusher) *BlenderMirrorLoop {
	return &BlenderMirrorLoop{
		Store:          store,
		Push:           push,
		Interval:       2 * time.Second,
		ResyncInterval: 30 * time.Second,
		backoff:        NewBackoff(),
		lastPushed:     make(map[string]time.Time),
	}
}

func (l *BlenderMirrorLoop) Run(ctx context.Context, hb *heartbeats) {
	runTicker(ctx, "blender-mirror", l.Interval, hb, l.tick)
}

func (l *BlenderMirrorLoop) tick(ctx context.Context) {
	if l.Push == nil {
		return
	}
	now := time.Now()
	drones := l.Store.ListDrones("", 0)

	full := now.Sub(l.lastResync) >= l.ResyncInterval
	batch := drones
	if !full {
		changed := make([]world.Drone, 0, len(drones))
		for _, d := range drones {
			if last, ok := l.lastPushed[d.DroneID]; !ok || d.LastUpdate.After(last) {
				changed = append(changed, d)
			}
		}
		if len(changed) == 0 {
			return
		}
		batch = changed
	}

	if err := l.Push(ctx, batch, full); err != nil {
		observability.RecordLoopError("blender-mirror")
		delay := l.backoff.Next()
		observability.UpdateLoopBackoff("blender-mirror", delay)
		log.Printf("[blender-mirror] push failed, backing off %s: %v", delay, err)
		return
	}
	l.backoff.Reset()
	observability.UpdateLoopBackoff("blender-mirror", 0)
	if full {
		l.lastResync = now
	}
	for _, d := range batch {
		l.lastPushed[d.DroneID] = d.LastUpdate
	}
}
