package loops

import (
	"context"
	"log"
	"time"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/observability"
)

// RIDObservation is a single normalized Remote ID observation resolved from
// the active subscription.
type RIDObservation struct {
	DroneID    string
	Lat, Lon   float64
	AltitudeM  float64
	VX, VY, VZ float64
	HeadingDeg float64
	SpeedMps   float64
}

// RIDSubscriber creates or refreshes the bounding-box subscription used to
// pull observations.
type RIDSubscriber func(ctx context.Context) error

// RIDPuller fetches the latest observation batch under the current
// subscription.
type RIDPuller func(ctx context.Context) ([]RIDObservation, error)

// RIDPullLoop refreshes the upstream Remote ID subscription on a coarser
// cadence than it pulls, normalizes observations into external traffic, and
// purges tracks that have gone stale.
type RIDPullLoop struct {
	Store             *world.Store
	Subscribe         RIDSubscriber
	Pull              RIDPuller
	Interval          time.Duration
	SubscriptionEvery time.Duration
	StaleTTLSecs      float64

	backoff       *Backoff
	lastSubscribe time.Time
}

// NewRIDPullLoop builds a pull loop at the default 2s cadence with a 20s
// subscription refresh.
func NewRIDPullLoop(store *world.Store, subscribe RIDSubscriber, pull RIDPuller) *RIDPullLoop {
	return &RIDPullLoop{
		Store:             store,
		Subscribe:         subscribe,
		Pull:              pull,
		Interval:          2 * time.Second,
		SubscriptionEvery: 20 * time.Second,
		StaleTTLSecs:      30,
		backoff:           NewBackoff(),
	}
}

func (l *RIDPullLoop) Run(ctx context.Context, hb *heartbeats) {
	runTicker(ctx, "rid-pull", l.Interval, hb, l.tick)
}

func (l *RIDPullLoop) tick(ctx context.Context) {
	now := time.Now()
	if l.Subscribe != nil && now.Sub(l.lastSubscribe) >= l.SubscriptionEvery {
		if err := l.Subscribe(ctx); err != nil {
			observability.RecordLoopError("rid-pull")
			delay := l.backoff.Next()
			observability.UpdateLoopBackoff("rid-pull", delay)
			log.Printf("[rid-pull] subscription refresh failed, backing off %s: %v", delay, err)
			return
		}
		l.lastSubscribe = now
	}

	if l.Pull != nil {
		observations, err := l.Pull(ctx)
		if err != nil {
			observability.RecordLoopError("rid-pull")
			delay := l.backoff.Next()
			observability.UpdateLoopBackoff("rid-pull", delay)
			log.Printf("[rid-pull] pull failed, backing off %s: %v", delay, err)
		} else {
			l.backoff.Reset()
			observability.UpdateLoopBackoff("rid-pull", 0)
			for _, o := range observations {
				l.Store.UpsertExternalTraffic(world.ExternalTrack{
					DroneID:    o.DroneID,
					Source:     "rid",
					Lat:        o.Lat,
					Lon:        o.Lon,
					AltitudeM:  o.AltitudeM,
					VX:         o.VX,
					VY:         o.VY,
					VZ:         o.VZ,
					HeadingDeg: o.HeadingDeg,
					SpeedMps:   o.SpeedMps,
					LastUpdate: now,
				})
			}
		}
	}

	l.Store.PurgeExternalTraffic(l.StaleTTLSecs)
}
