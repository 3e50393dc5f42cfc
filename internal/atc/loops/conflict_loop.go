package loops

import (
	"context"
	"time"

	"github.com/asgard/atc/internal/atc/conflict"
	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/observability"
)

// ConflictLoop snapshots every drone and external track, runs the
// separation detector, and republishes the resulting conflict set every
// tick.
type ConflictLoop struct {
	Store    *world.Store
	Detector conflict.Detector
	Interval time.Duration
}

// NewConflictLoop builds a conflict loop at the default 1s cadence with the
// default detector thresholds.
func NewConflictLoop(store *world.Store) *ConflictLoop {
	return &ConflictLoop{Store: store, Detector: conflict.DefaultDetector(), Interval: 1 * time.Second}
}

func (l *ConflictLoop) Run(ctx context.Context, hb *heartbeats) {
	runTicker(ctx, "conflict", l.Interval, hb, l.tick)
}

func (l *ConflictLoop) tick(ctx context.Context) {
	drones := l.Store.ListDrones("", 0)
	traffic := l.Store.ListExternalTraffic()
	observability.UpdateDronesActive(len(drones))

	tracks := make([]conflict.Position, 0, len(drones)+len(traffic))
	for _, d := range drones {
		tracks = append(tracks, conflict.Position{
			DroneID:    d.DroneID,
			Lat:        d.Lat,
			Lon:        d.Lon,
			AltitudeM:  d.AltitudeM,
			HeadingDeg: d.HeadingDeg,
			SpeedMps:   d.SpeedMps,
			VelocityZ:  d.VZ,
		})
	}
	for _, t := range traffic {
		tracks = append(tracks, conflict.Position{
			DroneID:    t.DroneID,
			Lat:        t.Lat,
			Lon:        t.Lon,
			AltitudeM:  t.AltitudeM,
			HeadingDeg: t.HeadingDeg,
			SpeedMps:   t.SpeedMps,
			VelocityZ:  t.VZ,
		})
	}

	detectStart := time.Now()
	conflicts := l.Detector.DetectConflicts(tracks)
	observability.RecordConflictTick(time.Since(detectStart))
	for _, c := range conflicts {
		observability.RecordConflictDetected(string(c.Severity))
	}
	observability.UpdateConflictQueueDepth(len(conflicts))
	l.Store.ReplaceConflicts(conflicts)
}
