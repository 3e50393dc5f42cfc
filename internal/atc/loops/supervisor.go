package loops

import (
	"context"
	"sync"
	"time"
)

// runner is satisfied by every loop type in this package.
type runner interface {
	Run(ctx context.Context, hb *heartbeats)
}

// Supervisor starts every control loop as an independent goroutine under one
// cancellation context and tracks their heartbeats for a health endpoint.
// Loops share only the world façade passed to their constructors; the
// supervisor itself holds no domain state.
type Supervisor struct {
	hb *heartbeats
	wg sync.WaitGroup
}

// NewSupervisor builds an empty supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{hb: newHeartbeats()}
}

// Start launches every given loop as its own goroutine.
func (s *Supervisor) Start(ctx context.Context, loops ...runner) {
	for _, l := range loops {
		l := l
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			l.Run(ctx, s.hb)
		}()
	}
}

// Wait blocks until every started loop has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Heartbeats returns the last-tick time for every loop that has ticked at
// least once.
func (s *Supervisor) Heartbeats() map[string]time.Time {
	return s.hb.Snapshot()
}
