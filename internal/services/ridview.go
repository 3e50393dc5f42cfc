package services

import "sync"

// RIDBox is a bounding box subscription window for the Remote ID pull loop.
type RIDBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// RIDViewService holds the current Remote ID subscription bounding box.
// The RID pull loop's Subscribe closure reads it on each refresh; operators
// update it through the API to move the watched area.
type RIDViewService struct {
	mu  sync.RWMutex
	box RIDBox
}

// NewRIDViewService creates a new RID view service with an empty box.
func NewRIDViewService() *RIDViewService {
	return &RIDViewService{}
}

// SetView replaces the current subscription bounding box.
func (s *RIDViewService) SetView(box RIDBox) {
	s.mu.Lock()
	s.box = box
	s.mu.Unlock()
}

// View returns the current subscription bounding box.
func (s *RIDViewService) View() RIDBox {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.box
}
