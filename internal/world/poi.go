package world

import (
	"math"
	"sync"

	"nestcore/internal/nest"
	"nestcore/pkg/domain"
)

// POIs is a flat point-of-interest registry.
type POIs struct {
	mu   sync.RWMutex
	pois []nest.POI
}

// NewPOIs returns an empty registry.
func NewPOIs() *POIs { return &POIs{} }

// AddPOI implements nest.POIRegistry. Adding twice is a no-op.
func (r *POIs) AddPOI(p nest.POI) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.pois {
		if existing == p {
			return
		}
	}
	r.pois = append(r.pois, p)
}

// RemovePOI implements nest.POIRegistry.
func (r *POIs) RemovePOI(p nest.POI) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.pois {
		if existing == p {
			r.pois = append(r.pois[:i], r.pois[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered points.
func (r *POIs) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pois)
}

// Near returns points of the given type within radius of at, in
// registration order. An empty kind matches everything.
func (r *POIs) Near(at domain.Vec3, radius float64, kind string) []nest.POI {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []nest.POI
	for _, p := range r.pois {
		if kind != "" && p.Type() != kind {
			continue
		}
		pos := p.Position()
		if math.Hypot(math.Hypot(pos.X-at.X, pos.Y-at.Y), pos.Z-at.Z) <= radius {
			out = append(out, p)
		}
	}
	return out
}
