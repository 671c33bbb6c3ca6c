package world

import (
	"sort"
	"sync"

	"nestcore/pkg/domain"
)

// Actors is the registry of live creatures, keyed by entity id.
type Actors struct {
	mu        sync.RWMutex
	creatures map[string]domain.Creature
}

// NewActors returns an empty registry.
func NewActors() *Actors {
	return &Actors{creatures: make(map[string]domain.Creature)}
}

// Add inserts or replaces a creature. It is marked alive.
func (a *Actors) Add(c domain.Creature) {
	c.Alive = true
	a.mu.Lock()
	a.creatures[c.ID] = c
	a.mu.Unlock()
}

// Kill marks a creature dead; it stays listed.
func (a *Actors) Kill(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.creatures[id]
	if !ok {
		return false
	}
	c.Alive = false
	a.creatures[id] = c
	return true
}

// Despawn removes a creature entirely.
func (a *Actors) Despawn(id string) {
	a.mu.Lock()
	delete(a.creatures, id)
	a.mu.Unlock()
}

// Alive implements nest.ActorRegistry.
func (a *Actors) Alive(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.creatures[id]
	return ok && c.Alive
}

// Get looks up a creature.
func (a *Actors) Get(id string) (domain.Creature, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.creatures[id]
	return c, ok
}

// List returns all creatures ordered by id.
func (a *Actors) List() []domain.Creature {
	a.mu.RLock()
	out := make([]domain.Creature, 0, len(a.creatures))
	for _, c := range a.creatures {
		out = append(out, c)
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
