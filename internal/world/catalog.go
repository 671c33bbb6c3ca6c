package world

import (
	"sync"

	"nestcore/internal/nest"
	"nestcore/pkg/domain"
)

// Species describes a creature type that can lay eggs.
type Species struct {
	// EggTypes are the item codes the creature lays, picked uniformly.
	EggTypes []string
	// Chick is the species that hatches from a fertilised egg; empty lays
	// infertile eggs only.
	Chick domain.SpeciesID
	// IncubationDays is the countdown a full clutch starts with.
	IncubationDays float64
}

// Item is a registered item definition.
type Item struct {
	PlaceSound string
}

// Catalog resolves egg tables, items and hatchable species. Replace swaps
// the whole table so a config reload is atomic.
type Catalog struct {
	mu      sync.RWMutex
	species map[string]Species
	items   map[string]Item
	known   map[domain.SpeciesID]struct{}
}

// NewCatalog builds a catalog. Every creature code in species and every
// chick it names resolves as a spawnable species.
func NewCatalog(species map[string]Species, items map[string]Item) *Catalog {
	c := &Catalog{}
	c.Replace(species, items)
	return c
}

// Replace installs new tables.
func (c *Catalog) Replace(species map[string]Species, items map[string]Item) {
	sp := make(map[string]Species, len(species))
	known := make(map[domain.SpeciesID]struct{}, 2*len(species))
	for code, s := range species {
		s.EggTypes = append([]string(nil), s.EggTypes...)
		sp[code] = s
		known[domain.SpeciesID(code)] = struct{}{}
		if s.Chick != "" {
			known[s.Chick] = struct{}{}
		}
	}
	it := make(map[string]Item, len(items))
	for code, item := range items {
		it[code] = item
	}
	c.mu.Lock()
	c.species, c.items, c.known = sp, it, known
	c.mu.Unlock()
}

// Species returns the laying profile of a creature code.
func (c *Catalog) Species(code string) (Species, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.species[code]
	return s, ok
}

// EggVariants implements nest.EggCatalog.
func (c *Catalog) EggVariants(creatureCode string) ([]nest.ItemSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.species[creatureCode]
	if !ok || len(s.EggTypes) == 0 {
		return nil, false
	}
	out := make([]nest.ItemSpec, 0, len(s.EggTypes))
	for _, code := range s.EggTypes {
		out = append(out, nest.ItemSpec{Code: code, PlaceSound: c.items[code].PlaceSound})
	}
	return out, true
}

// ResolveItem implements nest.EggCatalog. Only registered items resolve.
func (c *Catalog) ResolveItem(code string) (nest.ItemSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[code]
	if !ok {
		return nest.ItemSpec{}, false
	}
	return nest.ItemSpec{Code: code, PlaceSound: item.PlaceSound}, true
}

// KnowsSpecies reports whether the species can be spawned.
func (c *Catalog) KnowsSpecies(species domain.SpeciesID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.known[species]
	return ok
}
