package world

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"nestcore/internal/nest"
	"nestcore/pkg/domain"
)

// Spawner inserts hatched creatures into the actor registry.
type Spawner struct {
	Catalog *Catalog
	Actors  *Actors
	Now     func() time.Time
}

// KnowsSpecies implements nest.Spawner.
func (s *Spawner) KnowsSpecies(species domain.SpeciesID) bool {
	return s.Catalog != nil && s.Catalog.KnowsSpecies(species)
}

// Spawn implements nest.Spawner.
func (s *Spawner) Spawn(ctx context.Context, o nest.Offspring) (domain.Creature, error) {
	if err := ctx.Err(); err != nil {
		return domain.Creature{}, err
	}
	if !s.KnowsSpecies(o.Species) {
		return domain.Creature{}, fmt.Errorf("spawn: unknown species %q", o.Species)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	c := domain.Creature{
		ID:         uuid.NewString(),
		Code:       creatureCode(o.Species),
		Generation: o.Generation,
		Position:   o.Position,
		Motion:     o.Motion,
		Yaw:        o.Yaw,
		Origin:     o.Origin,
		Alive:      true,
		SpawnedAt:  now().UTC(),
	}
	if s.Actors != nil {
		s.Actors.Add(c)
	}
	return c, nil
}

// creatureCode strips the domain prefix: "game:chicken-baby" is "chicken-baby".
func creatureCode(species domain.SpeciesID) string {
	if _, code, ok := strings.Cut(string(species), ":"); ok {
		return code
	}
	return string(species)
}
