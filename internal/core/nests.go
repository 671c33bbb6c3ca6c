package core

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"nestcore/internal/logfields"
	"nestcore/internal/nest"
	"nestcore/pkg/domain"
)

// PlaceNestBox creates a fresh nest for a newly placed block and persists it.
func (s *Service) PlaceNestBox(ctx context.Context, blockCode string, pos domain.BlockPos) (NestView, error) {
	var view NestView
	err := s.run(ctx, "place_nest_box", func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		block, ok := s.blocks[blockCode]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownBlock, blockCode)
		}
		if _, taken := s.byPos[pos]; taken {
			return fmt.Errorf("position %s already holds a loaded nest", pos)
		}
		nb := nest.New(uuid.NewString(), block, pos, s.deps)
		if err := nb.Initialize(); err != nil {
			return fmt.Errorf("initialize nest: %w", err)
		}
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.CreateNestBox(domain.NestBoxRecord{
				Base:      domain.Base{ID: nb.ID()},
				BlockCode: blockCode,
				Position:  pos,
				State:     nb.ToTree(),
			})
			return err
		})
		if err != nil {
			nb.OnRemoved()
			return err
		}
		nb.ClearDirty()
		s.registerLocked(nb)
		s.logger.Info("nest box placed", logfields.NestID(nb.ID()), logfields.Block(blockCode), logfields.Position(pos))
		view = newNestView(nb)
		return nil
	})
	return view, err
}

// LoadNestBoxes brings every stored nest that is not yet loaded into memory.
// Records with an unknown block code or unreadable state are skipped with a
// log line; capacity mismatches are reconciled and written back.
func (s *Service) LoadNestBoxes(ctx context.Context) (int, error) {
	loaded := 0
	err := s.run(ctx, "load_nest_boxes", func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, rec := range s.store.ListNestBoxes() {
			if _, ok := s.nests[rec.ID]; ok {
				continue
			}
			block, ok := s.blocks[rec.BlockCode]
			if !ok {
				s.logger.Warn("stored nest has unknown block, skipped",
					logfields.NestID(rec.ID), logfields.Block(rec.BlockCode), logfields.Position(rec.Position))
				continue
			}
			nb := nest.New(rec.ID, block, rec.Position, s.deps)
			if err := nb.FromTree(rec.State); err != nil {
				s.logger.Error("stored nest state unreadable, skipped", logfields.NestID(rec.ID), logfields.Error(err))
				continue
			}
			before := nb.CountOccupied()
			if err := nb.Initialize(); err != nil {
				return fmt.Errorf("initialize nest %s: %w", rec.ID, err)
			}
			if dropped := before - nb.CountOccupied(); dropped > 0 {
				s.metrics.IncEggsDropped(dropped)
			}
			s.registerLocked(nb)
			s.metrics.SetIncubationRemaining(nb.ID(), nb.TimeToIncubate())
			loaded++
		}
		return s.persistLocked(ctx)
	})
	return loaded, err
}

// RemoveNestBox handles the block being broken: the nest is torn down and its
// record deleted. Eggs inside are lost.
func (s *Service) RemoveNestBox(ctx context.Context, pos domain.BlockPos) error {
	return s.run(ctx, "remove_nest_box", func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		var id string
		if nb, ok := s.byPos[pos]; ok {
			id = nb.ID()
			nb.OnRemoved()
			s.unregisterLocked(nb)
		}
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if id == "" {
				rec, ok := tx.FindNestBoxAt(pos)
				if !ok {
					return ErrNotFound{Entity: domain.EntityNestBox, ID: pos.String()}
				}
				id = rec.ID
			}
			return tx.DeleteNestBox(id)
		})
		return err
	})
}

// UnloadNestBox persists and releases a nest whose chunk unloaded. The record
// stays in the store for the next LoadNestBoxes.
func (s *Service) UnloadNestBox(ctx context.Context, pos domain.BlockPos) error {
	return s.run(ctx, "unload_nest_box", func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		nb, err := s.lookupLocked(pos)
		if err != nil {
			return err
		}
		if err := s.persistLocked(ctx); err != nil {
			return err
		}
		nb.OnUnloaded()
		s.unregisterLocked(nb)
		return nil
	})
}

// Interact runs a player's right-click on the block at sel. A denied access
// check yields a zero result and no error; a block without a loaded nest
// yields nest.ErrNoBackingState.
func (s *Service) Interact(ctx context.Context, player domain.Player, sel domain.BlockSelection) (nest.InteractResult, error) {
	var res nest.InteractResult
	err := s.run(ctx, "interact", func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		behavior := nest.CollectFromBehavior{Nests: nestIndex{s}, Access: s.deps.Access, Logger: s.logger}
		var err error
		res, err = behavior.OnBlockInteractStart(ctx, player, sel)
		if err != nil {
			return err
		}
		return s.persistLocked(ctx)
	})
	return res, err
}

// InteractStep keeps a held interaction alive.
func (s *Service) InteractStep(ctx context.Context, secondsUsed float64, player domain.Player, sel *domain.BlockSelection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	behavior := nest.CollectFromBehavior{Nests: nestIndex{s}, Access: s.deps.Access, Logger: s.logger}
	return behavior.OnBlockInteractStep(ctx, secondsUsed, player, sel)
}

// LayEgg lets a creature lay into the nest at pos. It reports whether an egg
// was added; a full nest instead starts incubation.
func (s *Service) LayEgg(ctx context.Context, pos domain.BlockPos, creature domain.Creature, chick *domain.SpeciesID, incubationDays float64) (bool, error) {
	var added bool
	err := s.run(ctx, "lay_egg", func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		nb, err := s.lookupLocked(pos)
		if err != nil {
			return err
		}
		added = nb.TryAdd(ctx, creature, chick, incubationDays)
		return s.persistLocked(ctx)
	})
	return added, err
}

// SetOccupier credits a creature with sitting on the nest at pos; an empty
// id clears it.
func (s *Service) SetOccupier(ctx context.Context, pos domain.BlockPos, creatureID string) error {
	return s.run(ctx, "set_occupier", func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		nb, err := s.lookupLocked(pos)
		if err != nil {
			return err
		}
		nb.SetOccupier(creatureID)
		return s.persistLocked(ctx)
	})
}

// ClaimNest picks the best nest for a brooding creature and makes it the
// occupier. Emptier nests win through DistanceWeighting, discounted by
// distance; nests the creature cannot use or that someone else sits on are
// skipped. ok is false when nothing qualifies.
func (s *Service) ClaimNest(ctx context.Context, creature domain.Creature) (NestView, bool, error) {
	var (
		view NestView
		ok   bool
	)
	err := s.run(ctx, "claim_nest", func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		var (
			best      *nest.NestBox
			bestScore float64
		)
		for _, nb := range s.sortedLocked() {
			if !nb.IsSuitableFor(creature) || nb.Occupied(creature.ID) {
				continue
			}
			score := nb.DistanceWeighting() / (1 + distance(creature.Position, nb.Position()))
			if best == nil || score > bestScore {
				best, bestScore = nb, score
			}
		}
		if best == nil {
			return nil
		}
		best.SetOccupier(creature.ID)
		if err := s.persistLocked(ctx); err != nil {
			return err
		}
		view, ok = newNestView(best), true
		return nil
	})
	return view, ok, err
}

// TickSummary aggregates one pass over every loaded nest.
type TickSummary struct {
	Nests   int
	Changed int
	Accrued float64
	Hatched []domain.Creature
}

// Tick advances every loaded nest once, in ID order, and persists changes.
// Scheduled per-nest ticks do the same work for a single nest.
func (s *Service) Tick(ctx context.Context) (TickSummary, error) {
	var sum TickSummary
	err := s.run(ctx, "tick", func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, nb := range s.sortedLocked() {
			res := nb.Tick(ctx)
			s.metrics.IncTicks()
			sum.Nests++
			if res.Changed {
				sum.Changed++
			}
			sum.Accrued += res.Accrued
			sum.Hatched = append(sum.Hatched, res.Hatched...)
		}
		return s.persistLocked(ctx)
	})
	return sum, err
}

// Describe returns the nest at pos with its hover text in the given language.
func (s *Service) Describe(pos domain.BlockPos, tag language.Tag) (NestView, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nb, err := s.lookupLocked(pos)
	if err != nil {
		return NestView{}, nil, err
	}
	nb.SyncClientside()
	return newNestView(nb), nb.BlockInfo(tag), nil
}

// Nest returns the loaded nest at pos.
func (s *Service) Nest(pos domain.BlockPos) (NestView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nb, ok := s.byPos[pos]
	if !ok {
		return NestView{}, false
	}
	return newNestView(nb), true
}

// Nests lists the loaded nests ordered by ID.
func (s *Service) Nests() []NestView {
	s.mu.Lock()
	defer s.mu.Unlock()
	loaded := s.sortedLocked()
	out := make([]NestView, 0, len(loaded))
	for _, nb := range loaded {
		out = append(out, newNestView(nb))
	}
	return out
}

// Close persists outstanding changes and unloads every nest.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.persistLocked(ctx)
	for _, nb := range s.sortedLocked() {
		nb.OnUnloaded()
		s.unregisterLocked(nb)
	}
	return err
}

func distance(a, b domain.Vec3) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
