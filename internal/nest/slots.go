package nest

import (
	"context"

	"nestcore/internal/logfields"
	"nestcore/pkg/domain"
)

// TryAdd lays an egg from creature into the first empty slot. chickSpecies
// is nil when no fertilising partner was present. A successful add always
// cancels a running countdown. When the box is full the call never adds an
// egg; it only starts the shared countdown if none is running, and reports
// false.
func (n *NestBox) TryAdd(_ context.Context, creature domain.Creature, chickSpecies *domain.SpeciesID, incubationDays float64) bool {
	for i, egg := range n.slots {
		if egg != nil {
			continue
		}
		n.slots[i] = n.makeEgg(creature, chickSpecies)
		n.timeToIncubate = 0
		n.markDirty()
		return true
	}
	if n.timeToIncubate == 0 && incubationDays > 0 {
		n.timeToIncubate = incubationDays
		n.occupiedTimeLast = n.totalDays()
		n.markDirty()
	}
	return false
}

func (n *NestBox) makeEgg(creature domain.Creature, chickSpecies *domain.SpeciesID) *domain.Egg {
	egg := &domain.Egg{
		Item:             &domain.ItemStack{Code: n.resolveEggItem(creature), Size: 1},
		ParentGeneration: creature.Generation,
	}
	if chickSpecies != nil && *chickSpecies != "" {
		sp := *chickSpecies
		egg.ChickSpecies = &sp
	}
	return egg
}

func (n *NestBox) resolveEggItem(creature domain.Creature) string {
	if n.deps.Eggs == nil {
		n.deps.Logger.Warn("no egg catalog configured, falling back", "creature", creature.Code, logfields.Item(DefaultEggItem))
		return DefaultEggItem
	}
	variants, ok := n.deps.Eggs.EggVariants(creature.Code)
	if !ok || len(variants) == 0 {
		n.deps.Logger.Warn("no egg type specified for creature, falling back", "creature", creature.Code, logfields.Item(DefaultEggItem))
		return DefaultEggItem
	}
	pick := variants[n.deps.Rand.IntN(len(variants))]
	resolved, ok := n.deps.Eggs.ResolveItem(pick.Code)
	if !ok {
		n.deps.Logger.Warn("failed to resolve egg item, falling back", "creature", creature.Code, logfields.Item(pick.Code), "fallback", DefaultEggItem)
		return DefaultEggItem
	}
	return resolved.Code
}

// CountOccupied is the number of non-empty slots.
func (n *NestBox) CountOccupied() int {
	count := 0
	for _, egg := range n.slots {
		if egg != nil && !egg.Item.Empty() {
			count++
		}
	}
	return count
}

// Full reports whether no slot is empty.
func (n *NestBox) Full() bool {
	return n.slots != nil && n.CountOccupied() >= len(n.slots)
}

// Resize reallocates the slot array, copying eggs index for index up to the
// smaller capacity. Eggs beyond the new capacity are dropped with a warning.
func (n *NestBox) Resize(capacity int) error {
	if capacity <= 0 {
		return ErrCapacity
	}
	next := make([]*domain.Egg, capacity)
	dropped := 0
	for i, egg := range n.slots {
		if i < capacity {
			next[i] = egg
			continue
		}
		if egg != nil && !egg.Item.Empty() {
			dropped++
		}
	}
	if dropped > 0 {
		n.deps.Logger.Warn("nest capacity reduced, eggs dropped",
			logfields.NestID(n.id), "block", n.block.Code, "capacity", capacity, "dropped", dropped)
	}
	n.slots = next
	n.markDirty()
	return nil
}

func (n *NestBox) totalDays() float64 {
	if n.deps.Calendar == nil {
		return n.occupiedTimeLast
	}
	return n.deps.Calendar.TotalDays()
}
