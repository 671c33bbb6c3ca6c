package nest

import (
	"context"
	"math"

	"nestcore/internal/logfields"
	"nestcore/pkg/domain"
)

const (
	hatchOffsetSpread = 1.0 / 5.0
	hatchMotionSpread = 1.0 / 200.0
	hatchActor        = "world"
)

// hatch spawns one offspring per fertile egg and clears its slot. Eggs whose
// species cannot be resolved or spawned stay put for a later pass. Infertile
// eggs are never touched.
func (n *NestBox) hatch(ctx context.Context) []domain.Creature {
	var born []domain.Creature
	if n.deps.Spawner == nil {
		n.deps.Logger.Warn("nest has no spawner, eggs left in place", logfields.NestID(n.id))
		return born
	}
	center := n.Position()
	for i, egg := range n.slots {
		if egg == nil || egg.Item.Empty() || !egg.Fertile() {
			continue
		}
		species := *egg.ChickSpecies
		if !n.deps.Spawner.KnowsSpecies(species) {
			n.deps.Logger.Warn("cannot hatch unknown species", logfields.NestID(n.id), logfields.Slot(i), logfields.Species(species))
			continue
		}
		offspring := Offspring{
			Species: species,
			Position: domain.Vec3{
				X: center.X + (n.deps.Rand.Float64()-0.5)*hatchOffsetSpread,
				Y: center.Y,
				Z: center.Z + (n.deps.Rand.Float64()-0.5)*hatchOffsetSpread,
			},
			Yaw: n.deps.Rand.Float64() * 2 * math.Pi,
			Motion: domain.Vec3{
				X: (n.deps.Rand.Float64() - 0.5) * hatchMotionSpread,
				Z: (n.deps.Rand.Float64() - 0.5) * hatchMotionSpread,
			},
			Origin:     OriginReproduction,
			Generation: egg.ParentGeneration + 1,
		}
		creature, err := n.deps.Spawner.Spawn(ctx, offspring)
		if err != nil {
			n.deps.Logger.Warn("spawn offspring failed", logfields.NestID(n.id), logfields.Slot(i), logfields.Species(species), logfields.Error(err))
			continue
		}
		n.emitAudit(ctx, hatchActor, domain.AuditHatch, egg.Item.Code, 1)
		n.slots[i] = nil
		n.markDirty()
		born = append(born, creature)
	}
	return born
}
