package nest

import (
	"context"

	"nestcore/pkg/domain"
)

// TickResult reports what one incubation tick did.
type TickResult struct {
	// Changed is true when the countdown accrued or eggs hatched.
	Changed bool
	// Accrued is the number of calendar days consumed this tick.
	Accrued float64
	// Hatched lists the creatures spawned this tick.
	Hatched []domain.Creature
}

// Tick advances the shared countdown. Only calendar time that passes while a
// live occupier sits on the nest is consumed; time elapsed while unoccupied
// is discarded because occupiedTimeLast always moves to now. When the
// countdown reaches zero the fertile eggs hatch.
func (n *NestBox) Tick(ctx context.Context) TickResult {
	var res TickResult
	if n.timeToIncubate == 0 {
		return res
	}
	now := n.totalDays()
	if n.occupierAlive() {
		// A clock that runs backwards never adds time to the countdown.
		if elapsed := now - n.occupiedTimeLast; elapsed > 0 {
			before := n.timeToIncubate
			n.timeToIncubate -= elapsed
			if n.timeToIncubate < 0 {
				n.timeToIncubate = 0
			}
			res.Accrued = before - n.timeToIncubate
			res.Changed = true
			n.markDirty()
		}
	}
	n.occupiedTimeLast = now

	if n.timeToIncubate <= 0 {
		n.timeToIncubate = 0
		res.Hatched = n.hatch(ctx)
		res.Changed = true
		n.markDirty()
	}
	return res
}
