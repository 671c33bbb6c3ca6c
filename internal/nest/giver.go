package nest

import "nestcore/pkg/domain"

// LegacyGiver adapts an ItemGiver with the in-place mutating contract into a
// Giver. The caller's stack is never touched and a rejected offer always
// reports the full original size as the remainder.
type LegacyGiver struct {
	Inner ItemGiver
}

// Give implements Giver.
func (g LegacyGiver) Give(player domain.Player, stack domain.ItemStack) GiveResult {
	offered := stack
	if !g.Inner.TryGiveItemstack(player, &offered) {
		return GiveResult{Accepted: false, Remainder: stack}
	}
	if offered.Size < 0 {
		offered.Size = 0
	}
	return GiveResult{Accepted: true, Remainder: offered}
}
