package world

import (
	"sync"

	"nestcore/pkg/domain"
)

// DefaultStackLimit caps how many items of one code a player can carry.
const DefaultStackLimit = 64

// Inventories holds one flat item-code to count bag per player. It speaks
// the legacy give-item contract: the offered stack is decremented in place.
type Inventories struct {
	mu    sync.Mutex
	limit int
	bags  map[string]map[string]int
}

// NewInventories returns empty inventories with the given per-code limit.
// A non-positive limit uses DefaultStackLimit.
func NewInventories(limit int) *Inventories {
	if limit <= 0 {
		limit = DefaultStackLimit
	}
	return &Inventories{limit: limit, bags: make(map[string]map[string]int)}
}

// TryGiveItemstack implements nest.ItemGiver. A player with no room for any
// of the stack rejects it, and the stack size is zeroed the way the legacy
// inventory code does.
func (inv *Inventories) TryGiveItemstack(player domain.Player, stack *domain.ItemStack) bool {
	if stack == nil || stack.Size <= 0 {
		return false
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()
	bag := inv.bags[player.Name]
	if bag == nil {
		bag = make(map[string]int)
		inv.bags[player.Name] = bag
	}
	room := inv.limit - bag[stack.Code]
	if room <= 0 {
		stack.Size = 0
		return false
	}
	moved := min(room, stack.Size)
	bag[stack.Code] += moved
	stack.Size -= moved
	return true
}

// Count returns how many items of code the player holds.
func (inv *Inventories) Count(player, code string) int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.bags[player][code]
}

// Contents returns a copy of the player's bag.
func (inv *Inventories) Contents(player string) map[string]int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make(map[string]int, len(inv.bags[player]))
	for code, n := range inv.bags[player] {
		out[code] = n
	}
	return out
}
