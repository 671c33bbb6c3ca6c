package world

import (
	"slices"
	"sync"

	"nestcore/internal/nest"
	"nestcore/pkg/domain"
)

// Claim protects a box of blocks for its owner. Players listed in Trusted
// may use blocks inside it as well.
type Claim struct {
	Owner   string
	Min     domain.BlockPos
	Max     domain.BlockPos
	Trusted []string
}

// Contains reports whether pos lies within the claim, bounds inclusive.
func (c Claim) Contains(pos domain.BlockPos) bool {
	return pos.X >= c.Min.X && pos.X <= c.Max.X &&
		pos.Y >= c.Min.Y && pos.Y <= c.Max.Y &&
		pos.Z >= c.Min.Z && pos.Z <= c.Max.Z
}

func (c Claim) allows(player string) bool {
	return player == c.Owner || slices.Contains(c.Trusted, player)
}

// Claims is the land-claim permission gate.
type Claims struct {
	mu     sync.RWMutex
	claims []Claim
}

// NewClaims returns a gate with no claims; everything is accessible.
func NewClaims() *Claims { return &Claims{} }

// Add registers a claim.
func (c *Claims) Add(claim Claim) {
	c.mu.Lock()
	c.claims = append(c.claims, claim)
	c.mu.Unlock()
}

// TryAccess implements nest.AccessChecker. Every claim covering pos must
// allow the player.
func (c *Claims) TryAccess(player domain.Player, pos domain.BlockPos, _ nest.AccessAction) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, claim := range c.claims {
		if claim.Contains(pos) && !claim.allows(player.Name) {
			return false
		}
	}
	return true
}
