package nest

import (
	"context"
	"errors"

	"nestcore/internal/logfields"
	"nestcore/pkg/domain"
)

// ErrNoBackingState is reported when a nest block has no loaded nest entity.
var ErrNoBackingState = errors.New("nest block has no backing state")

// NestLookup resolves the loaded nest entity at a block position.
type NestLookup interface {
	NestAt(pos domain.BlockPos) (*NestBox, bool)
}

// CollectFromBehavior is the block-level interaction handler attached to nest
// blocks. It gates on access, resolves the backing nest, and delegates.
type CollectFromBehavior struct {
	Nests  NestLookup
	Access AccessChecker
	Logger Logger
}

// OnBlockInteractStart handles a click on a nest block. A missing nest is a
// logged failure and the returned error only classifies it.
func (b CollectFromBehavior) OnBlockInteractStart(ctx context.Context, player domain.Player, sel domain.BlockSelection) (InteractResult, error) {
	logger := b.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	if b.Access != nil && !b.Access.TryAccess(player, sel.Position, AccessUse) {
		return InteractResult{}, nil
	}
	if b.Nests == nil {
		logger.Warn("nest lookup not configured", logfields.Position(sel.Position))
		return InteractResult{}, ErrNoBackingState
	}
	nb, ok := b.Nests.NestAt(sel.Position)
	if !ok || nb == nil {
		logger.Warn("nest block without backing state", logfields.Position(sel.Position), logfields.Player(player.Name))
		return InteractResult{}, ErrNoBackingState
	}
	return nb.interact(ctx, player), nil
}

// OnBlockInteractStep keeps the interaction alive while a target is selected.
func (b CollectFromBehavior) OnBlockInteractStep(ctx context.Context, secondsUsed float64, player domain.Player, sel *domain.BlockSelection) bool {
	if sel == nil {
		return false
	}
	if b.Nests != nil {
		if nb, ok := b.Nests.NestAt(sel.Position); ok && nb != nil {
			return nb.InteractStep(ctx, secondsUsed, player, sel)
		}
	}
	return true
}
