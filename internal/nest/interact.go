package nest

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"nestcore/internal/logfields"
	"nestcore/pkg/domain"
)

// Handling tells the caller whether default block interaction should still run.
type Handling int

const (
	// HandlingDefault lets subsequent handlers run.
	HandlingDefault Handling = iota
	// HandlingPreventSubsequent claims the click exclusively.
	HandlingPreventSubsequent
)

// InteractResult is the outcome of one interaction start.
type InteractResult struct {
	Success  bool     `json:"success"`
	Handling Handling `json:"handling"`
	// Deposited is the stack moved into the nest, if any.
	Deposited *domain.ItemStack `json:"deposited,omitempty"`
	// Collected lists the per-slot quantities handed to the player.
	Collected []domain.ItemStack `json:"collected,omitempty"`
}

// OnInteract is the player entry point. Denied access changes nothing.
func (n *NestBox) OnInteract(ctx context.Context, player domain.Player, sel domain.BlockSelection) InteractResult {
	if !n.accessAllowed(player, sel.Position) {
		n.deps.Logger.Debug("nest access denied", logfields.NestID(n.id), logfields.Player(player.Name), logfields.Position(sel.Position))
		return InteractResult{}
	}
	return n.interact(ctx, player)
}

// InteractStep runs while the use action is held. It never touches the
// inventory; it only drives the cosmetic animation.
func (n *NestBox) InteractStep(_ context.Context, _ float64, player domain.Player, sel *domain.BlockSelection) bool {
	if sel == nil {
		return false
	}
	if n.deps.Animator != nil {
		n.deps.Animator.TriggerUseAnimation(player)
	}
	return true
}

func (n *NestBox) accessAllowed(player domain.Player, pos domain.BlockPos) bool {
	if n.deps.Access == nil {
		return true
	}
	return n.deps.Access.TryAccess(player, pos, AccessUse)
}

func (n *NestBox) interact(ctx context.Context, player domain.Player) InteractResult {
	if !player.ActiveSlot.Empty() {
		return n.deposit(ctx, player)
	}
	return n.collect(ctx, player)
}

func (n *NestBox) deposit(ctx context.Context, player domain.Player) InteractResult {
	held := player.ActiveSlot.Stack
	if len(n.block.Accepts) > 0 && !slices.Contains(n.block.Accepts, held.Code) {
		return InteractResult{}
	}
	for i, egg := range n.slots {
		if egg != nil && !egg.Item.Empty() {
			continue
		}
		sound := n.placeSound(held)
		moved := player.ActiveSlot.TakeOut(1)
		if moved == nil {
			return InteractResult{}
		}
		n.slots[i] = &domain.Egg{Item: moved}
		n.timeToIncubate = 0
		n.markDirty()
		n.emitAudit(ctx, player.Name, domain.AuditDeposit, moved.Code, moved.Size)
		n.playSound(sound, &player)
		return InteractResult{
			Success:   true,
			Handling:  HandlingPreventSubsequent,
			Deposited: moved.Clone(),
		}
	}
	return InteractResult{}
}

func (n *NestBox) placeSound(stack *domain.ItemStack) string {
	if stack.PlaceSound != "" {
		return stack.PlaceSound
	}
	if n.deps.Eggs != nil {
		if spec, ok := n.deps.Eggs.ResolveItem(stack.Code); ok && spec.PlaceSound != "" {
			return spec.PlaceSound
		}
	}
	return DefaultPlaceSound
}

// collect offers every occupied slot to the player in index order and keeps
// whatever the player could not take.
func (n *NestBox) collect(ctx context.Context, player domain.Player) InteractResult {
	var res InteractResult
	if n.deps.Giver == nil {
		n.deps.Logger.Warn("nest has no giver, nothing collected", logfields.NestID(n.id))
		return res
	}
	for i, egg := range n.slots {
		if egg == nil || egg.Item.Empty() {
			continue
		}
		code := egg.Item.Code
		before := egg.Item.Size
		taken := 0

		given := n.deps.Giver.Give(player, *egg.Item)
		if given.Accepted {
			remaining := max(given.Remainder.Size, 0)
			switch {
			case remaining == 0, remaining == before:
				// An accepted offer that left the size untouched counts as a
				// full transfer.
				taken = before
				n.slots[i] = nil
			case remaining < before:
				taken = before - remaining
				egg.Item.Size = remaining
			default:
				n.deps.Logger.Warn("giver grew the offered stack, slot left unchanged",
					logfields.NestID(n.id), logfields.Slot(i), "before", before, "remaining", remaining)
			}
		} else {
			// Rejection must leave the slot exactly as it was.
			egg.Item.Size = before
		}

		if taken > 0 {
			n.emitAudit(ctx, player.Name, domain.AuditCollect, code, taken)
			res.Collected = append(res.Collected, domain.ItemStack{Code: code, Size: taken})
			res.Success = true
		}
		n.markDirty()
	}
	if res.Success {
		n.playSound(CollectSound, &player)
	}
	return res
}

func (n *NestBox) playSound(sound string, player *domain.Player) {
	if n.deps.Sounds == nil {
		return
	}
	n.deps.Sounds.PlaySound(sound, n.Position(), player)
}

func (n *NestBox) emitAudit(ctx context.Context, actor, action, item string, qty int) {
	if n.deps.Audit == nil {
		return
	}
	rec := domain.AuditRecord{
		ID:         uuid.NewString(),
		Actor:      actor,
		Action:     action,
		ItemCode:   item,
		Quantity:   qty,
		Target:     n.block.Code,
		NestID:     n.id,
		Position:   n.pos,
		OccurredAt: n.deps.Now(),
	}
	if err := n.deps.Audit.Audit(ctx, rec); err != nil {
		n.deps.Logger.Warn("audit emit failed", logfields.NestID(n.id), "action", action, logfields.Error(err))
	}
}
