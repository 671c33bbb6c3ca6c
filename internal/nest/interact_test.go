package nest

import (
	"context"
	"errors"
	"testing"

	"nestcore/pkg/domain"
)

func TestCollectSingleEgg(t *testing.T) {
	ctx := context.Background()
	n, f := newTestNest(t, 2)
	n.TryAdd(ctx, hen(0), nil, 1)

	res := n.OnInteract(ctx, emptyHanded("alice"), domain.BlockSelection{Position: n.Pos()})
	if !res.Success {
		t.Fatalf("collect failed")
	}
	if n.CountOccupied() != 0 {
		t.Fatalf("slot not cleared")
	}
	if len(f.audit.records) != 1 {
		t.Fatalf("audit records = %d", len(f.audit.records))
	}
	rec := f.audit.records[0]
	if rec.Action != domain.AuditCollect || rec.Quantity != 1 || rec.Actor != "alice" || rec.ItemCode != testEgg || rec.Position != n.Pos() {
		t.Fatalf("audit record wrong: %+v", rec)
	}
	if len(f.sounds.played) != 1 || f.sounds.played[0] != CollectSound {
		t.Fatalf("sounds = %v", f.sounds.played)
	}
}

func TestCollectAllSlotsPlaysSoundOnce(t *testing.T) {
	ctx := context.Background()
	n, f := newTestNest(t, 3)
	for range 3 {
		n.TryAdd(ctx, hen(0), nil, 1)
	}
	res := n.OnInteract(ctx, emptyHanded("alice"), domain.BlockSelection{Position: n.Pos()})
	if !res.Success || len(res.Collected) != 3 {
		t.Fatalf("collected = %+v", res.Collected)
	}
	if len(f.audit.records) != 3 || len(f.sounds.played) != 1 {
		t.Fatalf("audit=%d sounds=%d", len(f.audit.records), len(f.sounds.played))
	}
}

func TestCollectPartialLeavesRemainder(t *testing.T) {
	ctx := context.Background()
	n, f := newTestNest(t, 1)
	n.slots[0] = &domain.Egg{Item: &domain.ItemStack{Code: testEgg, Size: 3}}
	f.inventory.room = 1

	res := n.OnInteract(ctx, emptyHanded("bob"), domain.BlockSelection{Position: n.Pos()})
	if !res.Success {
		t.Fatalf("partial collect should succeed")
	}
	if got := n.Slots()[0]; got == nil || got.Item.Size != 2 {
		t.Fatalf("remainder = %+v, want size 2", got)
	}
	if f.audit.records[0].Quantity != 1 {
		t.Fatalf("audit qty = %d", f.audit.records[0].Quantity)
	}
}

func TestCollectRejectedRestoresStack(t *testing.T) {
	ctx := context.Background()
	n, f := newTestNest(t, 1)
	n.slots[0] = &domain.Egg{Item: &domain.ItemStack{Code: testEgg, Size: 2}}
	f.inventory.room = 0
	f.inventory.zeroOnReject = true
	n.ClearDirty()

	res := n.OnInteract(ctx, emptyHanded("bob"), domain.BlockSelection{Position: n.Pos()})
	if res.Success {
		t.Fatalf("rejected collect reported success")
	}
	if got := n.Slots()[0]; got == nil || got.Item.Size != 2 {
		t.Fatalf("stack not restored: %+v", got)
	}
	if len(f.audit.records) != 0 || len(f.sounds.played) != 0 {
		t.Fatalf("rejection emitted audit or sound")
	}
	if !n.Dirty() {
		t.Fatalf("slot change notification missing")
	}
}

func TestCollectAcceptedButUnchangedClearsSlot(t *testing.T) {
	ctx := context.Background()
	n, f := newTestNest(t, 1)
	n.slots[0] = &domain.Egg{Item: &domain.ItemStack{Code: testEgg, Size: 2}}
	f.inventory.acceptUnchanged = true

	res := n.OnInteract(ctx, emptyHanded("bob"), domain.BlockSelection{Position: n.Pos()})
	if !res.Success || n.CountOccupied() != 0 {
		t.Fatalf("defensive full transfer not applied")
	}
	if f.audit.records[0].Quantity != 2 {
		t.Fatalf("audit qty = %d, want 2", f.audit.records[0].Quantity)
	}
}

func TestCollectEmptyNestFails(t *testing.T) {
	n, f := newTestNest(t, 2)
	res := n.OnInteract(context.Background(), emptyHanded("bob"), domain.BlockSelection{Position: n.Pos()})
	if res.Success || len(f.sounds.played) != 0 || f.inventory.calls != 0 {
		t.Fatalf("empty nest collect did something")
	}
}

func TestDepositMovesOneUnit(t *testing.T) {
	ctx := context.Background()
	n, f := newTestNest(t, 2)
	n.timeToIncubate = 2
	player := holding("carol", testEgg, 4)

	res := n.OnInteract(ctx, player, domain.BlockSelection{Position: n.Pos()})
	if !res.Success || res.Handling != HandlingPreventSubsequent {
		t.Fatalf("deposit result = %+v", res)
	}
	if player.ActiveSlot.Stack.Size != 3 {
		t.Fatalf("held size = %d, want 3", player.ActiveSlot.Stack.Size)
	}
	if n.CountOccupied() != 1 || n.Slots()[0].Item.Size != 1 || n.Slots()[0].Fertile() {
		t.Fatalf("slot = %+v", n.Slots()[0])
	}
	if n.TimeToIncubate() != 0 {
		t.Fatalf("deposit did not reset timer")
	}
	if len(f.audit.records) != 1 || f.audit.records[0].Action != domain.AuditDeposit || f.audit.records[0].Quantity != 1 {
		t.Fatalf("audit = %+v", f.audit.records)
	}
	if len(f.sounds.played) != 1 || f.sounds.played[0] != DefaultPlaceSound {
		t.Fatalf("sounds = %v", f.sounds.played)
	}
}

func TestDepositUsesItemPlaceSound(t *testing.T) {
	n, f := newTestNest(t, 1)
	player := holding("carol", testEgg, 1)
	player.ActiveSlot.Stack.PlaceSound = "sounds/block/egg"
	n.OnInteract(context.Background(), player, domain.BlockSelection{Position: n.Pos()})
	if len(f.sounds.played) != 1 || f.sounds.played[0] != "sounds/block/egg" {
		t.Fatalf("sounds = %v", f.sounds.played)
	}
	if !player.ActiveSlot.Empty() {
		t.Fatalf("held slot should be drained")
	}
}

func TestDepositIntoFullNestFails(t *testing.T) {
	ctx := context.Background()
	n, f := newTestNest(t, 1)
	n.TryAdd(ctx, hen(0), nil, 1)
	player := holding("carol", testEgg, 2)
	res := n.OnInteract(ctx, player, domain.BlockSelection{Position: n.Pos()})
	if res.Success || player.ActiveSlot.Stack.Size != 2 || len(f.audit.records) != 0 {
		t.Fatalf("full nest accepted deposit")
	}
}

func TestDepositRespectsAcceptList(t *testing.T) {
	f := newFixture()
	n := New("nest-2", BlockConfig{Code: "henbox", QuantitySlots: 2, Accepts: []string{testEgg}}, domain.BlockPos{}, f.deps)
	if err := n.Initialize(); err != nil {
		t.Fatal(err)
	}
	res := n.OnInteract(context.Background(), holding("carol", "game:stone", 1), domain.BlockSelection{})
	if res.Success || n.CountOccupied() != 0 {
		t.Fatalf("filtered item accepted")
	}
}

func TestAccessDeniedChangesNothing(t *testing.T) {
	ctx := context.Background()
	n, f := newTestNest(t, 1)
	n.deps.Access = fakeAccess{deny: true}
	n.TryAdd(ctx, hen(0), nil, 1)
	n.ClearDirty()
	res := n.OnInteract(ctx, emptyHanded("mallory"), domain.BlockSelection{Position: n.Pos()})
	if res.Success || n.Dirty() || n.CountOccupied() != 1 || f.inventory.calls != 0 {
		t.Fatalf("denied interaction mutated state")
	}
}

func TestAuditFailureDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	n, f := newTestNest(t, 1)
	f.audit.err = errors.New("sink down")
	n.TryAdd(ctx, hen(0), nil, 1)
	res := n.OnInteract(ctx, emptyHanded("alice"), domain.BlockSelection{Position: n.Pos()})
	if !res.Success || n.CountOccupied() != 0 {
		t.Fatalf("audit failure blocked collect")
	}
	if len(f.logger.warns) == 0 {
		t.Fatalf("audit failure not logged")
	}
}

func TestInteractStep(t *testing.T) {
	n, f := newTestNest(t, 1)
	if n.InteractStep(context.Background(), 0.2, emptyHanded("a"), nil) {
		t.Fatalf("step without selection should stop")
	}
	sel := &domain.BlockSelection{Position: n.Pos()}
	if !n.InteractStep(context.Background(), 0.2, emptyHanded("a"), sel) {
		t.Fatalf("step with selection should continue")
	}
	if f.animator.triggered != 1 {
		t.Fatalf("animation triggered %d times", f.animator.triggered)
	}
}

type lookup map[domain.BlockPos]*NestBox

func (l lookup) NestAt(pos domain.BlockPos) (*NestBox, bool) {
	nb, ok := l[pos]
	return nb, ok
}

func TestBehaviorMissingBackingStateDegrades(t *testing.T) {
	logger := &recordingLogger{}
	b := CollectFromBehavior{Nests: lookup{}, Logger: logger}
	res, err := b.OnBlockInteractStart(context.Background(), emptyHanded("a"), domain.BlockSelection{Position: domain.BlockPos{X: 1}})
	if !errors.Is(err, ErrNoBackingState) || res.Success {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if len(logger.warns) != 1 {
		t.Fatalf("warns = %v", logger.warns)
	}
}

func TestBehaviorDelegatesToNest(t *testing.T) {
	ctx := context.Background()
	n, _ := newTestNest(t, 1)
	b := CollectFromBehavior{Nests: lookup{n.Pos(): n}, Access: fakeAccess{}}
	res, err := b.OnBlockInteractStart(ctx, holding("a", testEgg, 1), domain.BlockSelection{Position: n.Pos()})
	if err != nil || !res.Success || res.Handling != HandlingPreventSubsequent {
		t.Fatalf("res=%+v err=%v", res, err)
	}

	denied := CollectFromBehavior{Nests: lookup{n.Pos(): n}, Access: fakeAccess{deny: true}}
	res, err = denied.OnBlockInteractStart(ctx, emptyHanded("a"), domain.BlockSelection{Position: n.Pos()})
	if err != nil || res.Success || n.CountOccupied() != 1 {
		t.Fatalf("denied behaviour acted: res=%+v err=%v", res, err)
	}
}

func TestLegacyGiverNormalisesRejection(t *testing.T) {
	inv := &legacyInventory{room: 0, zeroOnReject: true}
	stack := domain.ItemStack{Code: testEgg, Size: 3}
	got := LegacyGiver{Inner: inv}.Give(emptyHanded("a"), stack)
	if got.Accepted || got.Remainder.Size != 3 || stack.Size != 3 {
		t.Fatalf("got %+v, input %+v", got, stack)
	}
	inv.room = 2
	got = LegacyGiver{Inner: inv}.Give(emptyHanded("a"), stack)
	if !got.Accepted || got.Remainder.Size != 1 || stack.Size != 3 {
		t.Fatalf("partial: got %+v, input %+v", got, stack)
	}
}
