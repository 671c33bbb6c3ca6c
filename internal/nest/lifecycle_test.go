package nest

import (
	"context"
	"slices"
	"testing"

	"golang.org/x/text/language"
)

func TestLifecycleRegistersAndReleases(t *testing.T) {
	n, f := newTestNest(t, 2)
	if !f.poi.registered[n] {
		t.Fatalf("nest not registered as POI")
	}
	if len(f.scheduler.names) != 1 || f.scheduler.names[0] != "nest-nest-1" {
		t.Fatalf("subscriptions = %v", f.scheduler.names)
	}
	// Initialising twice must not double-subscribe.
	if err := n.Initialize(); err != nil {
		t.Fatal(err)
	}
	if len(f.scheduler.names) != 1 {
		t.Fatalf("re-initialise subscribed again")
	}

	n.OnRemoved()
	if f.poi.registered[n] {
		t.Fatalf("POI not removed")
	}
	if !f.scheduler.subs[0].cancelled {
		t.Fatalf("tick subscription not cancelled")
	}
}

func TestScheduledCallbackTicks(t *testing.T) {
	n, f := newTestNest(t, 1)
	fillAndStart(t, n, species(testSpecies), 1)
	f.actors.alive[testHen] = true
	n.SetOccupier(testHen)
	f.calendar.days = 5
	f.scheduler.fns[0]()
	if len(f.spawner.spawned) != 1 {
		t.Fatalf("scheduled tick did not hatch")
	}
}

func TestBlockInfo(t *testing.T) {
	ctx := context.Background()
	n, f := newTestNest(t, 2)
	if lines := n.BlockInfo(language.English); lines != nil {
		t.Fatalf("empty nest info = %v", lines)
	}
	n.TryAdd(ctx, hen(0), nil, 1)
	if lines := n.BlockInfo(language.English); len(lines) != 1 || lines[0] != "No eggs are fertilized" {
		t.Fatalf("infertile info = %v", lines)
	}

	n.slots[0].ChickSpecies = species(testSpecies)
	n.TryAdd(ctx, hen(0), species(testSpecies), 0)
	n.TryAdd(ctx, hen(0), nil, 3)
	want := []string{"2 fertile eggs", "Incubation time remaining: 3 days", "A broody hen is needed!"}
	if lines := n.BlockInfo(language.English); !slices.Equal(lines, want) {
		t.Fatalf("info = %v, want %v", lines, want)
	}

	f.actors.alive[testHen] = true
	n.SetOccupier(testHen)
	n.SyncClientside()
	n.timeToIncubate = 0.5
	want = []string{"2 fertile eggs", "Incubation time remaining: 12 hours"}
	if lines := n.BlockInfo(language.English); !slices.Equal(lines, want) {
		t.Fatalf("info = %v, want %v", lines, want)
	}
}

func TestHelpOnlyWithEggs(t *testing.T) {
	n, _ := newTestNest(t, 1)
	if n.Help() != nil {
		t.Fatalf("empty nest offered help")
	}
	n.TryAdd(context.Background(), hen(0), nil, 1)
	help := n.Help()
	if len(help) != 1 || help[0].ActionCode != HelpCollectEggs {
		t.Fatalf("help = %+v", help)
	}
}

func TestSlotsAreDetached(t *testing.T) {
	n, _ := newTestNest(t, 1)
	n.TryAdd(context.Background(), hen(0), nil, 1)
	n.Slots()[0].Item.Size = 99
	if n.Slots()[0].Item.Size != 1 {
		t.Fatalf("Slots leaked internal state")
	}
}
