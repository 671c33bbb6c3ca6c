package nest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"nestcore/pkg/domain"
)

type fakeCalendar struct{ days float64 }

func (c *fakeCalendar) TotalDays() float64 { return c.days }

type fakeActors struct{ alive map[string]bool }

func (a *fakeActors) Alive(id string) bool { return a.alive[id] }

type fakeAccess struct{ deny bool }

func (a fakeAccess) TryAccess(domain.Player, domain.BlockPos, AccessAction) bool { return !a.deny }

type fakeCatalog struct {
	variants map[string][]ItemSpec
	items    map[string]ItemSpec
}

func (c fakeCatalog) EggVariants(code string) ([]ItemSpec, bool) {
	v, ok := c.variants[code]
	return v, ok
}

func (c fakeCatalog) ResolveItem(code string) (ItemSpec, bool) {
	spec, ok := c.items[code]
	return spec, ok
}

type fakeSpawner struct {
	unknown map[domain.SpeciesID]bool
	failing map[domain.SpeciesID]bool
	spawned []Offspring
}

func (s *fakeSpawner) KnowsSpecies(sp domain.SpeciesID) bool { return !s.unknown[sp] }

func (s *fakeSpawner) Spawn(_ context.Context, o Offspring) (domain.Creature, error) {
	if s.failing[o.Species] {
		return domain.Creature{}, errors.New("spawn refused")
	}
	s.spawned = append(s.spawned, o)
	return domain.Creature{
		ID:         fmt.Sprintf("chick-%d", len(s.spawned)),
		Code:       string(o.Species),
		Generation: o.Generation,
		Position:   o.Position,
		Alive:      true,
		Origin:     o.Origin,
		Motion:     o.Motion,
		Yaw:        o.Yaw,
	}, nil
}

// legacyInventory mimics the in-place mutating give-item contract.
type legacyInventory struct {
	room            int
	zeroOnReject    bool
	acceptUnchanged bool
	calls           int
}

func (l *legacyInventory) TryGiveItemstack(_ domain.Player, stack *domain.ItemStack) bool {
	l.calls++
	if l.acceptUnchanged {
		return true
	}
	if l.room <= 0 {
		if l.zeroOnReject {
			stack.Size = 0
		}
		return false
	}
	take := min(l.room, stack.Size)
	l.room -= take
	stack.Size -= take
	return true
}

type fakeAudit struct {
	records []domain.AuditRecord
	err     error
}

func (a *fakeAudit) Audit(_ context.Context, rec domain.AuditRecord) error {
	a.records = append(a.records, rec)
	return a.err
}

func (a *fakeAudit) actions() []string {
	out := make([]string, len(a.records))
	for i, r := range a.records {
		out[i] = r.Action
	}
	return out
}

type fakeSounds struct{ played []string }

func (s *fakeSounds) PlaySound(sound string, _ domain.Vec3, _ *domain.Player) {
	s.played = append(s.played, sound)
}

type fakePOI struct{ registered map[POI]bool }

func (p *fakePOI) AddPOI(poi POI)    { p.registered[poi] = true }
func (p *fakePOI) RemovePOI(poi POI) { delete(p.registered, poi) }

type fakeSubscription struct {
	cancelled bool
}

func (s *fakeSubscription) Cancel() error {
	s.cancelled = true
	return nil
}

type fakeScheduler struct {
	mu    sync.Mutex
	names []string
	fns   []func()
	subs  []*fakeSubscription
}

func (s *fakeScheduler) Subscribe(name string, interval time.Duration, fn func()) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if interval != TickInterval {
		return nil, fmt.Errorf("unexpected interval %s", interval)
	}
	sub := &fakeSubscription{}
	s.names = append(s.names, name)
	s.fns = append(s.fns, fn)
	s.subs = append(s.subs, sub)
	return sub, nil
}

type fakeAnimator struct{ triggered int }

func (a *fakeAnimator) TriggerUseAnimation(domain.Player) { a.triggered++ }

// midRand returns 0.5 for every float so spawn offsets collapse to zero.
type midRand struct{}

func (midRand) Float64() float64 { return 0.5 }
func (midRand) IntN(int) int     { return 0 }

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}
func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

type fixture struct {
	calendar  *fakeCalendar
	actors    *fakeActors
	spawner   *fakeSpawner
	inventory *legacyInventory
	audit     *fakeAudit
	sounds    *fakeSounds
	poi       *fakePOI
	scheduler *fakeScheduler
	animator  *fakeAnimator
	logger    *recordingLogger
	deps      Deps
}

const (
	testEgg     = "game:egg-chicken-raw"
	testSpecies = domain.SpeciesID("game:chicken-baby")
	testHen     = "hen-1"
)

func newFixture() *fixture {
	f := &fixture{
		calendar:  &fakeCalendar{},
		actors:    &fakeActors{alive: map[string]bool{}},
		spawner:   &fakeSpawner{unknown: map[domain.SpeciesID]bool{}, failing: map[domain.SpeciesID]bool{}},
		inventory: &legacyInventory{room: 100},
		audit:     &fakeAudit{},
		sounds:    &fakeSounds{},
		poi:       &fakePOI{registered: map[POI]bool{}},
		scheduler: &fakeScheduler{},
		animator:  &fakeAnimator{},
		logger:    &recordingLogger{},
	}
	f.deps = Deps{
		Calendar: f.calendar,
		Actors:   f.actors,
		Eggs: fakeCatalog{
			variants: map[string][]ItemSpec{"chicken-hen": {{Code: testEgg}}},
			items:    map[string]ItemSpec{testEgg: {Code: testEgg}},
		},
		Spawner:   f.spawner,
		Giver:     LegacyGiver{Inner: f.inventory},
		Audit:     f.audit,
		Sounds:    f.sounds,
		POI:       f.poi,
		Scheduler: f.scheduler,
		Animator:  f.animator,
		Rand:      midRand{},
		Logger:    f.logger,
		Now:       func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	return f
}

func newTestNest(t *testing.T, capacity int) (*NestBox, *fixture) {
	t.Helper()
	f := newFixture()
	n := New("nest-1", BlockConfig{Code: "henbox", QuantitySlots: capacity}, domain.BlockPos{X: 4, Y: 2, Z: -3}, f.deps)
	if err := n.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return n, f
}

func hen(generation int) domain.Creature {
	return domain.Creature{ID: testHen, Code: "chicken-hen", Generation: generation, Alive: true}
}

func species(s domain.SpeciesID) *domain.SpeciesID { return &s }

func emptyHanded(name string) domain.Player {
	return domain.Player{Name: name, EntityID: name + "-entity", ActiveSlot: &domain.ItemSlot{}}
}

func holding(name, code string, size int) domain.Player {
	p := emptyHanded(name)
	p.ActiveSlot.Stack = &domain.ItemStack{Code: code, Size: size}
	return p
}

func assertInvariants(t *testing.T, n *NestBox) {
	t.Helper()
	if c := n.CountOccupied(); c < 0 || c > n.Capacity() {
		t.Fatalf("occupied %d outside [0,%d]", c, n.Capacity())
	}
	if n.TimeToIncubate() < 0 {
		t.Fatalf("negative timer %v", n.TimeToIncubate())
	}
}
