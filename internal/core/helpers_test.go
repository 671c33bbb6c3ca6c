package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nestcore/internal/infra/persistence/memory"
	"nestcore/internal/metrics"
	"nestcore/internal/nest"
	"nestcore/internal/world"
	"nestcore/pkg/domain"
)

const (
	henbox    = "henbox"
	eggItem   = "game:egg-chicken-raw"
	chickKind = domain.SpeciesID("game:chicken-baby")
)

func henboxBlock(capacity int) nest.BlockConfig {
	return nest.BlockConfig{Code: henbox, QuantitySlots: capacity}
}

func newTestWorld() *world.World {
	return world.New(world.Options{
		StartDay: 100,
		Seed:     42,
		Now:      func() time.Time { return time.Unix(1700000000, 0) },
		Species: map[string]world.Species{
			"chicken-hen": {EggTypes: []string{eggItem}, Chick: chickKind, IncubationDays: 5},
		},
		Items: map[string]world.Item{eggItem: {PlaceSound: "sounds/egg"}},
	})
}

type recordingAudit struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func (a *recordingAudit) Audit(_ context.Context, rec domain.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.records))
	for i, r := range a.records {
		out[i] = r.Action
	}
	return out
}

type countingRecorder struct {
	metrics.NoopRecorder
	mu        sync.Mutex
	deposited int
	collected int
	hatched   int
	dropped   int
	ticks     int
	loaded    int
	ops       map[string]int
}

func (r *countingRecorder) ObserveOperation(op string, _ time.Duration, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = make(map[string]int)
	}
	r.ops[op]++
}
func (r *countingRecorder) IncEggsDeposited(n int) { r.mu.Lock(); r.deposited += n; r.mu.Unlock() }
func (r *countingRecorder) IncEggsCollected(n int) { r.mu.Lock(); r.collected += n; r.mu.Unlock() }
func (r *countingRecorder) IncChicksHatched(n int) { r.mu.Lock(); r.hatched += n; r.mu.Unlock() }
func (r *countingRecorder) IncEggsDropped(n int)   { r.mu.Lock(); r.dropped += n; r.mu.Unlock() }
func (r *countingRecorder) IncTicks()              { r.mu.Lock(); r.ticks++; r.mu.Unlock() }
func (r *countingRecorder) SetLoadedNests(n int)   { r.mu.Lock(); r.loaded = n; r.mu.Unlock() }

// manualScheduler keeps subscribed callbacks so tests can fire them. A
// cancelled callback stays reachable to model a tick already queued.
type manualScheduler struct {
	mu   sync.Mutex
	subs map[string]*manualSub
}

type manualSub struct {
	fn        func()
	cancelled bool
}

func (m *manualSub) Cancel() error { m.cancelled = true; return nil }

func (s *manualScheduler) Subscribe(name string, _ time.Duration, fn func()) (nest.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[string]*manualSub)
	}
	sub := &manualSub{fn: fn}
	s.subs[name] = sub
	return sub, nil
}

func (s *manualScheduler) fire(name string) {
	s.mu.Lock()
	sub := s.subs[name]
	s.mu.Unlock()
	if sub != nil {
		sub.fn()
	}
}

// flakyStore fails commits while fail is set.
type flakyStore struct {
	*memory.Store
	fail bool
}

func (f *flakyStore) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	if f.fail {
		return domain.Result{}, errors.New("disk full")
	}
	return f.Store.RunInTransaction(ctx, fn)
}

type fixture struct {
	svc     *Service
	world   *world.World
	store   *memory.Store
	audit   *recordingAudit
	metrics *countingRecorder
	sched   *manualScheduler
}

func newFixture(t *testing.T, blocks ...nest.BlockConfig) *fixture {
	t.Helper()
	if len(blocks) == 0 {
		blocks = []nest.BlockConfig{henboxBlock(2)}
	}
	f := &fixture{
		world:   newTestWorld(),
		store:   memory.NewStore(NewDefaultRulesEngine()),
		audit:   &recordingAudit{},
		metrics: &countingRecorder{},
		sched:   &manualScheduler{},
	}
	f.svc = f.newService(f.store, blocks...)
	return f
}

func (f *fixture) newService(store domain.PersistentStore, blocks ...nest.BlockConfig) *Service {
	return NewService(store, f.world.Deps(f.audit, f.sched, nil), WithBlocks(blocks...), WithMetrics(f.metrics))
}

func (f *fixture) place(t *testing.T, pos domain.BlockPos) NestView {
	t.Helper()
	view, err := f.svc.PlaceNestBox(context.Background(), henbox, pos)
	if err != nil {
		t.Fatalf("PlaceNestBox: %v", err)
	}
	return view
}

func (f *fixture) hen(id string) domain.Creature {
	hen := domain.Creature{ID: id, Code: "chicken-hen", Generation: 3}
	f.world.Actors.Add(hen)
	return hen
}

func chick() *domain.SpeciesID {
	sp := chickKind
	return &sp
}

func storedStats(t *testing.T, store domain.PersistentStore, id string) nest.StateStats {
	t.Helper()
	rec, ok := store.GetNestBox(id)
	if !ok {
		t.Fatalf("nest %s not stored", id)
	}
	return nest.InspectState(rec.State)
}
