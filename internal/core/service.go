// Package core hosts the nest Service: the single execution context that owns
// every loaded nest box, serialises ticks and player interactions, and writes
// changed nest state back through a domain.PersistentStore.
package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"nestcore/internal/logfields"
	"nestcore/internal/metrics"
	"nestcore/internal/nest"
	"nestcore/pkg/domain"
)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies wall-clock time for archive stamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// ErrNotFound is returned when no nest matches the requested key.
type ErrNotFound struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrUnknownBlock is returned when placing a block code with no configuration.
var ErrUnknownBlock = errors.New("unknown nest block")

// ErrPersist wraps a failed write of dirty nest state. The in-memory change
// already happened; the nests stay dirty and are retried on the next write.
var ErrPersist = errors.New("persist nests")

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger; nests inherit it unless deps name one.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithTracer installs a tracer around every public operation.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithBlocks registers the nest block configurations the service can place
// and load.
func WithBlocks(blocks ...nest.BlockConfig) Option {
	return func(s *Service) {
		for _, b := range blocks {
			s.blocks[b.Code] = b
		}
	}
}

// Service owns the live nests. All public methods are safe for concurrent use;
// they serialise on one mutex together with scheduled ticks.
type Service struct {
	mu     sync.Mutex
	store  domain.PersistentStore
	deps   nest.Deps
	blocks map[string]nest.BlockConfig
	nests  map[string]*nest.NestBox
	byPos  map[domain.BlockPos]*nest.NestBox

	logger  Logger
	metrics metrics.Recorder
	tracer  Tracer
	clock   Clock
}

// NewService wires deps into a service backed by store. deps.Scheduler and
// deps.Audit are wrapped so scheduled ticks run under the service lock and
// audit records feed the metrics recorder.
func NewService(store domain.PersistentStore, deps nest.Deps, opts ...Option) *Service {
	s := &Service{
		store:   store,
		blocks:  make(map[string]nest.BlockConfig),
		nests:   make(map[string]*nest.NestBox),
		byPos:   make(map[domain.BlockPos]*nest.NestBox),
		logger:  noopLogger{},
		metrics: metrics.NoopRecorder{},
		tracer:  noopTracer{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
	for _, opt := range opts {
		opt(s)
	}
	if deps.Logger == nil {
		deps.Logger = s.logger
	}
	if deps.Scheduler != nil {
		deps.Scheduler = lockedScheduler{svc: s, inner: deps.Scheduler}
	}
	deps.Audit = countingAudit{inner: deps.Audit, metrics: s.metrics}
	s.deps = deps
	return s
}

// Store returns the backing persistent store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Blocks returns the registered block configurations ordered by code.
func (s *Service) Blocks() []nest.BlockConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]nest.BlockConfig, 0, len(s.blocks))
	for _, b := range s.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	s.metrics.ObserveOperation(op, time.Since(start), err == nil)
	if err != nil {
		s.logger.Debug("nest operation failed", logfields.Operation(op), logfields.Error(err))
	}
	return err
}

// sortedLocked returns the loaded nests ordered by ID.
func (s *Service) sortedLocked() []*nest.NestBox {
	out := make([]*nest.NestBox, 0, len(s.nests))
	for _, nb := range s.nests {
		out = append(out, nb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// persistLocked writes every dirty nest in one transaction. Nests stay dirty
// when the commit fails so the next operation retries them.
func (s *Service) persistLocked(ctx context.Context) error {
	var dirty []*nest.NestBox
	for _, nb := range s.sortedLocked() {
		if nb.Dirty() {
			dirty = append(dirty, nb)
		}
	}
	if len(dirty) == 0 {
		return nil
	}
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, nb := range dirty {
			state := nb.ToTree()
			if _, err := tx.UpdateNestBox(nb.ID(), func(rec *domain.NestBoxRecord) error {
				rec.State = state
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("persist nests failed", logfields.Quantity(len(dirty)), logfields.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	for _, nb := range dirty {
		nb.ClearDirty()
		s.metrics.SetIncubationRemaining(nb.ID(), nb.TimeToIncubate())
	}
	return nil
}

func (s *Service) registerLocked(nb *nest.NestBox) {
	s.nests[nb.ID()] = nb
	s.byPos[nb.Pos()] = nb
	s.metrics.SetLoadedNests(len(s.nests))
}

func (s *Service) unregisterLocked(nb *nest.NestBox) {
	delete(s.nests, nb.ID())
	delete(s.byPos, nb.Pos())
	s.metrics.ForgetNest(nb.ID())
	s.metrics.SetLoadedNests(len(s.nests))
}

func (s *Service) lookupLocked(pos domain.BlockPos) (*nest.NestBox, error) {
	nb, ok := s.byPos[pos]
	if !ok {
		return nil, ErrNotFound{Entity: domain.EntityNestBox, ID: pos.String()}
	}
	return nb, nil
}

// nestIndex resolves positions for the block behaviour. Callers hold s.mu.
type nestIndex struct{ s *Service }

func (i nestIndex) NestAt(pos domain.BlockPos) (*nest.NestBox, bool) {
	nb, ok := i.s.byPos[pos]
	return nb, ok
}

// lockedScheduler runs nest ticks under the service lock and persists what
// they changed.
type lockedScheduler struct {
	svc   *Service
	inner nest.Scheduler
}

func (l lockedScheduler) Subscribe(name string, interval time.Duration, fn func()) (nest.Subscription, error) {
	sub := &lockedSubscription{}
	inner, err := l.inner.Subscribe(name, interval, func() {
		l.svc.mu.Lock()
		defer l.svc.mu.Unlock()
		if sub.cancelled.Load() {
			return
		}
		fn()
		l.svc.metrics.IncTicks()
		if err := l.svc.persistLocked(context.Background()); err != nil {
			l.svc.logger.Error("persist after tick failed", logfields.Subject(name), logfields.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	sub.inner = inner
	return sub, nil
}

// lockedSubscription drops ticks already queued when it is cancelled.
type lockedSubscription struct {
	inner     nest.Subscription
	cancelled atomic.Bool
}

func (s *lockedSubscription) Cancel() error {
	s.cancelled.Store(true)
	return s.inner.Cancel()
}

// countingAudit feeds the metrics recorder from the nest audit stream.
type countingAudit struct {
	inner   nest.AuditSink
	metrics metrics.Recorder
}

func (c countingAudit) Audit(ctx context.Context, rec domain.AuditRecord) error {
	switch rec.Action {
	case domain.AuditDeposit:
		c.metrics.IncEggsDeposited(rec.Quantity)
	case domain.AuditCollect:
		c.metrics.IncEggsCollected(rec.Quantity)
	case domain.AuditHatch:
		c.metrics.IncChicksHatched(rec.Quantity)
	}
	if c.inner == nil {
		return nil
	}
	return c.inner.Audit(ctx, rec)
}
