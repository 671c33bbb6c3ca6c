// Package memory provides an in-memory implementation of the nest box
// persistence store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"nestcore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// NestBoxRecord aliases domain.NestBoxRecord.
	NestBoxRecord = domain.NestBoxRecord
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	nests map[string]NestBoxRecord
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	NestBoxes map[string]NestBoxRecord `json:"nest_boxes"`
}

func newMemoryState() memoryState {
	return memoryState{nests: make(map[string]NestBoxRecord)}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{NestBoxes: make(map[string]NestBoxRecord, len(state.nests))}
	for k, v := range state.nests {
		s.NestBoxes[k] = cloneNestBox(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.NestBoxes {
		if v.ID == "" {
			v.ID = k
		}
		state.nests[v.ID] = cloneNestBox(v)
	}
	return state
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.nests {
		cloned.nests[k] = cloneNestBox(v)
	}
	return cloned
}

func (s memoryState) findAt(pos domain.BlockPos) (NestBoxRecord, bool) {
	for _, n := range s.nests {
		if n.Position == pos {
			return n, true
		}
	}
	return NestBoxRecord{}, false
}

func cloneNestBox(n NestBoxRecord) NestBoxRecord {
	cp := n
	cp.State = n.State.Clone()
	return cp
}

func sortedNests(m map[string]NestBoxRecord) []NestBoxRecord {
	out := make([]NestBoxRecord, 0, len(m))
	for _, n := range m {
		out = append(out, cloneNestBox(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Store provides an in-memory transactional store for nest boxes.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the clock; intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListNestBoxes returns all nest boxes within the snapshot ordered by ID.
func (v transactionView) ListNestBoxes() []NestBoxRecord {
	return sortedNests(v.state.nests)
}

// FindNestBox retrieves a nest box by ID from the snapshot.
func (v transactionView) FindNestBox(id string) (NestBoxRecord, bool) {
	n, ok := v.state.nests[id]
	if !ok {
		return NestBoxRecord{}, false
	}
	return cloneNestBox(n), true
}

// FindNestBoxAt retrieves the nest box placed at pos.
func (v transactionView) FindNestBoxAt(pos domain.BlockPos) (NestBoxRecord, bool) {
	n, ok := v.state.findAt(pos)
	if !ok {
		return NestBoxRecord{}, false
	}
	return cloneNestBox(n), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindNestBox exposes nest lookup within the transaction scope.
func (tx *transaction) FindNestBox(id string) (NestBoxRecord, bool) {
	return transactionView{state: &tx.state}.FindNestBox(id)
}

// FindNestBoxAt exposes positional lookup within the transaction scope.
func (tx *transaction) FindNestBoxAt(pos domain.BlockPos) (NestBoxRecord, bool) {
	return transactionView{state: &tx.state}.FindNestBoxAt(pos)
}

// CreateNestBox stores a new nest box. Only one nest may occupy a position.
func (tx *transaction) CreateNestBox(n NestBoxRecord) (NestBoxRecord, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if _, exists := tx.state.nests[n.ID]; exists {
		return NestBoxRecord{}, fmt.Errorf("nest box %q already exists", n.ID)
	}
	if other, taken := tx.state.findAt(n.Position); taken {
		return NestBoxRecord{}, fmt.Errorf("position %s already holds nest box %q", n.Position, other.ID)
	}
	if n.State == nil {
		n.State = domain.NewAttributeTree()
	}
	n.CreatedAt = tx.now
	n.UpdatedAt = tx.now
	tx.state.nests[n.ID] = cloneNestBox(n)
	tx.recordChange(Change{Entity: domain.EntityNestBox, Action: domain.ActionCreate, After: cloneNestBox(n)})
	return cloneNestBox(n), nil
}

// UpdateNestBox mutates a nest box using the provided mutator function. The
// ID and position are immutable.
func (tx *transaction) UpdateNestBox(id string, mutator func(*NestBoxRecord) error) (NestBoxRecord, error) {
	current, ok := tx.state.nests[id]
	if !ok {
		return NestBoxRecord{}, fmt.Errorf("nest box %q not found", id)
	}
	before := cloneNestBox(current)
	if err := mutator(&current); err != nil {
		return NestBoxRecord{}, err
	}
	current.ID = id
	current.Position = before.Position
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.nests[id] = cloneNestBox(current)
	tx.recordChange(Change{Entity: domain.EntityNestBox, Action: domain.ActionUpdate, Before: before, After: cloneNestBox(current)})
	return cloneNestBox(current), nil
}

// DeleteNestBox removes a nest box from the transaction state.
func (tx *transaction) DeleteNestBox(id string) error {
	current, ok := tx.state.nests[id]
	if !ok {
		return fmt.Errorf("nest box %q not found", id)
	}
	delete(tx.state.nests, id)
	tx.recordChange(Change{Entity: domain.EntityNestBox, Action: domain.ActionDelete, Before: cloneNestBox(current)})
	return nil
}

// GetNestBox retrieves a nest box by ID from committed state.
func (s *Store) GetNestBox(id string) (NestBoxRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.state.nests[id]
	if !ok {
		return NestBoxRecord{}, false
	}
	return cloneNestBox(n), true
}

// ListNestBoxes returns all nest boxes from committed state ordered by ID.
func (s *Store) ListNestBoxes() []NestBoxRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedNests(s.state.nests)
}
