// Package postgres provides a Postgres-backed persistent store that mirrors the
// in-memory semantics while keeping one normalized row per nest box.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	sqldocs "nestcore/docs/schema/sql"
	"nestcore/internal/infra/persistence/memory"
	"nestcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// DefaultDSN keeps parity with OpenPersistentStore defaults while allowing overrides via env.
	DefaultDSN = "postgres://localhost/nestcore?sslmode=disable"
)

const (
	selectNests = `SELECT id, block_code, x, y, z, state, created_at, updated_at FROM nest_boxes`
	upsertNest  = `INSERT INTO nest_boxes (id, block_code, x, y, z, state, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (id) DO UPDATE SET block_code=EXCLUDED.block_code, state=EXCLUDED.state, updated_at=EXCLUDED.updated_at`
	truncate    = `TRUNCATE TABLE nest_boxes`
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to DefaultDSN).
// It ensures the nest table exists and hydrates the in-memory store from it.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqldocs.Postgres); err != nil {
		return nil, fmt.Errorf("ensure nest_boxes table: %w", err)
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

// RunInTransaction applies the provided function within a transaction, then writes the nest rows if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, selectNests)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select nest_boxes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := memory.Snapshot{NestBoxes: map[string]domain.NestBoxRecord{}}
	for rows.Next() {
		var (
			rec     domain.NestBoxRecord
			payload []byte
			x, y, z int64
			created time.Time
			updated time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.BlockCode, &x, &y, &z, &payload, &created, &updated); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan nest_boxes: %w", err)
		}
		rec.Position = domain.BlockPos{X: int(x), Y: int(y), Z: int(z)}
		rec.CreatedAt = created.UTC()
		rec.UpdatedAt = updated.UTC()
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &rec.State); err != nil {
				return memory.Snapshot{}, fmt.Errorf("decode nest %s state: %w", rec.ID, err)
			}
		}
		snapshot.NestBoxes[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate nest_boxes: %w", err)
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nests := s.ListNestBoxes()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, truncate); err != nil {
		return fmt.Errorf("truncate nest_boxes: %w", err)
	}
	for _, n := range nests {
		state, err := json.Marshal(n.State)
		if err != nil {
			return fmt.Errorf("encode nest %s state: %w", n.ID, err)
		}
		if _, err := tx.ExecContext(ctx, upsertNest,
			n.ID, n.BlockCode, n.Position.X, n.Position.Y, n.Position.Z, string(state), n.CreatedAt, n.UpdatedAt); err != nil {
			return fmt.Errorf("upsert nest %s: %w", n.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
