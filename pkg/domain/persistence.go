package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateNestBox(NestBoxRecord) (NestBoxRecord, error)
	UpdateNestBox(id string, mutator func(*NestBoxRecord) error) (NestBoxRecord, error)
	DeleteNestBox(id string) error
	FindNestBox(id string) (NestBoxRecord, bool)
	FindNestBoxAt(pos BlockPos) (NestBoxRecord, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListNestBoxes() []NestBoxRecord
	FindNestBox(id string) (NestBoxRecord, bool)
	FindNestBoxAt(pos BlockPos) (NestBoxRecord, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetNestBox(id string) (NestBoxRecord, bool)
	ListNestBoxes() []NestBoxRecord
}
