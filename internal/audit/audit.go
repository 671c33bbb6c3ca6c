// Package audit provides sinks for nest audit records: a structured log
// line per record, an in-memory ring of recent records, a NATS JetStream
// publisher and a fan-out that feeds several sinks at once.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"nestcore/internal/logfields"
	"nestcore/internal/nest"
	"nestcore/pkg/domain"
)

// LogSink writes each record as one Info line.
type LogSink struct {
	Logger *slog.Logger
}

// Audit implements nest.AuditSink.
func (s LogSink) Audit(ctx context.Context, rec domain.AuditRecord) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		logfields.Player(rec.Actor),
		logfields.Operation(rec.Action),
		logfields.Item(rec.ItemCode),
		logfields.Quantity(rec.Quantity),
		slog.String("target", rec.Target),
		logfields.NestID(rec.NestID),
		logfields.Position(rec.Position),
	)
	return nil
}

// DefaultRingSize is the capacity of a Ring created with a non-positive size.
const DefaultRingSize = 256

// Ring keeps the most recent records in memory.
type Ring struct {
	mu    sync.Mutex
	buf   []domain.AuditRecord
	next  int
	total int
}

// NewRing returns a ring holding up to size records.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{buf: make([]domain.AuditRecord, size)}
}

// Audit implements nest.AuditSink.
func (r *Ring) Audit(_ context.Context, rec domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	r.total++
	return nil
}

// Recent returns up to n records, newest first. n <= 0 returns all held.
func (r *Ring) Recent(n int) []domain.AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	held := min(r.total, len(r.buf))
	if n <= 0 || n > held {
		n = held
	}
	out := make([]domain.AuditRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, r.buf[(r.next-i+len(r.buf))%len(r.buf)])
	}
	return out
}

// Total is the number of records ever seen.
func (r *Ring) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Fanout delivers every record to each sink in order. A failing sink does
// not stop the others; the errors are joined.
type Fanout []nest.AuditSink

// Audit implements nest.AuditSink.
func (f Fanout) Audit(ctx context.Context, rec domain.AuditRecord) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Audit(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
