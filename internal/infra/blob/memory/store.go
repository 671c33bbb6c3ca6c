// Package memory keeps archive blobs in process memory. Used by tests and the
// simulator when no durable archive location is configured.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"nestcore/internal/blob/core"
)

type entry struct {
	obj  core.Object
	data []byte
}

// Store implements core.Store over a guarded map.
type Store struct {
	mu   sync.RWMutex
	objs map[string]entry
	now  func() time.Time
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{objs: make(map[string]entry), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Write stores r under key. Existing keys are never overwritten.
func (s *Store) Write(_ context.Context, key string, r io.Reader, opts core.WriteOptions) (core.Object, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return core.Object{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Object{}, fmt.Errorf("read %s: %w", k, err)
	}
	sum := sha256.Sum256(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objs[k]; exists {
		return core.Object{}, fmt.Errorf("%w: %s", core.ErrExists, k)
	}
	obj := core.Object{
		Key:         k,
		Size:        int64(len(data)),
		ContentType: opts.ContentType,
		Checksum:    hex.EncodeToString(sum[:]),
		Labels:      core.CloneLabels(opts.Labels),
		StoredAt:    s.now(),
	}
	s.objs[k] = entry{obj: obj, data: data}
	return copyObject(obj), nil
}

func (s *Store) Open(_ context.Context, key string) (core.Object, io.ReadCloser, error) {
	e, err := s.lookup(key)
	if err != nil {
		return core.Object{}, nil, err
	}
	return copyObject(e.obj), io.NopCloser(bytes.NewReader(bytes.Clone(e.data))), nil
}

func (s *Store) Stat(_ context.Context, key string) (core.Object, error) {
	e, err := s.lookup(key)
	if err != nil {
		return core.Object{}, err
	}
	return copyObject(e.obj), nil
}

func (s *Store) Remove(_ context.Context, key string) (bool, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objs[k]
	delete(s.objs, k)
	return ok, nil
}

// List returns objects whose key starts with prefix, ordered by key.
func (s *Store) List(_ context.Context, prefix string) ([]core.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Object, 0, len(s.objs))
	for k, e := range s.objs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, copyObject(e.obj))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) lookup(key string) (entry, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return entry{}, err
	}
	s.mu.RLock()
	e, ok := s.objs[k]
	s.mu.RUnlock()
	if !ok {
		return entry{}, fmt.Errorf("%w: %s", core.ErrNotFound, k)
	}
	return e, nil
}

func copyObject(o core.Object) core.Object {
	o.Labels = core.CloneLabels(o.Labels)
	return o
}
