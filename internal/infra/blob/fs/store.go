// Package fs stores archive blobs as files under a root directory. Each
// object has a JSON sidecar (`<file>.meta`) holding its attributes.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"nestcore/internal/blob/core"
)

const (
	// DefaultRoot is used when no root directory is configured.
	DefaultRoot = "./archives"
	metaSuffix  = ".meta"
)

// Store implements core.Store on the local filesystem. Writes land in a temp
// file first and are renamed into place once the checksum is known.
type Store struct {
	root string
}

// New returns a store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = DefaultRoot
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root reports the directory objects are written under.
func (s *Store) Root() string { return s.root }

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Checksum    string            `json:"checksum"`
	Size        int64             `json:"size"`
	StoredAt    time.Time         `json:"stored_at"`
}

func (m sidecar) object(key string) core.Object {
	return core.Object{
		Key:         key,
		Size:        m.Size,
		ContentType: m.ContentType,
		Checksum:    m.Checksum,
		Labels:      core.CloneLabels(m.Labels),
		StoredAt:    m.StoredAt,
	}
}

func (s *Store) paths(key string) (string, string, string, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return "", "", "", err
	}
	data := filepath.Join(s.root, filepath.FromSlash(k))
	return k, data, data + metaSuffix, nil
}

func (s *Store) Write(_ context.Context, key string, r io.Reader, opts core.WriteOptions) (core.Object, error) {
	k, dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return core.Object{}, err
	}
	if strings.HasSuffix(k, metaSuffix) {
		return core.Object{}, fmt.Errorf("blob: key %q uses reserved suffix", key)
	}
	if _, err := os.Stat(dataPath); err == nil {
		return core.Object{}, fmt.Errorf("%w: %s", core.ErrExists, k)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return core.Object{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return core.Object{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return core.Object{}, fmt.Errorf("write %s: %w", k, err)
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return core.Object{}, err
	}
	meta := sidecar{
		ContentType: opts.ContentType,
		Labels:      core.CloneLabels(opts.Labels),
		Checksum:    hex.EncodeToString(h.Sum(nil)),
		Size:        size,
		StoredAt:    time.Now().UTC(),
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return core.Object{}, err
	}
	if err := os.WriteFile(metaPath, raw, 0o644); err != nil {
		return core.Object{}, err
	}
	return meta.object(k), nil
}

func (s *Store) Open(_ context.Context, key string) (core.Object, io.ReadCloser, error) {
	k, dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return core.Object{}, nil, err
	}
	meta, err := readSidecar(k, metaPath)
	if err != nil {
		return core.Object{}, nil, err
	}
	file, err := os.Open(dataPath)
	if errors.Is(err, iofs.ErrNotExist) {
		return core.Object{}, nil, fmt.Errorf("%w: %s", core.ErrNotFound, k)
	}
	if err != nil {
		return core.Object{}, nil, err
	}
	return meta.object(k), file, nil
}

func (s *Store) Stat(_ context.Context, key string) (core.Object, error) {
	k, _, metaPath, err := s.paths(key)
	if err != nil {
		return core.Object{}, err
	}
	meta, err := readSidecar(k, metaPath)
	if err != nil {
		return core.Object{}, err
	}
	return meta.object(k), nil
}

func (s *Store) Remove(_ context.Context, key string) (bool, error) {
	_, dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(metaPath)
	return true, nil
}

// List walks the root for sidecars and returns the matching objects by key.
func (s *Store) List(_ context.Context, prefix string) ([]core.Object, error) {
	var out []core.Object
	err := filepath.WalkDir(s.root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(p, metaSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		meta, err := readSidecar(key, p)
		if err != nil {
			return err
		}
		out = append(out, meta.object(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func readSidecar(key, path string) (sidecar, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, iofs.ErrNotExist) {
		return sidecar{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	if err != nil {
		return sidecar{}, err
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		return sidecar{}, fmt.Errorf("decode sidecar for %s: %w", key, err)
	}
	return meta, nil
}
