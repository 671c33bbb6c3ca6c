// Package core holds the storage contract shared by every archive blob
// backend. Nest snapshots are the only payload written through it today.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Driver names a blob backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

var (
	// ErrNotFound is returned when a key has no stored object.
	ErrNotFound = errors.New("blob: not found")
	// ErrExists is returned when writing to a key that is already taken.
	// Archives are write-once.
	ErrExists = errors.New("blob: already exists")
)

// WriteOptions carries optional attributes stored alongside an object.
type WriteOptions struct {
	ContentType string
	Labels      map[string]string
}

// Object describes a stored archive object.
type Object struct {
	Key         string            `json:"key"`
	Size        int64             `json:"size_bytes"`
	ContentType string            `json:"content_type,omitempty"`
	Checksum    string            `json:"checksum,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	StoredAt    time.Time         `json:"stored_at"`
}

// Store is the minimal write-once object store used for snapshot archives.
type Store interface {
	Driver() Driver
	Write(ctx context.Context, key string, r io.Reader, opts WriteOptions) (Object, error)
	Open(ctx context.Context, key string) (Object, io.ReadCloser, error)
	Stat(ctx context.Context, key string) (Object, error)
	Remove(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Object, error)
}

// CleanKey normalises a key to slash form and rejects keys that are empty,
// absolute, or climb out of the store root.
func CleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", fmt.Errorf("blob: empty key")
	}
	if strings.HasPrefix(trimmed, "/") {
		return "", fmt.Errorf("blob: absolute key %q", key)
	}
	for _, part := range strings.Split(trimmed, "/") {
		if part == ".." {
			return "", fmt.Errorf("blob: key %q escapes root", key)
		}
	}
	return path.Clean(trimmed), nil
}

// CloneLabels copies a label map; nil stays nil.
func CloneLabels(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
