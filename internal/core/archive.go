package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"nestcore/internal/blob"
	"nestcore/internal/logfields"
	"nestcore/pkg/domain"
)

const (
	// ArchivePrefix is the key prefix of world save archives.
	ArchivePrefix  = "archives/"
	archiveVersion = 1
)

// ArchiveDocument is the JSON layout of a world save archive.
type ArchiveDocument struct {
	Version   int                    `json:"version"`
	CreatedAt time.Time              `json:"created_at"`
	NestBoxes []domain.NestBoxRecord `json:"nest_boxes"`
}

// Archive flushes pending changes and writes every stored nest record, loaded
// or not, as one JSON document under archives/<uuid>.json.
func (s *Service) Archive(ctx context.Context, store blob.Store) (blob.Object, error) {
	var obj blob.Object
	err := s.run(ctx, "archive", func(ctx context.Context) error {
		s.mu.Lock()
		if err := s.persistLocked(ctx); err != nil {
			s.mu.Unlock()
			return err
		}
		doc := ArchiveDocument{
			Version:   archiveVersion,
			CreatedAt: s.clock.Now().UTC(),
			NestBoxes: s.store.ListNestBoxes(),
		}
		s.mu.Unlock()

		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("encode archive: %w", err)
		}
		key := ArchivePrefix + uuid.NewString() + ".json"
		obj, err = store.Write(ctx, key, bytes.NewReader(raw), blob.WriteOptions{
			ContentType: "application/json",
			Labels:      map[string]string{"nests": strconv.Itoa(len(doc.NestBoxes))},
		})
		if err != nil {
			return fmt.Errorf("write archive: %w", err)
		}
		s.logger.Info("world archive written", logfields.Key(obj.Key), logfields.Quantity(len(doc.NestBoxes)))
		return nil
	})
	return obj, err
}

// ReadArchive loads an archive document back from store.
func ReadArchive(ctx context.Context, store blob.Store, key string) (ArchiveDocument, error) {
	_, rc, err := store.Open(ctx, key)
	if err != nil {
		return ArchiveDocument{}, err
	}
	defer func() { _ = rc.Close() }()
	var doc ArchiveDocument
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return ArchiveDocument{}, fmt.Errorf("decode archive %s: %w", key, err)
	}
	if doc.Version != archiveVersion {
		return ArchiveDocument{}, fmt.Errorf("archive %s has unsupported version %d", key, doc.Version)
	}
	return doc, nil
}
