// Package schema exposes the embedded world archive JSON Schema and its
// version for runtime use.
package schema

import (
	_ "embed"
	"encoding/json"
	"sync"
)

// Metadata captures the high-level metadata block of the archive schema.
type Metadata struct {
	Source string `json:"source"`
	Status string `json:"status"`
}

type schemaDoc struct {
	Version  int      `json:"version"`
	Metadata Metadata `json:"metadata"`
}

// Archive JSON Schema content.
//
//go:embed archive.schema.json
var archiveSchema []byte

var (
	docOnce sync.Once
	doc     schemaDoc
	docErr  error
)

func load() (schemaDoc, error) {
	docOnce.Do(func() {
		docErr = json.Unmarshal(archiveSchema, &doc)
	})
	return doc, docErr
}

// ArchiveSchema returns a copy of the archive JSON Schema.
func ArchiveSchema() []byte {
	return append([]byte(nil), archiveSchema...)
}

// ArchiveVersion returns the archive document version the schema describes.
func ArchiveVersion() (int, error) {
	d, err := load()
	return d.Version, err
}

// ArchiveMetadata returns the schema metadata block.
func ArchiveMetadata() (Metadata, error) {
	d, err := load()
	return d.Metadata, err
}
