// Package sqldocs exposes the nest store DDL bundles directly from the docs tree.
package sqldocs

import _ "embed"

// SQLite contains the snapshot table DDL of the embedded SQLite store.
//
//go:embed sqlite.sql
var SQLite string

// Postgres contains the nest_boxes table DDL of the Postgres store.
//
//go:embed postgres.sql
var Postgres string
