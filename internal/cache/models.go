// Package cache implements the optional spec-hash cache (SPEC_FULL.md §2):
// a narrow repurposing of the teacher's SQLite storage layer, keeping only
// its migration/open machinery and reducing its schema to one table — an
// already template-expanded JSON Schema + UI Schema pair per (spec path,
// type), keyed by a content hash of the spec document. Only the migrate
// command opens the store; the request path does not read or write it, so
// every request runs the schema pipeline (C8).
// Grounded on the teacher's internal/database package.
package cache

import "context"

// SpecSchema is one cached, already-built schema pair for a (path, type).
type SpecSchema struct {
	Path       string
	TypeName   string
	Hash       string
	JSONSchema string // serialized JSON
	UISchema   string // serialized JSON
}

// Store is the persistence interface the spec-hash cache relies on.
type Store interface {
	Close() error

	EnsureMigrationsTable(ctx context.Context) error
	AppliedMigrations(ctx context.Context) ([]string, error)
	RunMigration(ctx context.Context, name, sql string) error

	GetSpecSchema(ctx context.Context, path, typeName, hash string) (*SpecSchema, error)
	PutSpecSchema(ctx context.Context, s *SpecSchema) error
}
