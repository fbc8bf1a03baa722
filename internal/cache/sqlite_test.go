package cache

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	store, err := Open("sqlite", filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := NewMigrator(store, "sqlite").Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	if err := NewMigrator(store, "sqlite").Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestMigrationStatusAllApplied(t *testing.T) {
	store := openTestStore(t)
	statuses, err := NewMigrator(store, "sqlite").Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) == 0 {
		t.Fatal("expected at least one migration")
	}
	for _, s := range statuses {
		if !s.Applied {
			t.Errorf("migration %s not applied", s.Name)
		}
	}
}

func TestSpecSchemaRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	miss, err := store.GetSpecSchema(ctx, "spec.yaml", "host", "abc123")
	if err != nil {
		t.Fatalf("GetSpecSchema (miss): %v", err)
	}
	if miss != nil {
		t.Fatal("expected cache miss before any Put")
	}

	want := &SpecSchema{
		Path: "spec.yaml", TypeName: "host", Hash: "abc123",
		JSONSchema: `{"type":"object"}`, UISchema: `{}`,
	}
	if err := store.PutSpecSchema(ctx, want); err != nil {
		t.Fatalf("PutSpecSchema: %v", err)
	}

	got, err := store.GetSpecSchema(ctx, "spec.yaml", "host", "abc123")
	if err != nil {
		t.Fatalf("GetSpecSchema (hit): %v", err)
	}
	if got == nil || got.JSONSchema != want.JSONSchema || got.UISchema != want.UISchema {
		t.Fatalf("GetSpecSchema = %+v, want %+v", got, want)
	}

	// A changed hash is a miss even though (path, type_name) matches —
	// the spec content changed underneath it.
	stale, err := store.GetSpecSchema(ctx, "spec.yaml", "host", "different-hash")
	if err != nil {
		t.Fatalf("GetSpecSchema (stale): %v", err)
	}
	if stale != nil {
		t.Fatal("expected cache miss on hash change")
	}

	// PutSpecSchema again with a new hash replaces the cached entry.
	want2 := &SpecSchema{Path: "spec.yaml", TypeName: "host", Hash: "def456", JSONSchema: `{"type":"string"}`, UISchema: `{}`}
	if err := store.PutSpecSchema(ctx, want2); err != nil {
		t.Fatalf("PutSpecSchema (update): %v", err)
	}
	got2, err := store.GetSpecSchema(ctx, "spec.yaml", "host", "def456")
	if err != nil {
		t.Fatalf("GetSpecSchema (updated hit): %v", err)
	}
	if got2 == nil || got2.JSONSchema != want2.JSONSchema {
		t.Fatalf("GetSpecSchema after update = %+v, want %+v", got2, want2)
	}
}
