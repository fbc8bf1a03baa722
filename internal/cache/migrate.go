package cache

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// MigrationStatus describes a migration's state.
type MigrationStatus struct {
	Name    string
	Applied bool
}

// Migrator runs database migrations.
type Migrator struct {
	db     Store
	driver string
}

// NewMigrator creates a new Migrator.
func NewMigrator(db Store, driver string) *Migrator {
	return &Migrator{db: db, driver: driver}
}

func (m *Migrator) migrations() (embed.FS, string, error) {
	if m.driver != "sqlite" {
		return embed.FS{}, "", fmt.Errorf("unsupported cache driver: %s", m.driver)
	}
	return sqliteMigrations, "migrations/sqlite", nil
}

func (m *Migrator) upFiles() ([]string, string, embed.FS, error) {
	migFS, dir, err := m.migrations()
	if err != nil {
		return nil, "", embed.FS{}, err
	}
	entries, err := fs.ReadDir(migFS, dir)
	if err != nil {
		return nil, "", embed.FS{}, fmt.Errorf("reading migrations dir: %w", err)
	}
	var upFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)
	return upFiles, dir, migFS, nil
}

// Migrate runs all pending up migrations.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.db.EnsureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("ensuring migrations table: %w", err)
	}

	upFiles, dir, migFS, err := m.upFiles()
	if err != nil {
		return err
	}

	applied, err := m.db.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	appliedSet := make(map[string]bool, len(applied))
	for _, name := range applied {
		appliedSet[name] = true
	}

	for _, f := range upFiles {
		name := strings.TrimSuffix(f, ".up.sql")
		if appliedSet[name] {
			continue
		}
		data, err := fs.ReadFile(migFS, dir+"/"+f)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", f, err)
		}
		if err := m.db.RunMigration(ctx, name, string(data)); err != nil {
			return fmt.Errorf("running migration %s: %w", name, err)
		}
	}
	return nil
}

// Status returns the status of all known migrations.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.db.EnsureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("ensuring migrations table: %w", err)
	}

	upFiles, _, _, err := m.upFiles()
	if err != nil {
		return nil, err
	}

	applied, err := m.db.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	appliedSet := make(map[string]bool, len(applied))
	for _, name := range applied {
		appliedSet[name] = true
	}

	var statuses []MigrationStatus
	for _, f := range upFiles {
		name := strings.TrimSuffix(f, ".up.sql")
		statuses = append(statuses, MigrationStatus{Name: name, Applied: appliedSet[name]})
	}
	return statuses, nil
}
