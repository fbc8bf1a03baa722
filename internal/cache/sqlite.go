package cache

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens a SQLite database at the given path.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) EnsureMigrationsTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)
	`)
	return err
}

func (s *SQLiteStore) AppliedMigrations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM schema_migrations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) RunMigration(ctx context.Context, name, sqlStr string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("executing migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetSpecSchema(ctx context.Context, path, typeName, hash string) (*SpecSchema, error) {
	out := &SpecSchema{Path: path, TypeName: typeName, Hash: hash}
	err := s.db.QueryRowContext(ctx,
		`SELECT json_schema, ui_schema FROM spec_cache WHERE path = ? AND type_name = ? AND hash = ?`,
		path, typeName, hash,
	).Scan(&out.JSONSchema, &out.UISchema)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) PutSpecSchema(ctx context.Context, sc *SpecSchema) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spec_cache (path, type_name, hash, json_schema, ui_schema)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path, type_name) DO UPDATE SET
			hash = excluded.hash,
			json_schema = excluded.json_schema,
			ui_schema = excluded.ui_schema,
			cached_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, sc.Path, sc.TypeName, sc.Hash, sc.JSONSchema, sc.UISchema)
	return err
}

var _ Store = (*SQLiteStore)(nil)
