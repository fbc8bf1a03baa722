// Package repo implements the entity repository (C5): a reader/writer
// gated view onto a per-worker git working tree, where every entity is a
// YAML file at a path derived from its type's "file" template. The repo
// backend is itself pluggable (spec.md §4.5, §6.2's "repo_plugin"
// details) — Backend is the contract a backend must satisfy; git.go is
// the one built-in implementation, using go-git/go-git/v5 in place of the
// original's shelled /usr/bin/git subprocess calls
// (app/plugin/repo/git_direct.py, app/lib/git.py).
package repo

import (
	"context"

	"github.com/goodtune/yacgo/internal/model"
)

// Backend is the contract every repo plugin implements (spec.md §4.5
// "Contract"). Handle values returned by Reader/Writer scope every other
// method to the calling goroutine's reader or writer grant; callers MUST
// call Handle.Release when done.
type Backend interface {
	// Reader acquires a shared read grant, pulling first if dirty is false
	// or the working tree is older than the configured dirty-read window.
	Reader(ctx context.Context, user *model.User, details map[string]any, dirty bool) (*Handle, error)

	// Writer acquires the exclusive write grant, pulling first.
	Writer(ctx context.Context, user *model.User, details map[string]any) (*Handle, error)
}

// Handle scopes repository operations to one reader or writer grant.
type Handle interface {
	// Release ends this grant. Safe to call exactly once.
	Release()

	UpdateDetails(details map[string]any)
	GetHash(ctx context.Context) (string, error)
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, name string) (bool, error)
	IsLink(ctx context.Context, name string) (bool, error)
	GetLink(ctx context.Context, name string) (string, error)
	GetSpecs(ctx context.Context, path string) (string, error)
	Get(ctx context.Context, name string) (string, error)

	Write(ctx context.Context, name, contentOld, contentNew, msg string) (*model.Diff, error)
	WriteRename(ctx context.Context, nameOld, nameNew, contentOld, contentNew, msg string) (*model.Diff, error)
	Copy(ctx context.Context, nameDest, nameSrc, msg string) (*model.Diff, error)
	Link(ctx context.Context, nameLink, nameSrc, msg string) (*model.Diff, error)
	Delete(ctx context.Context, name, msg string) error
}
