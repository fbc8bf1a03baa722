// Package perm implements the permission resolver (C7): expansion of
// permission aggregates and evaluation of role/set predicates into an
// effective permission set. Ported from the original implementation's
// app/lib/perms.py.
package perm

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/tmpl"
)

var elementary = []string{
	model.PermRead, model.PermCreate, model.PermRename, model.PermCopy,
	model.PermLink, model.PermEdit, model.PermCleanup, model.PermDelete,
	model.PermRunAction,
}

// implies holds permissions whose grant also implies "see" (§3).
var implies = map[string]bool{
	model.PermCreate: true, model.PermRename: true, model.PermCopy: true,
	model.PermLink: true, model.PermEdit: true, model.PermCleanup: true,
}

// ExpandOne expands one permission token (possibly an aggregate) into its
// elementary permissions.
func ExpandOne(p string) []string {
	switch p {
	case "adm":
		out := append([]string{}, elementary...)
		return append(out, "adm")
	case "all":
		return append([]string{}, elementary...)
	default:
		out := []string{p}
		if implies[p] {
			out = append(out, model.PermRead)
		}
		return out
	}
}

// Expand expands a list of permission strings — each of which may itself be
// a "+"-combination of multiple permission tokens (SPEC_FULL.md §6
// supplement, e.g. "add+edt") — into the deduplicated, sorted set of
// elementary permissions. Idempotent: Expand(Expand(p)) == Expand(p) (§8).
func Expand(perms []string) []string {
	seen := map[string]bool{}
	for _, p := range perms {
		for _, part := range strings.Split(p, "+") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			for _, e := range ExpandOne(part) {
				seen[e] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// RoleProps is the props bundle exposed to role/set predicates (§4.7).
type RoleProps struct {
	Env       map[string]any
	Request   map[string]any
	User      model.User
	Operation model.OperationKind
	Actions   []string
	Type      *model.Type
	OldName   string
	OldData   map[string]any
	NewName   string
}

func (p RoleProps) toMap() map[string]any {
	return map[string]any{
		"env":       p.Env,
		"request":   p.Request,
		"user":      p.User,
		"operation": string(p.Operation),
		"actions":   p.Actions,
		"type":      p.Type,
		"old":       map[string]any{"name": p.OldName, "data": p.OldData},
		"new":       map[string]any{"name": p.NewName},
	}
}

// GetFromRoles derives the effective permission set from the spec's role
// entries and, for "set:" grants, the spec's set predicates. typeName
// selects which role/set grants apply; newName toggles whether a
// "<type>:<name>:<perm>" grant is matched against the old or new entity name.
func GetFromRoles(
	engine *tmpl.Engine,
	roles []map[string]any,
	sets map[string]map[string]any,
	typeName string,
	props RoleProps,
	newName bool,
	logger *slog.Logger,
) []string {
	env := props.toMap()
	targetName := props.OldName
	if newName {
		targetName = props.NewName
	}

	var granted []string

	for _, role := range roles {
		for key, predicateExpr := range role {
			predStr, ok := predicateExpr.(string)
			if !ok {
				continue
			}

			truthy, err := engine.RenderTest(predStr, env)
			if err != nil {
				if logger != nil {
					logger.Error("role predicate template failed", "key", key, "error", err)
				}
				continue
			}
			if !truthy {
				continue
			}

			parts := strings.SplitN(key, ":", 3)
			if len(parts) != 3 {
				continue
			}

			switch parts[0] {
			case "all":
				if parts[1] == typeName {
					granted = append(granted, parts[2])
				}
			case "set":
				// set:<type>:<setname>:<perm> — SplitN(key, ":", 3) only
				// gives us 3 parts, so re-split fully here.
				full := strings.Split(key, ":")
				if len(full) != 4 {
					continue
				}
				setType, setName, setPerm := full[1], full[2], full[3]
				if setType != typeName {
					continue
				}
				setPred, ok := sets[setType][setName]
				if !ok {
					continue
				}
				setPredStr, ok := setPred.(string)
				if !ok {
					continue
				}
				setTruthy, err := engine.RenderTest(setPredStr, env)
				if err != nil {
					if logger != nil {
						logger.Error("set predicate template failed", "set", setName, "error", err)
					}
					continue
				}
				if setTruthy {
					granted = append(granted, setPerm)
				}
			default:
				// <type>:<name>:<perm>
				if parts[0] == typeName && parts[1] == targetName {
					granted = append(granted, parts[2])
				}
			}
		}
	}

	return Expand(granted)
}

// Has reports whether perms contains p.
func Has(perms []string, p string) bool {
	for _, x := range perms {
		if x == p {
			return true
		}
	}
	return false
}

// HasAny reports whether perms contains any of candidates.
func HasAny(perms []string, candidates ...string) bool {
	for _, c := range candidates {
		if Has(perms, c) {
			return true
		}
	}
	return false
}
