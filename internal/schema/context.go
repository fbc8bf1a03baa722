// Package schema implements the schema pipeline (C8): template-expansion
// of the spec's root JSON Schema, a recursive plugin walk over its
// subschema positions, trivial-schema collapsing, and Draft-7 validation
// of the candidate entity data. Ported from the original implementation's
// app/lib/schema.py.
package schema

import (
	"github.com/goodtune/yacgo/internal/model"
)

// Props is the schema-props bundle the walk and its plugins see (§4.8).
type Props struct {
	Env       map[string]any
	Request   map[string]any
	User      model.User
	Operation model.OperationKind
	Actions   []string
	Type      *model.Type

	OldName  string
	OldData  map[string]any
	OldPerms []string

	NewName string
	NewData map[string]any
}

// ToEnv renders Props into the flat map the template engine expects,
// including the operation=create "add" permission injection (§4.8): the
// plugin pipeline sees "add" in old.perms so a create-time schema can
// reference the same const/yac_perms machinery a change-time schema does;
// a downstream validator still checks the real add permission against
// new.perms.
func (p Props) ToEnv() map[string]any {
	oldPerms := append([]string{}, p.OldPerms...)
	if p.Operation == model.OpCreate && !contains(oldPerms, "add") {
		oldPerms = append(oldPerms, "add")
	}
	return map[string]any{
		"env":       p.Env,
		"request":   p.Request,
		"user":      p.User,
		"operation": string(p.Operation),
		"actions":   p.Actions,
		"type":      p.Type,
		"old": map[string]any{
			"name":  p.OldName,
			"data":  p.OldData,
			"perms": oldPerms,
		},
		"new": map[string]any{
			"name": p.NewName,
			"data": p.NewData,
		},
	}
}

func contains(l []string, v string) bool {
	for _, x := range l {
		if x == v {
			return true
		}
	}
	return false
}

// Context is threaded through the recursive walk; it carries the
// request-scoped props plus the yac_perms inheritance table (§4.8
// "recursive-inherited").
type Context struct {
	Props        Props
	PermsByLoc   map[string][]string // nearest-ancestor required-perm set, keyed by loc
	FormatChecks map[string]FormatChecker
}

// FormatChecker validates one custom "format" keyword value.
type FormatChecker func(value any) bool

// NearestPerms returns the required-perm set inherited from the nearest
// ancestor yac_perms annotation, defaulting to {add, edt} at the root.
func (c *Context) NearestPerms(loc string) []string {
	best := ""
	var result []string
	for l, perms := range c.PermsByLoc {
		if len(l) > len(best) && (loc == l || hasPrefixSegment(loc, l)) {
			best = l
			result = perms
		}
	}
	if result == nil {
		return []string{"add", "edt"}
	}
	return result
}

func hasPrefixSegment(loc, prefix string) bool {
	if len(loc) < len(prefix) {
		return false
	}
	if loc[:len(prefix)] != prefix {
		return false
	}
	return len(loc) == len(prefix) || loc[len(prefix)] == '/'
}
