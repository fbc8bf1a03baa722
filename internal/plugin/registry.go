// Package plugin implements the plugin registry (C4): discovery, ordering
// and memoization of named processors of each kind.
//
// The original implementation discovers plugins dynamically by globbing
// Python source files under a per-kind directory at process startup
// (app/lib/plugin.py). Go has no equivalent of importing arbitrary files
// at runtime, so this registry keeps the same *shape* — named processors
// grouped by kind, sorted by an order() contract, memoized once — but
// plugins are registered explicitly at startup (schema.RegisterBuiltins
// and validator.RegisterBuiltins, called from server.Run) instead of
// being discovered from the filesystem. The registry itself
// remains the single place that orders and looks them up, exactly as
// get_modules_sorted/get_module/require did for the Python version.
package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Kind names, matching §4.4's plugin kind list.
const (
	KindAction       = "action"
	KindLog          = "log"
	KindJ2Function   = "j2_function"
	KindJ2Filter     = "j2_filter"
	KindJ2Test       = "j2_test"
	KindJSONSchema   = "json_schema"
	KindUISchema     = "ui_schema"
	KindValidator    = "validator"
	KindRepo         = "repo"
	KindSchemaFormat = "schema_format"
)

// Orderable is implemented by plugins of an "ordered" kind
// (json_schema, ui_schema, validator). late indicates post-order /
// nolist-only execution; rank breaks ties within the same late-ness.
type Orderable interface {
	Order() (late bool, rank int)
}

type entry struct {
	name string
	impl any
}

// Registry holds named plugins grouped by kind.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string][]entry

	sortedCache map[string][]any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins:     map[string][]entry{},
		sortedCache: map[string][]any{},
	}
}

// Register adds a named plugin implementation under kind. Safe to call
// from package init().
func (r *Registry) Register(kind, name string, impl any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[kind] = append(r.plugins[kind], entry{name: name, impl: impl})
	delete(r.sortedCache, kind+"/false")
	delete(r.sortedCache, kind+"/true")
}

// Get returns all plugins registered under kind, as a name->impl map.
func (r *Registry) Get(kind string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string]any{}
	for _, e := range r.plugins[kind] {
		out[e.name] = e.impl
	}
	return out
}

// GetModule returns the single named plugin under kind.
func (r *Registry) GetModule(kind, name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.plugins[kind] {
		if e.name == name {
			return e.impl, true
		}
	}
	return nil, false
}

// Require raises an error (by returning it) if any of names is missing
// from kind (§4.4). The validator pipeline does not call it: TestAll and
// TestLs run whichever testers are registered, with no check for missing
// ones.
func (r *Registry) Require(kind string, names []string) error {
	have := r.Get(kind)
	var missing []string
	for _, n := range names {
		if _, ok := have[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("could not load required %s plugin(s): %v", kind, missing)
	}
	return nil
}

// GetModulesSorted returns the kind's Orderable plugins whose Order()'s
// late flag matches, sorted ascending by rank. Plugins that are not
// Orderable are treated as (late=false, rank=0). Results are memoized
// until the next Register call for that kind.
func (r *Registry) GetModulesSorted(kind string, late bool) []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	cacheKey := fmt.Sprintf("%s/%v", kind, late)
	if cached, ok := r.sortedCache[cacheKey]; ok {
		return cached
	}

	type ranked struct {
		impl any
		rank int
	}
	var matched []ranked
	for _, e := range r.plugins[kind] {
		pLate, rank := false, 0
		if o, ok := e.impl.(Orderable); ok {
			pLate, rank = o.Order()
		}
		if pLate == late {
			matched = append(matched, ranked{impl: e.impl, rank: rank})
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].rank < matched[j].rank })

	out := make([]any, len(matched))
	for i, m := range matched {
		out[i] = m.impl
	}
	r.sortedCache[cacheKey] = out
	return out
}
