// Package logs implements log collection (C4 "log" kind): for a given
// entity, run each of its type's configured log facilities and concatenate
// their entries. Concrete facilities (file tailing, Elasticsearch queries)
// are external collaborators (spec.md's "Out of scope"); this package only
// defines the plugin contract and the dispatch loop, grounded on the same
// shape as internal/action's Dispatch.
package logs

import (
	"context"

	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/plugin"
	"github.com/goodtune/yacgo/internal/yacerr"
)

// Props is what a log plugin sees alongside its own static details.
type Props struct {
	Env     map[string]any
	Request map[string]any
	User    model.User
	Type    *model.Type
	Name    string
	Data    map[string]any
}

// Plugin is a named log-collection implementation (C4 "log" kind).
type Plugin interface {
	Collect(ctx context.Context, details map[string]any, props Props) ([]model.Log, error)
}

// Register adds a named log plugin to reg.
func Register(reg *plugin.Registry, name string, p Plugin) {
	reg.Register(plugin.KindLog, name, p)
}

// CollectAll runs every log facility configured on t and concatenates their
// entries, in declaration order.
func CollectAll(ctx context.Context, reg *plugin.Registry, t *model.Type, props Props) ([]model.Log, error) {
	if t == nil {
		return nil, nil
	}
	var out []model.Log
	for _, tl := range t.Logs {
		impl, ok := reg.GetModule(plugin.KindLog, tl.Plugin)
		if !ok {
			return nil, yacerr.NewPluginError("log %q: unknown plugin %q", tl.Name, tl.Plugin)
		}
		p, ok := impl.(Plugin)
		if !ok {
			return nil, yacerr.NewPluginError("log %q: plugin %q does not implement logs.Plugin", tl.Name, tl.Plugin)
		}
		entries, err := p.Collect(ctx, tl.Details, props)
		if err != nil {
			return nil, yacerr.NewPluginError("log %q on %q %q: %v", tl.Name, t.Name, props.Name, err)
		}
		out = append(out, entries...)
	}
	return out, nil
}
