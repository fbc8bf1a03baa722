package schema

import "github.com/goodtune/yacgo/internal/plugin"

// Result is what a json_schema plugin returns at one schema position:
// a replacement schema object, the boolean schemas true/false, or nil
// ("None" in the original) — the last three all short-circuit the
// subtree (§4.8 step 2/4).
type Result = any

// JSONSchemaPlugin mutates (or short-circuits) the schema at one
// recursive-walk position.
type JSONSchemaPlugin interface {
	Order() (late bool, rank int)
	Apply(ctx *Context, loc string, node map[string]any) (Result, error)
}

// Register adds a json_schema plugin to reg under name.
func Register(reg *plugin.Registry, name string, p JSONSchemaPlugin) {
	reg.Register(plugin.KindJSONSchema, name, p)
}

func sortedPlugins(reg *plugin.Registry, late bool) []JSONSchemaPlugin {
	raw := reg.GetModulesSorted(plugin.KindJSONSchema, late)
	out := make([]JSONSchemaPlugin, 0, len(raw))
	for _, r := range raw {
		if p, ok := r.(JSONSchemaPlugin); ok {
			out = append(out, p)
		}
	}
	return out
}
