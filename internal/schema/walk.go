package schema

import (
	"fmt"

	"github.com/goodtune/yacgo/internal/locs"
	"github.com/goodtune/yacgo/internal/plugin"
	"github.com/goodtune/yacgo/internal/yacerr"
)

type walker struct {
	ctx   *Context
	reg   *plugin.Registry
	early []JSONSchemaPlugin
	late  []JSONSchemaPlugin
}

func newWalker(ctx *Context, reg *plugin.Registry) *walker {
	return &walker{
		ctx:   ctx,
		reg:   reg,
		early: sortedPlugins(reg, false),
		late:  sortedPlugins(reg, true),
	}
}

// walk implements §4.8's recursive walk from loc.
func (w *walker) walk(loc string, schema any) (any, error) {
	if b, ok := schema.(bool); ok {
		return b, nil
	}

	node, ok := schema.(map[string]any)
	if !ok {
		return nil, yacerr.NewSchemaSpecsError("at %s: expected an object or boolean schema, got %T", loc, schema)
	}

	result, short, err := w.runPlugins(w.early, loc, node)
	if err != nil {
		return nil, err
	}
	if short {
		return result, nil
	}
	node, ok = result.(map[string]any)
	if !ok {
		return nil, yacerr.NewSchemaSpecsError("at %s: early plugin returned non-object without short-circuiting", loc)
	}

	if err := w.recurseInto(loc, node); err != nil {
		return nil, err
	}

	result, short, err = w.runPlugins(w.late, loc, node)
	if err != nil {
		return nil, err
	}
	if short {
		return result, nil
	}
	return result, nil
}

// runPlugins runs plugins in order, threading the schema through each;
// any plugin returning a boolean or nil short-circuits the subtree.
func (w *walker) runPlugins(ps []JSONSchemaPlugin, loc string, node map[string]any) (any, bool, error) {
	cur := any(node)
	for _, p := range ps {
		next, ok := cur.(map[string]any)
		if !ok {
			return cur, true, nil
		}
		result, err := p.Apply(w.ctx, loc, next)
		if err != nil {
			return nil, true, err
		}
		switch result.(type) {
		case nil, bool:
			return result, true, nil
		default:
			cur = result
		}
	}
	return cur, false, nil
}

// recurseInto walks node's subschema positions in place (§4.1 keyword
// sets, §4.8 step 3).
func (w *walker) recurseInto(loc string, node map[string]any) error {
	for _, key := range locs.Subschemas {
		child, ok := node[key]
		if !ok {
			continue
		}
		out, err := w.walk(loc+"/"+key, child)
		if err != nil {
			return err
		}
		if out == nil {
			delete(node, key)
		} else {
			node[key] = out
		}
	}

	for _, key := range locs.SubschemaObjects {
		childMap, ok := node[key].(map[string]any)
		if !ok {
			continue
		}
		for ck, cv := range childMap {
			out, err := w.walk(loc+"/"+key+"/"+ck, cv)
			if err != nil {
				return err
			}
			if out == nil {
				delete(childMap, ck)
			} else {
				childMap[ck] = out
			}
		}
		if len(childMap) == 0 {
			delete(node, key)
		}
	}

	for _, key := range locs.SubschemaArrays {
		childArr, ok := node[key].([]any)
		if !ok {
			continue
		}
		var newArr []any
		for i, cv := range childArr {
			out, err := w.walk(fmt.Sprintf("%s/%s/%d", loc, key, i), cv)
			if err != nil {
				return err
			}
			if out != nil {
				newArr = append(newArr, out)
			}
		}
		if len(newArr) == 0 {
			delete(node, key)
		} else {
			node[key] = newArr
		}
	}

	return nil
}

// collapse implements §4.8's trivial-schema collapsing after the walk.
func collapse(v any) map[string]any {
	switch t := v.(type) {
	case nil:
		return map[string]any{"not": map[string]any{}}
	case bool:
		if !t {
			return map[string]any{"not": map[string]any{}}
		}
		return map[string]any{}
	case map[string]any:
		return t
	default:
		return map[string]any{}
	}
}
