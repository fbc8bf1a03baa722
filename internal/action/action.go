// Package action implements the action dispatcher (C10): for a given
// hook, select the type's matching actions and invoke each one's plugin.
// Ported from the original implementation's app/lib/action.py.
package action

import (
	"context"

	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/plugin"
	"github.com/goodtune/yacgo/internal/yacerr"
)

// Props is what an action plugin sees alongside its own static details
// (§4.8's schema-props shape, minus the schema-specific fields).
type Props struct {
	Env       map[string]any
	Request   map[string]any
	User      model.User
	Operation model.OperationKind
	Type      *model.Type

	OldName string
	OldData map[string]any

	NewName string
	NewData map[string]any
}

// Plugin is a named action implementation (C4 "action" kind).
type Plugin interface {
	Run(ctx context.Context, details map[string]any, props Props) error
}

// Register adds a named action plugin to reg.
func Register(reg *plugin.Registry, name string, p Plugin) {
	reg.Register(plugin.KindAction, name, p)
}

// Dispatch selects and runs the type's actions hooked for hook (§4.10).
//
// An action is selected when its name is in requested, or when it is
// marked force — except when hook is HookArbitrary, where only
// explicitly requested actions run (an arbitrary request always names
// exactly one action; "force" has no bearing on a user-triggered run).
// Of the selected actions, only those whose Hooks include hook actually
// execute.
func Dispatch(ctx context.Context, reg *plugin.Registry, t *model.Type, hook model.Hook, requested []string, props Props) error {
	if t == nil {
		return nil
	}
	want := map[string]bool{}
	for _, n := range requested {
		want[n] = true
	}

	for _, act := range t.Actions {
		selected := want[act.Name]
		if !selected && act.Force && hook != model.HookArbitrary {
			selected = true
		}
		if !selected {
			continue
		}
		if !hasHook(act.Hooks, hook) {
			continue
		}

		impl, ok := reg.GetModule(plugin.KindAction, act.Plugin)
		if !ok {
			return yacerr.NewPluginError("action %q: unknown plugin %q", act.Name, act.Plugin)
		}
		p, ok := impl.(Plugin)
		if !ok {
			return yacerr.NewPluginError("action %q: plugin %q does not implement action.Plugin", act.Name, act.Plugin)
		}

		if err := p.Run(ctx, act.Details, props); err != nil {
			if e, ok := yacerr.As(err); ok && e.Code >= 400 && e.Code < 500 {
				return err // ActionClientError propagates with its 4xx semantics
			}
			return yacerr.NewActionError("action %q on %q %q: %v", act.Name, props.Type.Name, entityName(props), err)
		}
	}
	return nil
}

func entityName(props Props) string {
	if props.NewName != "" {
		return props.NewName
	}
	return props.OldName
}

func hasHook(hooks []model.Hook, h model.Hook) bool {
	for _, x := range hooks {
		if x == h {
			return true
		}
	}
	return false
}
