package validator

import (
	"regexp"

	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/perm"
	"github.com/goodtune/yacgo/internal/yacerr"
	"github.com/goodtune/yacgo/internal/yamlstore"
)

// operationsTester (rank 0): the entity payload variant matches the
// operation kind; arbitrary actions carry exactly one action name.
type operationsTester struct{}

func (operationsTester) Order() (bool, int) { return false, 0 }

func (operationsTester) Test(op model.Operation, sp Spec, ents Entities) error {
	if op.Kind == model.OpArbitrary {
		if len(op.Actions) != 1 {
			return yacerr.NewRequestError("an arbitrary action request must name exactly one action")
		}
		return nil
	}
	if op.Entity == nil {
		if op.Kind == model.OpCreate || op.Kind == model.OpChange {
			return yacerr.NewRequestError("%s requires an entity payload", op.Kind)
		}
		return nil
	}
	switch op.Kind {
	case model.OpCreate:
		switch op.Entity.Kind {
		case "new", "copy", "link":
			return nil
		}
		return yacerr.NewRequestError("create does not accept a %q payload", op.Entity.Kind)
	case model.OpChange:
		switch op.Entity.Kind {
		case "replace", "update":
			return nil
		}
		return yacerr.NewRequestError("change does not accept a %q payload", op.Entity.Kind)
	default:
		return yacerr.NewRequestError("%s does not accept an entity payload", op.Kind)
	}
}

// typeSpecTester (rank 10): the resolved type exists and permits the
// requested operation kind.
type typeSpecTester struct{}

func (typeSpecTester) Order() (bool, int) { return false, 10 }

func (typeSpecTester) Test(op model.Operation, sp Spec, ents Entities) error {
	if sp.Type == nil {
		return yacerr.NewRequestNotFound("unknown type %q", op.TypeName)
	}
	switch op.Kind {
	case model.OpCreate:
		if !sp.Type.Create {
			return yacerr.NewRequestError("type %q does not allow create", sp.Type.Name)
		}
	case model.OpChange:
		if !sp.Type.Change {
			return yacerr.NewRequestError("type %q does not allow change", sp.Type.Name)
		}
	case model.OpDelete:
		if !sp.Type.Delete {
			return yacerr.NewRequestError("type %q does not allow delete", sp.Type.Name)
		}
	}
	return nil
}

// namesTester (rank 20): names present-or-absent and pattern-matched per
// operation; name_generated rules enforced for create.
type namesTester struct{}

func (namesTester) Order() (bool, int) { return false, 20 }

func (namesTester) Test(op model.Operation, sp Spec, ents Entities) error {
	if sp.Type == nil {
		return nil
	}
	var pattern *regexp.Regexp
	if sp.Type.NamePattern != "" {
		re, err := regexp.Compile(sp.Type.NamePattern)
		if err != nil {
			return yacerr.NewSpecsError("invalid name_pattern for type %q: %v", sp.Type.Name, err)
		}
		pattern = re
	}
	checkPattern := func(name string) error {
		if pattern != nil && !pattern.MatchString(name) {
			return yacerr.NewRequestError("name %q does not match the required pattern for type %q", name, sp.Type.Name)
		}
		return nil
	}

	switch op.Kind {
	case model.OpCreate:
		switch sp.Type.NameGenerated {
		case "enforced":
			if op.Name != "" {
				return yacerr.NewRequestError("type %q generates names; a name must not be supplied", sp.Type.Name)
			}
			return nil
		case "never":
			if op.Name == "" {
				return yacerr.NewRequestError("type %q requires a name", sp.Type.Name)
			}
		default: // "optional"
			if op.Name == "" {
				return nil
			}
		}
		return checkPattern(op.Name)
	case model.OpChange, model.OpDelete, model.OpArbitrary:
		if op.Name == "" {
			return yacerr.NewRequestError("%s requires a name", op.Kind)
		}
		return checkPattern(op.Name)
	}
	return nil
}

// permissionsTester (late, rank 10): per-operation permission checks.
type permissionsTester struct{}

func (permissionsTester) Order() (bool, int) { return true, 10 }

func (permissionsTester) Test(op model.Operation, sp Spec, ents Entities) error {
	switch op.Kind {
	case model.OpRead:
		if !perm.Has(ents.Old.Perms, model.PermRead) {
			return yacerr.NewRequestForbidden("missing %q permission", model.PermRead)
		}
	case model.OpCreate:
		if !perm.Has(ents.New.Perms, model.PermCreate) {
			return yacerr.NewRequestForbidden("missing %q permission", model.PermCreate)
		}
		if op.Entity != nil {
			switch op.Entity.Kind {
			case "copy":
				if !perm.Has(ents.Old.Perms, model.PermCopy) {
					return yacerr.NewRequestForbidden("missing %q permission", model.PermCopy)
				}
			case "link":
				if !perm.Has(ents.Old.Perms, model.PermLink) {
					return yacerr.NewRequestForbidden("missing %q permission", model.PermLink)
				}
			}
		}
	case model.OpChange:
		renaming := op.Name != "" && op.Name != ents.Old.Name
		if renaming {
			if !perm.Has(ents.Old.Perms, model.PermRename) || !perm.Has(ents.New.Perms, model.PermCreate) {
				return yacerr.NewRequestForbidden("missing %q/%q permission for rename", model.PermRename, model.PermCreate)
			}
		}
		if op.Entity != nil {
			dataChanged := entityDataChanged(op.Entity, ents.Old.YAML)
			if dataChanged && !perm.Has(ents.Old.Perms, model.PermEdit) {
				return yacerr.NewRequestForbidden("missing %q permission", model.PermEdit)
			}
			if op.Entity.Kind == "replace" && yamlstore.HasStructuralChanges(ents.Old.YAML, op.Entity.YAMLNew) {
				if !perm.Has(ents.Old.Perms, model.PermCleanup) {
					return yacerr.NewRequestForbidden("missing %q permission for structural change", model.PermCleanup)
				}
			}
		}
	case model.OpDelete:
		if !perm.Has(ents.Old.Perms, model.PermDelete) {
			return yacerr.NewRequestForbidden("missing %q permission", model.PermDelete)
		}
	}
	return nil
}

func entityDataChanged(e *model.EntityPayload, oldYAML string) bool {
	switch e.Kind {
	case "replace":
		return e.YAMLNew != oldYAML
	case "update":
		return len(e.Data) > 0
	}
	return false
}

// actionsTester (late, rank 20): each requested action exists on the
// type, is hooked for the current operation, and the user holds one of
// its required permissions on old.perms — bypassed only for a force
// action outside the arbitrary hook.
type actionsTester struct{}

func (actionsTester) Order() (bool, int) { return true, 20 }

func (actionsTester) Test(op model.Operation, sp Spec, ents Entities) error {
	if len(op.Actions) == 0 || sp.Type == nil {
		return nil
	}
	hook := hookForOp(op.Kind)
	for _, name := range op.Actions {
		act, ok := findAction(sp.Type, name)
		if !ok {
			return yacerr.NewRequestNotFound("unknown action %q on type %q", name, sp.Type.Name)
		}
		if !hasHook(act.Hooks, hook) {
			return yacerr.NewRequestError("action %q is not hooked for %s", name, op.Kind)
		}
		if act.Force && hook != model.HookArbitrary {
			continue
		}
		if !perm.HasAny(ents.Old.Perms, act.Perms...) {
			return yacerr.NewRequestForbidden("missing permission for action %q", name)
		}
	}
	return nil
}

func findAction(t *model.Type, name string) (model.TypeAction, bool) {
	for _, a := range t.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return model.TypeAction{}, false
}

func hookForOp(op model.OperationKind) model.Hook {
	switch op {
	case model.OpCreate:
		return model.HookCreateBefore
	case model.OpChange:
		return model.HookChangeBefore
	case model.OpDelete:
		return model.HookDeleteBefore
	default:
		return model.HookArbitrary
	}
}

func hasHook(hooks []model.Hook, h model.Hook) bool {
	for _, x := range hooks {
		if x == h {
			return true
		}
		// create/change/delete "before" and "after" hooks both count as
		// hooked for that operation kind, since the action runs at both
		// timings of the same logical operation.
		if beforeAfterPair(x, h) {
			return true
		}
	}
	return false
}

func beforeAfterPair(a, b model.Hook) bool {
	pairs := [][2]model.Hook{
		{model.HookCreateBefore, model.HookCreateAfter},
		{model.HookChangeBefore, model.HookChangeAfter},
		{model.HookDeleteBefore, model.HookDeleteAfter},
	}
	for _, p := range pairs {
		if (a == p[0] || a == p[1]) && (b == p[0] || b == p[1]) {
			return true
		}
	}
	return false
}

// conflictsTester (late, rank 30): existence invariants.
type conflictsTester struct{}

func (conflictsTester) Order() (bool, int) { return true, 30 }

func (conflictsTester) Test(op model.Operation, sp Spec, ents Entities) error {
	switch op.Kind {
	case model.OpCreate:
		if ents.New.Exists {
			return yacerr.NewRequestConflict("%q already exists", op.Name)
		}
		if op.Entity != nil && (op.Entity.Kind == "copy" || op.Entity.Kind == "link") {
			if !ents.Old.Exists {
				return yacerr.NewRequestNotFound("source %q does not exist", ents.Old.Name)
			}
			if ents.Old.IsLink {
				return yacerr.NewRequestError("cannot %s a link", op.Entity.Kind)
			}
		}
	case model.OpChange:
		if !ents.Old.Exists {
			return yacerr.NewRequestNotFound("%q does not exist", ents.Old.Name)
		}
		if op.Name != "" && op.Name != ents.Old.Name && ents.New.Exists {
			return yacerr.NewRequestConflict("%q already exists", op.Name)
		}
		if op.Entity != nil && op.Entity.Kind == "replace" {
			if op.Entity.YAMLOld != ents.Old.YAML {
				return yacerr.NewRequestConflict("the data has changed in the meantime")
			}
		}
	case model.OpDelete, model.OpRead:
		if !ents.Old.Exists {
			return yacerr.NewRequestNotFound("%q does not exist", ents.Old.Name)
		}
	}
	return nil
}
