package validator

import (
	"testing"

	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/yacerr"
)

func wantCode(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error with code %d, got nil", code)
	}
	e, ok := yacerr.As(err)
	if !ok {
		t.Fatalf("expected a *yacerr.Error, got %T: %v", err, err)
	}
	if e.Code != code {
		t.Fatalf("expected code %d, got %d (%v)", code, e.Code, err)
	}
}

func TestOperationsTesterArbitraryRequiresExactlyOneAction(t *testing.T) {
	tester := operationsTester{}
	op := model.Operation{Kind: model.OpArbitrary, Actions: []string{"a", "b"}}
	wantCode(t, tester.Test(op, Spec{}, Entities{}), 400)

	op.Actions = []string{"a"}
	if err := tester.Test(op, Spec{}, Entities{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOperationsTesterCreateRequiresMatchingPayload(t *testing.T) {
	tester := operationsTester{}
	op := model.Operation{Kind: model.OpCreate}
	wantCode(t, tester.Test(op, Spec{}, Entities{}), 400)

	op.Entity = &model.EntityPayload{Kind: "replace"}
	wantCode(t, tester.Test(op, Spec{}, Entities{}), 400)

	op.Entity = &model.EntityPayload{Kind: "new"}
	if err := tester.Test(op, Spec{}, Entities{}); err != nil {
		t.Errorf("unexpected error for a valid new-entity create: %v", err)
	}
}

func TestTypeSpecTesterUnknownType(t *testing.T) {
	tester := typeSpecTester{}
	wantCode(t, tester.Test(model.Operation{Kind: model.OpRead}, Spec{Type: nil}, Entities{}), 404)
}

func TestTypeSpecTesterDisallowedOperation(t *testing.T) {
	tester := typeSpecTester{}
	ty := &model.Type{Name: "widget", Create: false}
	wantCode(t, tester.Test(model.Operation{Kind: model.OpCreate}, Spec{Type: ty}, Entities{}), 400)
}

func TestNamesTesterEnforcedGeneratedRejectsSuppliedName(t *testing.T) {
	tester := namesTester{}
	ty := &model.Type{Name: "widget", NameGenerated: "enforced"}
	op := model.Operation{Kind: model.OpCreate, Name: "explicit"}
	wantCode(t, tester.Test(op, Spec{Type: ty}, Entities{}), 400)
}

func TestNamesTesterPatternMismatch(t *testing.T) {
	tester := namesTester{}
	ty := &model.Type{Name: "widget", NamePattern: `^[a-z]+$`, NameGenerated: "never"}
	op := model.Operation{Kind: model.OpCreate, Name: "Bad Name!"}
	wantCode(t, tester.Test(op, Spec{Type: ty}, Entities{}), 400)

	op.Name = "good"
	if err := tester.Test(op, Spec{Type: ty}, Entities{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPermissionsTesterReadRequiresSeePermission(t *testing.T) {
	tester := permissionsTester{}
	op := model.Operation{Kind: model.OpRead}
	wantCode(t, tester.Test(op, Spec{}, Entities{Old: model.Entity{Perms: []string{}}}), 403)

	if err := tester.Test(op, Spec{}, Entities{Old: model.Entity{Perms: []string{model.PermRead}}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPermissionsTesterDeleteRequiresDeletePermission(t *testing.T) {
	tester := permissionsTester{}
	op := model.Operation{Kind: model.OpDelete}
	wantCode(t, tester.Test(op, Spec{}, Entities{Old: model.Entity{Perms: []string{model.PermRead}}}), 403)
}

func TestConflictsTesterCreateExistingNameConflicts(t *testing.T) {
	tester := conflictsTester{}
	op := model.Operation{Kind: model.OpCreate, Name: "widget-1"}
	wantCode(t, tester.Test(op, Spec{}, Entities{New: model.Entity{Exists: true}}), 409)
}

func TestConflictsTesterChangeMissingEntityNotFound(t *testing.T) {
	tester := conflictsTester{}
	op := model.Operation{Kind: model.OpChange, Name: "widget-1"}
	wantCode(t, tester.Test(op, Spec{}, Entities{Old: model.Entity{Exists: false}}), 404)
}

func TestConflictsTesterReplaceStaleYAMLConflicts(t *testing.T) {
	tester := conflictsTester{}
	op := model.Operation{
		Kind: model.OpChange,
		Entity: &model.EntityPayload{
			Kind:    "replace",
			YAMLOld: "stale: true\n",
			YAMLNew: "stale: false\n",
		},
	}
	ents := Entities{Old: model.Entity{Exists: true, YAML: "stale: maybe\n"}}
	wantCode(t, tester.Test(op, Spec{}, ents), 409)
}

func TestActionsTesterUnknownActionNotFound(t *testing.T) {
	tester := actionsTester{}
	ty := &model.Type{Name: "widget"}
	op := model.Operation{Kind: model.OpChange, Actions: []string{"missing"}}
	wantCode(t, tester.Test(op, Spec{Type: ty}, Entities{}), 404)
}

func TestActionsTesterForcedActionBypassesPermissionCheck(t *testing.T) {
	tester := actionsTester{}
	ty := &model.Type{
		Name: "widget",
		Actions: []model.TypeAction{
			{Name: "notify", Force: true, Hooks: []model.Hook{model.HookChangeBefore}, Perms: []string{"nope"}},
		},
	}
	op := model.Operation{Kind: model.OpChange, Actions: []string{"notify"}}
	if err := tester.Test(op, Spec{Type: ty}, Entities{Old: model.Entity{Perms: nil}}); err != nil {
		t.Errorf("expected forced action to bypass permission check, got %v", err)
	}
}

func TestActionsTesterMissingPermissionForbidden(t *testing.T) {
	tester := actionsTester{}
	ty := &model.Type{
		Name: "widget",
		Actions: []model.TypeAction{
			{Name: "notify", Hooks: []model.Hook{model.HookChangeBefore}, Perms: []string{"act"}},
		},
	}
	op := model.Operation{Kind: model.OpChange, Actions: []string{"notify"}}
	wantCode(t, tester.Test(op, Spec{Type: ty}, Entities{Old: model.Entity{Perms: nil}}), 403)
}
