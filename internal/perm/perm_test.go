package perm

import (
	"reflect"
	"testing"

	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/tmpl"
)

func TestExpandOneAdm(t *testing.T) {
	got := ExpandOne("adm")
	if !Has(got, "adm") || !Has(got, model.PermRead) || !Has(got, model.PermDelete) {
		t.Fatalf("expected adm to expand to every elementary permission plus itself, got %v", got)
	}
}

func TestExpandOneImpliesSee(t *testing.T) {
	got := ExpandOne(model.PermEdit)
	if !Has(got, model.PermEdit) || !Has(got, model.PermRead) {
		t.Fatalf("expected edt to imply see, got %v", got)
	}
}

func TestExpandOneElementaryPlain(t *testing.T) {
	got := ExpandOne(model.PermDelete)
	if len(got) != 1 || got[0] != model.PermDelete {
		t.Fatalf("expected del to not imply see, got %v", got)
	}
}

func TestExpandCombinesAndDedupes(t *testing.T) {
	got := Expand([]string{"add+edt", "edt"})
	want := []string{model.PermCreate, model.PermEdit, model.PermRead}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestExpandIsIdempotent(t *testing.T) {
	once := Expand([]string{"adm", "edt"})
	twice := Expand(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("expected Expand to be idempotent: %v != %v", once, twice)
	}
}

func TestHasAndHasAny(t *testing.T) {
	perms := []string{model.PermRead, model.PermEdit}
	if !Has(perms, model.PermRead) {
		t.Error("expected Has to find see")
	}
	if Has(perms, model.PermDelete) {
		t.Error("expected Has to not find del")
	}
	if !HasAny(perms, model.PermDelete, model.PermEdit) {
		t.Error("expected HasAny to find edt among candidates")
	}
	if HasAny(perms, model.PermDelete, model.PermCreate) {
		t.Error("expected HasAny to find nothing")
	}
}

func TestGetFromRolesAllGrant(t *testing.T) {
	engine := tmpl.New(tmpl.BuiltinFunctions(), false)
	roles := []map[string]any{
		{"all:widget:see": "true"},
	}
	got := GetFromRoles(engine, roles, nil, "widget", RoleProps{}, false, nil)
	if !Has(got, model.PermRead) {
		t.Fatalf("expected see permission granted via all: rule, got %v", got)
	}
}

func TestGetFromRolesTypeNameScoped(t *testing.T) {
	engine := tmpl.New(tmpl.BuiltinFunctions(), false)
	roles := []map[string]any{
		{"all:other:see": "true"},
	}
	got := GetFromRoles(engine, roles, nil, "widget", RoleProps{}, false, nil)
	if Has(got, model.PermRead) {
		t.Fatalf("expected no grant for a differently-typed rule, got %v", got)
	}
}

func TestGetFromRolesNamedEntityGrant(t *testing.T) {
	engine := tmpl.New(tmpl.BuiltinFunctions(), false)
	roles := []map[string]any{
		{"widget:widget-1:edt": "true"},
	}
	got := GetFromRoles(engine, roles, nil, "widget", RoleProps{OldName: "widget-1"}, false, nil)
	if !Has(got, model.PermEdit) {
		t.Fatalf("expected edt granted for matching name, got %v", got)
	}

	gotOther := GetFromRoles(engine, roles, nil, "widget", RoleProps{OldName: "widget-2"}, false, nil)
	if Has(gotOther, model.PermEdit) {
		t.Fatalf("expected no grant for a non-matching name, got %v", gotOther)
	}
}

func TestGetFromRolesSetGrant(t *testing.T) {
	engine := tmpl.New(tmpl.BuiltinFunctions(), false)
	roles := []map[string]any{
		{"set:widget:internal:see": "true"},
	}
	sets := map[string]map[string]any{
		"widget": {"internal": "true"},
	}
	got := GetFromRoles(engine, roles, sets, "widget", RoleProps{}, false, nil)
	if !Has(got, model.PermRead) {
		t.Fatalf("expected see granted via set predicate, got %v", got)
	}
}
