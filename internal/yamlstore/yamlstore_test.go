package yamlstore

import (
	"strings"
	"testing"
)

func TestUpdateDeletesKey(t *testing.T) {
	in := "a: 1\nb: 2\n"
	out, err := Update(in, map[string]any{"b": Sentinel})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if strings.Contains(out, "b:") {
		t.Fatalf("expected b removed, got %q", out)
	}
	if !strings.Contains(out, "a: 1") {
		t.Fatalf("expected a preserved, got %q", out)
	}
}

func TestUpdateDeleteAbsentKeyConflicts(t *testing.T) {
	in := "a: 1\n"
	_, err := Update(in, map[string]any{"missing": Sentinel})
	if err == nil {
		t.Fatal("expected conflict error deleting an absent key")
	}
	if !IsConflict(err) {
		t.Fatalf("expected IsConflict(err), got %v", err)
	}
}

func TestUpdateMergesNestedMap(t *testing.T) {
	in := "a:\n  x: 1\n  y: 2\n"
	out, err := Update(in, map[string]any{"a": map[string]any{"y": 3}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got := LoadAsDict(out, false)
	a := got["a"].(map[string]any)
	if a["x"] != 1 {
		t.Fatalf("expected x untouched, got %v", a["x"])
	}
	if a["y"] != 3 {
		t.Fatalf("expected y replaced, got %v", a["y"])
	}
}

func TestLoadAsDictIsTotal(t *testing.T) {
	if got := LoadAsDict("not: valid: yaml: [", false); got == nil {
		t.Fatal("expected empty map, got nil")
	}
	if got := LoadAsDict("- a\n- b\n", false); len(got) != 0 {
		t.Fatalf("expected empty map for non-mapping top level, got %v", got)
	}
}

func TestHasStructuralChanges(t *testing.T) {
	y := "a: 1\nb: 2\n"
	if HasStructuralChanges(y, y) {
		t.Fatal("identical docs should not be structural changes")
	}
	sameShape := "a: 1\nb: 9\n"
	if HasStructuralChanges(y, sameShape) {
		t.Fatal("scalar-only edit should not be a structural change")
	}
	addedKey := "a: 1\nb: 2\nc: 3\n"
	if HasStructuralChanges(y, addedKey) {
		t.Fatal("adding a key should not require cln, only dropping one does")
	}
	droppedKey := "a: 1\n"
	if !HasStructuralChanges(y, droppedKey) {
		t.Fatal("dropping a key in a full replace should be a structural change")
	}
}
