package locs

import "testing"

func TestGetAndExtract(t *testing.T) {
	data := map[string]any{
		"a": 1,
		"b": []any{2, 3},
	}
	locsFound := Get(data, func(v any) bool {
		_, ok := v.(int)
		return ok
	})
	if len(locsFound) != 3 {
		t.Fatalf("expected 3 int locations, got %d: %v", len(locsFound), locsFound)
	}
	for _, l := range locsFound {
		if Extract(l, data) == nil {
			t.Errorf("Extract(%q) returned nil", l)
		}
	}
}

func TestExtractMissing(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": 1}}
	if v := Extract("#/a/c", data); v != nil {
		t.Errorf("expected nil for missing key, got %v", v)
	}
	if v := Extract("#/a/b", data); v != 1 {
		t.Errorf("expected 1, got %v", v)
	}
}

func TestToRegexRecursive(t *testing.T) {
	re := ToRegex("#", true)
	if re != `^\#(/.+)*$` {
		t.Fatalf("unexpected regex: %q", re)
	}
}

func TestToRegexProperties(t *testing.T) {
	re := ToRegex("#/properties/name", false)
	if re != `^\#/name$` {
		t.Fatalf("unexpected regex: %q", re)
	}
}

func TestReduceFiltersToDescribedLocations(t *testing.T) {
	dataLocs := []string{"#/name", "#/age", "#/nested/name"}
	out := Reduce("#/properties/name", dataLocs, false)
	if len(out) != 1 || out[0] != "#/name" {
		t.Fatalf("expected exactly #/name, got %v", out)
	}
}

func TestGetMostSpecific(t *testing.T) {
	candidates := []string{"#", "#/a", "#/a/b"}
	got, ok := GetMostSpecific("#/a/b/c", candidates)
	if !ok || got != "#/a/b" {
		t.Fatalf("expected #/a/b, got %q (ok=%v)", got, ok)
	}
}

func TestIsSpecified(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"oneOf": []any{
			map[string]any{"properties": map[string]any{"extra": map[string]any{}}},
		},
	}
	if !IsSpecified("name", schema) {
		t.Error("expected name to be specified")
	}
	if !IsSpecified("extra", schema) {
		t.Error("expected extra to be specified via oneOf")
	}
	if IsSpecified("missing", schema) {
		t.Error("expected missing to be unspecified")
	}
}
