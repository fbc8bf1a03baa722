package tmpl

import "testing"

func TestRenderStrFullExpressionReturnsTypedResult(t *testing.T) {
	e := New(BuiltinFunctions(), true)
	out, err := e.Render("{{ 1 + 2 }}", map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, ok := out.(float64)
	if !ok || n != 3 {
		t.Fatalf("expected numeric 3, got %v (%T)", out, out)
	}
}

func TestRenderStrInlineInterpolation(t *testing.T) {
	e := New(BuiltinFunctions(), true)
	out, err := e.Render("hello {{ name }}!", map[string]any{"name": "world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello world!" {
		t.Fatalf("expected interpolated string, got %v", out)
	}
}

func TestRenderMapRecursesIntoNestedValues(t *testing.T) {
	e := New(BuiltinFunctions(), true)
	in := map[string]any{
		"a": "{{ 1 + 1 }}",
		"b": []any{"{{ 2 + 2 }}", "plain"},
	}
	out, err := e.Render(in, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["a"] != float64(2) {
		t.Errorf("expected a=2, got %v", m["a"])
	}
	list := m["b"].([]any)
	if list[0] != float64(4) || list[1] != "plain" {
		t.Errorf("unexpected list contents: %v", list)
	}
}

func TestRenderTest(t *testing.T) {
	e := New(BuiltinFunctions(), true)
	ok, err := e.RenderTest("1 == 1", map[string]any{})
	if err != nil || !ok {
		t.Fatalf("expected true, got %v (err=%v)", ok, err)
	}

	ok, err = e.RenderTest("1 == 2", map[string]any{})
	if err != nil || ok {
		t.Fatalf("expected false, got %v (err=%v)", ok, err)
	}
}

func TestNextIntByRegex(t *testing.T) {
	list := []any{"widget-1", "widget-7", "widget-3", "not-matching"}
	got := NextIntByRegex(list, `widget-(\d+)`)
	if got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
}

func TestNextIntByRegexEmptyListDefaultsToOne(t *testing.T) {
	got := NextIntByRegex(nil, `widget-(\d+)`)
	if got != 1 {
		t.Fatalf("expected 1 for no matches, got %d", got)
	}
}
