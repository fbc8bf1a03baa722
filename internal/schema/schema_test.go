package schema

import (
	"testing"

	"github.com/goodtune/yacgo/internal/plugin"
	"github.com/goodtune/yacgo/internal/tmpl"
)

func TestGetValidatesDataAgainstRootSchema(t *testing.T) {
	engine := tmpl.New(tmpl.BuiltinFunctions(), false)
	reg := plugin.NewRegistry()

	rootSchema := map[string]any{
		"type":     "object",
		"required": []any{"name"},
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
	}

	result, err := Get(engine, reg, rootSchema, Props{}, map[string]any{"name": "widget-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected data to validate, got message %q", result.Message)
	}
}

func TestGetReportsValidationFailure(t *testing.T) {
	engine := tmpl.New(tmpl.BuiltinFunctions(), false)
	reg := plugin.NewRegistry()

	rootSchema := map[string]any{
		"type":     "object",
		"required": []any{"name"},
	}

	result, err := Get(engine, reg, rootSchema, Props{}, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid {
		t.Fatal("expected missing required field to fail validation")
	}
	if result.Message == "" {
		t.Error("expected a validation message")
	}
}

func TestGetRejectsUnknownFormat(t *testing.T) {
	engine := tmpl.New(tmpl.BuiltinFunctions(), false)
	reg := plugin.NewRegistry()

	rootSchema := map[string]any{
		"type":   "string",
		"format": "not-a-real-format",
	}

	if _, err := Get(engine, reg, rootSchema, Props{}, map[string]any{}); err == nil {
		t.Error("expected an error for an unregistered custom format")
	}
}

func TestGetTemplatesSchemaAgainstProps(t *testing.T) {
	engine := tmpl.New(tmpl.BuiltinFunctions(), false)
	reg := plugin.NewRegistry()

	rootSchema := map[string]any{
		"type": "{{ operation == 'create' ? 'object' : 'object' }}",
	}

	result, err := Get(engine, reg, rootSchema, Props{Operation: "create"}, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.JSONSchema["type"] != "object" {
		t.Fatalf("expected templated type to resolve to \"object\", got %v", result.JSONSchema["type"])
	}
}
