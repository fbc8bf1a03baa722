package specs

import (
	"testing"

	"github.com/goodtune/yacgo/internal/model"
)

const validSpec = `
version: v1.0
request:
  headers:
    x-team:
      pattern: "^[a-z]+$"
      default: "eng"
types:
  - name: widget
    title: Widget
    create: true
    change: true
    delete: true
`

func TestParseValidSpec(t *testing.T) {
	s, err := Parse([]byte(validSpec), LoadProps{TypeName: "widget"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Type == nil || s.Type.Name != "widget" {
		t.Fatalf("expected widget type to be selected, got %+v", s.Type)
	}
	if !s.Type.Create || !s.Type.Change || !s.Type.Delete {
		t.Errorf("expected widget to allow create/change/delete, got %+v", s.Type)
	}
}

func TestParseUnknownTypeErrors(t *testing.T) {
	if _, err := Parse([]byte(validSpec), LoadProps{TypeName: "nope"}); err == nil {
		t.Error("expected error selecting an undeclared type")
	}
}

func TestParseIncompatibleVersionErrors(t *testing.T) {
	bad := `
version: v2.0
types: []
`
	if _, err := Parse([]byte(bad), LoadProps{}); err == nil {
		t.Error("expected version incompatibility error")
	}
}

func TestParseEmptyDocumentErrors(t *testing.T) {
	if _, err := Parse([]byte(""), LoadProps{}); err == nil {
		t.Error("expected error for empty document")
	}
}

func TestIsRepoPath(t *testing.T) {
	if !IsRepoPath("./spec.yaml") {
		t.Error("expected leading-dot path to be a repo path")
	}
	if IsRepoPath("/etc/yacgo/spec.yaml") {
		t.Error("expected absolute path to not be a repo path")
	}
}

func TestValidateHeadersMatchesPattern(t *testing.T) {
	reqSpec := model.RequestSpec{
		Headers: map[string]model.RequestHeaderSpec{
			"x-team": {Pattern: "^[a-z]+$", Default: "eng"},
		},
	}

	valid, msg := ValidateHeaders(reqSpec, map[string]any{"x-team": "eng"})
	if !valid || msg != "" {
		t.Errorf("expected valid header, got valid=%v msg=%q", valid, msg)
	}

	valid, msg = ValidateHeaders(reqSpec, map[string]any{"x-team": "NOT-LOWERCASE"})
	if valid || msg == "" {
		t.Errorf("expected invalid header to fail with a message, got valid=%v msg=%q", valid, msg)
	}
}

func TestValidateHeadersAbsentHeaderIsNotInvalid(t *testing.T) {
	reqSpec := model.RequestSpec{
		Headers: map[string]model.RequestHeaderSpec{
			"x-team": {Pattern: "^[a-z]+$", Default: "eng"},
		},
	}
	valid, msg := ValidateHeaders(reqSpec, map[string]any{})
	if !valid || msg != "" {
		t.Errorf("expected an absent header to be treated as valid, got valid=%v msg=%q", valid, msg)
	}
}

func TestValidateHeadersNoPatternAlwaysValid(t *testing.T) {
	reqSpec := model.RequestSpec{
		Headers: map[string]model.RequestHeaderSpec{
			"x-anything": {Default: "x"},
		},
	}
	valid, _ := ValidateHeaders(reqSpec, map[string]any{"x-anything": "whatever"})
	if !valid {
		t.Error("expected header with no pattern to always be valid")
	}
}
