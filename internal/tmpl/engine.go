// Package tmpl implements the sandboxed template engine (C3). The original
// implementation embeds Jinja2 (app/lib/j2.py); no Go clone of Jinja2 exists
// in the retrieved corpus, so this engine combines expr-lang/expr (the
// closest ecosystem analog for sandboxed expression evaluation over
// untrusted input) with a thin "{{ ... }}" extraction layer that reproduces
// Jinja2's interpolation surface: recursive templating of nested
// maps/slices, strict vs. debug undefined-name handling, and JSON coercion
// of a template that is exactly one `{{ }}` expression.
package tmpl

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
)

// J2Error is raised for any templating failure; Loc accumulates the data
// location being templated as the error bubbles up through recursive Render
// calls, mirroring the original's error.loc trail.
type J2Error struct {
	Loc string
	Err error
}

func (e *J2Error) Error() string { return fmt.Sprintf("%s: %v", e.Loc, e.Err) }
func (e *J2Error) Unwrap() error { return e.Err }

func newJ2Error(err error) *J2Error { return &J2Error{Loc: "#", Err: err} }

// Engine renders strings and data trees against a set of global
// functions (the j2_functions, such as BuiltinFunctions, passed to New).
type Engine struct {
	Functions map[string]any
	Strict    bool // Strict fails on undefined names; false = "debug" passthrough.
}

// New creates an Engine with the given global functions (j2_functions).
func New(functions map[string]any, strict bool) *Engine {
	if functions == nil {
		functions = map[string]any{}
	}
	return &Engine{Functions: functions, Strict: strict}
}

var fullExprPattern = regexp.MustCompile(`^\{\{.+\}\}$`)
var exprPattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

// Render recursively templates strings inside nested maps/slices; non-string
// leaves (numbers, bools, nil) pass through unchanged.
func (e *Engine) Render(value any, props map[string]any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		return e.renderMap(v, props)
	case []any:
		return e.renderList(v, props)
	case string:
		return e.RenderStr(v, props, true)
	default:
		return value, nil
	}
}

func (e *Engine) renderMap(m map[string]any, props map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		rv, err := e.Render(v, props)
		if err != nil {
			if je, ok := err.(*J2Error); ok {
				je.Loc = je.Loc + "/" + k
			}
			return nil, err
		}
		out[k] = rv
	}
	return out, nil
}

func (e *Engine) renderList(l []any, props map[string]any) ([]any, error) {
	out := make([]any, 0, len(l))
	for i, v := range l {
		rv, err := e.Render(v, props)
		if err != nil {
			if je, ok := err.(*J2Error); ok {
				je.Loc = je.Loc + "/" + fmt.Sprint(i)
			}
			return nil, err
		}
		out = append(out, rv)
	}
	return out, nil
}

// RenderStr templates a single string. If s is exactly one {{ ... }}
// expression and allowNonstr is true, the expression's result is returned
// as-is (coerced through JSON round-trip, so booleans/numbers/maps/slices
// come back as such); otherwise every {{ ... }} occurrence is evaluated and
// stringified in place, and the surrounding literal text is preserved.
func (e *Engine) RenderStr(s string, props map[string]any, allowNonstr bool) (any, error) {
	env := e.env(props)

	if allowNonstr && fullExprPattern.MatchString(strings.TrimSpace(s)) {
		inner := strings.TrimSpace(s)
		inner = strings.TrimPrefix(inner, "{{")
		inner = strings.TrimSuffix(inner, "}}")
		result, err := e.eval(strings.TrimSpace(inner), env)
		if err != nil {
			return nil, newJ2Error(err)
		}
		return jsonRoundTrip(result), nil
	}

	var evalErr error
	out := exprPattern.ReplaceAllStringFunc(s, func(match string) string {
		if evalErr != nil {
			return match
		}
		inner := strings.TrimSpace(match[2 : len(match)-2])
		result, err := e.eval(inner, env)
		if err != nil {
			evalErr = err
			return match
		}
		return stringify(result)
	})
	if evalErr != nil {
		return nil, newJ2Error(evalErr)
	}
	return out, nil
}

// RenderTest evaluates expr as a boolean predicate (render_test).
func (e *Engine) RenderTest(exprStr string, props map[string]any) (bool, error) {
	result, err := e.RenderStr("{{ "+exprStr+" }}", props, true)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return truthy(result), nil
	}
	return b, nil
}

// RenderPrint evaluates expr and formats the result as a string (render_print).
func (e *Engine) RenderPrint(exprStr string, props map[string]any) (string, error) {
	result, err := e.RenderStr("{{ "+exprStr+" }}", props, false)
	if err != nil {
		return "", err
	}
	if s, ok := result.(string); ok {
		return s, nil
	}
	return stringify(result), nil
}

func (e *Engine) env(props map[string]any) map[string]any {
	merged := make(map[string]any, len(props)+len(e.Functions))
	for k, v := range e.Functions {
		merged[k] = v
	}
	for k, v := range props {
		merged[k] = v
	}
	return merged
}

func (e *Engine) eval(exprStr string, env map[string]any) (any, error) {
	opts := []expr.Option{expr.Env(env)}
	if !e.Strict {
		opts = append(opts, expr.AllowUndefinedVariables())
	}
	program, err := expr.Compile(exprStr, opts...)
	if err != nil {
		return nil, err
	}
	return expr.Run(program, env)
}

func jsonRoundTrip(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	case string:
		return t != ""
	case int:
		return t != 0
	case float64:
		return t != 0
	}
	return v != nil
}
