// Package specs implements the specification loader (C6): reads an
// operator-authored spec document (on disk or inside the entity
// repository), template-expands it in two passes, selects the active
// type, and validates the result into the typed model.Specs. Ported from
// the original implementation's app/lib/specs.py.
package specs

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/tmpl"
	"github.com/goodtune/yacgo/internal/yamlstore"
)

// ProductVersion is the running build's compatibility line; a spec's
// declared version must match "v<ProductVersion>.<n>[rc<m>]" (§4.6).
const ProductVersion = "1"

var versionPattern = regexp.MustCompile(`^v` + ProductVersion + `\.[0-9]+(rc[0-9]+)?$`)

// Error reports a specification loading/validation failure (SpecsError).
type Error struct{ msg string }

func (e *Error) Error() string { return e.msg }

func errf(format string, args ...any) *Error { return &Error{msg: fmt.Sprintf(format, args...)} }

// RepoReader is the narrow slice of internal/repo.Handle that the loader
// needs to resolve an in-repo spec path, avoiding an import cycle between
// specs and repo (the repo package itself consumes Specs.Type.Details).
type RepoReader interface {
	GetSpecs(ctx context.Context, path string) (string, error)
}

// LoadProps carries the request-scoped inputs used by the second
// template-expansion pass (types against {env, request, user}) and the
// operation's type_name selector.
type LoadProps struct {
	Env      map[string]any
	Headers  map[string]any
	User     model.User
	TypeName string
}

// Engine is the template engine used to expand request/types: a non-strict
// engine with the builtin j2_functions. Parse uses it directly and does not
// handle a nil Engine.
var Engine = tmpl.New(tmpl.BuiltinFunctions(), false)

// Read loads a spec from path: a leading "." means path is resolved inside
// the entity repository via repo.GetSpecs; otherwise it is an on-disk file
// read directly by the caller (callers without filesystem access should use
// os.ReadFile themselves and call Parse).
func Read(ctx context.Context, repo RepoReader, path string) ([]byte, error) {
	if !strings.HasPrefix(path, ".") {
		return nil, errf("specs.Read: %q is not a repo-relative path (must start with '.')", path)
	}
	raw, err := repo.GetSpecs(ctx, path)
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

// IsRepoPath reports whether path should be resolved inside the entity
// repository rather than from the local filesystem (§4.6).
func IsRepoPath(path string) bool {
	return strings.HasPrefix(path, ".")
}

// rawSpec mirrors the on-disk YAML shape prior to typed validation.
type rawSpec struct {
	Version string           `yaml:"version"`
	Request rawRequest       `yaml:"request"`
	Types   []map[string]any `yaml:"types"`
	Roles   []map[string]any `yaml:"roles"`
	Sets    map[string]map[string]any `yaml:"sets"`
	Schema  map[string]any   `yaml:"schema"`
}

type rawRequest struct {
	Headers map[string]rawHeader `yaml:"headers"`
}

type rawHeader struct {
	Pattern string `yaml:"pattern"`
	Default string `yaml:"default"`
}

// Parse parses, template-expands and validates a spec document per §4.6:
//  1. lenient YAML parse
//  2. assert version compatibility
//  3. template-expand `request` against request-free props ({env, user})
//  4. validate the request shape
//  5. template-expand `types` against {env, request: headers, user}
//  6. select the type whose name equals props.TypeName (if set)
func Parse(raw []byte, props LoadProps) (*model.Specs, error) {
	doc := yamlstore.LoadAsDict(string(raw), false)
	if len(doc) == 0 {
		return nil, errf("empty or invalid specification document")
	}

	var rs rawSpec
	if err := remarshal(doc, &rs); err != nil {
		return nil, errf("invalid specification shape: %v", err)
	}

	if !versionPattern.MatchString(rs.Version) {
		return nil, errf("specification version %q is not compatible with product version %q", rs.Version, ProductVersion)
	}

	env := props.Env
	if env == nil {
		env = map[string]any{}
	}

	requestProps := map[string]any{"env": env, "user": props.User}
	expandedRequest, err := Engine.Render(headersToAny(rs.Request.Headers), requestProps)
	if err != nil {
		return nil, errf("templating request.headers: %v", err)
	}
	headerMap, _ := expandedRequest.(map[string]any)
	reqSpec, err := buildRequestSpec(headerMap)
	if err != nil {
		return nil, err
	}

	headers := props.Headers
	if headers == nil {
		headers = map[string]any{}
	}
	typeProps := map[string]any{"env": env, "request": map[string]any{"headers": headers}, "user": props.User}

	var expandedTypesAny []any
	for _, t := range rs.Types {
		expanded, err := Engine.Render(t, typeProps)
		if err != nil {
			return nil, errf("templating types: %v", err)
		}
		expandedTypesAny = append(expandedTypesAny, expanded)
	}

	types, err := buildTypes(expandedTypesAny)
	if err != nil {
		return nil, err
	}

	s := &model.Specs{
		Version:    rs.Version,
		Request:    reqSpec,
		Types:      types,
		Roles:      rs.Roles,
		Sets:       rs.Sets,
		JSONSchema: rs.Schema,
	}

	if props.TypeName != "" {
		t, ok := s.FindType(props.TypeName)
		if !ok {
			return nil, errf("no such type %q", props.TypeName)
		}
		s.Type = t
	}

	return s, nil
}

// ValidateHeaders reports whether the given request headers conform to the
// spec's declared per-header patterns (§6.2, §4.9's ValidationResult.Request).
// A header absent from the request is not itself invalid; its declared
// default is not substituted, here or by any caller.
func ValidateHeaders(reqSpec model.RequestSpec, headers map[string]any) (bool, string) {
	for name, h := range reqSpec.Headers {
		if h.Pattern == "" {
			continue
		}
		v, ok := headers[name]
		if !ok {
			continue
		}
		s, _ := v.(string)
		re, err := regexp.Compile(h.Pattern)
		if err != nil {
			return false, fmt.Sprintf("header %q declares an invalid pattern", name)
		}
		if !re.MatchString(s) {
			return false, fmt.Sprintf("header %q does not match its required pattern", name)
		}
	}
	return true, ""
}

func headersToAny(h map[string]rawHeader) map[string]any {
	out := map[string]any{}
	for k, v := range h {
		out[k] = map[string]any{"pattern": v.Pattern, "default": v.Default}
	}
	return out
}

func buildRequestSpec(headers map[string]any) (model.RequestSpec, error) {
	out := model.RequestSpec{Headers: map[string]model.RequestHeaderSpec{}}
	for name, v := range headers {
		m, ok := v.(map[string]any)
		if !ok {
			return out, errf("request.headers.%s: expected a mapping", name)
		}
		pattern, _ := m["pattern"].(string)
		def, _ := m["default"].(string)
		out.Headers[name] = model.RequestHeaderSpec{Pattern: pattern, Default: def}
	}
	return out, nil
}

func buildTypes(raw []any) ([]model.Type, error) {
	var out []model.Type
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		t := model.Type{
			Name:          str(m["name"]),
			Title:         str(m["title"]),
			NamePattern:   str(m["name_pattern"]),
			NameExample:   str(m["name_example"]),
			NameGenerated: orDefault(str(m["name_generated"]), "never"),
			NameGenerator: orDefault(str(m["name_generator"]), "{{ uuid() }}"),
			Description:   str(m["description"]),
			Create:        boolOf(m["create"]),
			Change:        boolOf(m["change"]),
			Delete:        boolOf(m["delete"]),
			Details:       mapOf(m["details"]),
		}
		for _, rawOpt := range sliceOf(m["options"]) {
			om, ok := rawOpt.(map[string]any)
			if !ok {
				continue
			}
			aliases := map[string]string{}
			for k, v := range mapOf(om["aliases"]) {
				aliases[k] = str(v)
			}
			t.Options = append(t.Options, model.TypeOption{
				Name:    str(om["name"]),
				Title:   str(om["title"]),
				Default: om["default"],
				Aliases: aliases,
			})
		}
		for _, rawLog := range sliceOf(m["logs"]) {
			lm, ok := rawLog.(map[string]any)
			if !ok {
				continue
			}
			t.Logs = append(t.Logs, model.TypeLog{
				Name:     str(lm["name"]),
				Title:    str(lm["title"]),
				Progress: boolOf(lm["progress"]),
				Problem:  boolOf(lm["problem"]),
				Plugin:   str(lm["plugin"]),
				Details:  mapOf(lm["details"]),
			})
		}
		for _, rawAct := range sliceOf(m["actions"]) {
			am, ok := rawAct.(map[string]any)
			if !ok {
				continue
			}
			var hooks []model.Hook
			for _, h := range sliceOf(am["hooks"]) {
				hooks = append(hooks, model.Hook(str(h)))
			}
			var perms []string
			for _, p := range sliceOf(am["perms"]) {
				perms = append(perms, str(p))
			}
			t.Actions = append(t.Actions, model.TypeAction{
				Name:        str(am["name"]),
				Title:       str(am["title"]),
				Description: str(am["description"]),
				Dangerous:   boolOf(am["dangerous"]),
				Perms:       perms,
				Force:       boolOf(am["force"]),
				Hooks:       hooks,
				Plugin:      str(am["plugin"]),
				Details:     mapOf(am["details"]),
			})
		}
		out = append(out, t)
	}
	return out, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func boolOf(v any) bool {
	b, _ := v.(bool)
	return b
}

func mapOf(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func sliceOf(v any) []any {
	s, _ := v.([]any)
	return s
}

// remarshal re-decodes a generic map[string]any into the rawSpec shape via
// yaml round-trip, since yamlstore.LoadAsDict already discards node
// structure for this all-at-once parse.
func remarshal(doc map[string]any, out *rawSpec) error {
	if v, ok := doc["version"].(string); ok {
		out.Version = v
	}
	if req, ok := doc["request"].(map[string]any); ok {
		if hdrs, ok := req["headers"].(map[string]any); ok {
			out.Request.Headers = map[string]rawHeader{}
			for k, v := range hdrs {
				hm, _ := v.(map[string]any)
				out.Request.Headers[k] = rawHeader{Pattern: str(hm["pattern"]), Default: str(hm["default"])}
			}
		}
	}
	if ts, ok := doc["types"].([]any); ok {
		for _, t := range ts {
			if tm, ok := t.(map[string]any); ok {
				out.Types = append(out.Types, tm)
			}
		}
	}
	if rs, ok := doc["roles"].([]any); ok {
		for _, r := range rs {
			if rm, ok := r.(map[string]any); ok {
				out.Roles = append(out.Roles, rm)
			}
		}
	}
	if sets, ok := doc["sets"].(map[string]any); ok {
		out.Sets = map[string]map[string]any{}
		for typeName, v := range sets {
			if sm, ok := v.(map[string]any); ok {
				out.Sets[typeName] = sm
			}
		}
	}
	if schema, ok := doc["schema"].(map[string]any); ok {
		out.Schema = schema
	}
	return nil
}
