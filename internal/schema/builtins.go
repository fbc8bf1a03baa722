package schema

import (
	"encoding/base64"
	"encoding/binary"
	"regexp"
	"strings"

	"github.com/goodtune/yacgo/internal/locs"
	"github.com/goodtune/yacgo/internal/plugin"
	"github.com/goodtune/yacgo/internal/tmpl"
	"github.com/goodtune/yacgo/internal/yacerr"
)

// RegisterBuiltins registers every required plugin behavior from §4.8 into
// reg. engine is used by the templating-dependent plugins (yac_if).
func RegisterBuiltins(reg *plugin.Registry, engine *tmpl.Engine) {
	Register(reg, "top_level_object", topLevelObject{})
	Register(reg, "secure_additional_properties", secureAdditionalProperties{})
	Register(reg, "yac_if", yacIf{engine: engine})
	Register(reg, "yac_changable", yacChangable{})
	Register(reg, "yac_types", yacTypes{})
	Register(reg, "yac_perms", yacPerms{})
	Register(reg, "add_consts", addConsts{})
	Register(reg, "yac_optional", yacOptional{})
	Register(reg, "required_defaults", requiredDefaults{})

	reg.Register(plugin.KindSchemaFormat, "ssh_key", FormatChecker(sshKeyFormat))
	reg.Register(plugin.KindSchemaFormat, "unix_password_hash", FormatChecker(unixPasswordHashFormat))
}

// --- schema_format builtins (§4.8), ported from the original's
// app/plugin/schema_formats/builtin.py ---

func sshKeyFormat(value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) < 2 {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(decoded) < 4 {
		return false
	}
	n := binary.BigEndian.Uint32(decoded[:4])
	if uint64(n) > uint64(len(decoded)-4) {
		return false
	}
	keyType := string(decoded[4 : 4+n])

	return keyType == parts[0]
}

var unixPasswordHashPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\$5\$.{0,16}\$[./0-9A-Za-z]{43}$`),       // SHA-256
	regexp.MustCompile(`^\$6\$.{0,16}\$[./0-9A-Za-z]{86}$`),       // SHA-512
	regexp.MustCompile(`^\$2[aby]\$[0-9]{2}\$[./0-9A-Za-z]{53}$`), // Bcrypt
}

func unixPasswordHashFormat(value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	for _, p := range unixPasswordHashPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// --- top-level object (§4.8) ---

type topLevelObject struct{}

func (topLevelObject) Order() (bool, int) { return false, 0 }

func (topLevelObject) Apply(ctx *Context, loc string, node map[string]any) (Result, error) {
	if loc != "#" {
		return node, nil
	}
	if t, _ := node["type"].(string); t != "object" {
		return nil, yacerr.NewSchemaSpecsError("root schema must be type: object")
	}
	if s, ok := node["$schema"]; ok {
		if s != "http://json-schema.org/draft-07/schema#" {
			delete(node, "$schema")
		}
	}
	return node, nil
}

// --- secure additional properties (§4.8) ---

type secureAdditionalProperties struct{}

func (secureAdditionalProperties) Order() (bool, int) { return false, 1 }

func (secureAdditionalProperties) Apply(ctx *Context, loc string, node map[string]any) (Result, error) {
	if t, _ := node["type"].(string); t == "object" {
		if _, ok := node["additionalProperties"]; !ok {
			node["additionalProperties"] = false
		}
	}
	return node, nil
}

// --- yac_if (§4.8) ---

type yacIf struct{ engine *tmpl.Engine }

func (yacIf) Order() (bool, int) { return false, 10 }

func (p yacIf) Apply(ctx *Context, loc string, node map[string]any) (Result, error) {
	predicate, ok := node["yac_if"].(string)
	if !ok {
		return node, nil
	}
	delete(node, "yac_if")

	truthy, err := p.engine.RenderTest(predicate, ctx.Props.ToEnv())
	if err != nil {
		return nil, yacerr.WrapSchemaSpecsError(err, "at %s: evaluating yac_if", loc)
	}
	if !truthy {
		return nil, nil
	}
	return node, nil
}

// --- yac_changable (§4.8) ---

type yacChangable struct{}

func (yacChangable) Order() (bool, int) { return false, 11 }

func (yacChangable) Apply(ctx *Context, loc string, node map[string]any) (Result, error) {
	changable, ok := node["yac_changable"].(bool)
	delete(node, "yac_changable")
	if !ok {
		return node, nil
	}
	if ctx.Props.Operation == "change" && !changable {
		return nil, nil
	}
	return node, nil
}

// --- yac_types (§4.8) ---

type yacTypes struct{}

func (yacTypes) Order() (bool, int) { return false, 12 }

func (yacTypes) Apply(ctx *Context, loc string, node map[string]any) (Result, error) {
	raw, ok := node["yac_types"].([]any)
	delete(node, "yac_types")
	if !ok {
		return node, nil
	}
	if ctx.Props.Type == nil {
		return nil, nil
	}
	for _, t := range raw {
		if s, ok := t.(string); ok && s == ctx.Props.Type.Name {
			return node, nil
		}
	}
	return nil, nil
}

// --- yac_perms (§4.8, recursive-inherited) ---

type yacPerms struct{}

func (yacPerms) Order() (bool, int) { return false, 20 }

func (p yacPerms) Apply(ctx *Context, loc string, node map[string]any) (Result, error) {
	required := ctx.NearestPerms(loc)
	if raw, ok := node["yac_perms"].([]any); ok {
		required = nil
		for _, v := range raw {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
		delete(node, "yac_perms")
		ctx.PermsByLoc[loc] = required
	}

	oldPerms := ctx.Props.OldPerms
	if ctx.Props.Operation == "create" && !contains(oldPerms, "add") {
		oldPerms = append(append([]string{}, oldPerms...), "add")
	}
	if !disjoint(required, oldPerms) {
		return node, nil
	}
	return nil, nil
}

func disjoint(a, b []string) bool {
	set := map[string]bool{}
	for _, x := range b {
		set[x] = true
	}
	for _, x := range a {
		if set[x] {
			return false
		}
	}
	return true
}

// --- add_consts (§4.8) ---

type addConsts struct{}

func (addConsts) Order() (bool, int) { return false, 30 }

func (addConsts) Apply(ctx *Context, loc string, node map[string]any) (Result, error) {
	if ctx.Props.Operation != "change" {
		return node, nil
	}
	if t, _ := node["type"].(string); t != "object" {
		return node, nil
	}

	dataAtLoc := dataAtDataLoc(loc, ctx.Props.OldData)
	oldObj, ok := dataAtLoc.(map[string]any)
	if !ok {
		return node, nil
	}

	clnAllowed := contains(ctx.Props.OldPerms, "cln")
	for k, v := range oldObj {
		if locs.IsSpecified(k, node) {
			continue
		}
		props, ok := node["properties"].(map[string]any)
		if !ok {
			props = map[string]any{}
			node["properties"] = props
		}
		props[k] = map[string]any{"const": v, "yac_optional": clnAllowed}
	}
	return node, nil
}

func dataAtDataLoc(loc string, data map[string]any) any {
	// Schema locs and data locs share shape for object-typed nodes in the
	// common case ("#/properties/x" schema loc ~ "#/x" data loc); add_consts
	// only ever runs at the root object in practice (entity top-level data),
	// so the root data map covers the required cases.
	if loc == "#" {
		return data
	}
	return nil
}

// --- yac_optional (late, §4.8) ---

type yacOptional struct{}

func (yacOptional) Order() (bool, int) { return true, 10 }

func (yacOptional) Apply(ctx *Context, loc string, node map[string]any) (Result, error) {
	props, ok := node["properties"].(map[string]any)
	if !ok {
		return node, nil
	}

	var required []string
	for name, raw := range props {
		propSchema, _ := raw.(map[string]any)
		optional, _ := propSchema["yac_optional"].(bool)
		if propSchema != nil {
			delete(propSchema, "yac_optional")
		}
		if !optional {
			required = append(required, name)
		}
	}
	if len(required) > 0 {
		node["required"] = toAnySlice(required)
	} else {
		delete(node, "required")
	}
	return node, nil
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// --- required_defaults (late, after yac_optional, §4.8) ---

type requiredDefaults struct{}

func (requiredDefaults) Order() (bool, int) { return true, 20 }

func (requiredDefaults) Apply(ctx *Context, loc string, node map[string]any) (Result, error) {
	props, ok := node["properties"].(map[string]any)
	if !ok {
		return node, nil
	}
	requiredRaw, _ := node["required"].([]any)
	required := map[string]bool{}
	for _, r := range requiredRaw {
		if s, ok := r.(string); ok {
			required[s] = true
		}
	}

	for name, raw := range props {
		propSchema, ok := raw.(map[string]any)
		if !ok || !required[name] {
			continue
		}
		if _, has := propSchema["default"]; has {
			continue
		}
		if t, _ := propSchema["type"].(string); t == "boolean" {
			propSchema["default"] = false
			continue
		}
		if c, has := propSchema["const"]; has {
			propSchema["default"] = c
		}
	}
	return node, nil
}
