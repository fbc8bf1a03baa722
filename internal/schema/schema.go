package schema

import (
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"

	"github.com/goodtune/yacgo/internal/locs"
	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/plugin"
	"github.com/goodtune/yacgo/internal/tmpl"
	"github.com/goodtune/yacgo/internal/yacerr"
)

// draft7Formats are the formats a Draft-7 validator already understands
// without a registered schema_format plugin (§4.8 "formats allowlist").
var draft7Formats = map[string]bool{
	"date-time": true, "time": true, "date": true, "duration": true,
	"email": true, "idn-email": true, "hostname": true, "idn-hostname": true,
	"ipv4": true, "ipv6": true, "uri": true, "uri-reference": true,
	"iri": true, "iri-reference": true, "uuid": true, "uri-template": true,
	"json-pointer": true, "relative-json-pointer": true, "regex": true,
}

// Get runs the schema pipeline (§4.8): template-expand rootSchema against
// props, walk it through the registered json_schema plugins, collapse the
// result, and validate data against it.
func Get(engine *tmpl.Engine, reg *plugin.Registry, rootSchema map[string]any, props Props, data map[string]any) (*model.Schema, error) {
	env := props.ToEnv()

	expandedAny, err := engine.Render(any(rootSchema), env)
	if err != nil {
		return nil, yacerr.WrapSchemaSpecsError(err, "templating schema")
	}
	expanded, _ := expandedAny.(map[string]any)
	if expanded == nil {
		expanded = map[string]any{}
	}

	ctx := &Context{Props: props, PermsByLoc: map[string][]string{}, FormatChecks: registerFormatCheckers(reg)}
	w := newWalker(ctx, reg)

	walked, err := w.walk("#", expanded)
	if err != nil {
		return nil, err
	}

	finalSchema := collapse(walked)
	uiSchema := BuildUISchema(finalSchema)

	result, err := validateData(finalSchema, data, ctx.FormatChecks)
	if err != nil {
		return nil, err
	}
	result.UISchema = uiSchema
	return result, nil
}

func validateData(jsonSchema, data map[string]any, formatCheckers map[string]FormatChecker) (*model.Schema, error) {
	if err := checkFormatsAllowed(jsonSchema, formatCheckers); err != nil {
		return nil, err
	}

	schemaBytes, err := json.Marshal(jsonSchema)
	if err != nil {
		return nil, yacerr.WrapSchemaSpecsError(err, "marshaling schema")
	}
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, yacerr.WrapSchemaSpecsError(err, "marshaling data")
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaBytes)
	dataLoader := gojsonschema.NewBytesLoader(dataBytes)

	res, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return nil, yacerr.WrapSchemaSpecsError(err, "compiling schema")
	}

	out := &model.Schema{
		JSONSchema: jsonSchema,
		Data:       data,
		Valid:      res.Valid(),
	}
	if !res.Valid() && len(res.Errors()) > 0 {
		first := res.Errors()[0]
		out.Message = first.String()
		out.Validator = first.Type()
		out.JSONSchemaLoc = "#/" + first.Context().String()
		out.DataLoc = "#/" + first.Field()
	}
	return out, nil
}

// checkFormatsAllowed walks the final schema tree for "format" keywords
// not covered by Draft-7's builtins or a registered schema_format plugin
// (§4.8 "formats allowlist").
func checkFormatsAllowed(schema map[string]any, formatCheckers map[string]FormatChecker) error {
	var bad string
	locs.Get(any(schema), func(node any) bool {
		m, ok := node.(map[string]any)
		if !ok {
			return false
		}
		f, ok := m["format"].(string)
		if !ok {
			return false
		}
		if draft7Formats[f] {
			return false
		}
		if formatCheckers != nil {
			if _, ok := formatCheckers[f]; ok {
				return false
			}
		}
		bad = f
		return true
	})
	if bad != "" {
		return yacerr.NewSchemaSpecsError("format %q is neither a Draft-7 builtin nor a registered schema_format plugin", bad)
	}
	return nil
}

// registerFormatCheckers wires every KindSchemaFormat plugin into
// gojsonschema's global FormatChecker registry, keyed by plugin name.
func registerFormatCheckers(reg *plugin.Registry) map[string]FormatChecker {
	out := map[string]FormatChecker{}
	for name, impl := range reg.Get(plugin.KindSchemaFormat) {
		fc, ok := impl.(FormatChecker)
		if !ok {
			continue
		}
		out[name] = fc
		gojsonschema.FormatCheckers.Add(name, goJSONSchemaAdapter{fc})
	}
	return out
}

type goJSONSchemaAdapter struct{ fc FormatChecker }

func (a goJSONSchemaAdapter) IsFormat(input any) bool { return a.fc(input) }
