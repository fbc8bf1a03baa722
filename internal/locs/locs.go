// Package locs implements location (loc) strings: "#"-prefixed, "/"-separated
// reference paths into JSON-like trees, and the schema-loc to data-loc regex
// reduction used to filter schema positions down to the data locations they
// describe. Ported from the original implementation's app/lib/locs.py (C1).
package locs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Subschema keyword sets (§4.1).
var (
	Subschemas       = []string{"if", "else", "then", "not", "propertyNames", "contains", "items", "contentSchema"}
	SubschemaObjects = []string{"$defs", "properties", "patternProperties", "dependentSchemas"}
	SubschemaArrays  = []string{"oneOf", "allOf", "anyOf", "prefixItems"}
)

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Get walks data depth-first, collecting the loc of every node for which add
// returns true.
func Get(data any, add func(any) bool) []string {
	var res []string
	var walk func(d any, loc string)
	walk = func(d any, loc string) {
		if add(d) {
			res = append(res, loc)
		}
		switch v := d.(type) {
		case map[string]any:
			for key, value := range v {
				walk(value, loc+"/"+key)
			}
		case []any:
			for i, item := range v {
				walk(item, fmt.Sprintf("%s/%d", loc, i))
			}
		}
	}
	walk(data, "#")
	return res
}

// Extract returns the leaf referenced by dataLoc, or nil if not found.
func Extract(dataLoc string, data any) any {
	keys := strings.Split(dataLoc, "/")
	// keys[0] == "#"
	d := data
	for _, key := range keys[1:] {
		switch v := d.(type) {
		case map[string]any:
			d = v[key]
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(v) {
				return nil
			}
			d = v[i]
		default:
			return nil
		}
	}
	return d
}

// onSchemaLvl tests if keys[index] sits at a schema-level position, assuming
// index 0 (the root) always is.
func onSchemaLvl(keys []string, index int) bool {
	if index == 0 {
		return true
	}
	if index >= 1 && contains(Subschemas, keys[index-1]) {
		return true
	}
	if index >= 2 && (contains(SubschemaObjects, keys[index-2]) || contains(SubschemaArrays, keys[index-2])) {
		return true
	}
	return false
}

var neverData = []string{"if", "not", "propertyNames", "$defs", "const"}
var skippable = []string{"else", "then", "contentSchema"}
var pairedArrays = []string{"oneOf", "allOf", "anyOf", "dependentSchemas"}

// ToRegex converts a schema-loc into an anchored regex matching the data-locs
// it describes. If recursive, the regex also matches every loc below it.
func ToRegex(schemaLoc string, recursive bool) string {
	parts := strings.Split(schemaLoc, "/")
	keys := append([]string{}, parts[1:]...) // drop leading "#"

	recursion := ""
	if recursive {
		recursion = `(/.+)*`
	}
	root := `^\#` + recursion + `$`

	if len(keys) == 0 {
		return root
	}

	for _, key := range neverData {
		for i, k := range keys {
			if k == key && onSchemaLvl(keys, i) {
				return root
			}
		}
	}

	for _, key := range skippable {
		for i := 0; i < len(keys); i++ {
			if keys[i] == key && onSchemaLvl(keys, i) {
				keys = append(keys[:i], keys[i+1:]...)
				i--
			}
		}
	}

	for _, key := range pairedArrays {
		for i := 0; i < len(keys); i++ {
			if keys[i] == key && onSchemaLvl(keys, i) {
				if i+1 < len(keys) {
					keys = append(keys[:i+1], keys[i+2:]...)
				}
				keys = append(keys[:i], keys[i+1:]...)
				i--
			}
		}
	}

	if len(keys) == 0 {
		return root
	}

	var res []string
	i := 0
	for i < len(keys) {
		switch keys[i] {
		case "properties", "prefixItems":
			if i+1 < len(keys) {
				res = append(res, regexp.QuoteMeta(keys[i+1]))
			}
			i += 2
		case "patternProperties":
			if i+1 < len(keys) {
				res = append(res, keys[i+1])
			}
			i += 2
		case "items", "contains":
			res = append(res, `\d+`)
			i++
		default:
			i++
		}
	}

	return `^\#/` + strings.Join(res, "/") + recursion + `$`
}

// Reduce returns the data-locs (from dataLocs) that are described by schemaLoc.
func Reduce(schemaLoc string, dataLocs []string, recursive bool) []string {
	reg := regexp.MustCompile(ToRegex(schemaLoc, recursive))
	var out []string
	for _, d := range dataLocs {
		if reg.MatchString(d) {
			out = append(out, d)
		}
	}
	return out
}

// commonPathLen returns the length (in "/"-separated segments, joined length)
// of the common path prefix between a and b, mirroring os.path.commonpath
// applied to two loc-like strings.
func commonPathLen(a, b string) int {
	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	var common []string
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			break
		}
		common = append(common, as[i])
	}
	if len(common) == 0 {
		return 0
	}
	return len(strings.Join(common, "/"))
}

// GetMostSpecific returns the entry in locList with the longest common path
// prefix with loc, or "" if none share a prefix.
func GetMostSpecific(loc string, locList []string) (string, bool) {
	prefix := 0
	result := ""
	found := false
	for _, l := range locList {
		pf := commonPathLen(loc, l)
		if prefix < pf {
			prefix = pf
			result = l
			found = true
		}
	}
	return result, found
}

// IsSpecified reports whether key is syntactically specified by schema, by
// conservative inspection of properties/then/else/oneOf/allOf/anyOf.
func IsSpecified(key string, schema any) bool {
	m, ok := schema.(map[string]any)
	if !ok {
		return false
	}

	if props, ok := m["properties"].(map[string]any); ok {
		if _, ok := props[key]; ok {
			return true
		}
	}

	for _, sub := range []string{"then", "else"} {
		if s, ok := m[sub]; ok {
			if IsSpecified(key, s) {
				return true
			}
		}
	}

	for _, subList := range []string{"oneOf", "allOf", "anyOf"} {
		if list, ok := m[subList].([]any); ok {
			for _, sub := range list {
				if IsSpecified(key, sub) {
					return true
				}
			}
		}
	}

	return false
}
