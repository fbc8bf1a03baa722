package repo

import (
	"fmt"
	"regexp"
	"strings"
)

// pathTemplate is a type's "file" details value: a format string that must
// contain a "{name}" placeholder (spec.md §4.5). Repeated placeholders are
// accepted; Format substitutes every occurrence.
type pathTemplate struct {
	raw string
	re  *regexp.Regexp
}

func newPathTemplate(raw string) (*pathTemplate, error) {
	if !strings.Contains(raw, "{name}") {
		return nil, fmt.Errorf("in type details: file does not contain {name}")
	}
	parts := strings.Split(raw, "{name}")
	var b strings.Builder
	b.WriteString("^")
	for i, p := range parts {
		if i > 0 {
			b.WriteString("(?P<name>.+)")
		}
		b.WriteString(regexp.QuoteMeta(p))
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	return &pathTemplate{raw: raw, re: re}, nil
}

// Format substitutes name into the template.
func (t *pathTemplate) Format(name string) string {
	return strings.ReplaceAll(t.raw, "{name}", name)
}

// Glob returns the template with its {name} placeholder replaced by "*",
// for use as a filesystem glob pattern.
func (t *pathTemplate) Glob() string {
	return strings.ReplaceAll(t.raw, "{name}", "*")
}

// Parse recovers the entity name from a path that matches the template,
// mirroring the original's reverse use of parse() (§4.5 "list()").
func (t *pathTemplate) Parse(path string) (string, bool) {
	m := t.re.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	for i, name := range t.re.SubexpNames() {
		if name == "name" {
			return m[i], true
		}
	}
	return "", false
}
