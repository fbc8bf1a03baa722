package tmpl

import (
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

// BuiltinFunctions returns the j2_function plugins built into yacgo: uuid()
// (the default Type.name_generator, per spec.md §3) and
// next_int_by_regex(list, pattern) (§8 scenario 6's name-generator helper).
func BuiltinFunctions() map[string]any {
	return map[string]any{
		"uuid": func() string {
			return uuid.NewString()
		},
		"next_int_by_regex": NextIntByRegex,
	}
}

// NextIntByRegex returns one more than the maximum integer captured by
// pattern's first capture group across list, or 1 if nothing matches.
func NextIntByRegex(list []any, pattern string) int {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 1
	}
	max := 0
	found := false
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		m := re.FindStringSubmatch(s)
		if len(m) < 2 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if !found || n > max {
			max = n
			found = true
		}
	}
	return max + 1
}
