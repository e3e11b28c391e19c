// Package strings cleans the string lists read from configuration files.
package strings

import (
	"strings"
)

// DedupeAndTrimLower trims and lowercases each element, then drops empties
// and duplicates. Order of first occurrence is preserved.
//
//	DedupeAndTrimLower([]string{"  FOO ", "bar", "Foo"})
//	// []string{"foo", "bar"}
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	})
}

// NormalizeDomains is DedupeAndTrimLower for domain names: a leading '@' or
// '.' and a trailing root '.' are stripped, so "@Mailinator.com." and
// "mailinator.com" collapse to one entry.
func NormalizeDomains(values []string) []string {
	return dedupe(values, func(v string) string {
		v = strings.ToLower(strings.TrimSpace(v))
		v = strings.TrimLeft(v, "@.")
		return strings.TrimSuffix(v, ".")
	})
}

func dedupe(values []string, norm func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		n := norm(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			result = append(result, n)
		}
	}

	return result
}
