// Package strings provides string slice helpers for multi-valued fields.
package strings

import (
	"strings"
)

// Union concatenates the lists, trimming each element and dropping empties and
// exact duplicates. The first occurrence wins, so earlier lists keep their order.
//
//	Union([]string{"a@x.com"}, []string{" b@x.com", "a@x.com", ""})
//	// Returns: []string{"a@x.com", "b@x.com"}
func Union(lists ...[]string) []string {
	return union(lists, strings.TrimSpace)
}

// UnionFold is like Union but compares case-insensitively. The spelling of the
// first occurrence is kept.
func UnionFold(lists ...[]string) []string {
	return union(lists, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

func union(lists [][]string, key func(string) string) []string {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	if total == 0 {
		return nil
	}

	seen := make(map[string]struct{}, total)
	result := make([]string, 0, total)
	for _, l := range lists {
		for _, v := range l {
			trimmed := strings.TrimSpace(v)
			if trimmed == "" {
				continue
			}
			k := key(trimmed)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// Split breaks a delimited cell into trimmed, non-empty values.
func Split(cell, sep string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	return Union(strings.Split(cell, sep))
}
