// Package utils holds small helpers shared across components.
package utils

import "strings"

// ParseCSV splits a comma-separated string into trimmed non-empty values.
// Returns nil for empty or whitespace-only input. Used for comma-separated
// environment values such as CORS origins and symbol lists.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}
