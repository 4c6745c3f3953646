// Package stringsx holds the comma-separated list handling shared by
// configuration values and environment variables.
package stringsx

import "strings"

// SplitCommaSeparated splits a comma-separated list such as an AllowedIPs
// value. Items are trimmed and empty items are dropped.
func SplitCommaSeparated(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}

// JoinCommaSeparated is the inverse of SplitCommaSeparated in the canonical
// "a, b" form.
func JoinCommaSeparated(items []string) string {
	return strings.Join(items, ", ")
}
