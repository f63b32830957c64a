// Package strings provides small string helpers shared by adapters and wiring
package strings

import (
	"strconv"
	std "strings"
)

// FirstNonEmpty returns the first value with non whitespace content, or ""
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if std.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// MustPrefix normalizes and asserts a root path like /v1 or /ops
// ensures a single leading slash and no trailing slash except for the root itself
// panics if the input is empty after trimming
func MustPrefix(s string) string {
	s = std.TrimSpace(s)
	s = "/" + std.Trim(s, " /")
	if s == "/" {
		panic("root path is required")
	}
	return s
}

// Truncate cuts s to at most n runes, marking the cut with an ellipsis
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// IsSnowflake reports whether s is a platform id: decimal digits only, non-zero, fits in a uint64
func IsSnowflake(s string) bool {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return err == nil && v != 0
}
