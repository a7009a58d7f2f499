package util

import "strings"

// SplitCommaSeparated parses a list flag such as "port, filter" into its
// trimmed, non-empty items. Blank input yields nil.
func SplitCommaSeparated(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// SanitizeHost makes a device address safe for file names and storage
// keys. Anything but ASCII letters, digits, '.', '-' and '_' becomes '_',
// so "fe80::1" maps to "fe80__1".
func SanitizeHost(host string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, host)
}
