package util

import "unicode/utf8"

const ellipsis = "..."

// Abbreviate shortens s to at most max runes, replacing the end with "..." when anything is cut and there is
// room for it.
func Abbreviate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	keep, suffix := max, ""
	if max > len(ellipsis) {
		keep, suffix = max-len(ellipsis), ellipsis
	}
	end, n := 0, 0
	for i := range s {
		if n == keep {
			end = i
			break
		}
		n++
	}
	return s[:end] + suffix
}
