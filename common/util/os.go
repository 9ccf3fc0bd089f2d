package util

import (
	"strings"
)

// FilterOSArgs returns args with masked values for all flags not on the safe list.
// Both "--flag value" and "--flag=value" forms are masked.
func FilterOSArgs(args []string, safeFlags []string) []string {
	var (
		sanitized    = make([]string, len(args))
		sanitizeNext = false
		safeByName   = make(map[string]struct{}, len(safeFlags))
	)
	for _, name := range safeFlags {
		safeByName[name] = struct{}{}
	}
	isSafe := func(name string) bool {
		_, ok := safeByName[strings.ToLower(name)]
		return ok
	}
	for i, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			if sanitizeNext {
				sanitized[i] = strings.Repeat("*", len(arg))
			} else {
				sanitized[i] = arg
			}
			sanitizeNext = false
			continue
		}
		name := strings.TrimPrefix(arg, "--")
		if eq := strings.Index(name, "="); eq >= 0 {
			sanitizeNext = false
			if isSafe(name[:eq]) {
				sanitized[i] = arg
			} else {
				sanitized[i] = "--" + name[:eq+1] + strings.Repeat("*", len(name)-eq-1)
			}
			continue
		}
		sanitizeNext = !isSafe(name)
		sanitized[i] = arg
	}
	return sanitized
}
