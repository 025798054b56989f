package admin

import (
	"strings"

	"github.com/samber/lo"
)

// IsAdminPath reports whether path falls under one of the administrative prefixes.
// A prefix matches itself and anything below it, never a longer sibling.
func IsAdminPath(path string, prefixes []string) bool {
	return lo.SomeBy(prefixes, func(prefix string) bool {
		prefix = normalizePrefix(prefix)
		if prefix == "" {
			return false
		}
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	})
}

func normalizePrefix(prefix string) string {
	return strings.TrimRight(strings.TrimSpace(prefix), "/")
}
