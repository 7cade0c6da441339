package utils

import (
	"net/url"
	"slices"
	"strings"
)

// IsValidURL reports whether raw is an absolute URL with a host. When
// schemes are given the URL must use one of them.
func IsValidURL(raw string, schemes ...string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	return len(schemes) == 0 || slices.Contains(schemes, strings.ToLower(u.Scheme))
}
