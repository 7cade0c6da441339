package diff

import (
	"log/slog"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"
)

// DynamicOnly lists files that are never fetched eagerly. They are
// downloaded on first use instead. Entries are exact manifest paths or
// doublestar globs such as `video/**/*.mp4`.
type DynamicOnly struct {
	exact    mapset.Set[string]
	patterns []string
}

func NewDynamicOnly(patterns ...string) *DynamicOnly {
	d := &DynamicOnly{exact: mapset.NewThreadUnsafeSet[string]()}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.ContainsAny(p, "*?[{") {
			d.exact.Add(p)
			continue
		}
		if !doublestar.ValidatePattern(p) {
			slog.Warn("dynamic-only pattern invalid, ignored", "pattern", p)
			continue
		}
		d.patterns = append(d.patterns, p)
	}
	return d
}

func (d *DynamicOnly) Match(path string) bool {
	if d == nil {
		return false
	}
	if d.exact.Contains(path) {
		return true
	}
	for _, p := range d.patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

func (d *DynamicOnly) Len() int {
	if d == nil {
		return 0
	}
	return d.exact.Cardinality() + len(d.patterns)
}
