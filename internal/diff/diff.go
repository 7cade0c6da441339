// Package diff decides which files a client has to delete and which it has
// to fetch to reach parity with a remote manifest.
package diff

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/assetsync/internal/manifest"
)

// Options tune FetchSet.
type Options struct {
	DynamicOnly *DynamicOnly
	// Metadata files are written directly and never diffed.
	ManifestName string
	VersionName  string
}

// Deletions returns every path of local that remote no longer lists.
// An entry that merely changed remotely is a fetch, not a deletion.
func Deletions(local, remote *manifest.Manifest) mapset.Set[string] {
	out := mapset.NewThreadUnsafeSet[string]()
	for _, path := range local.Paths() {
		if !remote.Has(path) {
			out.Add(path)
		}
	}
	return out
}

// FetchSet lists the remote paths that neither local tier already holds
// byte-identically, in the remote manifest's insertion order.
func FetchSet(bundled, downloaded, remote *manifest.Manifest, opts Options) []string {
	var out []string
	for _, want := range remote.Entries() {
		if skip(want.Path, opts) {
			continue
		}
		if holds(downloaded, want) || holds(bundled, want) {
			continue
		}
		out = append(out, want.Path)
	}
	return out
}

func skip(path string, opts Options) bool {
	if opts.ManifestName != "" && path == opts.ManifestName {
		return true
	}
	if opts.VersionName != "" && path == opts.VersionName {
		return true
	}
	return opts.DynamicOnly.Match(path)
}

func holds(m *manifest.Manifest, want manifest.Entry) bool {
	have, ok := m.Get(want.Path)
	return ok && have.Matches(want)
}

// Plan is the ordered work for one sync run.
type Plan struct {
	// DeleteDownloaded are removed from disk and from the downloaded manifest.
	DeleteDownloaded []string
	// DeleteBundled are only unlisted, bundled files cannot be removed.
	DeleteBundled []string
	Fetch         []string
	FetchBytes    uint64
}

// Compute builds a Plan. Deletion lists follow each local manifest's own
// order, so the plan is reproducible for the same inputs.
func Compute(bundled, downloaded, remote *manifest.Manifest, opts Options) *Plan {
	plan := &Plan{
		DeleteDownloaded: ordered(downloaded, Deletions(downloaded, remote)),
		DeleteBundled:    ordered(bundled, Deletions(bundled, remote)),
		Fetch:            FetchSet(bundled, downloaded, remote, opts),
	}
	for _, path := range plan.Fetch {
		e, _ := remote.Get(path)
		plan.FetchBytes += e.Size
	}
	return plan
}

func ordered(m *manifest.Manifest, set mapset.Set[string]) []string {
	var out []string
	for _, path := range m.Paths() {
		if set.Contains(path) {
			out = append(out, path)
		}
	}
	return out
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool {
	return len(p.DeleteDownloaded) == 0 && len(p.DeleteBundled) == 0 && len(p.Fetch) == 0
}
