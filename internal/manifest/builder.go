package manifest

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/openmined/assetsync/internal/utils"
)

// BuildOptions control how a directory is turned into a manifest.
type BuildOptions struct {
	Version string
	// Metadata files never listed in the manifest they describe.
	ManifestName string
	VersionName  string
	// Extra gitignore-style patterns on top of .assetignore.
	Ignore []string
}

// Build walks root in lexical order and records every file that is not
// ignored. The walk order becomes the manifest's insertion order, so the
// same tree always produces the same fetch order on clients.
func Build(root string, opts BuildOptions) (*Manifest, error) {
	if !utils.DirExists(root) {
		return nil, fmt.Errorf("manifest build: %q is not a directory", root)
	}

	ignore := NewIgnoreList(root, opts.Ignore...)
	m := New(opts.Version)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = utils.NormPath(rel)

		if d.IsDir() {
			if ignore.ShouldIgnore(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if rel == opts.ManifestName || rel == opts.VersionName || ignore.ShouldIgnore(rel) {
			return nil
		}

		hash, size, err := HashFile(path)
		if err != nil {
			slog.Warn("manifest build skipped file", "path", rel, "error", err)
			return nil
		}
		m.Put(Entry{Path: rel, Size: size, Hash: hash})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("manifest build: %w", err)
	}

	return m, nil
}
