package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/openmined/assetsync/internal/manifest"
)

const (
	DefaultManifestName = "filelist.txt"
	DefaultVersionName  = "version.txt"
)

// Tier pairs a storage root with the manifest and version marker kept in it.
type Tier struct {
	Name         string
	Store        FileStore
	Manifest     *manifest.Manifest
	ManifestName string
	VersionName  string
}

func NewTier(name string, store FileStore, manifestName, versionName string) *Tier {
	if manifestName == "" {
		manifestName = DefaultManifestName
	}
	if versionName == "" {
		versionName = DefaultVersionName
	}
	return &Tier{
		Name:         name,
		Store:        store,
		Manifest:     manifest.New(""),
		ManifestName: manifestName,
		VersionName:  versionName,
	}
}

// Load reads the manifest and version marker. Missing files leave an empty
// manifest and no version, which is the state of a fresh install. An
// unreadable count header is logged and the entry lines are kept.
func (t *Tier) Load() error {
	m := manifest.New("")

	text, err := t.Store.ReadTextFile(t.ManifestName)
	switch {
	case err == nil:
		parsed, perr := manifest.ParseAll(text)
		switch {
		case errors.Is(perr, manifest.ErrMalformedHeader):
			// a local list is rewritten on the next save, keep what it still names
			parsed = manifest.Salvage(text)
			slog.Warn("tier manifest header unreadable", "tier", t.Name, "file", t.ManifestName, "kept", parsed.Len())
		case perr != nil:
			return fmt.Errorf("tier %s: %w", t.Name, perr)
		}
		m = parsed
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("tier manifest missing", "tier", t.Name, "file", t.ManifestName)
	default:
		return fmt.Errorf("tier %s: read manifest: %w", t.Name, err)
	}

	marker, err := t.Store.ReadTextFile(t.VersionName)
	switch {
	case err == nil:
		m.Version = manifest.ParseVersionMarker(marker)
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("tier %s: read version: %w", t.Name, err)
	}

	t.Manifest = m
	slog.Debug("tier loaded", "tier", t.Name, "version", m.Version, "files", m.Len())
	return nil
}

// Save persists the manifest and then the version marker.
func (t *Tier) Save() error {
	if err := t.Store.WriteTextFile(t.ManifestName, t.Manifest.SerializeAll()); err != nil {
		return fmt.Errorf("tier %s: write manifest: %w", t.Name, err)
	}
	return t.SaveVersion()
}

func (t *Tier) SaveVersion() error {
	if err := t.Store.WriteTextFile(t.VersionName, manifest.FormatVersionMarker(t.Manifest.Version)); err != nil {
		return fmt.Errorf("tier %s: write version: %w", t.Name, err)
	}
	return nil
}
