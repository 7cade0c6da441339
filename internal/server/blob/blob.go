package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/openmined/assetsync/internal/manifest"
)

const (
	DefaultCacheTTL  = 5 * time.Minute
	manifestCacheKey = "manifest"
)

var ErrManifestNotPublished = errors.New("blob: manifest not published")

type ServiceConfig struct {
	ManifestName string
	VersionName  string
	// Version overrides whatever marker is stored next to the assets.
	Version  string
	CacheTTL time.Duration
}

// BlobService fronts a Backend with the published manifest. A local backend
// without a stored manifest gets one built from its directory tree.
type BlobService struct {
	backend Backend
	config  ServiceConfig
	cache   *expirable.LRU[string, *manifest.Manifest]
}

func NewBlobService(backend Backend, cfg ServiceConfig) *BlobService {
	if cfg.ManifestName == "" {
		cfg.ManifestName = "filelist.txt"
	}
	if cfg.VersionName == "" {
		cfg.VersionName = "version.txt"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &BlobService{
		backend: backend,
		config:  cfg,
		cache:   expirable.NewLRU[string, *manifest.Manifest](1, nil, cfg.CacheTTL),
	}
}

// Backend returns the underlying blob backend instance
func (b *BlobService) Backend() Backend {
	return b.backend
}

func (b *BlobService) Config() ServiceConfig {
	return b.config
}

// Invalidate drops the cached manifest. The next Manifest call rebuilds it.
func (b *BlobService) Invalidate() {
	if b.cache.Len() > 0 {
		slog.Debug("blob manifest cache invalidated")
	}
	b.cache.Purge()
}

// Manifest returns the manifest clients sync against.
func (b *BlobService) Manifest(ctx context.Context) (*manifest.Manifest, error) {
	if m, ok := b.cache.Get(manifestCacheKey); ok {
		return m, nil
	}

	m, err := b.loadManifest(ctx)
	if err != nil {
		return nil, err
	}
	b.cache.Add(manifestCacheKey, m)
	return m, nil
}

// GetObject serves a stored object. The manifest and version keys fall back
// to the generated manifest when nothing is stored under them.
func (b *BlobService) GetObject(ctx context.Context, key string) (*GetObjectResponse, error) {
	obj, err := b.backend.GetObject(ctx, key)
	if err == nil || !errors.Is(err, ErrObjectNotFound) {
		return obj, err
	}

	var text string
	switch key {
	case b.config.ManifestName, b.config.VersionName:
		m, err := b.Manifest(ctx)
		if err != nil {
			return nil, err
		}
		if key == b.config.ManifestName {
			text = m.SerializeAll()
		} else {
			if m.Version == "" {
				return nil, ErrObjectNotFound
			}
			text = manifest.FormatVersionMarker(m.Version)
		}
	default:
		return nil, err
	}

	return &GetObjectResponse{
		Body:         io.NopCloser(strings.NewReader(text)),
		Size:         int64(len(text)),
		ETag:         manifest.HashBytes([]byte(text)),
		LastModified: time.Now().UTC(),
	}, nil
}

func (b *BlobService) Close() error {
	b.cache.Purge()
	return b.backend.Close()
}

func (b *BlobService) loadManifest(ctx context.Context) (*manifest.Manifest, error) {
	m, err := b.storedManifest(ctx)
	if errors.Is(err, ErrObjectNotFound) {
		local, ok := b.backend.(*LocalBackend)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotPublished, b.config.ManifestName)
		}
		start := time.Now()
		m, err = manifest.Build(local.Root(), manifest.BuildOptions{
			ManifestName: b.config.ManifestName,
			VersionName:  b.config.VersionName,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("blob manifest built", "dir", local.Root(), "files", m.Len(), "took", time.Since(start))
	} else if err != nil {
		return nil, err
	}

	if b.config.Version != "" {
		m.Version = b.config.Version
		return m, nil
	}

	version, err := b.readText(ctx, b.config.VersionName)
	switch {
	case err == nil:
		m.Version = manifest.ParseVersionMarker(version)
	case errors.Is(err, ErrObjectNotFound):
		slog.Warn("blob version marker missing", "key", b.config.VersionName)
	default:
		return nil, err
	}
	return m, nil
}

func (b *BlobService) storedManifest(ctx context.Context) (*manifest.Manifest, error) {
	text, err := b.readText(ctx, b.config.ManifestName)
	if err != nil {
		return nil, err
	}
	m, err := manifest.ParseAll(text)
	if err != nil {
		return nil, fmt.Errorf("blob: stored manifest: %w", err)
	}
	return m, nil
}

func (b *BlobService) readText(ctx context.Context, key string) (string, error) {
	obj, err := b.backend.GetObject(ctx, key)
	if err != nil {
		return "", err
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
