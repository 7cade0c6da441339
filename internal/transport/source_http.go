package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openmined/assetsync/internal/manifest"
	"github.com/openmined/assetsync/internal/version"
	"resty.dev/v3"
)

// HTTPSource reads the manifest and version marker published next to the assets.
type HTTPSource struct {
	client       *resty.Client
	manifestName string
	versionName  string
}

func NewHTTPSource(cfg Config) (*HTTPSource, error) {
	if cfg.URL == "" {
		return nil, ErrNoOriginURL
	}
	cfg = cfg.withDefaults()

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(5*cfg.RetryWait).
		SetHeader("User-Agent", version.UserAgent())

	return &HTTPSource{
		client:       client,
		manifestName: cfg.ManifestName,
		versionName:  cfg.VersionName,
	}, nil
}

func (s *HTTPSource) FetchManifest(ctx context.Context) (*manifest.Manifest, error) {
	text, err := s.getText(ctx, s.manifestName)
	if err != nil {
		return nil, err
	}
	m, err := manifest.ParseAll(text)
	if err != nil {
		return nil, fmt.Errorf("transport: remote manifest: %w", err)
	}

	marker, err := s.getText(ctx, s.versionName)
	switch {
	case err == nil:
		m.Version = manifest.ParseVersionMarker(marker)
	case IsNotFound(err):
		slog.Warn("remote version marker missing", "path", s.versionName)
	default:
		return nil, err
	}

	return m, nil
}

func (s *HTTPSource) getText(ctx context.Context, path string) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(escapePath(path))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", networkError(path, err)
	}
	if resp.IsError() {
		return "", statusError(path, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return resp.String(), nil
}

func (s *HTTPSource) Close() error {
	return s.client.Close()
}

var _ RemoteSource = (*HTTPSource)(nil)
