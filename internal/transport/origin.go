package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

type httpOrigin struct {
	*HTTPFetcher
	*HTTPSource
}

func (o *httpOrigin) Close() error {
	return errors.Join(o.HTTPFetcher.Close(), o.HTTPSource.Close())
}

// NewHTTPOrigin pairs an HTTPFetcher and an HTTPSource on the same base URL.
func NewHTTPOrigin(cfg Config) (Origin, error) {
	fetcher, err := NewHTTPFetcher(cfg)
	if err != nil {
		return nil, err
	}
	source, err := NewHTTPSource(cfg)
	if err != nil {
		return nil, err
	}
	return &httpOrigin{HTTPFetcher: fetcher, HTTPSource: source}, nil
}

// NewOrigin picks the origin implementation from the URL scheme.
func NewOrigin(ctx context.Context, cfg Config) (Origin, error) {
	if cfg.URL == "" {
		return nil, ErrNoOriginURL
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("transport: parse %q: %w", cfg.URL, err)
	}

	switch u.Scheme {
	case "http", "https":
		return NewHTTPOrigin(cfg)
	case "s3":
		return NewS3Origin(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}
