package transport

import (
	"bytes"
	"context"
	"strings"

	"github.com/imroc/req/v3"
	"github.com/openmined/assetsync/internal/version"
)

// HTTPFetcher downloads assets from {baseURL}/{path}.
type HTTPFetcher struct {
	client *req.Client
}

func NewHTTPFetcher(cfg Config) (*HTTPFetcher, error) {
	if cfg.URL == "" {
		return nil, ErrNoOriginURL
	}
	cfg = cfg.withDefaults()

	client := req.C().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetUserAgent(version.UserAgent()).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal).
		SetTimeout(cfg.Timeout).
		SetCommonRetryCount(cfg.RetryCount).
		SetCommonRetryFixedInterval(cfg.RetryWait)

	return &HTTPFetcher{client: client}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, path string, onProgress ProgressFunc) ([]byte, error) {
	var buf bytes.Buffer
	counter := &progressCounter{fn: onProgress}

	resp, err := f.client.R().
		DisableAutoReadResponse().
		SetContext(ctx).
		SetOutput(&buf).
		SetDownloadCallbackWithInterval(func(info req.DownloadInfo) {
			if info.Response == nil || info.Response.Response == nil {
				return
			}
			if info.Response.ContentLength > 0 {
				counter.total = uint64(info.Response.ContentLength)
			}
			counter.report(uint64(info.DownloadedSize))
		}, progressInterval).
		Get(escapePath(path))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, networkError(path, err)
	}

	// the error body lands in buf because of SetOutput
	if resp.IsErrorState() {
		return nil, statusError(path, resp.GetStatusCode(), strings.TrimSpace(buf.String()))
	}

	return buf.Bytes(), nil
}

func (f *HTTPFetcher) Close() error {
	f.client.GetClient().CloseIdleConnections()
	return nil
}

var _ Fetcher = (*HTTPFetcher)(nil)
