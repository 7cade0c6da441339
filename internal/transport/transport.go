// Package transport fetches manifests and asset payloads from a remote origin.
package transport

import (
	"context"
	"io"

	"github.com/openmined/assetsync/internal/manifest"
)

// Progress is reported while a payload is streamed.
type Progress struct {
	Downloaded uint64 // bytes received so far
	Delta      uint64 // bytes received since the previous report
	Total      uint64 // expected size, 0 when the origin did not say
}

// Fraction is Downloaded/Total clamped to [0, 1], or 0 when Total is unknown.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	f := float64(p.Downloaded) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

type ProgressFunc func(Progress)

// Fetcher downloads one asset by its manifest-relative path.
type Fetcher interface {
	Fetch(ctx context.Context, path string, onProgress ProgressFunc) ([]byte, error)
}

// RemoteSource provides the remote manifest with its version marker applied.
type RemoteSource interface {
	FetchManifest(ctx context.Context) (*manifest.Manifest, error)
}

// Origin is a remote that serves both the manifest and the assets.
type Origin interface {
	Fetcher
	RemoteSource
	io.Closer
}

// progressCounter turns cumulative byte counts into Progress reports.
type progressCounter struct {
	fn    ProgressFunc
	total uint64
	last  uint64
}

func (c *progressCounter) report(downloaded uint64) {
	if c.fn == nil || downloaded < c.last {
		return
	}
	delta := downloaded - c.last
	c.last = downloaded
	c.fn(Progress{Downloaded: downloaded, Delta: delta, Total: c.total})
}

// countingReader reports every read through a progressCounter.
type countingReader struct {
	r       io.Reader
	n       uint64
	counter *progressCounter
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.n += uint64(n)
		cr.counter.report(cr.n)
	}
	return n, err
}
