package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assetServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.Error(w, "not here", http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) Config {
	return Config{URL: url, RetryCount: 0}
}

func TestProgress_Fraction(t *testing.T) {
	assert.Equal(t, 0.0, Progress{Downloaded: 5}.Fraction())
	assert.Equal(t, 0.5, Progress{Downloaded: 5, Total: 10}.Fraction())
	assert.Equal(t, 1.0, Progress{Downloaded: 15, Total: 10}.Fraction())
}

func TestProgressCounter_Deltas(t *testing.T) {
	var got []Progress
	c := &progressCounter{fn: func(p Progress) { got = append(got, p) }, total: 10}
	c.report(4)
	c.report(4)
	c.report(10)
	c.report(3)

	require.Len(t, got, 3)
	assert.Equal(t, Progress{Downloaded: 4, Delta: 4, Total: 10}, got[0])
	assert.Equal(t, uint64(0), got[1].Delta)
	assert.Equal(t, Progress{Downloaded: 10, Delta: 6, Total: 10}, got[2])
}

func TestCountingReader(t *testing.T) {
	var last Progress
	cr := &countingReader{
		r:       strings.NewReader("hello world"),
		counter: &progressCounter{fn: func(p Progress) { last = p }, total: 11},
	}
	buf := make([]byte, 4)
	for {
		if _, err := cr.Read(buf); err != nil {
			break
		}
	}
	assert.Equal(t, uint64(11), last.Downloaded)
	assert.Equal(t, 1.0, last.Fraction())
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	body := strings.Repeat("x", 64*1024)
	srv := assetServer(t, map[string]string{
		"/ui/icon one.png": body,
		"/empty.bin":       "",
	})

	f, err := NewHTTPFetcher(testConfig(srv.URL))
	require.NoError(t, err)
	defer f.Close()

	var mu sync.Mutex
	var reported uint64
	data, err := f.Fetch(context.Background(), "ui/icon one.png", func(p Progress) {
		mu.Lock()
		reported += p.Delta
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
	mu.Lock()
	assert.LessOrEqual(t, reported, uint64(len(body)))
	mu.Unlock()

	data, err = f.Fetch(context.Background(), "empty.bin", nil)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestHTTPFetcher_NotFound(t *testing.T) {
	srv := assetServer(t, nil)
	f, err := NewHTTPFetcher(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "missing.bin", nil)
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, CodeNotFound, te.Code)
	assert.Equal(t, http.StatusNotFound, te.Status)
	assert.Equal(t, "missing.bin", te.Path)
	assert.True(t, IsNotFound(err))
}

func TestHTTPFetcher_Network(t *testing.T) {
	srv := assetServer(t, nil)
	url := srv.URL
	srv.Close()

	f, err := NewHTTPFetcher(testConfig(url))
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "a", nil)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, CodeNetwork, te.Code)
}

func TestHTTPSource_FetchManifest(t *testing.T) {
	srv := assetServer(t, map[string]string{
		"/filelist.txt": "2\na.txt\t1\th1\nb.txt\t2\th2",
		"/version.txt":  "2.3\n",
	})
	s, err := NewHTTPSource(testConfig(srv.URL))
	require.NoError(t, err)
	defer s.Close()

	m, err := s.FetchManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.3", m.Version)
	assert.Equal(t, []string{"a.txt", "b.txt"}, m.Paths())
}

func TestHTTPSource_MissingVersion(t *testing.T) {
	srv := assetServer(t, map[string]string{
		"/filelist.txt": "1\na.txt\t1\th1",
	})
	s, err := NewHTTPSource(testConfig(srv.URL))
	require.NoError(t, err)

	m, err := s.FetchManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", m.Version)
	assert.Equal(t, 1, m.Len())
}

func TestHTTPSource_MissingManifest(t *testing.T) {
	srv := assetServer(t, nil)
	s, err := NewHTTPSource(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = s.FetchManifest(context.Background())
	assert.True(t, IsNotFound(err))
}

func TestNewOrigin_Scheme(t *testing.T) {
	ctx := context.Background()

	_, err := NewOrigin(ctx, Config{})
	assert.ErrorIs(t, err, ErrNoOriginURL)

	_, err = NewOrigin(ctx, Config{URL: "ftp://example.com/assets"})
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	o, err := NewOrigin(ctx, Config{URL: "https://cdn.example.com/assets"})
	require.NoError(t, err)
	assert.IsType(t, &httpOrigin{}, o)
	assert.NoError(t, o.Close())
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "/a/b%20c/d%23.png", escapePath("a/b c/d#.png"))
	assert.Equal(t, "/a", escapePath("/a"))
}

func TestParseS3URL(t *testing.T) {
	bucket, prefix, err := parseS3URL("s3://assets/game/v2/")
	require.NoError(t, err)
	assert.Equal(t, "assets", bucket)
	assert.Equal(t, "game/v2", prefix)

	_, _, err = parseS3URL("s3:///nobucket")
	assert.Error(t, err)
}

func TestStatusError(t *testing.T) {
	te := statusError("ui/a.png", http.StatusNotFound, `{"code":"E_ASSET_NOT_FOUND","error":"asset \"ui/a.png\" not found"}`)
	assert.Equal(t, CodeNotFound, te.Code)
	assert.Equal(t, "E_ASSET_NOT_FOUND", te.OriginCode)
	assert.Equal(t, `asset "ui/a.png" not found`, te.Message)
	assert.True(t, IsNotFound(te))

	te = statusError("b.bin", http.StatusBadGateway, "")
	assert.Equal(t, CodeServerError, te.Code)
	assert.Empty(t, te.OriginCode)
	assert.Equal(t, "Bad Gateway", te.Message)

	te = statusError("c.bin", http.StatusTooManyRequests, "{not json")
	assert.Equal(t, CodeRateLimited, te.Code)
	assert.Equal(t, "{not json", te.Message)
}
