package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/openmined/assetsync/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAssets(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, body := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
	return dir
}

func readAll(t *testing.T, obj *GetObjectResponse) string {
	t.Helper()
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	return string(data)
}

func TestValidateKey(t *testing.T) {
	valid := []string{"a.png", "ui/a.png", "deep/nested/file.bin"}
	invalid := []string{"", "/abs", "../up", "a/../b", "a//b", "./a", "a\\b", "dir/"}

	for _, k := range valid {
		assert.True(t, ValidateKey(k), k)
	}
	for _, k := range invalid {
		assert.False(t, ValidateKey(k), k)
	}
}

func TestLocalBackend_GetObject(t *testing.T) {
	dir := writeAssets(t, map[string]string{"ui/a.png": "hello"})
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)

	obj, err := b.GetObject(context.Background(), "ui/a.png")
	require.NoError(t, err)
	assert.EqualValues(t, 5, obj.Size)
	assert.NotEmpty(t, obj.ETag)
	assert.Equal(t, "hello", readAll(t, obj))

	_, err = b.GetObject(context.Background(), "ui/missing.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = b.GetObject(context.Background(), "ui")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = b.GetObject(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)

	ok, err := b.Exists(context.Background(), "ui/a.png")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewLocalBackend_MissingDir(t *testing.T) {
	_, err := NewLocalBackend(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestBlobService_BuildsManifestForPlainDir(t *testing.T) {
	dir := writeAssets(t, map[string]string{
		"a.txt":       "aaa",
		"ui/b.png":    "bbbb",
		"version.txt": "2.0\n",
	})
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)
	svc := NewBlobService(b, ServiceConfig{})

	m, err := svc.Manifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.0", m.Version)
	assert.Equal(t, []string{"a.txt", "ui/b.png"}, m.Paths())

	e, ok := m.Get("ui/b.png")
	require.True(t, ok)
	assert.Equal(t, manifest.HashBytes([]byte("bbbb")), e.Hash)

	// the generated manifest is served under the manifest key
	obj, err := svc.GetObject(context.Background(), "filelist.txt")
	require.NoError(t, err)
	parsed, err := manifest.ParseAllStrict(readAll(t, obj))
	require.NoError(t, err)
	assert.Equal(t, m.Paths(), parsed.Paths())
}

func TestBlobService_PrefersPublishedManifest(t *testing.T) {
	published := manifest.New("", manifest.Entry{Path: "only.bin", Size: 3, Hash: "abc"})
	dir := writeAssets(t, map[string]string{
		"filelist.txt": published.SerializeAll(),
		"version.txt":  "7\n",
		"only.bin":     "xyz",
		"extra.bin":    "not listed",
	})
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)
	svc := NewBlobService(b, ServiceConfig{})

	m, err := svc.Manifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7", m.Version)
	assert.Equal(t, []string{"only.bin"}, m.Paths())
}

func TestBlobService_VersionOverride(t *testing.T) {
	dir := writeAssets(t, map[string]string{"a.txt": "a", "version.txt": "1\n"})
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)
	svc := NewBlobService(b, ServiceConfig{Version: "9.9"})

	m, err := svc.Manifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9.9", m.Version)

	// a stored marker still wins for raw downloads
	obj, err := svc.GetObject(context.Background(), "version.txt")
	require.NoError(t, err)
	assert.Equal(t, "1\n", readAll(t, obj))
}

func TestBlobService_GeneratedVersionMarker(t *testing.T) {
	dir := writeAssets(t, map[string]string{"a.txt": "a"})
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)

	svc := NewBlobService(b, ServiceConfig{})
	_, err = svc.GetObject(context.Background(), "version.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	svc = NewBlobService(b, ServiceConfig{Version: "3.1"})
	obj, err := svc.GetObject(context.Background(), "version.txt")
	require.NoError(t, err)
	assert.Equal(t, "3.1\n", readAll(t, obj))
}

func TestBlobService_Invalidate(t *testing.T) {
	dir := writeAssets(t, map[string]string{"a.txt": "a"})
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)
	svc := NewBlobService(b, ServiceConfig{})

	m, err := svc.Manifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))

	m, err = svc.Manifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len(), "cached until invalidated")

	svc.Invalidate()
	m, err = svc.Manifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
}

func TestBlobService_MalformedPublishedManifest(t *testing.T) {
	dir := writeAssets(t, map[string]string{"filelist.txt": "many\na.txt\t1\thash"})
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)

	_, err = NewBlobService(b, ServiceConfig{}).Manifest(context.Background())
	assert.ErrorIs(t, err, manifest.ErrMalformedHeader)
}

const noSuchKey = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

func fakeS3(t *testing.T, bucket string, objects map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/"+bucket+"/")
		body, ok := objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				w.Write([]byte(noSuchKey))
			}
			return
		}
		if r.Method == http.MethodHead {
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestS3Backend(endpoint string) *S3Backend {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
		Credentials:  aws.AnonymousCredentials{},
	})
	return NewS3Backend(client, &S3Config{BucketName: "assets", Prefix: "game"})
}

func TestS3Backend(t *testing.T) {
	srv := fakeS3(t, "assets", map[string]string{
		"game/filelist.txt": "1\nui/a.png\t5\thash",
		"game/version.txt":  "4.0\n",
		"game/ui/a.png":     "hello",
	})
	b := newTestS3Backend(srv.URL)

	obj, err := b.GetObject(context.Background(), "ui/a.png")
	require.NoError(t, err)
	assert.Equal(t, "hello", readAll(t, obj))

	_, err = b.GetObject(context.Background(), "ui/missing.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	ok, err := b.Exists(context.Background(), "ui/a.png")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Exists(context.Background(), "ui/missing.png")
	require.NoError(t, err)
	assert.False(t, ok)

	svc := NewBlobService(b, ServiceConfig{})
	m, err := svc.Manifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4.0", m.Version)
	assert.True(t, m.Has("ui/a.png"))
}

func TestS3Backend_ManifestNotPublished(t *testing.T) {
	srv := fakeS3(t, "assets", map[string]string{"game/ui/a.png": "hello"})
	svc := NewBlobService(newTestS3Backend(srv.URL), ServiceConfig{})

	_, err := svc.Manifest(context.Background())
	assert.ErrorIs(t, err, ErrManifestNotPublished)
}

func TestS3Config_Validate(t *testing.T) {
	cfg := &S3Config{BucketName: "b", Prefix: "/game/", Region: "r", AccessKey: "k", SecretKey: "s"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "game", cfg.Prefix)

	cfg.Endpoint = "not a url"
	assert.Error(t, cfg.Validate())

	assert.Error(t, (&S3Config{Region: "r"}).Validate())
}
