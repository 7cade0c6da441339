package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/openmined/assetsync/internal/client/config"
	"github.com/openmined/assetsync/internal/client/workspace"
	"github.com/openmined/assetsync/internal/journal"
	"github.com/openmined/assetsync/internal/manifest"
	"github.com/openmined/assetsync/internal/router"
	"github.com/openmined/assetsync/internal/storage"
	"github.com/openmined/assetsync/internal/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// publish builds and writes the manifest and version marker for dir.
func publish(t *testing.T, dir, version string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Build(dir, manifest.BuildOptions{
		Version:      version,
		ManifestName: storage.DefaultManifestName,
		VersionName:  storage.DefaultVersionName,
	})
	require.NoError(t, err)

	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)
	tier := storage.NewTier("publish", store, "", "")
	tier.Manifest = m
	require.NoError(t, tier.Save())
	return m
}

type env struct {
	remoteDir string
	cfg       *config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	tmp := t.TempDir()
	e := &env{remoteDir: filepath.Join(tmp, "remote")}

	writeFile(t, e.remoteDir, "ui/logo.png", "logo-v2")
	writeFile(t, e.remoteDir, "levels/1.dat", "level one")
	writeFile(t, e.remoteDir, "video/intro.mp4", "intro")
	publish(t, e.remoteDir, "1.2")

	bundledDir := filepath.Join(tmp, "bundled")
	writeFile(t, bundledDir, "levels/1.dat", "level one")
	writeFile(t, bundledDir, "ui/logo.png", "logo-v1")
	publish(t, bundledDir, "1.0")

	srv := httptest.NewServer(http.FileServer(http.Dir(e.remoteDir)))
	t.Cleanup(srv.Close)

	e.cfg = &config.Config{
		BundledDir:  bundledDir,
		DataDir:     filepath.Join(tmp, "data"),
		RemoteURL:   srv.URL,
		DynamicOnly: []string{"video/**"},
	}
	return e
}

func TestClient_SyncAndResolve(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c, err := New(ctx, e.cfg)
	require.NoError(t, err)
	defer c.Close()

	sub := c.Subscribe()

	res, err := c.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, router.SameToRemote, res.Policy)
	assert.Equal(t, []string{"ui/logo.png"}, res.Plan.Fetch)
	assert.Empty(t, res.Mismatches)

	var sawDone bool
	for len(sub) > 0 {
		n := <-sub
		if n.Progress != nil && n.Progress.Phase == syncer.PhaseDone {
			sawDone = true
		}
	}
	assert.True(t, sawDone)

	data, err := os.ReadFile(filepath.Join(e.cfg.DataDir, "ui", "logo.png"))
	require.NoError(t, err)
	assert.Equal(t, "logo-v2", string(data))

	path, loc, err := c.Resolve(ctx, "ui/logo.png")
	require.NoError(t, err)
	assert.Equal(t, router.Downloaded, loc)
	assert.Equal(t, filepath.Join(e.cfg.DataDir, "ui", "logo.png"), path)

	path, loc, err = c.Resolve(ctx, "levels/1.dat")
	require.NoError(t, err)
	assert.Equal(t, router.Bundled, loc)
	assert.Equal(t, filepath.Join(e.cfg.BundledDir, "levels", "1.dat"), path)

	path, loc, err = c.Resolve(ctx, "video/intro.mp4")
	require.NoError(t, err)
	assert.Equal(t, router.None, loc)
	assert.Empty(t, path)

	_, _, err = c.Resolve(ctx, "nope.txt")
	assert.ErrorIs(t, err, router.ErrNotInRemoteManifest)

	marker, err := os.ReadFile(filepath.Join(e.cfg.DataDir, storage.DefaultVersionName))
	require.NoError(t, err)
	assert.Equal(t, "1.2\n", string(marker))
}

func TestClient_PlanThenResolveWithoutSync(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c, err := New(ctx, e.cfg)
	require.NoError(t, err)
	defer c.Close()

	_, loc, err := c.Resolve(ctx, "ui/logo.png")
	require.NoError(t, err)
	assert.Equal(t, router.None, loc)
	assert.NoFileExists(t, filepath.Join(e.cfg.DataDir, "ui", "logo.png"))
}

func TestClient_SingleWriter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c1, err := New(ctx, e.cfg)
	require.NoError(t, err)

	cfg2 := *e.cfg
	_, err = New(ctx, &cfg2)
	assert.ErrorIs(t, err, workspace.ErrWorkspaceLocked)

	require.NoError(t, c1.Close())
	c2, err := New(ctx, &cfg2)
	require.NoError(t, err)
	require.NoError(t, c2.Close())
}

func TestClient_RecoversJournal(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.cfg.Validate())

	j := journal.New(e.cfg.JournalPath)
	require.NoError(t, j.Open())
	require.NoError(t, j.RecordPut(manifest.Entry{Path: "ui/logo.png", Size: 7, Hash: manifest.HashBytes([]byte("logo-v2"))}))
	require.NoError(t, j.Close())
	writeFile(t, e.cfg.DataDir, "ui/logo.png", "logo-v2")

	c, err := New(context.Background(), e.cfg)
	require.NoError(t, err)
	defer c.Close()

	text, err := os.ReadFile(filepath.Join(e.cfg.DataDir, storage.DefaultManifestName))
	require.NoError(t, err)
	m, err := manifest.ParseAll(string(text))
	require.NoError(t, err)
	assert.True(t, m.Has("ui/logo.png"))

	res, err := c.Plan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Plan.Fetch)
}

func TestClient_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), &config.Config{})
	assert.ErrorIs(t, err, config.ErrNoBundledDir)
}

func TestClient_ResolveWhileSyncing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c, err := New(ctx, e.cfg)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Plan(ctx)
	require.NoError(t, err)

	syncErr := make(chan error, 1)
	go func() {
		_, err := c.Sync(ctx)
		syncErr <- err
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				_, loc, err := c.Resolve(ctx, "ui/logo.png")
				if !assert.NoError(t, err) {
					return
				}
				assert.Contains(t, []router.Location{router.None, router.Downloaded}, loc)

				_, loc, err = c.Resolve(ctx, "levels/1.dat")
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, router.Bundled, loc)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, <-syncErr)

	_, loc, err := c.Resolve(ctx, "ui/logo.png")
	require.NoError(t, err)
	assert.Equal(t, router.Downloaded, loc)
}

func TestClient_LoadsDamagedDownloadedList(t *testing.T) {
	e := newEnv(t)
	writeFile(t, e.cfg.DataDir, "ui/logo.png", "logo-v2")
	entry := manifest.Entry{Path: "ui/logo.png", Size: 7, Hash: manifest.HashBytes([]byte("logo-v2"))}
	writeFile(t, e.cfg.DataDir, storage.DefaultManifestName, "not-a-count\n"+entry.String()+"\n")

	c, err := New(context.Background(), e.cfg)
	require.NoError(t, err)
	defer c.Close()

	res, err := c.Sync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Plan.Fetch)

	_, loc, err := c.Resolve(context.Background(), "ui/logo.png")
	require.NoError(t, err)
	assert.Equal(t, router.Downloaded, loc)
}
