package diff

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/assetsync/internal/manifest"
	"github.com/stretchr/testify/assert"
)

func e(path string, size uint64, hash string) manifest.Entry {
	return manifest.Entry{Path: path, Size: size, Hash: hash}
}

func TestDeletions_DisjointManifests(t *testing.T) {
	local := manifest.New("1.0", e("a", 1, "h1"), e("b", 2, "h2"))
	remote := manifest.New("1.1", e("c", 3, "h3"))

	got := Deletions(local, remote)
	assert.True(t, got.Equal(mapset.NewThreadUnsafeSet("a", "b")))
}

func TestDeletions_ChangedIsNotDeleted(t *testing.T) {
	local := manifest.New("1.0", e("a", 1, "h1"), e("b", 2, "h2"))
	remote := manifest.New("1.1", e("a", 1, "changed"))

	got := Deletions(local, remote)
	assert.True(t, got.Equal(mapset.NewThreadUnsafeSet("b")))
}

func TestFetchSet_IdenticalEntriesExcluded(t *testing.T) {
	remote := manifest.New("1.1", e("a", 1, "h1"), e("b", 2, "h2"), e("c", 3, "h3"))
	downloaded := manifest.New("1.0", e("a", 1, "h1"))
	bundled := manifest.New("1.0", e("b", 2, "h2"), e("c", 3, "stale"))

	assert.Equal(t, []string{"c"}, FetchSet(bundled, downloaded, remote, Options{}))
}

func TestFetchSet_EmptyLocalFollowsRemoteOrder(t *testing.T) {
	remote := manifest.New("1.0", e("z", 1, "h"), e("a", 1, "h"), e("m/n", 1, "h"))

	got := FetchSet(manifest.New(""), manifest.New(""), remote, Options{})
	assert.Equal(t, []string{"z", "a", "m/n"}, got)
}

func TestFetchSet_SizeMismatchFetches(t *testing.T) {
	remote := manifest.New("1.0", e("a", 10, "h1"))
	downloaded := manifest.New("1.0", e("a", 9, "h1"))

	assert.Equal(t, []string{"a"}, FetchSet(nil, downloaded, remote, Options{}))
}

func TestFetchSet_Exclusions(t *testing.T) {
	remote := manifest.New("1.0",
		e("filelist.txt", 10, "h"),
		e("version.txt", 4, "h"),
		e("video/intro.mp4", 100, "h"),
		e("video/chapter1/cut.mp4", 100, "h"),
		e("voice/en.pak", 50, "h"),
		e("ui/main.bundle", 20, "h"),
	)

	got := FetchSet(nil, nil, remote, Options{
		ManifestName: "filelist.txt",
		VersionName:  "version.txt",
		DynamicOnly:  NewDynamicOnly("video/**/*.mp4", "voice/en.pak"),
	})
	assert.Equal(t, []string{"ui/main.bundle"}, got)
}

func TestScenario_PartialDownload(t *testing.T) {
	remote := manifest.New("1.0", e("a.txt", 10, "h1"), e("b.txt", 20, "h2"))
	downloaded := manifest.New("1.0", e("a.txt", 10, "h1"))
	bundled := manifest.New("")

	assert.Equal(t, []string{"b.txt"}, FetchSet(bundled, downloaded, remote, Options{}))
	assert.Equal(t, 0, Deletions(downloaded, remote).Cardinality())
}

func TestCompute(t *testing.T) {
	remote := manifest.New("2.0", e("keep", 1, "h"), e("new", 5, "n"), e("changed", 7, "c2"))
	downloaded := manifest.New("1.0", e("gone2", 1, "g"), e("changed", 7, "c1"), e("gone1", 1, "g"))
	bundled := manifest.New("1.0", e("keep", 1, "h"), e("old", 1, "o"))

	plan := Compute(bundled, downloaded, remote, Options{})

	assert.Equal(t, []string{"gone2", "gone1"}, plan.DeleteDownloaded)
	assert.Equal(t, []string{"old"}, plan.DeleteBundled)
	assert.Equal(t, []string{"new", "changed"}, plan.Fetch)
	assert.Equal(t, uint64(12), plan.FetchBytes)
	assert.False(t, plan.Empty())

	noop := Compute(remote, remote.Clone(), remote, Options{})
	assert.True(t, noop.Empty())
}

func TestDynamicOnly(t *testing.T) {
	d := NewDynamicOnly("exact.bin", "", "dlc/**", "[invalid")

	assert.True(t, d.Match("exact.bin"))
	assert.True(t, d.Match("dlc/pack1/a.bundle"))
	assert.False(t, d.Match("core/a.bundle"))
	assert.Equal(t, 2, d.Len())

	var none *DynamicOnly
	assert.False(t, none.Match("anything"))
}
