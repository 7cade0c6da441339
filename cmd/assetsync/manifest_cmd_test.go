package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/assetsync/internal/manifest"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runManifestCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := &cobra.Command{Use: "assetsync", SilenceErrors: true}
	root.AddCommand(newManifestCmd())
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"manifest"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestManifestBuildAndVerify(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.txt":        "alpha",
		"levels/1.bin": "level one",
		"notes.tmp":    "scratch",
	})

	out, err := runManifestCmd(t, "build", dir, "--version", "1.2", "--ignore", "*.tmp")
	require.NoError(t, err)
	assert.Contains(t, out, "version 1.2: 2 files")

	text, err := os.ReadFile(filepath.Join(dir, "filelist.txt"))
	require.NoError(t, err)
	m, err := manifest.ParseAllStrict(string(text))
	require.NoError(t, err)
	assert.Equal(t, "1.2", m.Version)
	assert.Equal(t, []string{"a.txt", "levels/1.bin"}, m.Paths())

	marker, err := os.ReadFile(filepath.Join(dir, "version.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1.2", manifest.ParseVersionMarker(string(marker)))

	out, err = runManifestCmd(t, "verify", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "OK 2 files")

	// tamper with one file and drop another
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("ALPHA"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(dir, "levels", "1.bin")))

	out, err = runManifestCmd(t, "verify", dir)
	assert.ErrorIs(t, err, errVerifyFailed)
	assert.Contains(t, out, "mismatch a.txt")
	assert.Contains(t, out, "levels/1.bin")
}

func TestManifestBuild_KeepsPublishedVersion(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.txt":       "alpha",
		"version.txt": manifest.FormatVersionMarker("3.4"),
	})

	_, err := runManifestCmd(t, "build", dir)
	require.NoError(t, err)

	text, err := os.ReadFile(filepath.Join(dir, "filelist.txt"))
	require.NoError(t, err)
	m, err := manifest.ParseAllStrict(string(text))
	require.NoError(t, err)
	assert.Equal(t, "3.4", m.Version)
}

func TestManifestBuild_NeedsVersion(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "alpha"})

	_, err := runManifestCmd(t, "build", dir)
	assert.ErrorContains(t, err, "--version required")
}

func TestManifestVerify_NoManifest(t *testing.T) {
	_, err := runManifestCmd(t, "verify", t.TempDir())
	assert.Error(t, err)
}
