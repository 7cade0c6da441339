package main

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/openmined/assetsync/internal/diff"
	"github.com/openmined/assetsync/internal/router"
	"github.com/openmined/assetsync/internal/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func samplePlanView() planView {
	return newPlanView(&syncer.Result{
		Policy:        router.SameToRemote,
		LocalVersion:  "1.0",
		RemoteVersion: "1.1",
		Plan: &diff.Plan{
			Fetch:            []string{"levels/1.bin", "ui/logo.png"},
			FetchBytes:       2048,
			DeleteDownloaded: []string{"old.bin"},
			DeleteBundled:    []string{"legacy.bin"},
		},
	})
}

func TestCheckFormat(t *testing.T) {
	for _, f := range []string{formatText, formatJSON, formatYAML} {
		assert.NoError(t, checkFormat(f), f)
	}
	assert.Error(t, checkFormat("xml"))
	assert.Error(t, checkFormat(""))
}

func TestNewPlanView_NilPlan(t *testing.T) {
	v := newPlanView(&syncer.Result{Policy: router.BundledOnly, Offline: true})

	assert.Equal(t, "bundled_only", v.Policy)
	assert.True(t, v.Offline)
	assert.NotNil(t, v.Fetch)
	assert.Empty(t, v.Fetch)
	assert.Zero(t, v.FetchBytes)
}

func TestRenderPlanJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderPlan(&buf, samplePlanView(), formatJSON))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "same_to_remote", got["policy"])
	assert.Equal(t, "1.1", got["remoteVersion"])
	assert.EqualValues(t, 2048, got["fetchBytes"])
	assert.Len(t, got["fetch"], 2)
}

func TestRenderPlanYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderPlan(&buf, samplePlanView(), formatYAML))

	var got planView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, samplePlanView(), got)
	assert.Contains(t, buf.String(), "local_version: \"1.0\"")
}

func TestRenderPlanText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderPlan(&buf, samplePlanView(), formatText))

	out := buf.String()
	assert.Contains(t, out, "same_to_remote")
	assert.Contains(t, out, "1.0 -> 1.1")
	assert.Contains(t, out, "Fetch:    2 files (2.0 kB)")
	assert.Contains(t, out, "levels/1.bin")
	assert.Contains(t, out, "Delete:   1 downloaded, 1 bundled")
	assert.Contains(t, out, "legacy.bin")
	assert.NotContains(t, out, "Remote unreachable")
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &syncer.Result{
		Policy:        router.SameToRemote,
		RemoteVersion: "2.0",
		Downloaded:    3,
		Mismatches:    []string{"a.bin"},
	})

	out := buf.String()
	assert.Contains(t, out, "(none) -> 2.0")
	assert.Contains(t, out, "Downloaded 3 files")
	assert.Contains(t, out, "1 files did not match")
	assert.NotContains(t, out, "Offline")
}
