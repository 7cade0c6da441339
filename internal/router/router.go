// Package router answers "where do I read this asset from" for a session
// whose read policy has been settled.
package router

import (
	"errors"
	"fmt"

	"github.com/openmined/assetsync/internal/manifest"
	"github.com/openmined/assetsync/internal/utils"
)

var (
	ErrNotInRemoteManifest = errors.New("router: path not in remote manifest")
	ErrPolicyUndetermined  = errors.New("router: read policy not determined")
)

// Location is the storage tier that serves a read.
type Location int

const (
	// None means no local copy is usable, the file must be downloaded.
	None Location = iota
	Bundled
	Downloaded
)

func (l Location) String() string {
	switch l {
	case Bundled:
		return "bundled"
	case Downloaded:
		return "downloaded"
	default:
		return "none"
	}
}

// Router holds the three manifests and the session policy. The manifests are
// shared with the sync pipeline, which updates downloaded as files land.
type Router struct {
	policy     Policy
	bundled    *manifest.Manifest
	downloaded *manifest.Manifest
	remote     *manifest.Manifest
}

func New(policy Policy, bundled, downloaded, remote *manifest.Manifest) *Router {
	return &Router{
		policy:     policy,
		bundled:    bundled,
		downloaded: downloaded,
		remote:     remote,
	}
}

func (r *Router) Policy() Policy {
	return r.policy
}

// Resolve picks the tier that serves path.
func (r *Router) Resolve(path string) (Location, error) {
	switch r.policy {
	case BundledOnly:
		return Bundled, nil
	case RemoteOnly:
		return None, nil
	case SameToRemote:
		want, ok := r.remote.Get(path)
		if !ok {
			return None, fmt.Errorf("%w: %s", ErrNotInRemoteManifest, path)
		}
		if have, ok := r.downloaded.Get(path); ok && have.Matches(want) {
			return Downloaded, nil
		}
		if have, ok := r.bundled.Get(path); ok && have.Matches(want) {
			return Bundled, nil
		}
		return None, nil
	default:
		return None, ErrPolicyUndetermined
	}
}

// ResolveFile is Resolve followed by mapping the tier onto its root
// directory. An empty result with a nil error means the file must be
// downloaded first.
func (r *Router) ResolveFile(path, bundledRoot, downloadedRoot string) (string, Location, error) {
	loc, err := r.Resolve(path)
	if err != nil {
		return "", loc, err
	}

	var root string
	switch loc {
	case Bundled:
		root = bundledRoot
	case Downloaded:
		root = downloadedRoot
	default:
		return "", loc, nil
	}

	full, err := utils.SafeJoin(root, path)
	if err != nil {
		return "", loc, fmt.Errorf("router: %s: %w", path, err)
	}
	return full, loc, nil
}
