package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openmined/assetsync/internal/assetver"
)

// DefaultFullPackageThreshold is the legacy heuristic: a bundled manifest
// with this many entries or fewer is a thin install that cannot run on its
// own.
const DefaultFullPackageThreshold = 5

var (
	ErrFullPackageRequired = errors.New("router: local version is ahead of remote but the install is not a full package")
	ErrUnknownPolicy       = errors.New("router: unknown read policy")
)

// Policy decides which storage tier serves reads for the whole session.
type Policy int

const (
	Undetermined Policy = iota
	SameToRemote
	BundledOnly
	RemoteOnly
)

func (p Policy) String() string {
	switch p {
	case SameToRemote:
		return "same_to_remote"
	case BundledOnly:
		return "bundled_only"
	case RemoteOnly:
		return "remote_only"
	default:
		return "undetermined"
	}
}

// ParsePolicy accepts the names produced by String. Empty input is
// Undetermined, which means "let the version check decide".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "undetermined":
		return Undetermined, nil
	case "same_to_remote":
		return SameToRemote, nil
	case "bundled_only":
		return BundledOnly, nil
	case "remote_only":
		return RemoteOnly, nil
	default:
		return Undetermined, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// SelectPolicy runs once per session, before the first read:
//
//	LocalHigherMajor  -> BundledOnly, or ErrFullPackageRequired for a thin install
//	RemoteHigherMajor -> SameToRemote
//	SameMajor         -> SameToRemote
func SelectPolicy(major assetver.MajorResult, bundledCount, threshold int) (Policy, error) {
	switch major {
	case assetver.LocalHigherMajor:
		if bundledCount > threshold {
			return BundledOnly, nil
		}
		return Undetermined, fmt.Errorf("%w (%d bundled files, need more than %d)", ErrFullPackageRequired, bundledCount, threshold)
	case assetver.RemoteHigherMajor, assetver.SameMajor:
		return SameToRemote, nil
	default:
		return Undetermined, fmt.Errorf("router: invalid major comparison %d", major)
	}
}
