// Package assetver compares the two-segment `major.minor` version strings
// that label asset manifests.
package assetver

import (
	"cmp"
	"strconv"
	"strings"
)

// Result is the outcome of comparing full (major, minor) versions.
type Result int

const (
	RemoteHigher Result = iota + 1
	Same
	LocalHigher
)

func (r Result) String() string {
	switch r {
	case RemoteHigher:
		return "remote_higher"
	case Same:
		return "same"
	case LocalHigher:
		return "local_higher"
	default:
		return "unknown"
	}
}

// MajorResult is the outcome of comparing only the major segments.
type MajorResult int

const (
	RemoteHigherMajor MajorResult = iota + 1
	SameMajor
	LocalHigherMajor
)

func (r MajorResult) String() string {
	switch r {
	case RemoteHigherMajor:
		return "remote_higher_major"
	case SameMajor:
		return "same_major"
	case LocalHigherMajor:
		return "local_higher_major"
	default:
		return "unknown"
	}
}

// Version is a parsed version string. The zero value is the absent
// version, which sorts below every present one including 0.0.
type Version struct {
	Major   int
	Minor   int
	Present bool
}

// Parse never fails: malformed segments read as 0, a missing minor is 0 and
// anything past the second segment is ignored.
func Parse(s string) Version {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}
	}

	majorStr, rest, _ := strings.Cut(s, ".")
	minorStr, _, _ := strings.Cut(rest, ".")

	return Version{
		Major:   segment(majorStr),
		Minor:   segment(minorStr),
		Present: true,
	}
}

func segment(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (v Version) String() string {
	if !v.Present {
		return ""
	}
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// compareMajor orders majors with absent below everything.
func compareMajor(a, b Version) int {
	if c := cmp.Compare(boolRank(a.Present), boolRank(b.Present)); c != 0 {
		return c
	}
	return cmp.Compare(a.Major, b.Major)
}

func compareFull(a, b Version) int {
	if c := compareMajor(a, b); c != 0 {
		return c
	}
	return cmp.Compare(a.Minor, b.Minor)
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compare reports how the remote version relates to the local one, both as
// a full comparison and as a major-only comparison. Either side may be
// empty when no version was ever recorded.
func Compare(remote, local string) (Result, MajorResult) {
	r, l := Parse(remote), Parse(local)

	var full Result
	switch c := compareFull(r, l); {
	case c > 0:
		full = RemoteHigher
	case c < 0:
		full = LocalHigher
	default:
		full = Same
	}

	var major MajorResult
	switch c := compareMajor(r, l); {
	case c > 0:
		major = RemoteHigherMajor
	case c < 0:
		major = LocalHigherMajor
	default:
		major = SameMajor
	}

	return full, major
}
