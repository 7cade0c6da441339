package syncer

import (
	"github.com/openmined/assetsync/internal/diff"
	"github.com/openmined/assetsync/internal/router"
)

// Session is the mutable state of one run. It is created by Run and dropped
// when Run returns.
type Session struct {
	// ID identifies the run in logs and in its Result.
	ID            string
	Policy        router.Policy
	LocalVersion  string
	RemoteVersion string
	Plan          *diff.Plan

	// Pending lists the fetch set entries not yet started, in fetch order.
	Pending             []string
	Completed           int
	BytesDone           uint64
	TotalBytesRemaining uint64
	SpeedBytesPerSec    float64
	Mismatches          []string
	// Dirty is set once the downloaded manifest differs from its file.
	Dirty bool
	// Offline is set when the remote was unreachable and bundled files serve reads.
	Offline bool

	remoteErr error
}

func (s *Session) total() int {
	if s.Plan == nil {
		return 0
	}
	return len(s.Plan.Fetch)
}

// fraction is byte based, falling back to file counts when the fetch set
// carries no bytes.
func (s *Session) fraction(current uint64) float64 {
	if s.Plan == nil {
		return 0
	}
	if s.Plan.FetchBytes > 0 {
		f := float64(s.BytesDone+current) / float64(s.Plan.FetchBytes)
		if f > 1 {
			return 1
		}
		return f
	}
	if n := s.total(); n > 0 {
		return float64(s.Completed) / float64(n)
	}
	return 0
}

// Result summarises a finished run.
type Result struct {
	SessionID     string
	Policy        router.Policy
	LocalVersion  string
	RemoteVersion string
	Plan          *diff.Plan
	Downloaded    int
	Mismatches    []string
	// Offline is set when the remote was unreachable and bundled files were used.
	Offline bool
}

func (s *Session) result() *Result {
	return &Result{
		SessionID:     s.ID,
		Policy:        s.Policy,
		LocalVersion:  s.LocalVersion,
		RemoteVersion: s.RemoteVersion,
		Plan:          s.Plan,
		Downloaded:    s.Completed,
		Mismatches:    s.Mismatches,
		Offline:       s.Offline,
	}
}
