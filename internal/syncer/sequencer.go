// Package syncer drives one asset sync: version check, policy choice, diff,
// deletions and strictly sequential downloads with incremental persistence.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/openmined/assetsync/internal/assetver"
	"github.com/openmined/assetsync/internal/diff"
	"github.com/openmined/assetsync/internal/journal"
	"github.com/openmined/assetsync/internal/manifest"
	"github.com/openmined/assetsync/internal/router"
	"github.com/openmined/assetsync/internal/storage"
	"github.com/openmined/assetsync/internal/transport"
)

const DefaultProgressInterval = time.Second

type Options struct {
	Bundled    *storage.Tier
	Downloaded *storage.Tier
	Source     transport.RemoteSource
	Fetcher    transport.Fetcher
	// Journal is optional. When set, every manifest mutation is recorded.
	Journal  *journal.Journal
	Reporter Reporter

	DynamicOnly *diff.DynamicOnly
	// FullPackageThreshold defaults to router.DefaultFullPackageThreshold
	// when nil. Zero is a valid threshold.
	FullPackageThreshold *int
	ProgressInterval     time.Duration
	// PolicyOverride skips the version-based choice unless Undetermined.
	PolicyOverride  router.Policy
	OfflineFallback bool
	// FreeSpace reports the bytes available to the downloaded tier. When
	// set, a run that would not fit stops before the first download.
	FreeSpace func() (uint64, error)

	Clock func() time.Time
}

// Sequencer runs syncs for one pair of local tiers. Run must not be called
// concurrently; Flush may be called from any goroutine.
type Sequencer struct {
	opts      Options
	reporter  Reporter
	now       func() time.Time
	threshold int

	mu      sync.Mutex
	session *Session
	router  *router.Router
}

func New(opts Options) (*Sequencer, error) {
	if opts.Bundled == nil || opts.Downloaded == nil {
		return nil, ErrMissingTier
	}
	if opts.Source == nil || opts.Fetcher == nil {
		return nil, ErrMissingTransport
	}
	threshold := router.DefaultFullPackageThreshold
	if opts.FullPackageThreshold != nil {
		if *opts.FullPackageThreshold < 0 {
			return nil, fmt.Errorf("sync: negative full package threshold %d", *opts.FullPackageThreshold)
		}
		threshold = *opts.FullPackageThreshold
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}

	s := &Sequencer{
		opts:      opts,
		reporter:  opts.Reporter,
		now:       opts.Clock,
		threshold: threshold,
	}
	if s.reporter == nil {
		s.reporter = nopReporter{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Router returns the read router chosen by the last Run or Plan, or nil
// before one got past the version check. The router shares the downloaded
// manifest with a running sync; use ResolveFile while Run may be active.
func (s *Sequencer) Router() *router.Router {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router
}

// ResolveFile resolves path against the current router under the lock the
// download loop holds while it updates the downloaded manifest. A new
// session keeps the previous router until its own version check installs
// a replacement.
func (s *Sequencer) ResolveFile(path, bundledRoot, downloadedRoot string) (string, router.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.router == nil {
		return "", router.None, router.ErrPolicyUndetermined
	}
	return s.router.ResolveFile(path, bundledRoot, downloadedRoot)
}

// Run performs one sync. It returns ErrAborted when ctx is cancelled, either
// between files or while a file is in flight; an interrupted fetch is
// discarded without writing any of its payload and the file stays pending
// for the next run. A failed fetch returns ErrDownloadFailed wrapped in a
// FileError, and router.ErrFullPackageRequired means the install cannot be
// served.
func (s *Sequencer) Run(ctx context.Context) (*Result, error) {
	sess := s.begin()

	s.phase(PhaseCheckingVersion)
	remote, err := s.decide(ctx, sess)
	switch {
	case errors.Is(err, ErrAborted):
		return nil, err
	case errors.Is(err, ErrRemoteUnavailable):
		s.reporter.Tip(Tip{Kind: TipRemoteUnavailable, Err: err})
		return nil, err
	case err != nil:
		s.reporter.Tip(Tip{Kind: TipFullPackageRequired, Err: err})
		s.phase(PhaseFinalizing)
		return nil, err
	}

	if sess.Policy == router.BundledOnly {
		if sess.Offline {
			s.reporter.Tip(Tip{Kind: TipRemoteUnavailable, Err: sess.remoteErr})
		}
		s.phase(PhaseBundledOnly)
		s.phase(PhaseFinalizing)
		s.done(sess)
		return sess.result(), nil
	}
	s.phase(PhaseSameToRemote)

	s.phase(PhaseComputingDiff)
	plan := s.compute(sess, remote)
	sess.Pending = append([]string(nil), plan.Fetch...)
	sess.TotalBytesRemaining = plan.FetchBytes

	s.phase(PhaseDeleting)
	s.deleteStale(sess, plan)
	if err := s.checkSpace(plan.FetchBytes); err != nil {
		if ferr := s.Flush(); ferr != nil {
			slog.Error("sync flush", "error", ferr)
		}
		return sess.result(), err
	}

	s.phase(PhaseDownloading)
	if err := s.downloadAll(ctx, sess, remote); err != nil {
		return sess.result(), err
	}

	s.phase(PhaseFinalizing)
	if err := s.finalize(sess); err != nil {
		return sess.result(), err
	}
	s.done(sess)
	return sess.result(), nil
}

// Plan runs the version check and diff without touching any tier. It
// leaves the router in place so reads can be resolved without a sync.
func (s *Sequencer) Plan(ctx context.Context) (*Result, error) {
	sess := s.begin()
	remote, err := s.decide(ctx, sess)
	if err != nil {
		return nil, err
	}
	if sess.Policy != router.BundledOnly {
		s.compute(sess, remote)
	}
	return sess.result(), nil
}

func (s *Sequencer) begin() *Session {
	sess := &Session{ID: uuid.NewString()}
	slog.Debug("sync session", "id", sess.ID)
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
	return sess
}

// decide fetches the remote manifest, compares versions and installs the
// router for the chosen policy. A nil remote with a nil error means the
// remote was unreachable and the offline fallback applies.
func (s *Sequencer) decide(ctx context.Context, sess *Session) (*manifest.Manifest, error) {
	bundled := s.opts.Bundled.Manifest
	downloaded := s.opts.Downloaded.Manifest

	remote, err := s.opts.Source.FetchManifest(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrAborted
		}
		err = fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
		if !s.opts.OfflineFallback || bundled.Len() <= s.threshold {
			return nil, err
		}
		slog.Warn("sync remote unavailable, using bundled files", "error", err, "bundled", bundled.Len())
		sess.Policy = router.BundledOnly
		sess.LocalVersion = bundled.Version
		sess.Offline = true
		sess.remoteErr = err
		s.setRouter(router.New(router.BundledOnly, bundled, downloaded, manifest.New("")))
		return nil, nil
	}

	sess.RemoteVersion = remote.Version
	sess.LocalVersion = downloaded.Version
	if sess.LocalVersion == "" {
		sess.LocalVersion = bundled.Version
	}

	policy, err := s.choosePolicy(sess)
	sess.Policy = policy
	s.setRouter(router.New(policy, bundled, downloaded, remote))
	if err != nil {
		return nil, err
	}
	return remote, nil
}

func (s *Sequencer) compute(sess *Session, remote *manifest.Manifest) *diff.Plan {
	plan := diff.Compute(s.opts.Bundled.Manifest, s.opts.Downloaded.Manifest, remote, diff.Options{
		DynamicOnly:  s.opts.DynamicOnly,
		ManifestName: s.opts.Downloaded.ManifestName,
		VersionName:  s.opts.Downloaded.VersionName,
	})
	sess.Plan = plan
	slog.Info("sync plan",
		"policy", sess.Policy,
		"local", sess.LocalVersion,
		"remote", sess.RemoteVersion,
		"fetch", len(plan.Fetch),
		"bytes", humanize.Bytes(plan.FetchBytes),
		"delete", len(plan.DeleteDownloaded)+len(plan.DeleteBundled),
	)
	return plan
}

func (s *Sequencer) choosePolicy(sess *Session) (router.Policy, error) {
	if s.opts.PolicyOverride != router.Undetermined {
		slog.Info("sync policy override", "policy", s.opts.PolicyOverride)
		return s.opts.PolicyOverride, nil
	}
	full, major := assetver.Compare(sess.RemoteVersion, sess.LocalVersion)
	slog.Debug("sync version check", "local", sess.LocalVersion, "remote", sess.RemoteVersion, "result", full, "major", major)
	return router.SelectPolicy(major, s.opts.Bundled.Manifest.Len(), s.threshold)
}

func (s *Sequencer) setRouter(r *router.Router) {
	s.mu.Lock()
	s.router = r
	s.mu.Unlock()
}

func (s *Sequencer) deleteStale(sess *Session, plan *diff.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range plan.DeleteDownloaded {
		s.opts.Downloaded.Store.DeleteFile(path)
		s.opts.Downloaded.Manifest.Delete(path)
		s.journalDelete(path)
		sess.Dirty = true
	}
	for _, path := range plan.DeleteBundled {
		s.opts.Bundled.Manifest.Delete(path)
	}
}

func (s *Sequencer) downloadAll(ctx context.Context, sess *Session, remote *manifest.Manifest) error {
	tracker := newSpeedTracker(s.now, s.opts.ProgressInterval)

	for len(sess.Pending) > 0 {
		if ctx.Err() != nil {
			return s.abort()
		}

		path := sess.Pending[0]
		sess.Pending = sess.Pending[1:]
		want, _ := remote.Get(path)
		pendingBytes := sess.TotalBytesRemaining - want.Size

		s.reporter.Progress(s.event(sess, PhaseDownloading, path, sess.fraction(0), 0, pendingBytes, want.Size, tracker))

		data, err := s.opts.Fetcher.Fetch(ctx, path, func(p transport.Progress) {
			if !tracker.observe(p.Delta) {
				return
			}
			sess.SpeedBytesPerSec = tracker.bytesPerSec()
			frac := fileFraction(p, want.Size)
			s.reporter.Progress(s.event(sess, PhaseDownloading, path, sess.fraction(p.Downloaded), frac, pendingBytes, want.Size, tracker))
		})
		if err == nil && len(data) == 0 && want.Size > 0 {
			err = transport.ErrNoPayload
		}
		if err != nil {
			if ctx.Err() != nil {
				return s.abort()
			}
			return s.fail(path, fmt.Errorf("%w: %w", ErrDownloadFailed, err))
		}

		if err := s.opts.Downloaded.Store.WriteBinaryFile(path, data, false); err != nil {
			return s.fail(path, fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}

		got := manifest.Entry{Path: path, Size: uint64(len(data)), Hash: manifest.HashBytes(data)}
		if !got.Matches(want) {
			slog.Warn("sync integrity mismatch",
				"path", path,
				"want_size", want.Size, "got_size", got.Size,
				"want_hash", want.Hash, "got_hash", got.Hash,
			)
			sess.Mismatches = append(sess.Mismatches, path)
			s.reporter.Tip(Tip{
				Kind: TipIntegrityMismatch,
				Path: path,
				Err:  fmt.Errorf("sync: got %d bytes %s, want %d bytes %s", got.Size, got.Hash, want.Size, want.Hash),
			})
		}

		s.mu.Lock()
		s.opts.Downloaded.Manifest.Put(want)
		s.journalPut(want)
		sess.Dirty = true
		s.mu.Unlock()

		sess.Completed++
		sess.BytesDone += want.Size
		sess.TotalBytesRemaining = pendingBytes
		slog.Debug("sync downloaded", "path", path, "size", humanize.Bytes(got.Size))
		s.reporter.Progress(s.event(sess, PhaseDownloading, path, sess.fraction(0), 1, pendingBytes, 0, tracker))
	}
	return nil
}

func fileFraction(p transport.Progress, size uint64) float64 {
	if size == 0 {
		return p.Fraction()
	}
	f := float64(p.Downloaded) / float64(size)
	if f > 1 {
		return 1
	}
	return f
}

func (s *Sequencer) event(sess *Session, phase Phase, path string, fraction, fileFrac float64, pendingBytes, currentSize uint64, tracker *speedTracker) ProgressEvent {
	speed := tracker.bytesPerSec()
	return ProgressEvent{
		Phase:            phase,
		Fraction:         fraction,
		CurrentFile:      path,
		SpeedBytesPerSec: speed,
		ETASeconds:       eta(currentSize, fileFrac, pendingBytes, speed),
		Completed:        sess.Completed,
		Total:            sess.total(),
		BytesDone:        sess.BytesDone,
		BytesTotal:       sess.Plan.FetchBytes,
	}
}

func (s *Sequencer) checkSpace(need uint64) error {
	if s.opts.FreeSpace == nil || need == 0 {
		return nil
	}
	free, err := s.opts.FreeSpace()
	if err != nil {
		slog.Warn("sync free space unknown", "error", err)
		return nil
	}
	if free < need {
		err := fmt.Errorf("%w: need %s, %s free", ErrInsufficientSpace, humanize.Bytes(need), humanize.Bytes(free))
		s.reporter.Tip(Tip{Kind: TipInsufficientSpace, Err: err})
		return err
	}
	return nil
}

func (s *Sequencer) fail(path string, err error) error {
	slog.Error("sync halted", "path", path, "error", err)
	s.reporter.Tip(Tip{Kind: TipDownloadFailed, Path: path, Err: err})
	if ferr := s.Flush(); ferr != nil {
		slog.Error("sync flush", "error", ferr)
	}
	return &FileError{Path: path, Err: err}
}

func (s *Sequencer) abort() error {
	slog.Info("sync aborted")
	if err := s.Flush(); err != nil {
		return errors.Join(ErrAborted, err)
	}
	return ErrAborted
}

// Flush persists the downloaded manifest with its current version marker if
// the running session changed it. It is the abnormal-termination path: the
// remote version is only written by a completed run.
func (s *Sequencer) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || !s.session.Dirty {
		return nil
	}
	if err := s.opts.Downloaded.Save(); err != nil {
		return fmt.Errorf("sync: flush: %w", err)
	}
	s.session.Dirty = false
	s.clearJournal()
	slog.Info("sync flushed", "files", s.opts.Downloaded.Manifest.Len(), "version", s.opts.Downloaded.Manifest.Version)
	return nil
}

func (s *Sequencer) finalize(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tier := s.opts.Downloaded
	tier.Manifest.Version = sess.RemoteVersion

	var err error
	if sess.Dirty {
		err = tier.Save()
	} else {
		err = tier.SaveVersion()
	}
	if err != nil {
		return fmt.Errorf("sync: finalize: %w", err)
	}
	sess.Dirty = false
	s.clearJournal()
	return nil
}

func (s *Sequencer) done(sess *Session) {
	s.reporter.Progress(ProgressEvent{
		Phase:     PhaseDone,
		Fraction:  1,
		Completed: sess.Completed,
		Total:     sess.total(),
		BytesDone: sess.BytesDone,
	})
	slog.Info("sync done", "id", sess.ID, "policy", sess.Policy, "downloaded", sess.Completed, "mismatches", len(sess.Mismatches))
}

func (s *Sequencer) phase(p Phase) {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	ev := ProgressEvent{Phase: p}
	if sess != nil {
		ev.Fraction = sess.fraction(0)
		ev.Completed = sess.Completed
		ev.Total = sess.total()
		ev.BytesDone = sess.BytesDone
		if sess.Plan != nil {
			ev.BytesTotal = sess.Plan.FetchBytes
		}
	}
	slog.Debug("sync phase", "phase", p)
	s.reporter.Progress(ev)
}

// journal helpers expect s.mu held.

func (s *Sequencer) journalPut(e manifest.Entry) {
	if s.opts.Journal == nil {
		return
	}
	if err := s.opts.Journal.RecordPut(e); err != nil {
		slog.Warn("sync journal", "path", e.Path, "error", err)
	}
}

func (s *Sequencer) journalDelete(path string) {
	if s.opts.Journal == nil {
		return
	}
	if err := s.opts.Journal.RecordDelete(path); err != nil {
		slog.Warn("sync journal", "path", path, "error", err)
	}
}

func (s *Sequencer) clearJournal() {
	if s.opts.Journal == nil {
		return
	}
	if err := s.opts.Journal.Clear(); err != nil {
		slog.Warn("sync journal clear", "error", err)
	}
}
