package syncer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
)

const eventBufferSize = 16

// ProgressEvent is a snapshot of a running sync.
type ProgressEvent struct {
	Phase            Phase
	Fraction         float64 // 0..1 by bytes
	CurrentFile      string
	SpeedBytesPerSec float64
	ETASeconds       float64 // 0 means unknown
	Completed        int
	Total            int
	BytesDone        uint64
	BytesTotal       uint64
}

type TipKind int

const (
	TipDownloadFailed TipKind = iota + 1
	TipIntegrityMismatch
	TipFullPackageRequired
	TipRemoteUnavailable
	TipInsufficientSpace
)

func (k TipKind) String() string {
	switch k {
	case TipDownloadFailed:
		return "download_failed"
	case TipIntegrityMismatch:
		return "integrity_mismatch"
	case TipFullPackageRequired:
		return "full_package_required"
	case TipRemoteUnavailable:
		return "remote_unavailable"
	case TipInsufficientSpace:
		return "insufficient_space"
	default:
		return "unknown"
	}
}

// Tip is a user-facing condition, reported apart from progress.
type Tip struct {
	Kind TipKind
	Path string
	Err  error
}

func (t Tip) String() string {
	if t.Path == "" {
		return fmt.Sprintf("%s: %v", t.Kind, t.Err)
	}
	return fmt.Sprintf("%s %s: %v", t.Kind, t.Path, t.Err)
}

// Reporter receives progress and tips from a Sequencer. Calls come from the
// goroutine running the sync and must not block for long.
type Reporter interface {
	Progress(ProgressEvent)
	Tip(Tip)
}

type nopReporter struct{}

func (nopReporter) Progress(ProgressEvent) {}
func (nopReporter) Tip(Tip)                {}

// Reporters fans every call out to each reporter in order.
type Reporters []Reporter

func (rs Reporters) Progress(e ProgressEvent) {
	for _, r := range rs {
		r.Progress(e)
	}
}

func (rs Reporters) Tip(t Tip) {
	for _, r := range rs {
		r.Tip(t)
	}
}

// LogReporter writes progress and tips to a slog logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r LogReporter) Progress(e ProgressEvent) {
	args := []any{"phase", e.Phase, "progress", fmt.Sprintf("%.1f%%", e.Fraction*100)}
	if e.CurrentFile != "" {
		args = append(args,
			"file", e.CurrentFile,
			"files", fmt.Sprintf("%d/%d", e.Completed, e.Total),
			"speed", humanize.Bytes(uint64(e.SpeedBytesPerSec))+"/s",
		)
		if e.ETASeconds > 0 {
			args = append(args, "eta", fmt.Sprintf("%.0fs", e.ETASeconds))
		}
	}
	r.logger().Info("sync", args...)
}

func (r LogReporter) Tip(t Tip) {
	r.logger().Warn("sync tip", "kind", t.Kind, "path", t.Path, "error", t.Err)
}

// Notification carries exactly one of Progress or Tip.
type Notification struct {
	Progress *ProgressEvent
	Tip      *Tip
}

// Broadcaster forwards reports to subscribers without ever blocking the
// sync. A subscriber that falls behind misses notifications.
type Broadcaster struct {
	subs []chan Notification
	mu   sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

func (b *Broadcaster) Subscribe() <-chan Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Notification, eventBufferSize)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Broadcaster) Unsubscribe(ch <-chan Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == ch {
			close(sub)
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Close unsubscribes everyone.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}

func (b *Broadcaster) Progress(e ProgressEvent) {
	b.broadcast(Notification{Progress: &e})
}

func (b *Broadcaster) Tip(t Tip) {
	b.broadcast(Notification{Tip: &t})
}

func (b *Broadcaster) broadcast(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub <- n:
		default:
		}
	}
}

var (
	_ Reporter = nopReporter{}
	_ Reporter = Reporters(nil)
	_ Reporter = LogReporter{}
	_ Reporter = (*Broadcaster)(nil)
)
