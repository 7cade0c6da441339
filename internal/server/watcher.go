package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	watcherBufferSize      = 64
	defaultDebounceTimeout = 250 * time.Millisecond
)

// AssetWatcher calls onChange once a burst of filesystem events under dir
// has settled.
type AssetWatcher struct {
	dir             string
	onChange        func()
	debounceTimeout time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewAssetWatcher(dir string, onChange func()) *AssetWatcher {
	return &AssetWatcher{
		dir:             dir,
		onChange:        onChange,
		debounceTimeout: defaultDebounceTimeout,
	}
}

// Run watches until ctx is cancelled.
func (w *AssetWatcher) Run(ctx context.Context) error {
	events := make(chan notify.EventInfo, watcherBufferSize)
	if err := notify.Watch(w.dir+"/...", events, notify.All); err != nil {
		return err
	}
	slog.Info("asset watcher start", "dir", w.dir)

	defer func() {
		notify.Stop(events)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		slog.Info("asset watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			slog.Debug("asset watcher", "event", event.Event(), "path", event.Path())
			w.debounce()
		}
	}
}

func (w *AssetWatcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceTimeout, w.onChange)
}
