// Package client wires a configured install into a sync session: workspace
// lock, storage tiers, journal, origin and sequencer.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openmined/assetsync/internal/client/config"
	"github.com/openmined/assetsync/internal/client/workspace"
	"github.com/openmined/assetsync/internal/diff"
	"github.com/openmined/assetsync/internal/journal"
	"github.com/openmined/assetsync/internal/router"
	"github.com/openmined/assetsync/internal/storage"
	"github.com/openmined/assetsync/internal/syncer"
	"github.com/openmined/assetsync/internal/transport"
)

var ErrSyncRunning = errors.New("client: sync already running")

type options struct {
	origin    transport.Origin
	reporters []syncer.Reporter
}

type Option func(*options)

// WithOrigin replaces the origin derived from remote_url.
func WithOrigin(o transport.Origin) Option {
	return func(opts *options) {
		opts.origin = o
	}
}

// WithReporter adds a reporter next to the client's broadcaster.
func WithReporter(r syncer.Reporter) Option {
	return func(opts *options) {
		opts.reporters = append(opts.reporters, r)
	}
}

type Client struct {
	config      *config.Config
	workspace   *workspace.Workspace
	bundled     *storage.Tier
	downloaded  *storage.Tier
	journal     *journal.Journal
	origin      transport.Origin
	broadcaster *syncer.Broadcaster
	seq         *syncer.Sequencer

	mu      sync.Mutex
	running bool
	closed  bool
}

// New validates cfg, locks the workspace and loads both local tiers. The
// journal left by an interrupted session is replayed and folded into the
// downloaded manifest before anything else reads it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ws, err := workspace.NewWorkspace(cfg.BundledDir, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := ws.Setup(); err != nil {
		return nil, err
	}

	c := &Client{
		config:      cfg,
		workspace:   ws,
		broadcaster: syncer.NewBroadcaster(),
	}
	if err := c.init(ctx, o); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) init(ctx context.Context, o *options) error {
	bundledStore, err := storage.NewReadOnlyStore(c.workspace.BundledDir)
	if err != nil {
		return err
	}
	dataStore, err := storage.NewLocalStore(c.workspace.DataDir)
	if err != nil {
		return err
	}

	c.bundled = storage.NewTier("bundled", bundledStore, c.config.ManifestName, c.config.VersionName)
	c.downloaded = storage.NewTier("downloaded", dataStore, c.config.ManifestName, c.config.VersionName)
	if err := c.bundled.Load(); err != nil {
		return err
	}
	if err := c.downloaded.Load(); err != nil {
		return err
	}

	c.journal = journal.New(c.config.JournalPath)
	if err := c.journal.Open(); err != nil {
		c.journal = nil
		return err
	}
	if err := c.recover(); err != nil {
		return err
	}

	c.origin = o.origin
	if c.origin == nil {
		if c.origin, err = transport.NewOrigin(ctx, c.config.Origin()); err != nil {
			return err
		}
	}

	reporters := syncer.Reporters{c.broadcaster}
	reporters = append(reporters, o.reporters...)

	c.seq, err = syncer.New(syncer.Options{
		Bundled:              c.bundled,
		Downloaded:           c.downloaded,
		Source:               c.origin,
		Fetcher:              c.origin,
		Journal:              c.journal,
		Reporter:             reporters,
		DynamicOnly:          diff.NewDynamicOnly(c.config.DynamicOnly...),
		FullPackageThreshold: c.config.FullPackageThreshold,
		ProgressInterval:     c.config.Interval(),
		PolicyOverride:       c.config.Policy(),
		OfflineFallback:      c.config.OfflineFallback,
		FreeSpace:            c.workspace.FreeSpace,
	})
	return err
}

// recover replays journaled mutations that never reached the manifest file.
func (c *Client) recover() error {
	applied, err := c.journal.Replay(c.downloaded.Manifest)
	if err != nil {
		return err
	}
	if applied == 0 {
		return nil
	}

	slog.Warn("client recovered interrupted session", "ops", applied, "files", c.downloaded.Manifest.Len())
	if err := c.downloaded.Save(); err != nil {
		return fmt.Errorf("client: persist recovered manifest: %w", err)
	}
	return c.journal.Clear()
}

// Sync runs one sync session. Progress goes to the subscribers and to any
// reporter passed at construction.
func (c *Client) Sync(ctx context.Context) (*syncer.Result, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	slog.Info("client sync", "config", c.config)
	return c.seq.Run(ctx)
}

// Plan reports what a sync would do without changing anything on disk.
func (c *Client) Plan(ctx context.Context) (*syncer.Result, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	return c.seq.Plan(ctx)
}

// Resolve maps a manifest path onto the file that serves it. An empty path
// with a nil error means the asset is not available locally yet. Without a
// prior Sync or Plan, a Plan runs first to settle the read policy. Resolve
// is safe to call while Sync runs once a policy has been settled.
func (c *Client) Resolve(ctx context.Context, path string) (string, router.Location, error) {
	if c.seq.Router() == nil {
		if _, err := c.Plan(ctx); err != nil {
			return "", router.None, err
		}
	}
	return c.seq.ResolveFile(path, c.workspace.BundledDir, c.workspace.DataDir)
}

func (c *Client) Subscribe() <-chan syncer.Notification {
	return c.broadcaster.Subscribe()
}

func (c *Client) Unsubscribe(ch <-chan syncer.Notification) {
	c.broadcaster.Unsubscribe(ch)
}

// Flush persists partial progress of an interrupted sync.
func (c *Client) Flush() error {
	if c.seq == nil {
		return nil
	}
	return c.seq.Flush()
}

func (c *Client) Config() *config.Config {
	return c.config
}

func (c *Client) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("client: closed")
	}
	if c.running {
		return ErrSyncRunning
	}
	c.running = true
	return nil
}

func (c *Client) release() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// Close flushes unsaved progress and releases every resource, the
// workspace lock last.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var errs []error
	errs = append(errs, c.Flush())
	if c.journal != nil {
		errs = append(errs, c.journal.Close())
	}
	if c.origin != nil {
		errs = append(errs, c.origin.Close())
	}
	c.broadcaster.Close()
	errs = append(errs, c.workspace.Unlock())

	if err := errors.Join(errs...); err != nil {
		slog.Error("client close", "error", err)
		return err
	}
	slog.Debug("client closed")
	return nil
}
