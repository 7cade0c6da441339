// Package workspace owns the on-disk layout of a client install: the
// read-only bundled root, the writable data root and its state directory.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/openmined/assetsync/internal/utils"
)

const (
	stateDir = ".assetsync"
	lockFile = "sync.lock"
)

var (
	ErrWorkspaceLocked = errors.New("workspace locked by another process")
	ErrNoBundledDir    = errors.New("workspace: bundled dir does not exist")
)

type Workspace struct {
	BundledDir string
	DataDir    string
	StateDir   string

	flock *flock.Flock
}

func NewWorkspace(bundledDir, dataDir string) (*Workspace, error) {
	bundled, err := utils.ResolvePath(bundledDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", bundledDir, err)
	}
	data, err := utils.ResolvePath(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", dataDir, err)
	}

	state := filepath.Join(data, stateDir)
	return &Workspace{
		BundledDir: bundled,
		DataDir:    data,
		StateDir:   state,
		flock:      flock.New(filepath.Join(state, lockFile)),
	}, nil
}

// Lock takes the single-writer lock on the data dir.
func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.StateDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.StateDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}
	return nil
}

func (w *Workspace) Unlock() error {
	// only the holder removes the lock file
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}
	return os.Remove(w.flock.Path())
}

// Setup checks the bundled root, creates the data root and takes the lock.
func (w *Workspace) Setup() error {
	if !utils.DirExists(w.BundledDir) {
		return fmt.Errorf("%w: %s", ErrNoBundledDir, w.BundledDir)
	}

	if err := w.Lock(); err != nil {
		return err
	}

	slog.Info("workspace", "bundled", w.BundledDir, "data", w.DataDir)
	return nil
}

// FreeSpace returns the bytes available to unprivileged writes on the
// volume holding the data dir.
func (w *Workspace) FreeSpace() (uint64, error) {
	usage, err := disk.Usage(w.DataDir)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", w.DataDir, err)
	}
	return usage.Free, nil
}
