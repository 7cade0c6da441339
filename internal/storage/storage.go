// Package storage is the file-system surface of the sync pipeline: plain
// reads and writes of manifest-relative paths under a storage root.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/openmined/assetsync/internal/utils"
)

var (
	ErrReadOnly    = errors.New("storage: read-only store")
	ErrInvalidPath = errors.New("storage: invalid path")
)

// FileStore reads and writes files addressed by manifest-relative paths.
type FileStore interface {
	Root() string
	Path(rel string) (string, error)
	Exists(rel string) bool
	ReadTextFile(rel string) (string, error)
	WriteTextFile(rel, text string) error
	WriteBinaryFile(rel string, data []byte, append bool) error
	// DeleteFile reports whether a file was removed. Failures are logged.
	DeleteFile(rel string) bool
}

// LocalStore is a FileStore over a directory on disk.
type LocalStore struct {
	root     string
	readOnly bool
}

func NewLocalStore(root string) (*LocalStore, error) {
	resolved, err := utils.ResolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %q: %w", root, err)
	}
	return &LocalStore{root: resolved}, nil
}

// NewReadOnlyStore is used for the bundled tier shipped with the install.
func NewReadOnlyStore(root string) (*LocalStore, error) {
	s, err := NewLocalStore(root)
	if err != nil {
		return nil, err
	}
	s.readOnly = true
	return s, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Path(rel string) (string, error) {
	p, err := utils.SafeJoin(s.root, rel)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return p, nil
}

func (s *LocalStore) Exists(rel string) bool {
	p, err := s.Path(rel)
	if err != nil {
		return false
	}
	return utils.FileExists(p)
}

func (s *LocalStore) ReadTextFile(rel string) (string, error) {
	p, err := s.Path(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *LocalStore) WriteTextFile(rel, text string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	p, err := s.Path(rel)
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(p, []byte(text), 0o644)
}

func (s *LocalStore) WriteBinaryFile(rel string, data []byte, append bool) error {
	if s.readOnly {
		return ErrReadOnly
	}
	p, err := s.Path(rel)
	if err != nil {
		return err
	}
	if !append {
		return utils.WriteFileAtomic(p, data, 0o644)
	}

	if err := utils.EnsureParent(p); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *LocalStore) DeleteFile(rel string) bool {
	if s.readOnly {
		slog.Warn("storage delete on read-only store", "root", s.root, "path", rel)
		return false
	}
	p, err := s.Path(rel)
	if err != nil {
		slog.Warn("storage delete", "path", rel, "error", err)
		return false
	}
	if err := os.Remove(p); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("storage delete", "path", rel, "error", err)
		}
		return false
	}
	return true
}

var _ FileStore = (*LocalStore)(nil)
