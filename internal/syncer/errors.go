package syncer

import (
	"errors"
	"fmt"
)

var (
	ErrDownloadFailed    = errors.New("sync: download failed")
	ErrWriteFailed       = errors.New("sync: write failed")
	ErrAborted           = errors.New("sync: aborted")
	ErrRemoteUnavailable = errors.New("sync: remote manifest unavailable")
	ErrInsufficientSpace = errors.New("sync: not enough free space")
	ErrMissingTier       = errors.New("sync: bundled and downloaded tiers are required")
	ErrMissingTransport  = errors.New("sync: remote source and fetcher are required")
)

// FileError ties a failure to the asset it happened on.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
