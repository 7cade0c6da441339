package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/openmined/assetsync/internal/utils"
)

// LocalBackend serves objects from a directory on disk.
type LocalBackend struct {
	root string
}

func NewLocalBackend(dir string) (*LocalBackend, error) {
	root, err := utils.ResolvePath(dir)
	if err != nil {
		return nil, err
	}
	if !utils.DirExists(root) {
		return nil, fmt.Errorf("blob: asset dir %q does not exist", root)
	}
	return &LocalBackend{root: root}, nil
}

func (b *LocalBackend) Root() string {
	return b.root
}

func (b *LocalBackend) Name() string {
	return "local"
}

func (b *LocalBackend) GetObject(ctx context.Context, key string) (*GetObjectResponse, error) {
	full, err := b.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrObjectNotFound
	}

	return &GetObjectResponse{
		Body:         f,
		Size:         info.Size(),
		ETag:         strconv.FormatInt(info.ModTime().UnixNano(), 16) + "-" + strconv.FormatInt(info.Size(), 16),
		LastModified: info.ModTime().UTC(),
	}, nil
}

func (b *LocalBackend) Exists(ctx context.Context, key string) (bool, error) {
	full, err := b.resolve(key)
	if err != nil {
		return false, err
	}
	return utils.FileExists(full), nil
}

func (b *LocalBackend) Close() error {
	return nil
}

func (b *LocalBackend) resolve(key string) (string, error) {
	if !ValidateKey(key) {
		return "", ErrInvalidKey
	}
	full, err := utils.SafeJoin(b.root, key)
	if err != nil {
		return "", ErrInvalidKey
	}
	return full, nil
}

var _ Backend = (*LocalBackend)(nil)
