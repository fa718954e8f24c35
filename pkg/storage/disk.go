// Package storage stores product images and client state files on the local
// filesystem or on S3-compatible object storage (AWS S3, MinIO, R2).
//
//	disk, err := storage.Open(config.StorageDefault())
//	err = disk.Put(ctx, "products/ring.jpg", file, "image/jpeg")
//	url := disk.URL("products/ring.jpg")
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	// ErrNotExist is returned by Get for a missing object.
	ErrNotExist = errors.New("storage: object does not exist")
	// ErrBadPath rejects absolute paths and ".." segments.
	ErrBadPath = errors.New("storage: invalid path")
)

type Disk interface {
	Put(ctx context.Context, path string, r io.Reader, contentType string) error
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	URL(path string) string
}

// Open returns the disk named "local" or "s3", configured from the
// environment.
func Open(name string) (Disk, error) {
	switch name {
	case "", "local":
		return NewLocalFromConfig(), nil
	case "s3":
		return NewS3FromConfig(context.Background())
	default:
		return nil, fmt.Errorf("storage: unknown disk %q", name)
	}
}

// Clean normalizes a slash-separated object key.
func Clean(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrBadPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrBadPath
		}
	}
	return path.Clean(p), nil
}
