// Package blobstore persists photo content addressed by digest.
package blobstore

import (
	"context"
	"errors"
	"io"
	"time"

	"pixelfort/internal/hasher"
)

// ErrNotFound is returned when a requested blob does not exist.
var ErrNotFound = errors.New("blob not found")

// BlobInfo describes one stored blob as seen by a full scan.
type BlobInfo struct {
	Digest  hasher.Digest
	Size    int64
	ModTime time.Time
}

// BlobStore is the byte-storage abstraction used by the storage coordinator.
// Writes are idempotent by digest; a reader never observes partial content.
type BlobStore interface {
	Exists(ctx context.Context, digest hasher.Digest) (bool, error)
	Put(ctx context.Context, digest hasher.Digest, ext string, r io.Reader) (int64, error)
	Open(ctx context.Context, digest hasher.Digest) (io.ReadCloser, error)
	Delete(ctx context.Context, digest hasher.Digest) error
	List(ctx context.Context) ([]BlobInfo, error)
}
