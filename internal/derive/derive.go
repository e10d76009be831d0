// Package derive extracts best-effort metadata and thumbnails from image
// bytes. Every field of a Result is optional: extraction steps fail
// independently, and a partially-filled Result is the normal outcome for
// images without EXIF or with unsupported encodings.
package derive

import (
	"context"

	"pixelfort/internal/models"
)

// Result carries whatever derivation produced. A zero Result is valid.
type Result struct {
	Metadata  models.DerivedMetadata
	Thumbnail []byte
}

// Deriver produces derived metadata from raw image bytes. An error means
// nothing at all could be derived; callers treat any failure as degraded
// metadata, never as a storage failure.
type Deriver interface {
	Derive(ctx context.Context, data []byte) (Result, error)
}

// Noop derives nothing. Useful where derivation is disabled.
type Noop struct{}

func (Noop) Derive(ctx context.Context, data []byte) (Result, error) {
	return Result{}, nil
}
