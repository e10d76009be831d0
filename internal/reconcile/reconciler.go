// Package reconcile removes orphaned blobs: physical files that no catalog
// row references. Orphans are the expected residue of coordinator failures
// (a blob write that was never followed by a committed catalog insert, or a
// blob delete that failed after its row was removed).
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pixelfort/internal/blobstore"
	"pixelfort/internal/store"
)

// DefaultGraceWindow protects fresh in-flight uploads: a blob younger than
// this relative to scan start may belong to an upload whose catalog insert
// has not committed yet, so it is never deleted.
const DefaultGraceWindow = 15 * time.Minute

// Result reports one reconciliation run.
type Result struct {
	Scanned        int   `json:"scanned"`
	Deleted        int   `json:"deleted"`
	SkippedRecent  int   `json:"skipped_recent"`
	Failed         int   `json:"failed"`
	ReclaimedBytes int64 `json:"reclaimed_bytes"`
	DryRun         bool  `json:"dry_run"`
}

// Reconciler sweeps the blob store against the catalog's referenced digests.
type Reconciler struct {
	catalog     store.PhotoCatalog
	blobs       blobstore.BlobStore
	graceWindow time.Duration
	logger      *slog.Logger
}

// New creates a Reconciler. graceWindow <= 0 selects the default.
func New(catalog store.PhotoCatalog, blobs blobstore.BlobStore, graceWindow time.Duration, logger *slog.Logger) *Reconciler {
	if graceWindow <= 0 {
		graceWindow = DefaultGraceWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{catalog: catalog, blobs: blobs, graceWindow: graceWindow, logger: logger}
}

// Run performs one full single-pass sweep. Blobs referenced by the catalog
// (as content or thumbnail) are never touched; unreferenced blobs newer than
// the grace window are skipped for the next run. Dangling catalog rows are
// deliberately not repaired here.
func (r *Reconciler) Run(ctx context.Context, dryRun bool) (*Result, error) {
	if r == nil || r.catalog == nil || r.blobs == nil {
		return nil, fmt.Errorf("reconciler is not configured")
	}

	scanStart := time.Now()
	cutoff := scanStart.Add(-r.graceWindow)

	referenced, err := r.catalog.ListReferencedDigests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list referenced digests: %w", err)
	}

	blobs, err := r.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	result := &Result{Scanned: len(blobs), DryRun: dryRun}
	for _, blob := range blobs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, ok := referenced[blob.Digest]; ok {
			continue
		}
		if !blob.ModTime.Before(cutoff) {
			result.SkippedRecent++
			continue
		}

		if dryRun {
			r.logger.Info("orphan blob (dry run)", "digest", blob.Digest, "size_bytes", blob.Size, "mod_time", blob.ModTime)
			result.Deleted++
			result.ReclaimedBytes += blob.Size
			continue
		}

		if err := r.blobs.Delete(ctx, blob.Digest); err != nil {
			r.logger.Warn("failed to delete orphan blob", "digest", blob.Digest, "error", err)
			result.Failed++
			continue
		}
		r.logger.Info("deleted orphan blob", "digest", blob.Digest, "size_bytes", blob.Size)
		result.Deleted++
		result.ReclaimedBytes += blob.Size
	}

	r.logger.Info("reconcile complete",
		"scanned", result.Scanned,
		"deleted", result.Deleted,
		"skipped_recent", result.SkippedRecent,
		"failed", result.Failed,
		"reclaimed_bytes", result.ReclaimedBytes,
		"dry_run", result.DryRun,
	)

	return result, nil
}
