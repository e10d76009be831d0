package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"pixelfort/internal/blobstore"
	"pixelfort/internal/derive"
	"pixelfort/internal/hasher"
	"pixelfort/internal/models"
	"pixelfort/internal/store"
)

const thumbnailExtension = ".jpg"

// PhotoService coordinates blob writes, metadata derivation and catalog
// inserts so that a committed catalog record always points at readable
// content. Blob bytes land first; the catalog row commits last.
type PhotoService struct {
	catalog       store.PhotoCatalog
	blobs         blobstore.BlobStore
	deriver       derive.Deriver
	deriveTimeout time.Duration
	logger        *slog.Logger
}

// StorePhotoInput carries one validated upload.
type StorePhotoInput struct {
	OwnerID      string
	OriginalName string
	MimeType     string
	Data         []byte
}

func NewPhotoService(catalog store.PhotoCatalog, blobs blobstore.BlobStore, deriver derive.Deriver, deriveTimeout time.Duration, logger *slog.Logger) *PhotoService {
	if logger == nil {
		logger = slog.Default()
	}
	if deriver == nil {
		deriver = derive.Noop{}
	}
	if deriveTimeout <= 0 {
		deriveTimeout = 10 * time.Second
	}
	return &PhotoService{
		catalog:       catalog,
		blobs:         blobs,
		deriver:       deriver,
		deriveTimeout: deriveTimeout,
		logger:        logger,
	}
}

// Store ingests one photo. Uploading content that is already catalogued is
// rejected as a conflict naming the existing record, regardless of who owns
// it; there is no implicit dedup merge.
func (p *PhotoService) Store(ctx context.Context, in StorePhotoInput) (*models.Photo, error) {
	if len(in.Data) == 0 {
		return nil, badRequestCode(fmt.Errorf("upload is empty"), ErrCodeEmptyUpload)
	}
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	digest := hasher.Sum(in.Data)

	existing, err := p.catalog.GetPhotoByDigest(ctx, digest)
	if err != nil {
		return nil, storeFailure(err)
	}
	if existing != nil {
		return nil, duplicateContent(existing)
	}

	ext := strings.ToLower(filepath.Ext(in.OriginalName))
	if _, err := p.blobs.Put(ctx, digest, ext, bytes.NewReader(in.Data)); err != nil {
		return nil, makeAPIError(http.StatusInternalServerError, "internal", ErrCodeBlobWriteFailed, fmt.Errorf("write blob: %w", err))
	}

	derived, thumbDigest := p.deriveBestEffort(ctx, digest, in.Data)

	photo := &models.Photo{
		Digest:          digest,
		OwnerID:         in.OwnerID,
		OriginalName:    strings.TrimSpace(in.OriginalName),
		MimeType:        strings.TrimSpace(in.MimeType),
		SizeBytes:       int64(len(in.Data)),
		Derived:         derived,
		ThumbnailDigest: thumbDigest,
	}

	// The blob is durable at this point; a canceled request must not leave
	// it uncatalogued when the insert would otherwise succeed.
	insertCtx := context.WithoutCancel(ctx)
	if err := p.catalog.CreatePhoto(insertCtx, photo); err != nil {
		if store.IsUniqueConstraint(err, "photos.digest") {
			// A concurrent upload of the same content won the insert. The
			// blob on disk is the winner's blob, so it stays no matter what
			// happens below; only the fresh thumbnail may be cleaned up.
			winner, lookupErr := p.catalog.GetPhotoByDigest(insertCtx, digest)
			if lookupErr == nil && winner != nil {
				p.cleanupThumbnail(insertCtx, thumbDigest, winner)
				return nil, duplicateContent(winner)
			}
			p.logger.Warn("winner lookup after digest conflict failed", "digest", digest, "error", lookupErr)
			p.cleanupThumbnail(insertCtx, thumbDigest, nil)
			return nil, conflictCode(fmt.Errorf("content already stored"), ErrCodeDuplicateContent)
		}
		p.compensateFailedInsert(insertCtx, digest, thumbDigest)
		return nil, makeAPIError(http.StatusInternalServerError, "internal", ErrCodeCatalogWriteFailed, fmt.Errorf("catalog insert: %w", err))
	}

	return photo, nil
}

func duplicateContent(existing *models.Photo) error {
	return conflictCode(fmt.Errorf("content already stored as %s", existing.ID), ErrCodeDuplicateContent)
}

// deriveBestEffort never fails the upload: on any error the photo is stored
// with empty derived metadata and no thumbnail.
func (p *PhotoService) deriveBestEffort(ctx context.Context, digest hasher.Digest, data []byte) (models.DerivedMetadata, *hasher.Digest) {
	deriveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.deriveTimeout)
	defer cancel()

	result, err := p.deriver.Derive(deriveCtx, data)
	if err != nil {
		p.logger.Warn("metadata derivation failed", "digest", digest, "error", err)
		return models.DerivedMetadata{}, nil
	}

	if len(result.Thumbnail) == 0 {
		return result.Metadata, nil
	}

	thumbDigest := hasher.Sum(result.Thumbnail)
	if _, err := p.blobs.Put(deriveCtx, thumbDigest, thumbnailExtension, bytes.NewReader(result.Thumbnail)); err != nil {
		p.logger.Warn("thumbnail write failed", "digest", digest, "thumbnail_digest", thumbDigest, "error", err)
		return result.Metadata, nil
	}
	return result.Metadata, &thumbDigest
}

// compensateFailedInsert removes blobs written for a catalog insert that
// failed for a reason other than a digest conflict. Failures here only log;
// the reconciler sweeps whatever is left behind.
func (p *PhotoService) compensateFailedInsert(ctx context.Context, digest hasher.Digest, thumbDigest *hasher.Digest) {
	if err := p.blobs.Delete(ctx, digest); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		p.logger.Warn("compensating blob delete failed", "digest", digest, "error", err)
	}
	p.cleanupThumbnail(ctx, thumbDigest, nil)
}

// cleanupThumbnail deletes a freshly written thumbnail blob unless the given
// photo (or any other record) still references it.
func (p *PhotoService) cleanupThumbnail(ctx context.Context, thumbDigest *hasher.Digest, keptFor *models.Photo) {
	if thumbDigest == nil {
		return
	}
	if keptFor != nil && keptFor.ThumbnailDigest != nil && *keptFor.ThumbnailDigest == *thumbDigest {
		return
	}
	refs, err := p.catalog.CountPhotosReferencingThumbnail(ctx, *thumbDigest, "")
	if err != nil {
		p.logger.Warn("thumbnail refcount failed", "thumbnail_digest", *thumbDigest, "error", err)
		return
	}
	if refs > 0 {
		return
	}
	if err := p.blobs.Delete(ctx, *thumbDigest); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		p.logger.Warn("thumbnail delete failed", "thumbnail_digest", *thumbDigest, "error", err)
	}
}

// Get returns one photo owned by ownerID.
func (p *PhotoService) Get(ctx context.Context, ownerID, id string) (*models.Photo, error) {
	photo, err := p.catalog.GetPhoto(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	if photo == nil {
		return nil, notFoundCode(fmt.Errorf("photo not found"), ErrCodePhotoNotFound)
	}
	if photo.OwnerID != ownerID {
		return nil, forbidden()
	}
	return photo, nil
}

// List returns all photos owned by ownerID, newest first.
func (p *PhotoService) List(ctx context.Context, ownerID string) ([]models.Photo, error) {
	photos, err := p.catalog.ListPhotosByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeFailure(err)
	}
	return photos, nil
}

// OpenContent streams the original bytes of one photo.
func (p *PhotoService) OpenContent(ctx context.Context, ownerID, id string) (*models.Photo, io.ReadCloser, error) {
	photo, err := p.Get(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := p.blobs.Open(ctx, photo.Digest)
	if err != nil {
		// A catalogued photo without a blob is an integrity violation, not
		// a client error.
		return nil, nil, internalError(fmt.Errorf("open blob %s: %w", photo.Digest, err))
	}
	return photo, rc, nil
}

// OpenThumbnail streams the thumbnail of one photo.
func (p *PhotoService) OpenThumbnail(ctx context.Context, ownerID, id string) (*models.Photo, io.ReadCloser, error) {
	photo, err := p.Get(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	if !photo.HasThumbnail() {
		return nil, nil, notFoundCode(fmt.Errorf("photo has no thumbnail"), ErrCodeThumbnailNotFound)
	}
	rc, err := p.blobs.Open(ctx, *photo.ThumbnailDigest)
	if err != nil {
		return nil, nil, internalError(fmt.Errorf("open thumbnail blob %s: %w", *photo.ThumbnailDigest, err))
	}
	return photo, rc, nil
}

// Delete removes the catalog record first, then cleans up blobs best-effort.
// A blob left behind by a failed cleanup is an orphan for the reconciler.
func (p *PhotoService) Delete(ctx context.Context, ownerID, id string) error {
	photo, err := p.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	deleted, err := p.catalog.DeletePhoto(ctx, id)
	if err != nil {
		return storeFailure(err)
	}
	if !deleted {
		return notFoundCode(fmt.Errorf("photo not found"), ErrCodePhotoNotFound)
	}

	p.cleanupPhotoBlobs(context.WithoutCancel(ctx), photo)
	return nil
}

// DeleteOwnerPhotos removes every catalog record for an owner and cleans up
// their blobs. Returns the number of records removed.
func (p *PhotoService) DeleteOwnerPhotos(ctx context.Context, ownerID string) (int, error) {
	photos, err := p.catalog.DeletePhotosByOwner(ctx, ownerID)
	if err != nil {
		return 0, storeFailure(err)
	}
	cleanupCtx := context.WithoutCancel(ctx)
	for i := range photos {
		p.cleanupPhotoBlobs(cleanupCtx, &photos[i])
	}
	return len(photos), nil
}

func (p *PhotoService) cleanupPhotoBlobs(ctx context.Context, photo *models.Photo) {
	if err := p.blobs.Delete(ctx, photo.Digest); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		p.logger.Warn("blob delete failed", "photo_id", photo.ID, "digest", photo.Digest, "error", err)
	}
	if photo.HasThumbnail() {
		refs, err := p.catalog.CountPhotosReferencingThumbnail(ctx, *photo.ThumbnailDigest, photo.ID)
		if err != nil {
			p.logger.Warn("thumbnail refcount failed", "photo_id", photo.ID, "error", err)
			return
		}
		if refs > 0 {
			return
		}
		if err := p.blobs.Delete(ctx, *photo.ThumbnailDigest); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			p.logger.Warn("thumbnail delete failed", "photo_id", photo.ID, "thumbnail_digest", *photo.ThumbnailDigest, "error", err)
		}
	}
}

// RederiveResult summarizes one rederive pass.
type RederiveResult struct {
	Scanned int
	Updated int
}

// Rederive retries metadata derivation for photos that have none, typically
// after a derivation bug fix or a crashed upload.
func (p *PhotoService) Rederive(ctx context.Context, limit int) (*RederiveResult, error) {
	photos, err := p.catalog.ListPhotosMissingDerived(ctx, limit)
	if err != nil {
		return nil, storeFailure(err)
	}

	result := &RederiveResult{Scanned: len(photos)}
	for i := range photos {
		photo := &photos[i]
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rc, err := p.blobs.Open(ctx, photo.Digest)
		if err != nil {
			p.logger.Warn("rederive open blob failed", "photo_id", photo.ID, "digest", photo.Digest, "error", err)
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			p.logger.Warn("rederive read blob failed", "photo_id", photo.ID, "error", err)
			continue
		}

		derived, thumbDigest := p.deriveBestEffort(ctx, photo.Digest, data)
		if derived == (models.DerivedMetadata{}) && thumbDigest == nil {
			continue
		}
		if photo.HasThumbnail() && thumbDigest != nil {
			p.cleanupThumbnail(ctx, thumbDigest, photo)
			thumbDigest = nil
		}
		if err := p.catalog.AttachDerivedMetadata(ctx, photo.ID, derived, thumbDigest); err != nil {
			p.logger.Warn("rederive attach failed", "photo_id", photo.ID, "error", err)
			continue
		}
		result.Updated++
	}
	return result, nil
}
