package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pixelfort/internal/hasher"
	"pixelfort/internal/models"
)

const photoColumns = "id, digest, owner_id, original_name, mime_type, size_bytes, width, height, taken_at, camera_make, camera_model, gps_lat, gps_lon, thumbnail_digest, created_at"

// PhotoExists checks whether a photo exists by id.
func (s *Store) PhotoExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM photos WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreatePhoto inserts one photo row. The digest UNIQUE constraint is the
// race-safety backstop for concurrent uploads of identical content; callers
// detect that case with IsUniqueConstraint(err, "photos.digest").
func (s *Store) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	if photo == nil {
		return fmt.Errorf("photo is required")
	}
	if !photo.Digest.Valid() {
		return fmt.Errorf("invalid content digest: %q", photo.Digest)
	}
	if strings.TrimSpace(photo.OwnerID) == "" {
		return fmt.Errorf("owner id is required")
	}

	if strings.TrimSpace(photo.ID) == "" {
		generated, err := GeneratePhotoID(func(id string) (bool, error) {
			return s.PhotoExists(ctx, id)
		})
		if err != nil {
			return err
		}
		photo.ID = generated
	}
	if photo.CreatedAt.IsZero() {
		photo.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO photos (`+photoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		photo.ID,
		string(photo.Digest),
		photo.OwnerID,
		photo.OriginalName,
		photo.MimeType,
		photo.SizeBytes,
		nullInt(photo.Derived.Width),
		nullInt(photo.Derived.Height),
		nullTime(photo.Derived.TakenAt),
		nullString(photo.Derived.CameraMake),
		nullString(photo.Derived.CameraModel),
		nullFloat(photo.Derived.GPSLat),
		nullFloat(photo.Derived.GPSLon),
		nullDigest(photo.ThumbnailDigest),
		formatTime(photo.CreatedAt),
	)
	return err
}

// GetPhoto returns one photo by id, or nil when absent.
func (s *Store) GetPhoto(ctx context.Context, id string) (*models.Photo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = ?`, id)
	return scanPhoto(row)
}

// GetPhotoByDigest returns the photo owning a content digest. This is the
// dedup fast path; the UNIQUE constraint in CreatePhoto is the guarantee.
func (s *Store) GetPhotoByDigest(ctx context.Context, digest hasher.Digest) (*models.Photo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE digest = ?`, string(digest))
	return scanPhoto(row)
}

// ListPhotosByOwner lists a user's photos ordered by created_at descending.
func (s *Store) ListPhotosByOwner(ctx context.Context, ownerID string) ([]models.Photo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE owner_id = ? ORDER BY created_at DESC, id ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []models.Photo{}
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		if photo == nil {
			continue
		}
		photos = append(photos, *photo)
	}
	return photos, rows.Err()
}

// DeletePhoto deletes one photo row by id. Reports whether a row was removed.
func (s *Store) DeletePhoto(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeletePhotosByOwner removes all of one user's photo rows and returns the
// deleted records so the caller can remove their blobs.
func (s *Store) DeletePhotosByOwner(ctx context.Context, ownerID string) (_ []models.Photo, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, err
	}
	photos := []models.Photo{}
	for rows.Next() {
		photo, scanErr := scanPhoto(rows)
		if scanErr != nil {
			rows.Close()
			err = scanErr
			return nil, err
		}
		if photo != nil {
			photos = append(photos, *photo)
		}
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err = tx.ExecContext(ctx, "DELETE FROM photos WHERE owner_id = ?", ownerID); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return photos, nil
}

// AttachDerivedMetadata records derived metadata for one photo. Used by the
// re-derivation path when the original upload's derivation failed; it only
// fills fields, it never clears them.
func (s *Store) AttachDerivedMetadata(ctx context.Context, id string, derived models.DerivedMetadata, thumbnailDigest *hasher.Digest) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE photos SET
			width = COALESCE(?, width),
			height = COALESCE(?, height),
			taken_at = COALESCE(?, taken_at),
			camera_make = COALESCE(?, camera_make),
			camera_model = COALESCE(?, camera_model),
			gps_lat = COALESCE(?, gps_lat),
			gps_lon = COALESCE(?, gps_lon),
			thumbnail_digest = COALESCE(?, thumbnail_digest)
		WHERE id = ?
	`,
		nullInt(derived.Width),
		nullInt(derived.Height),
		nullTime(derived.TakenAt),
		nullString(derived.CameraMake),
		nullString(derived.CameraModel),
		nullFloat(derived.GPSLat),
		nullFloat(derived.GPSLon),
		nullDigest(thumbnailDigest),
		id,
	)
	return err
}

// ListPhotosMissingDerived returns photos with no recorded dimensions,
// candidates for re-derivation.
func (s *Store) ListPhotosMissingDerived(ctx context.Context, limit int) ([]models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE width IS NULL ORDER BY created_at ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []models.Photo{}
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		if photo != nil {
			photos = append(photos, *photo)
		}
	}
	return photos, rows.Err()
}

// ListReferencedDigests returns every digest the catalog references, content
// and thumbnail alike. The orphan reconciler treats this set as live.
func (s *Store) ListReferencedDigests(ctx context.Context) (map[hasher.Digest]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT digest FROM photos
		UNION
		SELECT thumbnail_digest FROM photos WHERE thumbnail_digest IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	referenced := map[hasher.Digest]struct{}{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		referenced[hasher.Digest(raw)] = struct{}{}
	}
	return referenced, rows.Err()
}

// CountPhotosReferencingThumbnail counts photos other than excludeID that
// reference a thumbnail digest. Guards against deleting a shared thumbnail.
func (s *Store) CountPhotosReferencingThumbnail(ctx context.Context, digest hasher.Digest, excludeID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM photos
		WHERE thumbnail_digest = ? AND id != ?
	`, string(digest), excludeID).Scan(&count)
	return count, err
}

// CountPhotos returns the total number of catalog rows.
func (s *Store) CountPhotos(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM photos").Scan(&count)
	return count, err
}

func scanPhoto(scanner interface {
	Scan(dest ...any) error
}) (*models.Photo, error) {
	photo := models.Photo{}

	var digest string
	var width, height sql.NullInt64
	var takenAt, cameraMake, cameraModel, thumbnailDigest sql.NullString
	var gpsLat, gpsLon sql.NullFloat64
	var createdAt string

	err := scanner.Scan(
		&photo.ID,
		&digest,
		&photo.OwnerID,
		&photo.OriginalName,
		&photo.MimeType,
		&photo.SizeBytes,
		&width,
		&height,
		&takenAt,
		&cameraMake,
		&cameraModel,
		&gpsLat,
		&gpsLon,
		&thumbnailDigest,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	photo.Digest = hasher.Digest(digest)
	if width.Valid {
		v := int(width.Int64)
		photo.Derived.Width = &v
	}
	if height.Valid {
		v := int(height.Int64)
		photo.Derived.Height = &v
	}
	if takenAt.Valid {
		parsed, err := parseTime(takenAt.String)
		if err != nil {
			return nil, err
		}
		photo.Derived.TakenAt = &parsed
	}
	if cameraMake.Valid {
		v := cameraMake.String
		photo.Derived.CameraMake = &v
	}
	if cameraModel.Valid {
		v := cameraModel.String
		photo.Derived.CameraModel = &v
	}
	if gpsLat.Valid {
		v := gpsLat.Float64
		photo.Derived.GPSLat = &v
	}
	if gpsLon.Valid {
		v := gpsLon.Float64
		photo.Derived.GPSLon = &v
	}
	if thumbnailDigest.Valid {
		d := hasher.Digest(thumbnailDigest.String)
		photo.ThumbnailDigest = &d
	}

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	photo.CreatedAt = parsedCreated

	return &photo, nil
}

func nullInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullString(value *string) any {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	return *value
}

func nullDigest(value *hasher.Digest) any {
	if value == nil || !value.Valid() {
		return nil
	}
	return string(*value)
}
