package models

import (
	"time"

	"pixelfort/internal/hasher"
)

// DerivedMetadata holds image-derived fields. Every field is optional:
// derivation is best-effort and may fail partially or completely without
// affecting raw storage.
type DerivedMetadata struct {
	Width       *int       `json:"width,omitempty"`
	Height      *int       `json:"height,omitempty"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
	CameraMake  *string    `json:"camera_make,omitempty"`
	CameraModel *string    `json:"camera_model,omitempty"`
	GPSLat      *float64   `json:"gps_lat,omitempty"`
	GPSLon      *float64   `json:"gps_lon,omitempty"`
}

// Photo is the catalog record for one stored blob. Immutable after insert,
// except for the one-time attachment of derived metadata.
type Photo struct {
	ID              string          `json:"id"`
	Digest          hasher.Digest   `json:"digest"`
	OwnerID         string          `json:"owner_id"`
	OriginalName    string          `json:"original_name"`
	MimeType        string          `json:"mime_type"`
	SizeBytes       int64           `json:"size_bytes"`
	Derived         DerivedMetadata `json:"derived"`
	ThumbnailDigest *hasher.Digest  `json:"thumbnail_digest,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// HasThumbnail reports whether a thumbnail blob exists for this photo.
func (p *Photo) HasThumbnail() bool {
	return p != nil && p.ThumbnailDigest != nil && p.ThumbnailDigest.Valid()
}
