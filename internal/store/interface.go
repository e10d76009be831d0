package store

import (
	"context"
	"time"

	"pixelfort/internal/hasher"
	"pixelfort/internal/models"
)

// PhotoCatalog is the metadata persistence surface consumed by the storage
// coordinator and the orphan reconciler.
type PhotoCatalog interface {
	PhotoExists(ctx context.Context, id string) (bool, error)
	CreatePhoto(ctx context.Context, photo *models.Photo) error
	GetPhoto(ctx context.Context, id string) (*models.Photo, error)
	GetPhotoByDigest(ctx context.Context, digest hasher.Digest) (*models.Photo, error)
	ListPhotosByOwner(ctx context.Context, ownerID string) ([]models.Photo, error)
	DeletePhoto(ctx context.Context, id string) (bool, error)
	DeletePhotosByOwner(ctx context.Context, ownerID string) ([]models.Photo, error)
	AttachDerivedMetadata(ctx context.Context, id string, derived models.DerivedMetadata, thumbnailDigest *hasher.Digest) error
	ListPhotosMissingDerived(ctx context.Context, limit int) ([]models.Photo, error)
	ListReferencedDigests(ctx context.Context) (map[hasher.Digest]struct{}, error)
	CountPhotosReferencingThumbnail(ctx context.Context, digest hasher.Digest, excludeID string) (int, error)
	CountPhotos(ctx context.Context) (int, error)
}

// UserStore is the account and session persistence surface.
type UserStore interface {
	CreateUser(ctx context.Context, email, username, passwordHash string, now time.Time) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
	DeleteUser(ctx context.Context, id string) (bool, error)
	CreateSession(ctx context.Context, userID, tokenHash string, expiresAt, createdAt time.Time) error
	GetUserBySessionTokenHash(ctx context.Context, tokenHash string, now time.Time) (*User, error)
	RevokeSessionByTokenHash(ctx context.Context, tokenHash string, revokedAt time.Time) error
}

var _ PhotoCatalog = (*Store)(nil)
var _ UserStore = (*Store)(nil)
