package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pixelfort/internal/hasher"
	"pixelfort/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, email, username string) *User {
	t.Helper()
	user, err := s.CreateUser(context.Background(), email, username, "bcrypt-hash", time.Now().UTC())
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func testPhoto(owner *User, content string) *models.Photo {
	return &models.Photo{
		Digest:       hasher.Sum([]byte(content)),
		OwnerID:      owner.ID,
		OriginalName: "vacation.jpg",
		MimeType:     "image/jpeg",
		SizeBytes:    int64(len(content)),
	}
}

func TestCreateAndGetPhoto(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "a@example.com", "alice")

	photo := testPhoto(owner, "photo-bytes")
	if err := s.CreatePhoto(ctx, photo); err != nil {
		t.Fatalf("create photo: %v", err)
	}
	if photo.ID == "" {
		t.Fatalf("expected generated photo id")
	}

	got, err := s.GetPhoto(ctx, photo.ID)
	if err != nil {
		t.Fatalf("get photo: %v", err)
	}
	if got == nil {
		t.Fatalf("expected photo, got nil")
	}
	if got.Digest != photo.Digest || got.OwnerID != owner.ID {
		t.Fatalf("unexpected photo: %#v", got)
	}
	if got.Derived.Width != nil || got.ThumbnailDigest != nil {
		t.Fatalf("expected empty derived metadata, got %#v", got)
	}

	byDigest, err := s.GetPhotoByDigest(ctx, photo.Digest)
	if err != nil {
		t.Fatalf("get by digest: %v", err)
	}
	if byDigest == nil || byDigest.ID != photo.ID {
		t.Fatalf("expected same photo by digest, got %#v", byDigest)
	}
}

func TestCreatePhotoDuplicateDigest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "a@example.com", "alice")
	other := createTestUser(t, s, "b@example.com", "bob")

	first := testPhoto(owner, "same-bytes")
	if err := s.CreatePhoto(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}

	second := testPhoto(other, "same-bytes")
	err := s.CreatePhoto(ctx, second)
	if err == nil {
		t.Fatalf("expected unique constraint error")
	}
	if !IsUniqueConstraint(err, "photos.digest") {
		t.Fatalf("expected photos.digest constraint, got %v", err)
	}
}

func TestCreatePhotoWithDerivedMetadata(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "a@example.com", "alice")

	width, height := 4032, 3024
	make_, model := "Canon", "EOS R5"
	lat, lon := 48.858844, 2.294351
	takenAt := time.Date(2024, 7, 15, 14, 30, 22, 0, time.UTC)
	thumb := hasher.Sum([]byte("thumbnail"))

	photo := testPhoto(owner, "with-exif")
	photo.Derived = models.DerivedMetadata{
		Width:       &width,
		Height:      &height,
		TakenAt:     &takenAt,
		CameraMake:  &make_,
		CameraModel: &model,
		GPSLat:      &lat,
		GPSLon:      &lon,
	}
	photo.ThumbnailDigest = &thumb

	if err := s.CreatePhoto(ctx, photo); err != nil {
		t.Fatalf("create photo: %v", err)
	}

	got, err := s.GetPhoto(ctx, photo.ID)
	if err != nil {
		t.Fatalf("get photo: %v", err)
	}
	if got.Derived.Width == nil || *got.Derived.Width != width {
		t.Fatalf("expected width %d, got %#v", width, got.Derived.Width)
	}
	if got.Derived.TakenAt == nil || !got.Derived.TakenAt.Equal(takenAt) {
		t.Fatalf("expected taken_at %v, got %#v", takenAt, got.Derived.TakenAt)
	}
	if got.Derived.GPSLat == nil || *got.Derived.GPSLat != lat {
		t.Fatalf("expected gps_lat %v, got %#v", lat, got.Derived.GPSLat)
	}
	if !got.HasThumbnail() || *got.ThumbnailDigest != thumb {
		t.Fatalf("expected thumbnail digest %s, got %#v", thumb, got.ThumbnailDigest)
	}
}

func TestAttachDerivedMetadataFillsButNeverClears(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "a@example.com", "alice")

	width := 800
	photo := testPhoto(owner, "late-derive")
	photo.Derived.Width = &width
	if err := s.CreatePhoto(ctx, photo); err != nil {
		t.Fatalf("create photo: %v", err)
	}

	height := 600
	if err := s.AttachDerivedMetadata(ctx, photo.ID, models.DerivedMetadata{Height: &height}, nil); err != nil {
		t.Fatalf("attach derived: %v", err)
	}

	got, err := s.GetPhoto(ctx, photo.ID)
	if err != nil {
		t.Fatalf("get photo: %v", err)
	}
	if got.Derived.Width == nil || *got.Derived.Width != width {
		t.Fatalf("attach must not clear width, got %#v", got.Derived.Width)
	}
	if got.Derived.Height == nil || *got.Derived.Height != height {
		t.Fatalf("expected height %d, got %#v", height, got.Derived.Height)
	}
}

func TestListPhotosMissingDerived(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "a@example.com", "alice")

	withDims := testPhoto(owner, "has-dims")
	width := 100
	withDims.Derived.Width = &width
	if err := s.CreatePhoto(ctx, withDims); err != nil {
		t.Fatalf("create photo: %v", err)
	}

	without := testPhoto(owner, "no-dims")
	if err := s.CreatePhoto(ctx, without); err != nil {
		t.Fatalf("create photo: %v", err)
	}

	missing, err := s.ListPhotosMissingDerived(ctx, 0)
	if err != nil {
		t.Fatalf("list missing derived: %v", err)
	}
	if len(missing) != 1 || missing[0].ID != without.ID {
		t.Fatalf("expected only the underived photo, got %#v", missing)
	}
}

func TestDeletePhotosByOwner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "a@example.com", "alice")
	other := createTestUser(t, s, "b@example.com", "bob")

	for _, content := range []string{"one", "two", "three"} {
		if err := s.CreatePhoto(ctx, testPhoto(owner, content)); err != nil {
			t.Fatalf("create photo %s: %v", content, err)
		}
	}
	kept := testPhoto(other, "kept")
	if err := s.CreatePhoto(ctx, kept); err != nil {
		t.Fatalf("create kept photo: %v", err)
	}

	deleted, err := s.DeletePhotosByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("delete by owner: %v", err)
	}
	if len(deleted) != 3 {
		t.Fatalf("expected 3 deleted photos, got %d", len(deleted))
	}

	remaining, err := s.ListPhotosByOwner(ctx, other.ID)
	if err != nil {
		t.Fatalf("list remaining: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != kept.ID {
		t.Fatalf("expected bob's photo untouched, got %#v", remaining)
	}
}

func TestDeleteUserCascadesPhotoRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "a@example.com", "alice")

	photo := testPhoto(owner, "cascade")
	if err := s.CreatePhoto(ctx, photo); err != nil {
		t.Fatalf("create photo: %v", err)
	}

	removed, err := s.DeleteUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if !removed {
		t.Fatalf("expected user row removed")
	}

	got, err := s.GetPhoto(ctx, photo.ID)
	if err != nil {
		t.Fatalf("get photo after cascade: %v", err)
	}
	if got != nil {
		t.Fatalf("expected photo row cascaded away, got %#v", got)
	}
}

func TestListReferencedDigests(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "a@example.com", "alice")

	thumb := hasher.Sum([]byte("thumb"))
	photo := testPhoto(owner, "content")
	photo.ThumbnailDigest = &thumb
	if err := s.CreatePhoto(ctx, photo); err != nil {
		t.Fatalf("create photo: %v", err)
	}

	referenced, err := s.ListReferencedDigests(ctx)
	if err != nil {
		t.Fatalf("list referenced: %v", err)
	}
	if len(referenced) != 2 {
		t.Fatalf("expected 2 referenced digests, got %d", len(referenced))
	}
	if _, ok := referenced[photo.Digest]; !ok {
		t.Fatalf("content digest missing from referenced set")
	}
	if _, ok := referenced[thumb]; !ok {
		t.Fatalf("thumbnail digest missing from referenced set")
	}
}

func TestCountPhotosReferencingThumbnail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "a@example.com", "alice")

	thumb := hasher.Sum([]byte("shared-thumb"))
	first := testPhoto(owner, "first")
	first.ThumbnailDigest = &thumb
	if err := s.CreatePhoto(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}

	count, err := s.CountPhotosReferencingThumbnail(ctx, thumb, first.ID)
	if err != nil {
		t.Fatalf("count referencing: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no other referents, got %d", count)
	}

	second := testPhoto(owner, "second")
	second.ThumbnailDigest = &thumb
	if err := s.CreatePhoto(ctx, second); err != nil {
		t.Fatalf("create second: %v", err)
	}

	count, err = s.CountPhotosReferencingThumbnail(ctx, thumb, first.ID)
	if err != nil {
		t.Fatalf("count referencing: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one other referent, got %d", count)
	}
}
