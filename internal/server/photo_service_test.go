package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"pixelfort/internal/blobstore"
	"pixelfort/internal/derive"
	"pixelfort/internal/hasher"
	"pixelfort/internal/models"
	"pixelfort/internal/store"
)

func TestPhotoServiceStoreAndGet(t *testing.T) {
	svc, st, _ := newPhotoServiceForTest(t, derive.NewImageDeriver(200, testLogger()))
	ctx := context.Background()
	user := createTestUser(t, st, "ana@example.com", "ana")

	data := makePNG(t, 640, 480, 10)
	photo, err := svc.Store(ctx, StorePhotoInput{
		OwnerID:      user.ID,
		OriginalName: "beach.png",
		MimeType:     "image/png",
		Data:         data,
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if photo.ID == "" || photo.Digest != hasher.Sum(data) {
		t.Fatalf("unexpected photo record: %+v", photo)
	}
	if photo.Derived.Width == nil || *photo.Derived.Width != 640 {
		t.Fatalf("expected derived width 640, got %+v", photo.Derived)
	}
	if !photo.HasThumbnail() {
		t.Fatal("expected thumbnail digest")
	}

	got, err := svc.Get(ctx, user.ID, photo.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Digest != photo.Digest {
		t.Fatalf("expected digest %s, got %s", photo.Digest, got.Digest)
	}

	_, rc, err := svc.OpenContent(ctx, user.ID, photo.ID)
	if err != nil {
		t.Fatalf("open content: %v", err)
	}
	defer rc.Close()
	readBack, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	if hasher.Sum(readBack) != photo.Digest {
		t.Fatal("content bytes do not match stored digest")
	}
}

func TestPhotoServiceStoreRejectsDuplicateContent(t *testing.T) {
	svc, st, blobs := newPhotoServiceForTest(t, derive.Noop{})
	ctx := context.Background()
	user := createTestUser(t, st, "ana@example.com", "ana")
	data := makePNG(t, 64, 48, 20)

	first, err := svc.Store(ctx, StorePhotoInput{OwnerID: user.ID, OriginalName: "a.png", MimeType: "image/png", Data: data})
	if err != nil {
		t.Fatalf("first store: %v", err)
	}

	_, err = svc.Store(ctx, StorePhotoInput{OwnerID: user.ID, OriginalName: "copy-of-a.png", MimeType: "image/png", Data: data})
	if err == nil {
		t.Fatal("expected conflict for duplicate content")
	}
	if status := httpStatusFromError(err); status != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%v)", status, err)
	}
	if !strings.Contains(err.Error(), first.ID) {
		t.Fatalf("expected error to name existing record %s, got %v", first.ID, err)
	}

	count, err := st.CountPhotos(ctx)
	if err != nil {
		t.Fatalf("count photos: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 catalog row, got %d", count)
	}
	if got := countBlobs(t, blobs); got != 1 {
		t.Fatalf("expected 1 blob, got %d", got)
	}
}

func TestPhotoServiceStoreRejectsCrossOwnerDuplicate(t *testing.T) {
	svc, st, _ := newPhotoServiceForTest(t, derive.Noop{})
	ctx := context.Background()
	ana := createTestUser(t, st, "ana@example.com", "ana")
	bob := createTestUser(t, st, "bob@example.com", "bob")
	data := makePNG(t, 64, 48, 30)

	if _, err := svc.Store(ctx, StorePhotoInput{OwnerID: ana.ID, OriginalName: "a.png", MimeType: "image/png", Data: data}); err != nil {
		t.Fatalf("first store: %v", err)
	}

	_, err := svc.Store(ctx, StorePhotoInput{OwnerID: bob.ID, OriginalName: "b.png", MimeType: "image/png", Data: data})
	if err == nil {
		t.Fatal("expected conflict for cross-owner duplicate")
	}
	if status := httpStatusFromError(err); status != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%v)", status, err)
	}
}

func TestPhotoServiceCatalogFailureLeavesNothingBehind(t *testing.T) {
	st := newTestStore(t)
	blobs := newTestBlobStore(t)
	catalog := &failingCatalog{PhotoCatalog: st, failCreate: true}
	svc := NewPhotoService(catalog, blobs, derive.NewImageDeriver(200, testLogger()), 5*time.Second, testLogger())
	ctx := context.Background()
	user := createTestUser(t, st, "ana@example.com", "ana")

	_, err := svc.Store(ctx, StorePhotoInput{
		OwnerID:      user.ID,
		OriginalName: "doomed.png",
		MimeType:     "image/png",
		Data:         makePNG(t, 640, 480, 40),
	})
	if err == nil {
		t.Fatal("expected store to fail")
	}
	if status := httpStatusFromError(err); status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}

	count, err := st.CountPhotos(ctx)
	if err != nil {
		t.Fatalf("count photos: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no catalog rows, got %d", count)
	}
	if got := countBlobs(t, blobs); got != 0 {
		t.Fatalf("expected compensation to remove all blobs, got %d", got)
	}
}

// racingCatalog commits a competing row for the same content from inside
// CreatePhoto, so the caller's own insert loses the unique-digest race.
// With failLookup set, lookups after the race return a transient error.
type racingCatalog struct {
	store.PhotoCatalog
	winnerOwner string
	failLookup  bool
	raced       bool
	winnerID    string
}

func (c *racingCatalog) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	if !c.raced {
		c.raced = true
		winner := *photo
		winner.ID = ""
		winner.OwnerID = c.winnerOwner
		if err := c.PhotoCatalog.CreatePhoto(ctx, &winner); err != nil {
			return err
		}
		c.winnerID = winner.ID
	}
	return c.PhotoCatalog.CreatePhoto(ctx, photo)
}

func (c *racingCatalog) GetPhotoByDigest(ctx context.Context, digest hasher.Digest) (*models.Photo, error) {
	if c.raced && c.failLookup {
		return nil, errors.New("database is locked")
	}
	return c.PhotoCatalog.GetPhotoByDigest(ctx, digest)
}

func TestPhotoServiceInsertRaceKeepsWinnerBlob(t *testing.T) {
	st := newTestStore(t)
	blobs := newTestBlobStore(t)
	ctx := context.Background()
	ana := createTestUser(t, st, "ana@example.com", "ana")
	bob := createTestUser(t, st, "bob@example.com", "bob")
	catalog := &racingCatalog{PhotoCatalog: st, winnerOwner: bob.ID}
	svc := NewPhotoService(catalog, blobs, derive.Noop{}, 5*time.Second, testLogger())

	data := makePNG(t, 64, 48, 33)
	digest := hasher.Sum(data)

	_, err := svc.Store(ctx, StorePhotoInput{OwnerID: ana.ID, OriginalName: "a.png", MimeType: "image/png", Data: data})
	if err == nil {
		t.Fatal("expected conflict when a concurrent insert wins")
	}
	if status := httpStatusFromError(err); status != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%v)", status, err)
	}
	if !strings.Contains(err.Error(), catalog.winnerID) {
		t.Fatalf("expected error to name winning record %s, got %v", catalog.winnerID, err)
	}

	exists, err := blobs.Exists(ctx, digest)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("winning record's content blob was deleted")
	}
	winner, err := st.GetPhoto(ctx, catalog.winnerID)
	if err != nil || winner == nil {
		t.Fatalf("winning record not readable: %v", err)
	}
	if winner.OwnerID != bob.ID || winner.Digest != digest {
		t.Fatalf("unexpected winning record: %+v", winner)
	}
}

func TestPhotoServiceInsertRaceSurvivesLookupFailure(t *testing.T) {
	st := newTestStore(t)
	blobs := newTestBlobStore(t)
	ctx := context.Background()
	ana := createTestUser(t, st, "ana@example.com", "ana")
	bob := createTestUser(t, st, "bob@example.com", "bob")
	catalog := &racingCatalog{PhotoCatalog: st, winnerOwner: bob.ID, failLookup: true}
	svc := NewPhotoService(catalog, blobs, derive.Noop{}, 5*time.Second, testLogger())

	data := makePNG(t, 64, 48, 34)
	digest := hasher.Sum(data)

	_, err := svc.Store(ctx, StorePhotoInput{OwnerID: ana.ID, OriginalName: "a.png", MimeType: "image/png", Data: data})
	if err == nil {
		t.Fatal("expected conflict when a concurrent insert wins")
	}
	if status := httpStatusFromError(err); status != http.StatusConflict {
		t.Fatalf("expected 409 even when the winner cannot be read back, got %d (%v)", status, err)
	}

	// The blob belongs to the winning record; a transient lookup failure
	// must not turn the conflict into compensation that deletes it.
	exists, err := blobs.Exists(ctx, digest)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("winning record's content blob was deleted")
	}
	winner, err := st.GetPhotoByDigest(ctx, digest)
	if err != nil || winner == nil {
		t.Fatalf("winning record not readable: %v", err)
	}
	rc, err := blobs.Open(ctx, winner.Digest)
	if err != nil {
		t.Fatalf("winning record's content is dangling: %v", err)
	}
	rc.Close()

	count, err := st.CountPhotos(ctx)
	if err != nil {
		t.Fatalf("count photos: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the winning row, got %d", count)
	}
}

func TestPhotoServiceOwnershipIsolation(t *testing.T) {
	svc, st, _ := newPhotoServiceForTest(t, derive.Noop{})
	ctx := context.Background()
	ana := createTestUser(t, st, "ana@example.com", "ana")
	bob := createTestUser(t, st, "bob@example.com", "bob")

	photo, err := svc.Store(ctx, StorePhotoInput{OwnerID: ana.ID, OriginalName: "a.png", MimeType: "image/png", Data: makePNG(t, 64, 48, 50)})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	for name, fn := range map[string]func() error{
		"get": func() error {
			_, err := svc.Get(ctx, bob.ID, photo.ID)
			return err
		},
		"open content": func() error {
			_, _, err := svc.OpenContent(ctx, bob.ID, photo.ID)
			return err
		},
		"delete": func() error {
			return svc.Delete(ctx, bob.ID, photo.ID)
		},
	} {
		err := fn()
		if err == nil {
			t.Fatalf("%s: expected error for foreign photo", name)
		}
		if status := httpStatusFromError(err); status != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d (%v)", name, status, err)
		}
	}

	if _, err := svc.Get(ctx, ana.ID, photo.ID); err != nil {
		t.Fatalf("owner get should still succeed: %v", err)
	}
}

func TestPhotoServiceDeleteRemovesRowAndBlobs(t *testing.T) {
	svc, st, blobs := newPhotoServiceForTest(t, derive.NewImageDeriver(200, testLogger()))
	ctx := context.Background()
	user := createTestUser(t, st, "ana@example.com", "ana")

	photo, err := svc.Store(ctx, StorePhotoInput{OwnerID: user.ID, OriginalName: "a.png", MimeType: "image/png", Data: makePNG(t, 640, 480, 60)})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if got := countBlobs(t, blobs); got != 2 {
		t.Fatalf("expected content+thumbnail blobs, got %d", got)
	}

	if err := svc.Delete(ctx, user.ID, photo.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err = svc.Get(ctx, user.ID, photo.ID)
	if status := httpStatusFromError(err); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d (%v)", status, err)
	}
	if got := countBlobs(t, blobs); got != 0 {
		t.Fatalf("expected no blobs after delete, got %d", got)
	}

	// Deleting a missing photo is a 404, not an internal error.
	err = svc.Delete(ctx, user.ID, photo.ID)
	if status := httpStatusFromError(err); status != http.StatusNotFound {
		t.Fatalf("expected 404 for repeated delete, got %d", status)
	}
}

func TestPhotoServiceDeleteOwnerPhotosCascades(t *testing.T) {
	svc, st, blobs := newPhotoServiceForTest(t, derive.Noop{})
	ctx := context.Background()
	ana := createTestUser(t, st, "ana@example.com", "ana")
	bob := createTestUser(t, st, "bob@example.com", "bob")

	for i := 0; i < 3; i++ {
		if _, err := svc.Store(ctx, StorePhotoInput{OwnerID: ana.ID, OriginalName: "a.png", MimeType: "image/png", Data: makePNG(t, 64, 48, uint8(70+i))}); err != nil {
			t.Fatalf("store ana %d: %v", i, err)
		}
	}
	bobPhoto, err := svc.Store(ctx, StorePhotoInput{OwnerID: bob.ID, OriginalName: "b.png", MimeType: "image/png", Data: makePNG(t, 64, 48, 99)})
	if err != nil {
		t.Fatalf("store bob: %v", err)
	}

	removed, err := svc.DeleteOwnerPhotos(ctx, ana.ID)
	if err != nil {
		t.Fatalf("delete owner photos: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}

	count, err := st.CountPhotos(ctx)
	if err != nil {
		t.Fatalf("count photos: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only bob's photo to remain, got %d rows", count)
	}
	if got := countBlobs(t, blobs); got != 1 {
		t.Fatalf("expected only bob's blob to remain, got %d", got)
	}
	if _, err := svc.Get(ctx, bob.ID, bobPhoto.ID); err != nil {
		t.Fatalf("bob's photo should survive: %v", err)
	}
}

func TestPhotoServiceThumbnailNotFound(t *testing.T) {
	svc, st, _ := newPhotoServiceForTest(t, derive.Noop{})
	ctx := context.Background()
	user := createTestUser(t, st, "ana@example.com", "ana")

	photo, err := svc.Store(ctx, StorePhotoInput{OwnerID: user.ID, OriginalName: "a.png", MimeType: "image/png", Data: makePNG(t, 64, 48, 80)})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if photo.HasThumbnail() {
		t.Fatal("noop deriver should not produce a thumbnail")
	}

	_, _, err = svc.OpenThumbnail(ctx, user.ID, photo.ID)
	if status := httpStatusFromError(err); status != http.StatusNotFound {
		t.Fatalf("expected 404 for missing thumbnail, got %d (%v)", status, err)
	}
}

func TestPhotoServiceCorruptImageStoredWithoutMetadata(t *testing.T) {
	svc, st, blobs := newPhotoServiceForTest(t, derive.NewImageDeriver(200, testLogger()))
	ctx := context.Background()
	user := createTestUser(t, st, "ana@example.com", "ana")

	// Valid PNG header followed by garbage: storage must succeed, derivation
	// must not.
	data := append([]byte("\x89PNG\r\n\x1a\n"), []byte("not really an image body")...)
	photo, err := svc.Store(ctx, StorePhotoInput{OwnerID: user.ID, OriginalName: "broken.png", MimeType: "image/png", Data: data})
	if err != nil {
		t.Fatalf("store corrupt image: %v", err)
	}
	if photo.Derived.Width != nil || photo.HasThumbnail() {
		t.Fatalf("expected no derived metadata for corrupt image, got %+v", photo)
	}

	if got := countBlobs(t, blobs); got != 1 {
		t.Fatalf("expected raw blob to be stored, got %d blobs", got)
	}
}

func TestPhotoServiceRederive(t *testing.T) {
	st := newTestStore(t)
	blobs := newTestBlobStore(t)
	ctx := context.Background()
	user := createTestUser(t, st, "ana@example.com", "ana")

	// Ingest with derivation disabled, as after a derive outage.
	plain := NewPhotoService(st, blobs, derive.Noop{}, 5*time.Second, testLogger())
	photo, err := plain.Store(ctx, StorePhotoInput{OwnerID: user.ID, OriginalName: "a.png", MimeType: "image/png", Data: makePNG(t, 640, 480, 90)})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if photo.Derived.Width != nil {
		t.Fatal("expected no derived metadata from noop deriver")
	}

	svc := NewPhotoService(st, blobs, derive.NewImageDeriver(200, testLogger()), 5*time.Second, testLogger())
	result, err := svc.Rederive(ctx, 10)
	if err != nil {
		t.Fatalf("rederive: %v", err)
	}
	if result.Scanned != 1 || result.Updated != 1 {
		t.Fatalf("expected scanned=1 updated=1, got %+v", result)
	}

	got, err := svc.Get(ctx, user.ID, photo.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Derived.Width == nil || *got.Derived.Width != 640 {
		t.Fatalf("expected rederived width 640, got %+v", got.Derived)
	}
	if !got.HasThumbnail() {
		t.Fatal("expected rederive to attach a thumbnail")
	}
}

func TestPhotoServiceContentBlobMissingIsInternal(t *testing.T) {
	svc, st, blobs := newPhotoServiceForTest(t, derive.Noop{})
	ctx := context.Background()
	user := createTestUser(t, st, "ana@example.com", "ana")

	photo, err := svc.Store(ctx, StorePhotoInput{OwnerID: user.ID, OriginalName: "a.png", MimeType: "image/png", Data: makePNG(t, 64, 48, 11)})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := blobs.Delete(ctx, photo.Digest); err != nil {
		t.Fatalf("delete blob: %v", err)
	}

	_, _, err = svc.OpenContent(ctx, user.ID, photo.ID)
	if err == nil {
		t.Fatal("expected error for missing blob")
	}
	if !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound, got %v", err)
	}
	if status := httpStatusFromError(err); status != http.StatusInternalServerError {
		t.Fatalf("expected 500 for integrity violation, got %d", status)
	}
}

var _ store.PhotoCatalog = (*failingCatalog)(nil)
var _ store.PhotoCatalog = (*racingCatalog)(nil)
