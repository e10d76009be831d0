package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"pixelfort/internal/api"
	"pixelfort/internal/blobstore"
	"pixelfort/internal/config"
	"pixelfort/internal/derive"
	"pixelfort/internal/models"
	"pixelfort/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "pixelfort.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestBlobStore(t *testing.T) *blobstore.LocalStore {
	t.Helper()
	blobs, err := blobstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	return blobs
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	srv, _, _ := newTestServerFull(t)
	return srv
}

func newTestServerFull(t *testing.T) (*Server, *store.Store, *blobstore.LocalStore) {
	t.Helper()
	cfg := config.Default()
	st := newTestStore(t)
	blobs := newTestBlobStore(t)
	srv := New("127.0.0.1:0", st, blobs,
		derive.NewImageDeriver(cfg.Thumbnails.MaxPx, testLogger()), &cfg, testLogger())
	return srv, st, blobs
}

func newPhotoServiceForTest(t *testing.T, deriver derive.Deriver) (*PhotoService, *store.Store, *blobstore.LocalStore) {
	t.Helper()
	st := newTestStore(t)
	blobs := newTestBlobStore(t)
	return NewPhotoService(st, blobs, deriver, 5*time.Second, testLogger()), st, blobs
}

func createTestUser(t *testing.T, st *store.Store, email, username string) *store.User {
	t.Helper()
	user, err := st.CreateUser(context.Background(), email, username, "x", time.Now().UTC())
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

// makePNG renders a small solid-color PNG for upload fixtures.
func makePNG(t *testing.T, width, height int, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x % 256), B: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func countBlobs(t *testing.T, blobs *blobstore.LocalStore) int {
	t.Helper()
	infos, err := blobs.List(context.Background())
	if err != nil {
		t.Fatalf("list blobs: %v", err)
	}
	return len(infos)
}

// failingCatalog wraps a real catalog and fails CreatePhoto on demand.
type failingCatalog struct {
	store.PhotoCatalog
	failCreate bool
}

func (f *failingCatalog) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	if f.failCreate {
		return context.DeadlineExceeded
	}
	return f.PhotoCatalog.CreatePhoto(ctx, photo)
}

func registerAndLogin(t *testing.T, h http.Handler, email, username, password string) string {
	t.Helper()

	registerBody, _ := json.Marshal(api.RegisterRequest{Email: email, Username: username, Password: password})
	registerReq := httptest.NewRequest(http.MethodPost, "/v1/auth/register", bytes.NewReader(registerBody))
	registerW := httptest.NewRecorder()
	h.ServeHTTP(registerW, registerReq)
	if registerW.Code != http.StatusCreated {
		t.Fatalf("expected register 201, got %d (%s)", registerW.Code, registerW.Body.String())
	}

	loginBody, _ := json.Marshal(api.LoginRequest{Email: email, Password: password})
	loginReq := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(loginBody))
	loginW := httptest.NewRecorder()
	h.ServeHTTP(loginW, loginReq)
	if loginW.Code != http.StatusOK {
		t.Fatalf("expected login 200, got %d (%s)", loginW.Code, loginW.Body.String())
	}

	var resp api.LoginResponse
	if err := json.Unmarshal(loginW.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected session token on login")
	}
	return resp.Token
}

func uploadPhoto(t *testing.T, h http.Handler, token, filename string, data []byte) api.PhotoResponse {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/photos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected upload 201, got %d (%s)", w.Code, w.Body.String())
	}

	var resp api.PhotoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode photo response: %v", err)
	}
	return resp
}

func authedRequest(token, method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
