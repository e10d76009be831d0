package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"pixelfort/internal/hasher"
)

const tmpDirName = "tmp"

var safeExtension = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// LocalStore keeps blobs in a flat directory, one file per digest. The file
// name is the digest plus the original upload's extension; the extension is
// cosmetic and never part of identity.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local blob store rooted at root.
func NewLocalStore(root string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, tmpDirName), 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: abs}, nil
}

// Exists reports whether a blob with this digest is stored.
func (s *LocalStore) Exists(ctx context.Context, digest hasher.Digest) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !digest.Valid() {
		return false, fmt.Errorf("invalid content digest: %q", digest)
	}
	path, err := s.find(digest)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return path != "", nil
}

// Put stores blob bytes under digest. The incoming stream is re-hashed and
// verified against the declared digest. Writing an already-stored digest is
// a no-op; concurrent writers of the same digest converge on one file
// because the final rename is atomic.
func (s *LocalStore) Put(ctx context.Context, digest hasher.Digest, ext string, r io.Reader) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return 0, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !digest.Valid() {
		return 0, fmt.Errorf("invalid content digest: %q", digest)
	}

	if existing, err := s.find(digest); err == nil && existing != "" {
		info, statErr := os.Stat(existing)
		if statErr != nil {
			return 0, statErr
		}
		return info.Size(), nil
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, tmpDirName), "put-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	h := hasher.NewWriter()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		cleanup()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, err
	}
	if got := h.Digest(); got != digest {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("content digest mismatch: declared %s, got %s", digest, got)
	}

	dst := filepath.Join(s.root, string(digest)+normalizeExtension(ext))
	if err := os.Rename(tmpPath, dst); err != nil {
		if existing, findErr := s.find(digest); findErr == nil && existing != "" {
			_ = os.Remove(tmpPath)
			return n, nil
		}
		cleanup()
		return 0, err
	}

	return n, nil
}

// Open returns a reader for the blob content.
func (s *LocalStore) Open(ctx context.Context, digest hasher.Digest) (io.ReadCloser, error) {
	if s == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !digest.Valid() {
		return nil, fmt.Errorf("invalid content digest: %q", digest)
	}
	path, err := s.find(digest)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes a blob. Missing blobs are not an error.
func (s *LocalStore) Delete(ctx context.Context, digest hasher.Digest) error {
	if s == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !digest.Valid() {
		return fmt.Errorf("invalid content digest: %q", digest)
	}
	path, err := s.find(digest)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List scans the whole store and returns every stored blob. Used only by
// the orphan reconciler; a scan always starts from the beginning.
func (s *LocalStore) List(ctx context.Context) ([]BlobInfo, error) {
	if s == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	blobs := []BlobInfo{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		digest, err := hasher.Parse(stem(entry.Name()))
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		blobs = append(blobs, BlobInfo{Digest: digest, Size: info.Size(), ModTime: info.ModTime()})
	}
	return blobs, nil
}

// find locates the stored file for a digest regardless of extension.
func (s *LocalStore) find(digest hasher.Digest) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, string(digest)+"*"))
	if err != nil {
		return "", err
	}
	for _, match := range matches {
		if stem(filepath.Base(match)) == string(digest) {
			return match, nil
		}
	}
	return "", ErrNotFound
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if !safeExtension.MatchString(ext) {
		return ""
	}
	return ext
}
