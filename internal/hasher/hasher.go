// Package hasher computes content digests used as blob identity.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"regexp"
)

// Digest is a lowercase hex-encoded SHA-256 of blob content.
type Digest string

var validDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Sum computes the content digest of data. Empty input is valid.
func Sum(data []byte) Digest {
	sum := sha256.Sum256(data)
	return Digest(hex.EncodeToString(sum[:]))
}

// String returns the hex form of the digest.
func (d Digest) String() string {
	return string(d)
}

// Valid reports whether d is a well-formed content digest.
func (d Digest) Valid() bool {
	return validDigest.MatchString(string(d))
}

// Parse validates raw as a content digest.
func Parse(raw string) (Digest, error) {
	d := Digest(raw)
	if !d.Valid() {
		return "", fmt.Errorf("invalid content digest: %q", raw)
	}
	return d, nil
}

// Writer accumulates a streaming digest over written bytes.
type Writer struct {
	h hash.Hash
}

// NewWriter returns a streaming digest writer.
func NewWriter() *Writer {
	return &Writer{h: sha256.New()}
}

func (w *Writer) Write(p []byte) (int, error) {
	return w.h.Write(p)
}

// Digest returns the digest of all bytes written so far.
func (w *Writer) Digest() Digest {
	return Digest(hex.EncodeToString(w.h.Sum(nil)))
}
