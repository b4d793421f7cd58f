package hash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	stdhash "hash"
	"io"

	"scanapi/internal/model"
)

// Compute streams r through md5, sha1 and sha256 in a single pass and returns
// all three digests hex-encoded. If the stream cannot be fully read, an error
// is returned and no partial digests are exposed.
func Compute(r io.Reader) (model.FileHashes, error) {
	w := NewWriter()
	if _, err := io.Copy(w, r); err != nil {
		return model.FileHashes{}, fmt.Errorf("read stream: %w", err)
	}
	return w.Sum(), nil
}

// Writer hashes bytes as they pass through, so a file can be written to disk
// and hashed in the same pass via io.MultiWriter. Call Sum once the copy
// has completed.
type Writer struct {
	md5h    stdhash.Hash
	sha1h   stdhash.Hash
	sha256h stdhash.Hash
	w       io.Writer
}

// NewWriter returns a Writer feeding every written byte into all three
// digest algorithms.
func NewWriter() *Writer {
	h := &Writer{
		md5h:    md5.New(),
		sha1h:   sha1.New(),
		sha256h: sha256.New(),
	}
	h.w = io.MultiWriter(h.md5h, h.sha1h, h.sha256h)
	return h
}

func (h *Writer) Write(p []byte) (int, error) {
	return h.w.Write(p)
}

// Sum returns the digests of everything written so far.
func (h *Writer) Sum() model.FileHashes {
	return model.FileHashes{
		MD5:    hex.EncodeToString(h.md5h.Sum(nil)),
		SHA1:   hex.EncodeToString(h.sha1h.Sum(nil)),
		SHA256: hex.EncodeToString(h.sha256h.Sum(nil)),
	}
}
