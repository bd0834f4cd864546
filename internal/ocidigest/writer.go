package ocidigest

import (
	digest "github.com/opencontainers/go-digest"
)

// Writer accumulates a sha256 digest as bytes are written through it. It
// is used to digest a layer stream while it is simultaneously being
// written to the cache file, avoiding buffering an arbitrarily large
// layer in memory just to compute its digest.
type Writer struct {
	digester digest.Digester
}

// NewWriter returns a ready-to-use Writer.
func NewWriter() *Writer {
	return &Writer{digester: digest.SHA256.Digester()}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	return w.digester.Hash().Write(p)
}

// Digest returns the digest of everything written so far.
func (w *Writer) Digest() Digest {
	return w.digester.Digest()
}
