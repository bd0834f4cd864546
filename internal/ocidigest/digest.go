// Package ocidigest computes and manipulates content digests in the
// "<algorithm>:<hex>" form used throughout the OCI ecosystem.
//
// It is a thin wrapper over github.com/opencontainers/go-digest, adding
// a stream-rewinding contract (the stream is rewound before and after
// computing its digest, so the caller can reuse it for a subsequent
// upload) and a streaming variant for large layer files.
package ocidigest

import (
	"io"

	digest "github.com/opencontainers/go-digest"
)

// Algorithm is the only digest algorithm this engine supports.
const Algorithm = digest.SHA256

// Digest is a type alias so callers of this package never need to import
// go-digest directly.
type Digest = digest.Digest

// FromBytes returns the sha256 digest of data.
func FromBytes(data []byte) Digest {
	return digest.FromBytes(data)
}

// ComputeStream reads r to completion and returns its sha256 digest. If r
// also implements io.Seeker, ComputeStream rewinds it to the start before
// reading and again afterward, so the same reader can be reused by the
// caller for a subsequent upload.
func ComputeStream(r io.Reader) (Digest, error) {
	type seeker interface {
		Seek(offset int64, whence int) (int64, error)
	}
	if s, ok := r.(seeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
		defer s.Seek(0, io.SeekStart)
	}
	d := digest.SHA256.Digester()
	if _, err := io.Copy(d.Hash(), r); err != nil {
		return "", err
	}
	return d.Digest(), nil
}

// ParseDigest parses s as a digest string, validating its algorithm and
// hex encoding.
func ParseDigest(s string) (Digest, error) {
	return digest.Parse(s)
}

// Trim returns the hex suffix of a digest, discarding the "sha256:"
// algorithm prefix.
func Trim(d Digest) string {
	return d.Encoded()
}

// Verify reports whether data's digest equals want.
func Verify(data []byte, want Digest) bool {
	return FromBytes(data) == want
}
