// Package registryclient defines the abstract blob/manifest client
// contract the artifact manager pulls and pushes module artifacts
// through, plus two implementations: an HTTPS OCI distribution client
// (client_http.go) and an in-memory client for tests (client_memory.go).
//
// Factored into an interface (PullBlob/PullManifest/PushBlob/PushManifest
// generalized to DownloadBlob/DownloadManifest/UploadBlob/UploadManifest)
// so the artifact manager can be tested without a real registry, backed
// by an oras-go in-memory store instead.
package registryclient

import (
	"context"
	"io"

	"github.com/bicep-lang/bicep-modreg/internal/ocidigest"
)

// ManifestResult is what DownloadManifest returns: the registry's
// claimed digest (from the Docker-Content-Digest response header) and
// the manifest body. The caller is responsible for recomputing and
// checking the digest; this package doesn't do it automatically because
// not every caller wants the same failure behavior on mismatch.
type ManifestResult struct {
	DigestHeader ocidigest.Digest
	Body         []byte
}

// BlobClient is the narrow registry contract the engine requires: a
// single attempt per operation, no built-in retry, and no assumption
// about the stream's ownership beyond a single call.
type BlobClient interface {
	// DownloadManifest fetches the manifest for reference (a tag or a
	// digest string), requesting acceptMediaType via the Accept header.
	DownloadManifest(ctx context.Context, reference string, acceptMediaType string) (ManifestResult, error)
	// DownloadBlob fetches the blob addressed by digest.
	DownloadBlob(ctx context.Context, digest ocidigest.Digest) (io.ReadCloser, error)
	// UploadBlob uploads the content of r, which the client may consume
	// fully without the caller reading it again afterward. It returns
	// the digest the client computed for the uploaded bytes.
	UploadBlob(ctx context.Context, r io.Reader) (ocidigest.Digest, error)
	// UploadManifest uploads a manifest body under the given media type
	// and, if tag is non-empty, tags it.
	UploadManifest(ctx context.Context, body []byte, mediaType string, tag string) error
}

// Factory creates a BlobClient for a given registry host and repository,
// one per (registry, repository) pair.
type Factory interface {
	NewBlobClient(ctx context.Context, registryHost, repository string) (BlobClient, error)
}
