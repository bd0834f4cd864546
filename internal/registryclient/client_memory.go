package registryclient

import (
	"bytes"
	"context"
	"io"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	orascontent "oras.land/oras-go/v2/content"
	orasmemory "oras.land/oras-go/v2/content/memory"

	"github.com/bicep-lang/bicep-modreg/internal/bicepdiag"
	"github.com/bicep-lang/bicep-modreg/internal/ocidigest"
)

// blobMediaType is used for opaque layer/config blobs pushed through
// MemoryClient; the BlobClient contract doesn't carry a media type for
// blob uploads (only the manifest descriptor records one).
const blobMediaType = "application/octet-stream"

// MemoryClient is an in-memory BlobClient backed by
// oras.land/oras-go/v2/content/memory.Store: a content-addressed store
// with a tag index over the same content, used here as a fake OCI
// repository for tests so pull and push can be exercised without a real
// registry.
type MemoryClient struct {
	store *orasmemory.Store
}

// NewMemoryClient returns a MemoryClient with an empty backing store.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{store: orasmemory.New()}
}

var _ BlobClient = (*MemoryClient)(nil)

func (c *MemoryClient) DownloadManifest(ctx context.Context, reference string, acceptMediaType string) (ManifestResult, error) {
	desc, err := c.resolve(ctx, reference)
	if err != nil {
		return ManifestResult{}, bicepdiag.New(bicepdiag.ModuleNotFound, err, "manifest %q not found", reference)
	}
	rc, err := c.store.Fetch(ctx, desc)
	if err != nil {
		return ManifestResult{}, bicepdiag.New(bicepdiag.Transport, err, "fetching manifest %q", reference)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return ManifestResult{}, bicepdiag.New(bicepdiag.Transport, err, "reading manifest %q", reference)
	}
	return ManifestResult{DigestHeader: ocidigest.Digest(desc.Digest), Body: body}, nil
}

func (c *MemoryClient) resolve(ctx context.Context, reference string) (ociv1.Descriptor, error) {
	if d, err := ocidigest.ParseDigest(reference); err == nil {
		if ok, existsErr := c.store.Exists(ctx, ociv1.Descriptor{Digest: d}); existsErr == nil && ok {
			return ociv1.Descriptor{Digest: d}, nil
		}
	}
	return c.store.Resolve(ctx, reference)
}

func (c *MemoryClient) DownloadBlob(ctx context.Context, digest ocidigest.Digest) (io.ReadCloser, error) {
	rc, err := c.store.Fetch(ctx, ociv1.Descriptor{Digest: digest})
	if err != nil {
		return nil, bicepdiag.New(bicepdiag.ModuleNotFound, err, "blob %s not found", digest)
	}
	return rc, nil
}

func (c *MemoryClient) UploadBlob(ctx context.Context, r io.Reader) (ocidigest.Digest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", bicepdiag.New(bicepdiag.Unhandled, err, "reading blob for upload")
	}
	desc := orascontent.NewDescriptorFromBytes(blobMediaType, data)
	if err := c.store.Push(ctx, desc, bytes.NewReader(data)); err != nil {
		return "", bicepdiag.New(bicepdiag.Transport, err, "uploading blob")
	}
	return ocidigest.Digest(desc.Digest), nil
}

func (c *MemoryClient) UploadManifest(ctx context.Context, body []byte, mediaType string, tag string) error {
	desc := orascontent.NewDescriptorFromBytes(mediaType, body)
	if err := c.store.Push(ctx, desc, bytes.NewReader(body)); err != nil {
		return bicepdiag.New(bicepdiag.Transport, err, "uploading manifest")
	}
	if tag != "" {
		if err := c.store.Tag(ctx, desc, tag); err != nil {
			return bicepdiag.New(bicepdiag.Transport, err, "tagging manifest %q", tag)
		}
	}
	return nil
}
