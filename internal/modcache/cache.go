// Package modcache implements the engine's content-addressed local cache:
// a directory tree under a configured root, one subdirectory per OCI
// module reference, containing one file per manifest layer.
//
// Each layer stream is copied directly into its destination file rather
// than buffering it in memory first. Cache entries are keyed by a
// directory-per-coordinate layout: a reference's own CacheDirName
// segments become path segments under the cache root.
package modcache

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/bicep-lang/bicep-modreg/internal/bicepdiag"
	"github.com/bicep-lang/bicep-modreg/internal/modref"
	"github.com/bicep-lang/bicep-modreg/internal/ocidigest"
	"github.com/bicep-lang/bicep-modreg/internal/ocimanifest"
)

// Cache is a content-addressed local cache rooted at a single directory.
// It is safe for concurrent use: directory creation is idempotent and
// per-layer file writes are create-or-truncate, so two callers racing to
// populate the same entry with the same bytes converge on identical
// on-disk content.
type Cache struct {
	root string
}

// New returns a Cache rooted at root. root is not created until the
// first EnsureDir or WriteLayer call.
func New(root string) *Cache {
	return &Cache{root: root}
}

// Dir returns the absolute directory a reference's layers live under.
// It returns an error for references with no cache entry (Local
// references have none; CacheDirName returns nil for them).
func (c *Cache) Dir(ref modref.Reference) (string, error) {
	segs := ref.CacheDirName()
	if segs == nil {
		return "", bicepdiag.New(bicepdiag.Unhandled, nil, "reference %s has no cache entry", ref)
	}
	parts := append([]string{c.root}, segs...)
	return filepath.Join(parts...), nil
}

// Has reports whether every layer named in manifest's descriptors is
// already materialized under ref's cache directory. It does not verify
// digests of the existing files: an on-disk write is treated as
// authoritative, and re-verifying every cached byte on every "already
// present" query would defeat the point of the cache.
func (c *Cache) Has(ref modref.Reference, manifest ocimanifest.Manifest) (bool, error) {
	dir, err := c.Dir(ref)
	if err != nil {
		return false, err
	}
	for _, layer := range manifest.Layers {
		path := filepath.Join(dir, ocimanifest.LayerFileName(layer))
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, bicepdiag.New(bicepdiag.LocalIo, err, "statting cached layer %s", path)
		}
	}
	return true, nil
}

// HasAny reports whether ref's cache directory exists and contains at
// least one file, without requiring the manifest that produced it. This
// is the check the dispatcher uses to decide whether a reference still
// needs restoring: unlike Has, it doesn't need a manifest fetch first,
// so it's usable as a cheap pre-pull short-circuit.
func (c *Cache) HasAny(ref modref.Reference) (bool, error) {
	dir, err := c.Dir(ref)
	if err != nil {
		return false, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, bicepdiag.New(bicepdiag.LocalIo, err, "reading cache directory %s", dir)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return true, nil
		}
	}
	return false, nil
}

// EnsureDir creates ref's cache directory if it doesn't already exist.
func (c *Cache) EnsureDir(ref modref.Reference) (string, error) {
	dir, err := c.Dir(ref)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", bicepdiag.New(bicepdiag.LocalIo, err, "creating cache directory %s", dir)
	}
	return dir, nil
}

// WriteLayer streams r into the file named for layer within ref's cache
// directory, creating the directory first if necessary. The write is
// create-or-truncate: a concurrent writer racing on the same path with
// the same source bytes leaves the file byte-identical regardless of
// which writer finishes last.
func (c *Cache) WriteLayer(ctx context.Context, ref modref.Reference, layer ocimanifest.Descriptor, r io.Reader) error {
	dir, err := c.EnsureDir(ref)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, ocimanifest.LayerFileName(layer))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return bicepdiag.New(bicepdiag.LocalIo, err, "creating cache file %s", path)
	}
	defer f.Close()

	digester := ocidigest.NewWriter()
	if _, err := io.Copy(io.MultiWriter(f, digester), r); err != nil {
		return bicepdiag.New(bicepdiag.LocalIo, err, "writing cache file %s", path)
	}
	if layer.Digest != "" && digester.Digest() != layer.Digest {
		return bicepdiag.New(bicepdiag.IntegrityError, nil, "layer %s digest mismatch: wrote %s", layer.Digest, digester.Digest())
	}
	if err := ctx.Err(); err != nil {
		return bicepdiag.New(bicepdiag.Unhandled, err, "cache write for %s cancelled", path)
	}
	return nil
}

// LayerPath returns the path WriteLayer would use for layer within ref's
// cache directory, without touching the filesystem. The result is the
// path of that one layer file, not the module's directory (see Dir).
func (c *Cache) LayerPath(ref modref.Reference, layer ocimanifest.Descriptor) (string, error) {
	dir, err := c.Dir(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ocimanifest.LayerFileName(layer)), nil
}
