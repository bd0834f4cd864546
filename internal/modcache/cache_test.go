package modcache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/bicep-lang/bicep-modreg/internal/modref"
	"github.com/bicep-lang/bicep-modreg/internal/ocidigest"
	"github.com/bicep-lang/bicep-modreg/internal/ocimanifest"
)

func testRef() modref.Oci {
	return modref.Oci{Registry: "example.azurecr.io", Repository: "bicep/modules/storage", Tag: "v1"}
}

func TestDirLayout(t *testing.T) {
	c := New("/cache-root")
	dir, err := c.Dir(testRef())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/cache-root", "example.azurecr.io", "bicep", "modules", "storage", "v1"), dir)
}

func TestDirRejectsLocalReference(t *testing.T) {
	c := New(t.TempDir())
	_, err := c.Dir(modref.Local{Path: "./foo.bicep"})
	require.Error(t, err)
}

func TestWriteLayerThenHas(t *testing.T) {
	c := New(t.TempDir())
	ref := testRef()
	content := []byte("hello")
	layer := ociv1.Descriptor{
		MediaType: "application/octet-stream",
		Digest:    ocidigest.FromBytes(content),
		Size:      int64(len(content)),
		Annotations: map[string]string{
			ociv1.AnnotationTitle: "main.bicep",
		},
	}
	manifest := ocimanifest.New(ociv1.Descriptor{MediaType: "application/vnd.bicep.module.config.v1+json", Digest: "sha256:empty"}, []ociv1.Descriptor{layer})

	ok, err := c.Has(ref, manifest)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.WriteLayer(context.Background(), ref, layer, bytes.NewReader(content)))

	ok, err = c.Has(ref, manifest)
	require.NoError(t, err)
	assert.True(t, ok)

	path, err := c.LayerPath(ref, layer)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteLayerTruncatesExisting(t *testing.T) {
	c := New(t.TempDir())
	ref := testRef()
	title := map[string]string{ociv1.AnnotationTitle: "shared.bicep"}

	long := []byte("a much longer first write's worth of content")
	short := []byte("short")
	longLayer := ociv1.Descriptor{Digest: ocidigest.FromBytes(long), Annotations: title}
	shortLayer := ociv1.Descriptor{Digest: ocidigest.FromBytes(short), Annotations: title}

	require.NoError(t, c.WriteLayer(context.Background(), ref, longLayer, bytes.NewReader(long)))
	require.NoError(t, c.WriteLayer(context.Background(), ref, shortLayer, bytes.NewReader(short)))

	path, err := c.LayerPath(ref, shortLayer)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "short", string(data))
}

func TestWriteLayerRejectsDigestMismatch(t *testing.T) {
	c := New(t.TempDir())
	ref := testRef()
	layer := ociv1.Descriptor{Digest: ocidigest.FromBytes([]byte("expected"))}

	err := c.WriteLayer(context.Background(), ref, layer, bytes.NewReader([]byte("actual content differs")))
	require.Error(t, err)
}
