package artifact

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bicep-lang/bicep-modreg/internal/bicepdiag"
	"github.com/bicep-lang/bicep-modreg/internal/modcache"
	"github.com/bicep-lang/bicep-modreg/internal/modref"
	"github.com/bicep-lang/bicep-modreg/internal/ocimanifest"
	"github.com/bicep-lang/bicep-modreg/internal/registryclient"
)

func testRef() modref.Oci {
	return modref.Oci{Registry: "example.azurecr.io", Repository: "bicep/modules/storage", Tag: "v1"}
}

func TestPushThenPullRoundTrip(t *testing.T) {
	factory := registryclient.NewMemoryFactory()
	mgr := New(factory, modcache.New(t.TempDir()))
	ref := testRef()

	layers := []LayerSource{
		{
			MediaType:   "application/octet-stream",
			Annotations: map[string]string{ociv1.AnnotationTitle: "main.bicep"},
			Open:        func() (io.Reader, error) { return bytes.NewReader([]byte("param foo string")), nil },
		},
	}
	require.NoError(t, mgr.Push(context.Background(), ref, layers))
	require.NoError(t, mgr.Pull(context.Background(), ref))

	dir, err := mgr.Cache.Dir(ref)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "main.bicep"))
	require.NoError(t, err)
	assert.Equal(t, "param foo string", string(data))
}

func TestPullMapsMissingManifestToModuleNotFound(t *testing.T) {
	factory := registryclient.NewMemoryFactory()
	mgr := New(factory, modcache.New(t.TempDir()))
	ref := testRef()

	err := mgr.Pull(context.Background(), ref)
	require.Error(t, err)
	assert.Equal(t, bicepdiag.ModuleNotFound, bicepdiag.KindOf(err))
}

func TestPullRejectsWrongConfigMediaType(t *testing.T) {
	factory := registryclient.NewMemoryFactory()
	mgr := New(factory, modcache.New(t.TempDir()))
	ref := testRef()
	store := factory.Store(ref.Registry, ref.Repository)

	layerBody := []byte("param foo string")
	layerDigest, err := store.UploadBlob(context.Background(), bytes.NewReader(layerBody))
	require.NoError(t, err)

	manifest := ocimanifest.New(
		ociv1.Descriptor{
			MediaType: "application/vnd.oci.image.config.v1+json", // wrong on purpose
			Digest:    layerDigest,
		},
		[]ociv1.Descriptor{{
			MediaType: "application/octet-stream",
			Digest:    layerDigest,
			Size:      int64(len(layerBody)),
		}},
	)
	body, err := ocimanifest.Encode(manifest)
	require.NoError(t, err)
	require.NoError(t, store.UploadManifest(context.Background(), body, ociv1.MediaTypeImageManifest, ref.Tag))

	err = mgr.Pull(context.Background(), ref)
	require.Error(t, err)
	assert.Equal(t, bicepdiag.NotABicepModule, bicepdiag.KindOf(err))
}
