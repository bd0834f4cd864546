package restore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bicep-lang/bicep-modreg/internal/bicepdiag"
	"github.com/bicep-lang/bicep-modreg/internal/modcache"
	"github.com/bicep-lang/bicep-modreg/internal/modref"
	"github.com/bicep-lang/bicep-modreg/internal/registryset"
)

type fakePuller struct {
	err   error
	calls int
}

func (p *fakePuller) Pull(_ context.Context, _ modref.Oci) error {
	p.calls++
	return p.err
}

func newTestDispatcher(t *testing.T, enabled bool, pullErr error) *Dispatcher {
	t.Helper()
	cache := modcache.New(t.TempDir())
	local := &registryset.LocalRegistry{BaseDir: t.TempDir()}
	oci := &registrySetOciRegistry{puller: &fakePuller{err: pullErr}, cache: cache}
	set := registryset.New(local, oci)
	return NewDispatcher(Config{RegistryExperimentalEnabled: enabled}, set, cache, nil)
}

// registrySetOciRegistry is a registryset.Registry for Oci references
// that forwards Restore to a fakePuller and resolves paths against the
// test cache, so tests can count pulls on the fakePuller directly.
type registrySetOciRegistry struct {
	puller *fakePuller
	cache  *modcache.Cache
}

func (r *registrySetOciRegistry) Restore(ctx context.Context, ref modref.Reference) error {
	oci, ok := ref.(modref.Oci)
	if !ok {
		return bicepdiag.New(bicepdiag.Unhandled, nil, "non-oci reference")
	}
	return r.puller.Pull(ctx, oci)
}

func (r *registrySetOciRegistry) ResolvePath(_ context.Context, ref modref.Reference) (string, error) {
	return r.cache.Dir(ref)
}

func TestRestoreRejectsOciWhenExperimentalDisabled(t *testing.T) {
	d := newTestDispatcher(t, false, nil)
	ref := modref.Oci{Registry: "example.azurecr.io", Repository: "a", Tag: "v1"}

	didWork, err := d.Restore(context.Background(), []modref.Reference{ref})
	require.Error(t, err)
	assert.False(t, didWork)

	gotErr, ok := d.TryGetError(ref)
	require.True(t, ok)
	assert.Equal(t, bicepdiag.FeatureDisabled, bicepdiag.KindOf(gotErr))
}

func TestRestorePullsOciWhenEnabled(t *testing.T) {
	d := newTestDispatcher(t, true, nil)
	ref := modref.Oci{Registry: "example.azurecr.io", Repository: "a", Tag: "v1"}

	didWork, err := d.Restore(context.Background(), []modref.Reference{ref})
	require.NoError(t, err)
	assert.True(t, didWork)
	_, ok := d.TryGetError(ref)
	assert.False(t, ok)
}

func TestRestoreLocalReferenceIsNotWork(t *testing.T) {
	d := newTestDispatcher(t, true, nil)
	ref := modref.Local{Path: "./foo.bicep"}

	didWork, err := d.Restore(context.Background(), []modref.Reference{ref})
	require.NoError(t, err)
	assert.False(t, didWork)
}

func TestRestoreRecordsPerReferenceFailureAndContinues(t *testing.T) {
	d := newTestDispatcher(t, true, bicepdiag.New(bicepdiag.Transport, nil, "boom"))
	bad := modref.Oci{Registry: "example.azurecr.io", Repository: "a", Tag: "v1"}
	good := modref.Local{Path: "./ok.bicep"}

	didWork, err := d.Restore(context.Background(), []modref.Reference{bad, good})
	require.Error(t, err)
	assert.True(t, didWork)

	gotErr, ok := d.TryGetError(bad)
	require.True(t, ok)
	assert.Equal(t, bicepdiag.Transport, bicepdiag.KindOf(gotErr))
}

func TestTryGetLocalPathResolvesThroughRegistry(t *testing.T) {
	d := newTestDispatcher(t, true, nil)
	ref := modref.Local{Path: "./foo.bicep"}

	path, err := d.TryGetLocalPath(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "foo.bicep"))
}

func TestValidFiltersNilEntries(t *testing.T) {
	refs := []modref.Reference{modref.Local{Path: "./a.bicep"}, nil, modref.Oci{Registry: "h", Repository: "r", Tag: "t"}}
	got := Valid(refs)
	assert.Len(t, got, 2)
}

func TestRestoreSkipsAlreadyCachedReference(t *testing.T) {
	cache := modcache.New(t.TempDir())
	puller := &fakePuller{}
	oci := &registrySetOciRegistry{puller: puller, cache: cache}
	set := registryset.New(&registryset.LocalRegistry{BaseDir: t.TempDir()}, oci)
	d := NewDispatcher(Config{RegistryExperimentalEnabled: true}, set, cache, nil)
	ref := modref.Oci{Registry: "example.azurecr.io", Repository: "a", Tag: "v1"}

	didWork, err := d.Restore(context.Background(), []modref.Reference{ref})
	require.NoError(t, err)
	assert.True(t, didWork)
	assert.Equal(t, 1, puller.calls)

	dir, err := cache.Dir(ref)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.bicep"), []byte("content"), 0o644))

	didWork, err = d.Restore(context.Background(), []modref.Reference{ref})
	require.NoError(t, err)
	assert.False(t, didWork, "a second restore of an already-cached reference must report no work")
	assert.Equal(t, 1, puller.calls, "the puller must not be invoked again once the reference is cached")
}
