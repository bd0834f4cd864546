package registryset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bicep-lang/bicep-modreg/internal/modcache"
	"github.com/bicep-lang/bicep-modreg/internal/modref"
)

type fakePuller struct {
	called []modref.Oci
	err    error
}

func (p *fakePuller) Pull(_ context.Context, ref modref.Oci) error {
	p.called = append(p.called, ref)
	return p.err
}

func TestDispatchRoutesByVariant(t *testing.T) {
	local := &LocalRegistry{BaseDir: "/work"}
	oci := &OciRegistry{Puller: &fakePuller{}, Cache: modcache.New(t.TempDir())}
	set := New(local, oci)

	r, err := set.Dispatch(modref.Local{Path: "./x.bicep"})
	require.NoError(t, err)
	assert.Same(t, Registry(local), r)

	r, err = set.Dispatch(modref.Oci{Registry: "example.azurecr.io", Repository: "a", Tag: "v1"})
	require.NoError(t, err)
	assert.Same(t, Registry(oci), r)
}

func TestOciRegistryRestoreDelegatesToPuller(t *testing.T) {
	puller := &fakePuller{}
	reg := &OciRegistry{Puller: puller, Cache: modcache.New(t.TempDir())}
	ref := modref.Oci{Registry: "example.azurecr.io", Repository: "a", Tag: "v1"}

	require.NoError(t, reg.Restore(context.Background(), ref))
	assert.Equal(t, []modref.Oci{ref}, puller.called)
}

func TestLocalRegistryResolvePathJoinsBaseDir(t *testing.T) {
	reg := &LocalRegistry{BaseDir: "/work/modules"}
	path, err := reg.ResolvePath(context.Background(), modref.Local{Path: "./vnet.bicep"})
	require.NoError(t, err)
	assert.Equal(t, "/work/modules/vnet.bicep", path)
}
