package registryset

import (
	"context"
	"path/filepath"

	"github.com/bicep-lang/bicep-modreg/internal/bicepdiag"
	"github.com/bicep-lang/bicep-modreg/internal/modcache"
	"github.com/bicep-lang/bicep-modreg/internal/modref"
)

// Puller is the subset of the artifact manager's API OciRegistry needs.
// Defined here rather than importing internal/artifact's concrete
// *Manager type so registryset depends only on the narrow pull contract
// it actually uses.
type Puller interface {
	Pull(ctx context.Context, ref modref.Oci) error
}

// OciRegistry wraps an artifact manager's pull path and resolves already
// or newly materialized references against the local cache.
type OciRegistry struct {
	Puller Puller
	Cache  *modcache.Cache
}

var _ Registry = (*OciRegistry)(nil)

// Restore pulls ref. It always delegates to the artifact manager, which
// is responsible for its own "already up to date" short-circuiting if
// any.
func (r *OciRegistry) Restore(ctx context.Context, ref modref.Reference) error {
	oci, ok := ref.(modref.Oci)
	if !ok {
		return bicepdiag.New(bicepdiag.Unhandled, nil, "OciRegistry given non-oci reference %s", ref)
	}
	return r.Puller.Pull(ctx, oci)
}

// ResolvePath returns the cache directory ref's layers were written to.
// It does not itself pull; callers must call Restore first.
func (r *OciRegistry) ResolvePath(_ context.Context, ref modref.Reference) (string, error) {
	oci, ok := ref.(modref.Oci)
	if !ok {
		return "", bicepdiag.New(bicepdiag.Unhandled, nil, "OciRegistry given non-oci reference %s", ref)
	}
	dir, err := r.Cache.Dir(oci)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", bicepdiag.New(bicepdiag.LocalIo, err, "resolving cache directory for %s", ref)
	}
	return abs, nil
}
