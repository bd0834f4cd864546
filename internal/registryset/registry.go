// Package registryset dispatches a module reference to the registry
// implementation responsible for it: a no-op filesystem resolver for
// Local references, or an OCI-backed registry wrapping the artifact
// manager for Oci references.
//
// Modeled on a scheme -> getter map that looks one up per package
// address; here the map collapses to a two-way type switch since the
// engine only ever has two reference schemes.
package registryset

import (
	"context"

	"github.com/bicep-lang/bicep-modreg/internal/bicepdiag"
	"github.com/bicep-lang/bicep-modreg/internal/modref"
)

// Registry is implemented by LocalRegistry and OciRegistry.
type Registry interface {
	// Restore makes ref's content available locally, pulling it from a
	// remote source if necessary. LocalRegistry's Restore is a no-op.
	Restore(ctx context.Context, ref modref.Reference) error
	// ResolvePath returns the absolute filesystem path ref's content can
	// be read from. Callers must call Restore first if the content may
	// not already be local.
	ResolvePath(ctx context.Context, ref modref.Reference) (string, error)
}

// Set dispatches references to the registry responsible for them.
type Set struct {
	local Registry
	oci   Registry
}

// New returns a Set that dispatches Local references to local and Oci
// references to oci.
func New(local, oci Registry) *Set {
	return &Set{local: local, oci: oci}
}

// Dispatch returns the Registry responsible for ref.
func (s *Set) Dispatch(ref modref.Reference) (Registry, error) {
	switch ref.(type) {
	case modref.Local:
		return s.local, nil
	case modref.Oci:
		return s.oci, nil
	default:
		return nil, bicepdiag.New(bicepdiag.Unhandled, nil, "reference %s has no registered registry", ref)
	}
}
