package registryset

import (
	"context"
	"path/filepath"

	"github.com/bicep-lang/bicep-modreg/internal/bicepdiag"
	"github.com/bicep-lang/bicep-modreg/internal/modref"
)

// LocalRegistry resolves Local references against a base directory
// (normally the directory of the file that contained the reference).
// It never contacts a network and has nothing to restore.
type LocalRegistry struct {
	BaseDir string
}

var _ Registry = (*LocalRegistry)(nil)

// Restore is a no-op: local references are already present by
// definition.
func (r *LocalRegistry) Restore(_ context.Context, ref modref.Reference) error {
	if _, ok := ref.(modref.Local); !ok {
		return bicepdiag.New(bicepdiag.Unhandled, nil, "LocalRegistry given non-local reference %s", ref)
	}
	return nil
}

// ResolvePath returns the absolute path of a Local reference's target,
// joined against BaseDir.
func (r *LocalRegistry) ResolvePath(_ context.Context, ref modref.Reference) (string, error) {
	local, ok := ref.(modref.Local)
	if !ok {
		return "", bicepdiag.New(bicepdiag.Unhandled, nil, "LocalRegistry given non-local reference %s", ref)
	}
	joined := local.Path
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(r.BaseDir, local.Path)
	}
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", bicepdiag.New(bicepdiag.LocalIo, err, "resolving local reference %s", ref)
	}
	return abs, nil
}
