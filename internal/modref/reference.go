// Package modref parses and represents references to Bicep modules.
//
// A reference is one of two variants, modelled as a sum type via an
// interface with two concrete implementations: Local, a path relative
// to the referring file, and Oci, a set of OCI distribution coordinates.
package modref

import (
	"fmt"
	"strings"
)

// Reference is implemented by Local and Oci. Callers type-switch on the
// concrete type rather than calling methods that would need to be
// meaningful for both variants.
type Reference interface {
	// String returns the canonical textual form of the reference.
	String() string
	// CacheDirName returns the path segments (relative to a cache root)
	// under which this reference's artifacts are stored. Local
	// references have no cache entry and return nil.
	CacheDirName() []string
	isReference()
}

// Local is a reference to a module by filesystem path relative to the
// file that referenced it, e.g. "./network/vnet.bicep".
type Local struct {
	Path string
}

func (l Local) String() string         { return l.Path }
func (l Local) CacheDirName() []string { return nil }
func (Local) isReference()             {}

// Oci is a reference to a module published as an OCI artifact, e.g.
// "oci:example.azurecr.io/bicep/modules/storage:v1".
type Oci struct {
	Registry   string
	Repository string
	Tag        string
}

func (o Oci) String() string {
	return fmt.Sprintf("oci:%s/%s:%s", o.Registry, o.Repository, o.Tag)
}

func (o Oci) CacheDirName() []string {
	segs := append(strings.Split(o.Repository, "/"), o.Tag)
	return append([]string{o.Registry}, segs...)
}

func (Oci) isReference() {}

// Equal reports whether two references denote the same module. Host
// comparison is case-sensitive here because callers are expected to have
// already normalized the host before constructing a reference.
func Equal(a, b Reference) bool {
	switch av := a.(type) {
	case Local:
		bv, ok := b.(Local)
		return ok && av.Path == bv.Path
	case Oci:
		bv, ok := b.(Oci)
		return ok && av.Registry == bv.Registry && av.Repository == bv.Repository && av.Tag == bv.Tag
	default:
		return false
	}
}
