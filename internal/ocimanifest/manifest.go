// Package ocimanifest encodes and decodes the narrow OCI image-manifest
// profile this engine's module artifacts use: one config descriptor (a
// zero-byte blob, by convention) plus a sequence of opaque layer
// descriptors.
//
// Centralizes manifest construction for push plus the decode-and-validate
// path every pull needs.
package ocimanifest

import (
	"encoding/json"

	specs "github.com/opencontainers/image-spec/specs-go"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/bicep-lang/bicep-modreg/internal/bicepdiag"
)

// SchemaVersion is the only OCI manifest schema version this engine
// understands.
const SchemaVersion = 2

// Manifest and Descriptor are aliases for the upstream OCI image-spec
// types so that callers never need a second import to work with the
// values this package produces.
type (
	Manifest   = ociv1.Manifest
	Descriptor = ociv1.Descriptor
)

// New builds a Manifest for a module artifact with the given config and
// layer descriptors, in manifest (layer) order.
func New(config Descriptor, layers []Descriptor) Manifest {
	if layers == nil {
		layers = []Descriptor{}
	}
	return Manifest{
		Versioned:    specs.Versioned{SchemaVersion: SchemaVersion},
		MediaType:    ociv1.MediaTypeImageManifest,
		ArtifactType: "",
		Config:       config,
		Layers:       layers,
	}
}

// Encode serializes m using its struct's declared field order, treated
// as canonical: schema version and media type, then config, then layers.
func Encode(m Manifest) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, bicepdiag.New(bicepdiag.Unhandled, err, "encoding OCI manifest")
	}
	return data, nil
}

// Decode parses data into a Manifest and validates that it has the
// fields a module artifact manifest requires. Unknown fields are
// tolerated (encoding/json ignores them by default); a missing
// schema_version, config digest, or config media type, or a layer
// missing a digest or media type, fails with InvalidManifest.
func Decode(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, bicepdiag.New(bicepdiag.InvalidManifest, err, "malformed manifest JSON")
	}
	if err := validate(m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func validate(m Manifest) error {
	if m.SchemaVersion != SchemaVersion {
		return bicepdiag.New(bicepdiag.InvalidManifest, nil, "unsupported schema_version %d", m.SchemaVersion)
	}
	if m.Config.Digest == "" || m.Config.MediaType == "" {
		return bicepdiag.New(bicepdiag.InvalidManifest, nil, "manifest is missing a required config descriptor field")
	}
	for i, layer := range m.Layers {
		if layer.Digest == "" || layer.MediaType == "" {
			return bicepdiag.New(bicepdiag.InvalidManifest, nil, "manifest layer %d is missing a required descriptor field", i)
		}
	}
	return nil
}

// LayerFileName returns the file name a layer descriptor should be
// stored under in the local cache: the OCI title annotation if present,
// otherwise the hex portion of the layer's digest.
func LayerFileName(d Descriptor) string {
	if title, ok := d.Annotations[ociv1.AnnotationTitle]; ok && title != "" {
		return title
	}
	return d.Digest.Encoded()
}
