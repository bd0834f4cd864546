// Package artifact implements the engine's pull and push orchestration
// for module artifacts: manifest download/verification, per-layer
// transfer, and cache population on pull; blob and manifest upload on
// push, in a config-then-layers-then-manifest sequence. Concurrent
// per-layer downloads use golang.org/x/sync/errgroup.
package artifact

import (
	"bytes"
	"context"
	"io"
	"log"

	"golang.org/x/sync/errgroup"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/bicep-lang/bicep-modreg/internal/bicepdiag"
	"github.com/bicep-lang/bicep-modreg/internal/modcache"
	"github.com/bicep-lang/bicep-modreg/internal/modref"
	"github.com/bicep-lang/bicep-modreg/internal/ocidigest"
	"github.com/bicep-lang/bicep-modreg/internal/ocimanifest"
	"github.com/bicep-lang/bicep-modreg/internal/registryclient"
	"github.com/bicep-lang/bicep-modreg/internal/telemetry"
)

// ModuleConfigMediaType is the only config media type a module artifact's
// manifest may declare. The config blob itself is always empty; it
// exists only to satisfy the OCI manifest shape.
const ModuleConfigMediaType = "application/vnd.bicep.module.config.v1+json"

// ModuleManifestMediaType is the Accept header value and manifest media
// type this engine requests and produces.
const ModuleManifestMediaType = ociv1.MediaTypeImageManifest

// maxConcurrentLayerDownloads bounds the fan-out in Pull so a
// many-layer artifact doesn't open an unbounded number of simultaneous
// connections to one registry.
const maxConcurrentLayerDownloads = 8

// Manager orchestrates pull and push of module artifacts through a
// registryclient.Factory and a modcache.Cache.
type Manager struct {
	Clients registryclient.Factory
	Cache   *modcache.Cache
	Logger  *log.Logger
}

// New returns a Manager that constructs blob clients via clients and
// caches artifacts under cache. Logger is set to log.Default(); callers
// may replace it after construction.
func New(clients registryclient.Factory, cache *modcache.Cache) *Manager {
	return &Manager{Clients: clients, Cache: cache, Logger: log.Default()}
}

// Pull downloads ref's manifest, verifies its integrity and config
// profile, then downloads and caches every layer. Any 404 from the
// manifest download is classified ModuleNotFound; other transport
// failures classify as Transport; a config or digest mismatch
// classifies as NotABicepModule or IntegrityError respectively.
func (m *Manager) Pull(ctx context.Context, ref modref.Oci) error {
	ctx, span := telemetry.Tracer().Start(ctx, "artifact.Pull")
	defer span.End()

	m.Logger.Printf("artifact: pulling %s", ref)

	client, err := m.Clients.NewBlobClient(ctx, ref.Registry, ref.Repository)
	if err != nil {
		telemetry.SetSpanError(span, err)
		return err
	}

	result, err := client.DownloadManifest(ctx, ref.Tag, ModuleManifestMediaType)
	if err != nil {
		telemetry.SetSpanError(span, err)
		return err
	}

	recomputed := ocidigest.FromBytes(result.Body)
	if result.DigestHeader != "" && result.DigestHeader != recomputed {
		err := bicepdiag.New(bicepdiag.IntegrityError, nil, "manifest digest mismatch for %s: registry claimed %s, recomputed %s", ref, result.DigestHeader, recomputed)
		telemetry.SetSpanError(span, err)
		return err
	}

	manifest, err := ocimanifest.Decode(result.Body)
	if err != nil {
		telemetry.SetSpanError(span, err)
		return err
	}

	if manifest.Config.Size != 0 || manifest.Config.MediaType != ModuleConfigMediaType {
		err := bicepdiag.New(bicepdiag.NotABicepModule, nil, "%s is not a bicep module artifact (config media type %q, size %d)", ref, manifest.Config.MediaType, manifest.Config.Size)
		telemetry.SetSpanError(span, err)
		return err
	}

	if complete, hasErr := m.Cache.Has(ref, manifest); hasErr == nil && complete {
		m.Logger.Printf("artifact: %s already has every layer cached, skipping download", ref)
		return nil
	}

	if _, err := m.Cache.EnsureDir(ref); err != nil {
		telemetry.SetSpanError(span, err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLayerDownloads)
	for _, layer := range manifest.Layers {
		layer := layer
		g.Go(func() error {
			return m.pullLayer(gctx, client, ref, layer)
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.SetSpanError(span, err)
		return err
	}
	m.Logger.Printf("artifact: pulled %s (%d layers)", ref, len(manifest.Layers))
	return nil
}

func (m *Manager) pullLayer(ctx context.Context, client registryclient.BlobClient, ref modref.Oci, layer ocimanifest.Descriptor) error {
	rc, err := client.DownloadBlob(ctx, layer.Digest)
	if err != nil {
		return err
	}
	defer rc.Close()
	return m.Cache.WriteLayer(ctx, ref, layer, rc)
}

// LayerSource supplies one blob's bytes for Push, in upload order. The
// caller owns rewinding: Open is called exactly once per Push, and the
// manager never seeks the returned reader itself.
type LayerSource struct {
	MediaType   string
	Annotations map[string]string
	Open        func() (io.Reader, error)
}

// Push uploads an empty config blob, then every layer in layers in order,
// then composes and uploads the manifest tagged with ref.Tag.
func (m *Manager) Push(ctx context.Context, ref modref.Oci, layers []LayerSource) error {
	ctx, span := telemetry.Tracer().Start(ctx, "artifact.Push")
	defer span.End()

	m.Logger.Printf("artifact: pushing %s (%d layers)", ref, len(layers))

	client, err := m.Clients.NewBlobClient(ctx, ref.Registry, ref.Repository)
	if err != nil {
		telemetry.SetSpanError(span, err)
		return err
	}

	// The config blob is always empty: module artifacts carry no
	// config payload, only the media type matters.
	var configBody []byte
	configDigest, err := client.UploadBlob(ctx, bytes.NewReader(configBody))
	if err != nil {
		telemetry.SetSpanError(span, err)
		return err
	}
	configDesc := ociv1.Descriptor{
		MediaType: ModuleConfigMediaType,
		Digest:    configDigest,
		Size:      0,
	}

	layerDescs := make([]ociv1.Descriptor, 0, len(layers))
	for _, l := range layers {
		r, err := l.Open()
		if err != nil {
			telemetry.SetSpanError(span, err)
			return bicepdiag.New(bicepdiag.Unhandled, err, "opening layer source")
		}
		data, err := io.ReadAll(r)
		if closer, ok := r.(io.Closer); ok {
			closer.Close()
		}
		if err != nil {
			telemetry.SetSpanError(span, err)
			return bicepdiag.New(bicepdiag.Unhandled, err, "reading layer source")
		}
		digest, err := client.UploadBlob(ctx, bytes.NewReader(data))
		if err != nil {
			telemetry.SetSpanError(span, err)
			return err
		}
		layerDescs = append(layerDescs, ociv1.Descriptor{
			MediaType:   l.MediaType,
			Digest:      digest,
			Size:        int64(len(data)),
			Annotations: l.Annotations,
		})
	}

	manifest := ocimanifest.New(configDesc, layerDescs)
	body, err := ocimanifest.Encode(manifest)
	if err != nil {
		telemetry.SetSpanError(span, err)
		return err
	}
	if err := client.UploadManifest(ctx, body, ModuleManifestMediaType, ref.Tag); err != nil {
		telemetry.SetSpanError(span, err)
		return err
	}
	m.Logger.Printf("artifact: pushed %s", ref)
	return nil
}
