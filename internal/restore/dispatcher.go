// Package restore implements the engine's batch restore entrypoint (the
// module dispatcher) and the long-running scheduler that serves restore
// requests from editor sessions.
//
// The dispatcher routes each reference, in input order, to the registry
// responsible for it and fetches it, reading environment/feature-flag state once into an explicit
// Config rather than consulting an ambient global at call time.
package restore

import (
	"context"
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/bicep-lang/bicep-modreg/internal/bicepdiag"
	"github.com/bicep-lang/bicep-modreg/internal/modcache"
	"github.com/bicep-lang/bicep-modreg/internal/modref"
	"github.com/bicep-lang/bicep-modreg/internal/registryset"
)

// registryExperimentalEnvVar gates OCI registry references behind an
// experimental flag.
const registryExperimentalEnvVar = "BICEP_REGISTRY_ENABLED_EXPERIMENTAL"

// Config holds the dispatcher's environment-derived settings, read once
// at construction rather than consulted ambiently per call.
type Config struct {
	// RegistryExperimentalEnabled mirrors the
	// BICEP_REGISTRY_ENABLED_EXPERIMENTAL environment variable: when
	// false, Oci references are rejected with FeatureDisabled instead
	// of being dispatched to a registry.
	RegistryExperimentalEnabled bool
}

// ConfigFromEnvironment reads Config from the process environment. An
// unset or unparsable value counts as false.
func ConfigFromEnvironment() Config {
	enabled, _ := strconv.ParseBool(os.Getenv(registryExperimentalEnvVar))
	return Config{RegistryExperimentalEnabled: enabled}
}

// Dispatcher is the batch-restore entrypoint the scheduler (and any other
// caller, such as a CLI restore command) drives.
type Dispatcher struct {
	Config   Config
	Registry *registryset.Set
	Cache    *modcache.Cache
	Logger   *log.Logger

	mu     sync.Mutex
	errors map[string]error
}

// NewDispatcher returns a Dispatcher. A nil logger falls back to
// log.Default().
func NewDispatcher(cfg Config, set *registryset.Set, cache *modcache.Cache, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{Config: cfg, Registry: set, Cache: cache, Logger: logger, errors: map[string]error{}}
}

// Valid filters refs down to those modref.Parse would accept, i.e. every
// entry the caller already parsed successfully. Parsing happens upstream
// of the dispatcher (the scheduler's caller owns source text); Valid
// exists so a caller holding a mixed slice of parsed references and
// parse failures (represented as nil) can filter in one step.
func Valid(refs []modref.Reference) []modref.Reference {
	out := make([]modref.Reference, 0, len(refs))
	for _, r := range refs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// TryGetError returns the most recent restore failure recorded for ref,
// if any. Failures are diagnostics, not fatal to Restore's caller:
// Restore returns true (work was attempted) regardless of per-reference
// outcome, and callers query failures separately.
func (d *Dispatcher) TryGetError(ref modref.Reference) (error, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	err, ok := d.errors[ref.String()]
	return err, ok
}

// TryGetLocalPath returns the filesystem path ref's content can be read
// from: a resolved local path for Local references, or the cache
// directory for Oci references. It does not trigger a restore; callers
// should call Restore first for references that may not yet be
// materialized.
func (d *Dispatcher) TryGetLocalPath(ctx context.Context, ref modref.Reference) (string, error) {
	registry, err := d.Registry.Dispatch(ref)
	if err != nil {
		return "", err
	}
	return registry.ResolvePath(ctx, ref)
}

func (d *Dispatcher) recordError(ref modref.Reference, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.errors, ref.String())
		return
	}
	d.errors[ref.String()] = err
}

// Restore walks refs in order, skips Oci references already materialized
// in the cache, and dispatches every other reference to its registry. It returns
// true if any reference needed work, regardless of whether that work
// ultimately succeeded; per-reference failures are recorded and
// retrievable via TryGetError rather than aggregated into the return
// error, except that a non-nil error is also returned summarizing all
// failures for callers that want it directly (e.g. the CLI).
func (d *Dispatcher) Restore(ctx context.Context, refs []modref.Reference) (didWork bool, err error) {
	var merr *multierror.Error

	for _, ref := range refs {
		oci, isOci := ref.(modref.Oci)
		if isOci && !d.Config.RegistryExperimentalEnabled {
			diagErr := bicepdiag.New(bicepdiag.FeatureDisabled, nil, "OCI module registry support is experimental; set %s to enable it", registryExperimentalEnvVar)
			d.recordError(ref, diagErr)
			merr = multierror.Append(merr, diagErr)
			continue
		}

		if isOci && d.Cache != nil {
			if present, hasErr := d.Cache.HasAny(oci); hasErr == nil && present {
				d.Logger.Printf("restore: %s already cached, skipping", ref)
				d.recordError(ref, nil)
				continue
			}
		}

		registry, dispatchErr := d.Registry.Dispatch(ref)
		if dispatchErr != nil {
			d.recordError(ref, dispatchErr)
			merr = multierror.Append(merr, dispatchErr)
			continue
		}

		// Local references resolve against the filesystem with nothing
		// to fetch; Restore on them is a no-op and doesn't count as
		// restore work for the scheduler's recompile-or-not decision.
		if isOci {
			didWork = true
		}
		d.Logger.Printf("restore: restoring %s", ref)
		// A registry implementation is an embedder-supplied collaborator
		// (the concrete Registry may be backed by a third-party factory);
		// Safe ensures one reference's panic can't take down the rest of
		// the batch.
		restoreErr := bicepdiag.Safe(func() error { return registry.Restore(ctx, ref) })
		if restoreErr != nil {
			d.Logger.Printf("restore: %s failed: %s", ref, restoreErr)
		}
		d.recordError(ref, restoreErr)
		if restoreErr != nil {
			merr = multierror.Append(merr, restoreErr)
		}
	}

	return didWork, merr.ErrorOrNil()
}
