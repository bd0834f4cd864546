package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mitchellh/cli"

	"github.com/bicep-lang/bicep-modreg/internal/artifact"
	"github.com/bicep-lang/bicep-modreg/internal/modcache"
	"github.com/bicep-lang/bicep-modreg/internal/modref"
	"github.com/bicep-lang/bicep-modreg/internal/registryclient"
	"github.com/bicep-lang/bicep-modreg/internal/registryset"
	"github.com/bicep-lang/bicep-modreg/internal/restore"
)

// RestoreCommand restores one or more module references into the local
// cache, printing per-reference success or failure.
type RestoreCommand struct {
	UI cli.Ui
}

func (c *RestoreCommand) Help() string {
	return strings.TrimSpace(`
Usage: bicep-modreg restore [options] <reference>...

  Restores one or more module references (e.g. "oci:example.azurecr.io/bicep/modules/storage:v1")
  into the local cache.

Options:

  -cache-dir=PATH     Local cache root (default "./.bicep-cache")
  -base-dir=PATH      Base directory for resolving local-path references (default ".")
`)
}

func (c *RestoreCommand) Synopsis() string { return "Restore module references into the local cache" }

func (c *RestoreCommand) Run(args []string) int {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	cacheDir := fs.String("cache-dir", "./.bicep-cache", "local cache root")
	baseDir := fs.String("base-dir", ".", "base directory for local references")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	targets := fs.Args()
	if len(targets) == 0 {
		c.UI.Error("at least one module reference is required")
		return 1
	}

	refs := make([]modref.Reference, 0, len(targets))
	for _, t := range targets {
		ref, err := modref.Parse(t)
		if err != nil {
			c.UI.Error(fmt.Sprintf("%s: %s", t, err))
			return 1
		}
		refs = append(refs, ref)
	}

	logger := log.New(os.Stderr, "bicep-modreg: ", log.LstdFlags)

	cache := modcache.New(*cacheDir)
	clients := &registryclient.HTTPFactory{}
	mgr := artifact.New(clients, cache)
	mgr.Logger = logger
	set := registryset.New(
		&registryset.LocalRegistry{BaseDir: *baseDir},
		&registryset.OciRegistry{Puller: mgr, Cache: cache},
	)
	dispatcher := restore.NewDispatcher(restore.ConfigFromEnvironment(), set, cache, logger)

	ctx := context.Background()
	didWork, err := dispatcher.Restore(ctx, refs)
	for _, ref := range refs {
		if refErr, ok := dispatcher.TryGetError(ref); ok {
			c.UI.Error(fmt.Sprintf("%s: %s", ref, refErr))
			continue
		}
		path, pathErr := dispatcher.TryGetLocalPath(ctx, ref)
		if pathErr != nil {
			c.UI.Error(fmt.Sprintf("%s: ok but could not resolve local path: %s", ref, pathErr))
			continue
		}
		c.UI.Output(fmt.Sprintf("%s: %s", ref, path))
	}
	if err != nil {
		return 1
	}
	if !didWork {
		c.UI.Info("nothing to restore")
	}
	return 0
}
