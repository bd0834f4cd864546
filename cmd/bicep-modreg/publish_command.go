package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/cli"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/bicep-lang/bicep-modreg/internal/artifact"
	"github.com/bicep-lang/bicep-modreg/internal/modcache"
	"github.com/bicep-lang/bicep-modreg/internal/modref"
	"github.com/bicep-lang/bicep-modreg/internal/registryclient"
)

// PublishCommand pushes every file in a source directory as one layer of
// a module artifact, tagged at the given OCI reference.
type PublishCommand struct {
	UI cli.Ui
}

func (c *PublishCommand) Help() string {
	return strings.TrimSpace(`
Usage: bicep-modreg publish [options] <source-dir> <oci-reference>

  Publishes every regular file directly under source-dir as one layer of
  a module artifact, tagged at oci-reference
  (e.g. "oci:example.azurecr.io/bicep/modules/storage:v1").

Options:

  -insecure   Use plain HTTP instead of HTTPS when talking to the registry.
`)
}

func (c *PublishCommand) Synopsis() string { return "Publish a module directory to a registry" }

func (c *PublishCommand) Run(args []string) int {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	insecure := fs.Bool("insecure", false, "use plain HTTP")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) != 2 {
		c.UI.Error("expected exactly two arguments: <source-dir> <oci-reference>")
		return 1
	}
	srcDir, target := rest[0], rest[1]

	ref, err := modref.ParseOciTarget(target)
	if err != nil {
		c.UI.Error(fmt.Sprintf("%s: %s", target, err))
		return 1
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		c.UI.Error(fmt.Sprintf("reading %s: %s", srcDir, err))
		return 1
	}
	var layers []artifact.LayerSource
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(srcDir, name)
		layers = append(layers, artifact.LayerSource{
			MediaType:   "application/octet-stream",
			Annotations: map[string]string{ociv1.AnnotationTitle: name},
			Open: func() (io.Reader, error) {
				return os.Open(path)
			},
		})
	}
	if len(layers) == 0 {
		c.UI.Error(fmt.Sprintf("%s contains no files to publish", srcDir))
		return 1
	}

	clients := &registryclient.HTTPFactory{Insecure: *insecure}
	mgr := artifact.New(clients, modcache.New(os.TempDir()))
	if err := mgr.Push(context.Background(), ref, layers); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	c.UI.Output(fmt.Sprintf("published %s", ref))
	return 0
}
