package pipeline

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/specialistvlad/pgerun/internal/ctxlog"
	"github.com/specialistvlad/pgerun/internal/fsutil"
)

// manifestFile is the top-level structure of one descriptor manifest.
type manifestFile struct {
	Pipelines []*Descriptor `hcl:"pipeline,block"`
}

// Registry holds every loaded pipeline descriptor, keyed by product
// identifier. Populated once at startup, read-only afterwards.
type Registry struct {
	descriptors map[string]*Descriptor
}

// LoadDir parses every .hcl manifest under dir (recursively) and builds the
// registry. Duplicate product identifiers and duplicate error code bases are
// load errors: both would break the exit-code contract with external job
// monitoring.
func LoadDir(ctx context.Context, dir string) (*Registry, error) {
	logger := ctxlog.FromContext(ctx)

	paths, err := fsutil.FindFilesByExtension(dir, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to scan descriptor directory %q: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no pipeline descriptors found under %q", dir)
	}

	parser := hclparse.NewParser()
	reg := &Registry{descriptors: make(map[string]*Descriptor)}
	basesSeen := make(map[int]string)

	for _, path := range paths {
		file, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse descriptor %q: %w", path, diags)
		}

		var manifest manifestFile
		if diags := gohcl.DecodeBody(file.Body, nil, &manifest); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode descriptor %q: %w", path, diags)
		}

		for _, desc := range manifest.Pipelines {
			desc.SourcePath = path
			if err := desc.validate(); err != nil {
				return nil, fmt.Errorf("descriptor %q: %w", path, err)
			}
			if err := desc.evaluateISOFields(); err != nil {
				return nil, fmt.Errorf("descriptor %q: %w", path, err)
			}

			if prev, dup := reg.descriptors[desc.ProductIdentifier]; dup {
				return nil, fmt.Errorf("duplicate pipeline %q declared in %q and %q",
					desc.ProductIdentifier, prev.SourcePath, path)
			}
			if prev, dup := basesSeen[desc.ErrorCodeBase]; dup {
				return nil, fmt.Errorf("pipelines %q and %q share error_code_base %d",
					prev, desc.ProductIdentifier, desc.ErrorCodeBase)
			}
			basesSeen[desc.ErrorCodeBase] = desc.ProductIdentifier
			reg.descriptors[desc.ProductIdentifier] = desc
			logger.Debug("Pipeline descriptor registered.",
				"pipeline", desc.ProductIdentifier, "error_code_base", desc.ErrorCodeBase, "source", path)
		}
	}

	logger.Debug("Descriptor registry loaded.", "pipeline_count", len(reg.descriptors))
	return reg, nil
}

// Resolve returns the descriptor for a product identifier.
func (r *Registry) Resolve(productIdentifier string) (*Descriptor, error) {
	desc, ok := r.descriptors[productIdentifier]
	if !ok {
		return nil, fmt.Errorf("no pipeline descriptor registered for product identifier %q", productIdentifier)
	}
	return desc, nil
}

// Len reports the number of registered pipelines.
func (r *Registry) Len() int {
	return len(r.descriptors)
}
