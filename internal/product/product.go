// Package product inspects a run's output directory after SAS execution and
// checks the discovered files against the pipeline's expected naming
// conventions. Only presence is checked here; content-level correctness
// belongs to external comparison tooling run in integration testing.
package product

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specialistvlad/pgerun/internal/ctxlog"
	"github.com/specialistvlad/pgerun/internal/fsutil"
)

// Format identifies the container format of an output product, detected
// from the file extension.
type Format string

const (
	FormatGeoTIFF Format = "GeoTIFF"
	FormatHDF5    Format = "HDF5"
	FormatNetCDF  Format = "NetCDF"
	FormatPNG     Format = "PNG"
	FormatUnknown Format = "Unknown"
)

// extensionFormats maps lowercase file extensions to product formats.
var extensionFormats = map[string]Format{
	".tif":  FormatGeoTIFF,
	".tiff": FormatGeoTIFF,
	".h5":   FormatHDF5,
	".hdf5": FormatHDF5,
	".nc":   FormatNetCDF,
	".png":  FormatPNG,
}

// DetectFormat returns the product format implied by the file name.
func DetectFormat(name string) Format {
	if format, ok := extensionFormats[strings.ToLower(filepath.Ext(name))]; ok {
		return format
	}
	return FormatUnknown
}

// Expectation is one (product-type token, filename glob) pair the output
// directory must satisfy. RequiresMetadata marks products that get a sibling
// ISO metadata file.
type Expectation struct {
	TypeToken        string
	Pattern          string
	Format           Format
	RequiresMetadata bool
}

// Product is a discovered output file matching an expectation. Immutable
// after discovery.
type Product struct {
	Path             string
	TypeToken        string
	Format           Format
	RequiresMetadata bool
}

// Validate scans outputDir (one level, non-recursive) and matches the files
// found against the expectations. Every expectation must match at least one
// file; the first missing product type fails the run, but all missing types
// are reported together. The scan is idempotent: repeated calls over an
// unchanged directory return equal results.
func Validate(ctx context.Context, outputDir string, expectations []Expectation) ([]Product, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.ListFiles(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan output directory: %w", err)
	}
	logger.Debug("Output directory scanned.", "dir", outputDir, "file_count", len(files))

	var (
		products []Product
		missing  []string
	)
	for _, exp := range expectations {
		matched := false
		for _, name := range files {
			ok, err := fsutil.Glob(exp.Pattern, name)
			if err != nil {
				return nil, fmt.Errorf("expectation %q: %w", exp.TypeToken, err)
			}
			if !ok {
				continue
			}
			matched = true
			products = append(products, Product{
				Path:             filepath.Join(outputDir, name),
				TypeToken:        exp.TypeToken,
				Format:           exp.Format,
				RequiresMetadata: exp.RequiresMetadata,
			})
			logger.Debug("Output product discovered.", "type", exp.TypeToken, "file", name)
		}
		if !matched {
			missing = append(missing, exp.TypeToken)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("expected output product(s) not found: %s", strings.Join(missing, ", "))
	}

	sort.Slice(products, func(i, j int) bool { return products[i].Path < products[j].Path })
	return products, nil
}
