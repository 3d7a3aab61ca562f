// Package pipeline loads the static per-pipeline descriptors that
// parameterize the generic PGE runner. Descriptors are deployment-time HCL
// manifests, one `pipeline` block per product identifier, declaring the
// pipeline's error code base, schema and template locations, and the output
// products the run is expected to produce.
package pipeline

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/specialistvlad/pgerun/internal/product"
)

// ExpectedOutput declares one output product naming convention the run must
// satisfy after SAS execution.
type ExpectedOutput struct {
	// TypeToken is the product-type label, e.g. "WTR".
	TypeToken string `hcl:"type_token,label"`
	// Pattern is the filename glob the product must match.
	Pattern string `hcl:"pattern"`
	// Format names the container format: GeoTIFF, HDF5, NetCDF or PNG.
	Format string `hcl:"format"`
	// EnabledBy optionally names a boolean flag (dotted path) inside the
	// run's SAS sub-document; when set, the expectation applies only if the
	// flag is true. An empty EnabledBy means the product is always expected.
	EnabledBy string `hcl:"enabled_by,optional"`
	// Metadata controls whether the product receives an ISO metadata
	// sibling. Defaults to true.
	Metadata *bool `hcl:"metadata,optional"`
}

// RequiresMetadata resolves the Metadata default.
func (eo *ExpectedOutput) RequiresMetadata() bool {
	return eo.Metadata == nil || *eo.Metadata
}

// Descriptor is the immutable identity of one pipeline: everything the
// generic runner needs to specialize itself for a product.
type Descriptor struct {
	ProductIdentifier      string            `hcl:"product_identifier,label"`
	Description            string            `hcl:"description,optional"`
	ErrorCodeBase          int               `hcl:"error_code_base"`
	SASSchemaPath          string            `hcl:"sas_schema_path"`
	ISOTemplatePath        string            `hcl:"iso_template_path,optional"`
	MeasuredParametersPath string            `hcl:"measured_parameters_path,optional"`
	RenderMetadata         *bool             `hcl:"render_metadata,optional"`
	ISOFieldsExpr          hcl.Expression    `hcl:"iso_fields,optional"`
	ExpectedOutputs        []*ExpectedOutput `hcl:"expected_output,block"`

	// ISOFields holds the evaluated iso_fields attribute: static identity
	// values merged into every metadata rendering context.
	ISOFields map[string]string
	// SourcePath is the manifest file the descriptor was loaded from.
	SourcePath string
}

// MetadataEnabled resolves the RenderMetadata default. Disabling it skips
// the whole metadata stage for the pipeline, all-or-nothing.
func (d *Descriptor) MetadataEnabled() bool {
	return d.RenderMetadata == nil || *d.RenderMetadata
}

// Expectations derives the concrete expectation set for one run. flag
// resolves a dotted boolean path in the run's SAS sub-document; expectations
// gated on a false or absent flag are excluded.
func (d *Descriptor) Expectations(flag func(string) bool) []product.Expectation {
	var exps []product.Expectation
	for _, eo := range d.ExpectedOutputs {
		if eo.EnabledBy != "" && !flag(eo.EnabledBy) {
			continue
		}
		exps = append(exps, product.Expectation{
			TypeToken:        eo.TypeToken,
			Pattern:          eo.Pattern,
			Format:           product.Format(eo.Format),
			RequiresMetadata: eo.RequiresMetadata(),
		})
	}
	return exps
}

// validate checks a single descriptor's internal consistency.
func (d *Descriptor) validate() error {
	if d.ErrorCodeBase <= 0 {
		return fmt.Errorf("pipeline %q: error_code_base must be positive, got %d", d.ProductIdentifier, d.ErrorCodeBase)
	}
	if len(d.ExpectedOutputs) == 0 {
		return fmt.Errorf("pipeline %q: at least one expected_output block is required", d.ProductIdentifier)
	}
	seen := make(map[string]struct{})
	for _, eo := range d.ExpectedOutputs {
		if _, dup := seen[eo.TypeToken]; dup {
			return fmt.Errorf("pipeline %q: duplicate expected_output %q", d.ProductIdentifier, eo.TypeToken)
		}
		seen[eo.TypeToken] = struct{}{}
		if !validFormats[product.Format(eo.Format)] {
			return fmt.Errorf("pipeline %q: expected_output %q: unknown format %q", d.ProductIdentifier, eo.TypeToken, eo.Format)
		}
	}
	if d.MetadataEnabled() {
		if d.ISOTemplatePath == "" {
			return fmt.Errorf("pipeline %q: iso_template_path is required unless render_metadata = false", d.ProductIdentifier)
		}
		if d.MeasuredParametersPath == "" {
			return fmt.Errorf("pipeline %q: measured_parameters_path is required unless render_metadata = false", d.ProductIdentifier)
		}
	}
	return nil
}

var validFormats = map[product.Format]bool{
	product.FormatGeoTIFF: true,
	product.FormatHDF5:    true,
	product.FormatNetCDF:  true,
	product.FormatPNG:     true,
}

// evaluateISOFields materializes the iso_fields map attribute. Values are
// converted to string so the metadata template sees uniform scalars.
func (d *Descriptor) evaluateISOFields() error {
	d.ISOFields = make(map[string]string)
	if d.ISOFieldsExpr == nil {
		return nil
	}

	val, diags := d.ISOFieldsExpr.Value(nil)
	if diags.HasErrors() {
		return fmt.Errorf("pipeline %q: iso_fields: %w", d.ProductIdentifier, diags)
	}
	if val.IsNull() {
		return nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return fmt.Errorf("pipeline %q: iso_fields must be a map of strings, got %s", d.ProductIdentifier, val.Type().FriendlyName())
	}

	for it := val.ElementIterator(); it.Next(); {
		key, elem := it.Element()
		str, err := convert.Convert(elem, cty.String)
		if err != nil {
			return fmt.Errorf("pipeline %q: iso_fields[%s]: %w", d.ProductIdentifier, key.AsString(), err)
		}
		d.ISOFields[key.AsString()] = str.AsString()
	}
	return nil
}
