// Package metadata renders an ISO XML metadata document per output product.
// A rendering combines three sources: static pipeline identity fields from
// the descriptor, the measured-parameter description table, and values
// harvested from the product file itself. The template is a data file
// deployed next to the pipeline descriptor; its content is opaque to the
// wrapper beyond being a valid text/template document.
package metadata

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/pgerun/internal/ctxlog"
	"github.com/specialistvlad/pgerun/internal/product"
)

// MeasuredParameter is one entry of the measured-parameter description
// table: a metadata field name with its human-readable description.
type MeasuredParameter struct {
	Name        string
	Description string
}

// ProductInfo carries the values harvested from the product file itself.
type ProductInfo struct {
	FileName     string
	Path         string
	TypeToken    string
	Format       string
	SizeBytes    int64
	SHA256       string
	ModifiedTime string
}

// renderContext is the root object visible to the ISO template.
type renderContext struct {
	Identity           map[string]string
	Product            ProductInfo
	MeasuredParameters []MeasuredParameter
	GeneratedAt        string
}

// Generator renders ISO metadata for the products of one pipeline. Construct
// once per run with New; safe for repeated Generate calls.
type Generator struct {
	tmpl     *template.Template
	params   []MeasuredParameter
	identity map[string]string
}

// New loads the ISO template and the measured-parameter table. Identity
// fields come from the pipeline descriptor and are merged into every
// rendering context unchanged.
func New(templatePath, measuredParamsPath string, identity map[string]string) (*Generator, error) {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ISO template %q: %w", templatePath, err)
	}
	// missingkey=error turns a template reference to an absent identity
	// field into a hard failure instead of "<no value>" in the XML.
	tmpl, err := template.New(filepath.Base(templatePath)).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid ISO template %q: %w", templatePath, err)
	}

	params, err := loadMeasuredParameters(measuredParamsPath)
	if err != nil {
		return nil, err
	}

	if identity == nil {
		identity = make(map[string]string)
	}
	return &Generator{tmpl: tmpl, params: params, identity: identity}, nil
}

// loadMeasuredParameters parses the description table: a YAML mapping from
// metadata field name to human-readable description.
func loadMeasuredParameters(path string) ([]MeasuredParameter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read measured-parameter table %q: %w", path, err)
	}

	table := make(map[string]string)
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("malformed measured-parameter table %q: %w", path, err)
	}

	params := make([]MeasuredParameter, 0, len(table))
	for name, description := range table {
		if strings.TrimSpace(description) == "" {
			return nil, fmt.Errorf("measured-parameter table %q: parameter %q has no description", path, name)
		}
		params = append(params, MeasuredParameter{Name: name, Description: description})
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	return params, nil
}

// Generate renders the ISO document for one product and writes it as a
// sibling file named after the product with an .iso.xml extension. Returns
// the written path.
func (g *Generator) Generate(ctx context.Context, p product.Product) (string, error) {
	logger := ctxlog.FromContext(ctx)

	info, err := harvest(p)
	if err != nil {
		return "", err
	}

	var rendered bytes.Buffer
	err = g.tmpl.Execute(&rendered, renderContext{
		Identity:           g.identity,
		Product:            info,
		MeasuredParameters: g.params,
		GeneratedAt:        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render ISO metadata for %q: %w", p.Path, err)
	}

	outPath := isoPath(p.Path)
	if err := os.WriteFile(outPath, rendered.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write ISO metadata %q: %w", outPath, err)
	}

	logger.Debug("ISO metadata written.", "product", p.TypeToken, "path", outPath)
	return outPath, nil
}

// harvest extracts the file-level values used by the template: size,
// checksum and modification time, plus identity attributes carried on the
// discovered product.
func harvest(p product.Product) (ProductInfo, error) {
	stat, err := os.Stat(p.Path)
	if err != nil {
		return ProductInfo{}, fmt.Errorf("failed to stat product %q: %w", p.Path, err)
	}

	file, err := os.Open(p.Path)
	if err != nil {
		return ProductInfo{}, fmt.Errorf("failed to open product %q: %w", p.Path, err)
	}
	defer file.Close()

	digest := sha256.New()
	if _, err := io.Copy(digest, file); err != nil {
		return ProductInfo{}, fmt.Errorf("failed to checksum product %q: %w", p.Path, err)
	}

	return ProductInfo{
		FileName:     filepath.Base(p.Path),
		Path:         p.Path,
		TypeToken:    p.TypeToken,
		Format:       string(p.Format),
		SizeBytes:    stat.Size(),
		SHA256:       hex.EncodeToString(digest.Sum(nil)),
		ModifiedTime: stat.ModTime().UTC().Format(time.RFC3339),
	}, nil
}

// isoPath derives the metadata sibling path: the product path with its
// extension replaced by .iso.xml.
func isoPath(productPath string) string {
	return strings.TrimSuffix(productPath, filepath.Ext(productPath)) + ".iso.xml"
}
