// Package runconfig loads, validates and splits the single YAML document
// that describes one PGE run. Validation is two-phase: the PGE-facing half
// is checked against a fixed schema embedded in the binary, then the
// SAS-facing half is checked against the pipeline-specific schema whose path
// is itself a value inside the already-validated PGE half.
//
// The loaded document is immutable; the only write this package performs is
// serializing the SAS half to its own standalone file, because the SAS
// executable takes only its own document, not the merged one.
package runconfig

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/pgerun/internal/schema"
)

//go:embed schemas/pge_schema.yaml
var pgeSchemaDoc []byte

// RunConfig is one parsed run configuration document. Construct with Load,
// then call Validate before using any accessor.
type RunConfig struct {
	// Path is the location the document was loaded from.
	Path string
	// Name is the document's RunConfig.Name value.
	Name string
	// PGE is the decoded PGE-facing half, populated by Validate.
	PGE PGEGroup

	doc     yaml.Node
	sasNode *yaml.Node
}

// Load reads and parses the document at path. Structural validation happens
// separately in Validate; Load fails only on unreadable files and unparsable
// YAML.
func Load(path string) (*RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run configuration %q: %w", path, err)
	}

	rc := &RunConfig{Path: path}
	if err := yaml.Unmarshal(raw, &rc.doc); err != nil {
		return nil, fmt.Errorf("unparsable run configuration %q: %w", path, err)
	}
	return rc, nil
}

// Validate performs both validation phases and decodes the PGE half into
// rc.PGE. The pipeline-specific SAS schema path is resolved relative to
// schemaRoot when it is not absolute.
func (rc *RunConfig) Validate(schemaRoot string) error {
	pgeSchema, err := schema.Compile(pgeSchemaDoc)
	if err != nil {
		// The embedded schema ships with the binary; failing to compile it
		// is a build defect, not a runtime condition.
		panic(fmt.Errorf("embedded PGE schema is invalid: %w", err))
	}

	// Phase one: the fixed outer schema, common to all pipelines.
	if err := pgeSchema.Apply(&rc.doc).OrNil(); err != nil {
		return err
	}
	if err := rc.Decode(); err != nil {
		return err
	}

	// Phase two: the SAS schema located through the validated PGE half.
	sasSchemaPath := rc.PGE.Primary.SchemaPath
	if !filepath.IsAbs(sasSchemaPath) {
		sasSchemaPath = filepath.Join(schemaRoot, sasSchemaPath)
	}
	sasSchemaDoc, err := os.ReadFile(sasSchemaPath)
	if err != nil {
		return fmt.Errorf("failed to read SAS schema %q: %w", sasSchemaPath, err)
	}
	sasSchema, err := schema.Compile(sasSchemaDoc)
	if err != nil {
		return fmt.Errorf("invalid SAS schema %q: %w", sasSchemaPath, err)
	}
	if err := sasSchema.Apply(rc.sasNode).OrNil(); err != nil {
		return fmt.Errorf("SAS section of %q: %w", rc.Path, err)
	}
	return nil
}

// Decode walks the parsed document, captures the SAS subtree and unmarshals
// the PGE subtree into typed groups. It is deliberately lenient about
// missing leaf fields so the runner can learn the pipeline's error code base
// even from a document that will fail schema validation. Idempotent.
func (rc *RunConfig) Decode() error {
	if rc.sasNode != nil {
		return nil
	}
	root := mappingChild(documentContent(&rc.doc), "RunConfig")
	if root == nil {
		return fmt.Errorf("document %q has no top-level RunConfig key", rc.Path)
	}
	if name := mappingChild(root, "Name"); name != nil {
		rc.Name = name.Value
	}

	groups := mappingChild(root, "Groups")
	if groups == nil {
		return fmt.Errorf("document %q has no RunConfig.Groups key", rc.Path)
	}
	pgeNode := mappingChild(groups, "PGE")
	rc.sasNode = mappingChild(groups, "SAS")
	if pgeNode == nil || rc.sasNode == nil {
		return fmt.Errorf("document %q must contain both PGE and SAS groups", rc.Path)
	}

	if err := pgeNode.Decode(&rc.PGE); err != nil {
		return fmt.Errorf("failed to decode PGE group of %q: %w", rc.Path, err)
	}
	return nil
}

// SASNode returns the raw SAS subtree of the document.
func (rc *RunConfig) SASNode() *yaml.Node {
	return rc.sasNode
}

// SASFlag looks up a boolean at a dotted path inside the SAS subtree, e.g.
// "product_flags.generate_browse". Missing paths and non-boolean values
// report false; expected-output gating treats an absent flag as disabled.
func (rc *RunConfig) SASFlag(dotted string) bool {
	node := rc.sasNode
	for _, key := range strings.Split(dotted, ".") {
		node = mappingChild(node, key)
		if node == nil {
			return false
		}
	}
	return node.Kind == yaml.ScalarNode && node.Tag == "!!bool" && node.Value == "true"
}

// WriteSASConfig serializes the SAS half to its own document in dir, named
// after the run, and returns the written path. The standalone document wraps
// the SAS subtree back under RunConfig.Groups.SAS so the SAS executable sees
// the same shape it was developed against. The source document is never
// touched.
func (rc *RunConfig) WriteSASConfig(dir string) (string, error) {
	wrapper := mappingNode(
		"RunConfig", mappingNode(
			"Name", scalarNode(rc.Name),
			"Groups", mappingNode("SAS", rc.sasNode),
		),
	)

	out, err := yaml.Marshal(wrapper)
	if err != nil {
		return "", fmt.Errorf("failed to serialize SAS configuration: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_sas.yaml", rc.Name))
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", fmt.Errorf("failed to write SAS configuration %q: %w", path, err)
	}
	return path, nil
}

// --- yaml.Node helpers ---

func documentContent(n *yaml.Node) *yaml.Node {
	if n != nil && n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return n.Content[0]
	}
	return n
}

// mappingChild returns the value node for key inside a mapping node, or nil.
func mappingChild(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(n.Content)-1; i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func mappingNode(pairs ...any) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i < len(pairs)-1; i += 2 {
		node.Content = append(node.Content, scalarNode(pairs[i].(string)), pairs[i+1].(*yaml.Node))
	}
	return node
}
