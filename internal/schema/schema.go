// Package schema implements a declarative, Yamale-style validator for YAML
// documents. A schema is itself a YAML document whose mappings mirror the
// shape of the target document and whose scalar leaves are rule strings such
// as "str()", "int(min=1)", "enum('INFO','DEBUG')" or "list(str(), min=1)".
//
// Validation never stops at the first problem: all violations are collected
// with dotted field paths so an operator can fix a runconfig in one pass.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Violation describes one schema rule broken by the target document.
type Violation struct {
	Path    string
	Message string
}

// String implements fmt.Stringer for Violation.
func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Violations accumulates broken rules across a whole validation pass.
type Violations []Violation

// Add appends a formatted violation at the given path.
func (vs *Violations) Add(path, format string, args ...any) {
	*vs = append(*vs, Violation{Path: path, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns an error summarizing the violations, or nil if there are none.
func (vs Violations) OrNil() error {
	if len(vs) == 0 {
		return nil
	}
	lines := make([]string, len(vs))
	for i, v := range vs {
		lines[i] = v.String()
	}
	return fmt.Errorf("schema validation failed:\n- %s", strings.Join(lines, "\n- "))
}

// node is one position in the compiled schema tree: either a mapping section
// with named children, or a leaf rule.
type node struct {
	rule     *Rule
	children map[string]*node
	order    []string
}

// required reports whether the target document must contain this node. A
// mapping section is required iff any descendant rule is required.
func (n *node) required() bool {
	if n.rule != nil {
		return n.rule.Required
	}
	for _, name := range n.order {
		if n.children[name].required() {
			return true
		}
	}
	return false
}

// Schema is a compiled schema document, ready to apply to any number of
// target documents.
type Schema struct {
	root *node
}

// Compile parses and compiles a schema document.
func Compile(doc []byte) (*Schema, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("unparsable schema document: %w", err)
	}
	content := documentContent(&root)
	if content == nil {
		return nil, fmt.Errorf("empty schema document")
	}

	compiled, err := compileNode(content, "")
	if err != nil {
		return nil, err
	}
	return &Schema{root: compiled}, nil
}

// compileNode recursively compiles a schema YAML node at the given path.
func compileNode(n *yaml.Node, path string) (*node, error) {
	switch n.Kind {
	case yaml.MappingNode:
		section := &node{children: make(map[string]*node)}
		for i := 0; i < len(n.Content)-1; i += 2 {
			key := n.Content[i].Value
			childPath := joinPath(path, key)
			if _, dup := section.children[key]; dup {
				return nil, fmt.Errorf("schema: duplicate key at %s", childPath)
			}
			child, err := compileNode(n.Content[i+1], childPath)
			if err != nil {
				return nil, err
			}
			section.children[key] = child
			section.order = append(section.order, key)
		}
		return section, nil
	case yaml.ScalarNode:
		rule, err := parseRule(n.Value)
		if err != nil {
			return nil, fmt.Errorf("schema: %s: %w", orRoot(path), err)
		}
		return &node{rule: rule}, nil
	default:
		return nil, fmt.Errorf("schema: %s: unsupported node kind", orRoot(path))
	}
}

// Apply validates a parsed YAML document against the schema and returns all
// violations found. The argument may be a document node or its content.
func (s *Schema) Apply(doc *yaml.Node) Violations {
	var vs Violations
	applyNode(s.root, documentContent(doc), "", &vs)
	return vs
}

// applyNode validates one schema node against the matching document node.
// value is nil when the document omits the field.
func applyNode(n *node, value *yaml.Node, path string, vs *Violations) {
	value = resolveAlias(value)
	if isAbsent(value) {
		if n.required() {
			vs.Add(orRoot(path), "required field is missing")
		}
		return
	}

	if n.rule != nil {
		applyRule(n.rule, value, path, vs)
		return
	}

	if value.Kind != yaml.MappingNode {
		vs.Add(orRoot(path), "expected a mapping")
		return
	}
	byKey := mappingIndex(value)
	for _, name := range n.order {
		applyNode(n.children[name], byKey[name], joinPath(path, name), vs)
	}
	for i := 0; i < len(value.Content)-1; i += 2 {
		key := value.Content[i].Value
		if _, known := n.children[key]; !known {
			vs.Add(joinPath(path, key), "unexpected field")
		}
	}
}

// applyRule validates a leaf value against a compiled rule.
func applyRule(rule *Rule, value *yaml.Node, path string, vs *Violations) {
	at := orRoot(path)
	switch rule.Kind {
	case kindAny:
		// any() accepts every present value.
	case kindStr:
		if value.Kind != yaml.ScalarNode || value.Tag != "!!str" {
			vs.Add(at, "expected a string, got %s", describe(value))
			return
		}
		checkRange(rule, float64(len(value.Value)), "length", at, vs)
	case kindInt:
		if value.Kind != yaml.ScalarNode || value.Tag != "!!int" {
			vs.Add(at, "expected an integer, got %s", describe(value))
			return
		}
		f, _ := strconv.ParseFloat(value.Value, 64)
		checkRange(rule, f, "value", at, vs)
	case kindNum:
		if value.Kind != yaml.ScalarNode || (value.Tag != "!!int" && value.Tag != "!!float") {
			vs.Add(at, "expected a number, got %s", describe(value))
			return
		}
		f, _ := strconv.ParseFloat(value.Value, 64)
		checkRange(rule, f, "value", at, vs)
	case kindBool:
		if value.Kind != yaml.ScalarNode || value.Tag != "!!bool" {
			vs.Add(at, "expected a boolean, got %s", describe(value))
		}
	case kindEnum:
		if value.Kind != yaml.ScalarNode {
			vs.Add(at, "expected one of %s, got %s", strings.Join(rule.Enum, "|"), describe(value))
			return
		}
		for _, allowed := range rule.Enum {
			if value.Value == allowed {
				return
			}
		}
		vs.Add(at, "value %q is not one of %s", value.Value, strings.Join(rule.Enum, "|"))
	case kindList:
		if value.Kind != yaml.SequenceNode {
			vs.Add(at, "expected a list, got %s", describe(value))
			return
		}
		checkRange(rule, float64(len(value.Content)), "length", at, vs)
		for i, elem := range value.Content {
			applyRule(rule.Elem, resolveAlias(elem), fmt.Sprintf("%s[%d]", at, i), vs)
		}
	case kindMap:
		if value.Kind != yaml.MappingNode {
			vs.Add(at, "expected a mapping, got %s", describe(value))
		}
	}
}

// checkRange enforces a rule's min/max bounds on a measured quantity.
func checkRange(rule *Rule, got float64, what, path string, vs *Violations) {
	if rule.Min != nil && got < *rule.Min {
		vs.Add(path, "%s %v is below the minimum %v", what, trimFloat(got), trimFloat(*rule.Min))
	}
	if rule.Max != nil && got > *rule.Max {
		vs.Add(path, "%s %v is above the maximum %v", what, trimFloat(got), trimFloat(*rule.Max))
	}
}

// --- yaml.Node helpers ---

// documentContent unwraps a DocumentNode to its single content node.
func documentContent(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil
		}
		return n.Content[0]
	}
	return n
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	if n != nil && n.Kind == yaml.AliasNode {
		return n.Alias
	}
	return n
}

// isAbsent treats an explicit null the same as a missing field.
func isAbsent(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

// mappingIndex builds a key → value-node lookup for a mapping node.
func mappingIndex(n *yaml.Node) map[string]*yaml.Node {
	byKey := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i < len(n.Content)-1; i += 2 {
		byKey[n.Content[i].Value] = n.Content[i+1]
	}
	return byKey
}

// describe names a YAML node kind for violation messages.
func describe(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "a mapping"
	case yaml.SequenceNode:
		return "a list"
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!str":
			return fmt.Sprintf("string %q", n.Value)
		case "!!int", "!!float":
			return fmt.Sprintf("number %s", n.Value)
		case "!!bool":
			return fmt.Sprintf("boolean %s", n.Value)
		}
		return fmt.Sprintf("scalar %q", n.Value)
	}
	return "an unknown node"
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func orRoot(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
