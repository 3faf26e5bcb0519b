// Package compose models Docker Compose documents and rewrites the identifiers they
// declare so that several deployments of the same project can share a Docker engine.
package compose

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Root-level sections holding named definitions.
const (
	SectionServices = "services"
	SectionNetworks = "networks"
	SectionVolumes  = "volumes"
	SectionConfigs  = "configs"
	SectionSecrets  = "secrets"
)

// Document is a Compose document. It keeps the parsed YAML tree so that fields this
// package does not know about, and the order of mapping keys, survive a rewrite.
type Document struct {
	root *yaml.Node
}

// New creates an empty Document.
func New() *Document {
	return &Document{root: newMapping()}
}

// Parse parses a Compose document from YAML (or JSON) and checks that every field
// used as a reference site has a recognized shape.
func Parse(data []byte) (*Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	root := newMapping()
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		expanded, err := expand(node.Content[0])
		if err != nil {
			return nil, err
		}

		root = expanded
	}

	if isNull(root) {
		root = newMapping()
	}
	if root.Kind != yaml.MappingNode {
		return nil, malformed("", "document must be a mapping, got %s", kindName(root))
	}

	doc := &Document{root: root}
	if _, err := doc.Model(); err != nil {
		return nil, err
	}

	return doc, nil
}

// Clone returns a deep copy of the Document.
func (d *Document) Clone() *Document {
	return &Document{root: cloneNode(d.root)}
}

// Marshal serializes the Document to YAML.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("encoding compose document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing compose encoder: %w", err)
	}

	return buf.Bytes(), nil
}

// Decode decodes the Document into v.
func (d *Document) Decode(v any) error {
	return d.root.Decode(v)
}

// Names returns the keys of the given root-level section, in document order.
func (d *Document) Names(section string) []string {
	_, value := lookup(d.root, section)
	if value == nil || value.Kind != yaml.MappingNode {
		return nil
	}

	names := make([]string, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		names = append(names, value.Content[i].Value)
	}

	return names
}

// HasService reports whether the Document declares the given service.
func (d *Document) HasService(name string) bool {
	for _, service := range d.Names(SectionServices) {
		if service == name {
			return true
		}
	}

	return false
}

// serviceNode returns the mapping node of a service, turning an empty service
// definition into an empty mapping. It returns nil when the service does not exist.
func (d *Document) serviceNode(name string) *yaml.Node {
	_, services := lookup(d.root, SectionServices)
	_, service := lookup(services, name)
	if service == nil {
		return nil
	}

	ensureMapping(service)

	return service
}

// section returns the mapping node of a root-level section, creating it when absent.
func (d *Document) section(name string) (*yaml.Node, error) {
	_, value := lookup(d.root, name)
	if value == nil {
		value = newMapping()
		set(d.root, name, value)

		return value, nil
	}

	ensureMapping(value)
	if value.Kind != yaml.MappingNode {
		return nil, malformed(name, "must be a mapping, got %s", kindName(value))
	}

	return value, nil
}

func kindName(n *yaml.Node) string {
	switch {
	case n == nil:
		return "nothing"
	case n.Kind == yaml.MappingNode:
		return "a mapping"
	case n.Kind == yaml.SequenceNode:
		return "a sequence"
	case isNull(n):
		return "null"
	case n.Kind == yaml.ScalarNode:
		return fmt.Sprintf("scalar %q", n.Value)
	default:
		return "an unsupported node"
	}
}
