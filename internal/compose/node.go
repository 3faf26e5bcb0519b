package compose

import (
	"gopkg.in/yaml.v3"
)

const (
	tagMap   = "!!map"
	tagSeq   = "!!seq"
	tagStr   = "!!str"
	tagBool  = "!!bool"
	tagNull  = "!!null"
	tagMerge = "!!merge"
)

func newMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: tagMap}
}

func newSequence(values ...string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: tagSeq}
	for _, value := range values {
		seq.Content = append(seq.Content, newString(value))
	}

	return seq
}

func newString(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagStr, Value: value}
}

func newBool(value bool) *yaml.Node {
	v := "false"
	if value {
		v = "true"
	}

	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagBool, Value: v}
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == tagNull)
}

func isString(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.ShortTag() == tagStr
}

func isScalar(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && !isNull(n)
}

// lookup returns the key and value nodes of the given key in a mapping node.
func lookup(mapping *yaml.Node, key string) (*yaml.Node, *yaml.Node) {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil, nil
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i], mapping.Content[i+1]
		}
	}

	return nil, nil
}

// set replaces the value of key in the mapping, or appends the pair when missing.
func set(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value

			return
		}
	}

	mapping.Content = append(mapping.Content, newString(key), value)
}

// ensureMapping turns a null node into an empty mapping in place, so that pointers
// held on the node from its parent stay valid.
func ensureMapping(n *yaml.Node) {
	if isNull(n) {
		n.Kind = yaml.MappingNode
		n.Tag = tagMap
		n.Value = ""
		n.Style = 0
		n.Content = nil
	}
}

// rename sets the value of a scalar node, keeping the plain style so the token
// never forces quoting the rewritten name.
func rename(n *yaml.Node, value string) {
	n.Value = value
	n.Tag = tagStr
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}

	c := *n
	if n.Content != nil {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}

	return &c
}

// Bounds of alias expansion. A document may grow by maxExpansionRatio through aliases,
// and never needs fewer than minExpansionBudget nodes.
const (
	minExpansionBudget = 10_000
	maxExpansionRatio  = 10
)

// expander replaces every alias by a copy of its anchor and folds merge keys into their
// mapping. Rewrites operate on concrete nodes only: an anchored service fragment shared
// by two services must be renamed once per use site.
type expander struct {
	budget int
	count  int
	// active holds the anchored nodes being expanded.
	active map[*yaml.Node]struct{}
}

// expand returns the expanded copy of the node tree rooted at n.
func expand(n *yaml.Node) (*yaml.Node, error) {
	e := &expander{
		budget: max(minExpansionBudget, maxExpansionRatio*countNodes(n)),
		active: make(map[*yaml.Node]struct{}),
	}

	return e.expand(n)
}

func countNodes(n *yaml.Node) int {
	if n == nil {
		return 0
	}

	count := 1
	for _, child := range n.Content {
		count += countNodes(child)
	}

	return count
}

func (e *expander) expand(n *yaml.Node) (*yaml.Node, error) {
	if n == nil {
		return nil, nil
	}

	e.count++
	if e.count > e.budget {
		return nil, malformed("", "aliases expand to more than %d nodes", e.budget)
	}

	if n.Anchor != "" {
		if _, ok := e.active[n]; ok {
			return nil, malformed("", "anchor %q contains itself", n.Anchor)
		}

		e.active[n] = struct{}{}
		defer delete(e.active, n)
	}

	switch n.Kind {
	case yaml.AliasNode:
		return e.expand(n.Alias)
	case yaml.MappingNode:
		return e.expandMapping(n)
	default:
		c := *n
		c.Anchor = ""
		c.Content = nil
		for _, child := range n.Content {
			expanded, err := e.expand(child)
			if err != nil {
				return nil, err
			}

			c.Content = append(c.Content, expanded)
		}

		return &c, nil
	}
}

func (e *expander) expandMapping(n *yaml.Node) (*yaml.Node, error) {
	c := *n
	c.Anchor = ""
	c.Content = nil

	own := make(map[string]struct{}, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		if !isMergeKey(n.Content[i]) {
			own[n.Content[i].Value] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		if !isMergeKey(key) {
			k, err := e.expand(key)
			if err != nil {
				return nil, err
			}
			v, err := e.expand(value)
			if err != nil {
				return nil, err
			}

			c.Content = append(c.Content, k, v)
			seen[key.Value] = struct{}{}

			continue
		}

		sources, err := e.mergeSources(value)
		if err != nil {
			return nil, err
		}

		for _, source := range sources {
			for j := 0; j+1 < len(source.Content); j += 2 {
				name := source.Content[j].Value
				if _, ok := own[name]; ok {
					continue
				}
				if _, ok := seen[name]; ok {
					continue
				}

				seen[name] = struct{}{}
				c.Content = append(c.Content, source.Content[j], source.Content[j+1])
			}
		}
	}

	return &c, nil
}

func isMergeKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && (n.Tag == tagMerge || (n.Value == "<<" && n.Style == 0))
}

func (e *expander) mergeSources(n *yaml.Node) ([]*yaml.Node, error) {
	n, err := e.expand(n)
	if err != nil {
		return nil, err
	}

	switch n.Kind {
	case yaml.MappingNode:
		return []*yaml.Node{n}, nil
	case yaml.SequenceNode:
		sources := make([]*yaml.Node, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind == yaml.MappingNode {
				sources = append(sources, item)
			}
		}

		return sources, nil
	default:
		return nil, nil
	}
}
