package compose

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// LabelTarget selects where the labels of a service are written.
type LabelTarget int

// List of label targets.
const (
	// ServiceLabels are container labels, read by the Docker provider.
	ServiceLabels LabelTarget = iota
	// DeployLabels are swarm service labels, read by the Swarm provider.
	DeployLabels
)

// AddLabels inserts labels in front of the labels of a service, in the given order.
// Labels already set are not duplicated. Labels written as a mapping are supported:
// the "key=value" label then sets the key.
func (d *Document) AddLabels(service string, target LabelTarget, labels ...string) error {
	node := d.serviceNode(service)
	if node == nil {
		return fmt.Errorf("%w: %q", ErrUnknownService, service)
	}

	path := SectionServices + "." + service
	if target == DeployLabels {
		path += ".deploy"

		deploy := valueOf(node, "deploy")
		if deploy == nil {
			deploy = newMapping()
			set(node, "deploy", deploy)
		}

		ensureMapping(deploy)
		if deploy.Kind != yaml.MappingNode {
			return malformed(path, "must be a mapping, got %s", kindName(deploy))
		}

		node = deploy
	}
	path += ".labels"

	current := valueOf(node, "labels")
	if isNull(current) {
		current = &yaml.Node{Kind: yaml.SequenceNode, Tag: tagSeq}
		set(node, "labels", current)
	}

	switch current.Kind {
	case yaml.SequenceNode:
		prependSequenceLabels(current, labels)
	case yaml.MappingNode:
		prependMappingLabels(current, labels)
	default:
		return malformed(path, "must be a sequence or a mapping, got %s", kindName(current))
	}

	return nil
}

func prependSequenceLabels(seq *yaml.Node, labels []string) {
	content := make([]*yaml.Node, 0, len(labels)+len(seq.Content))
	for _, label := range labels {
		exists := slices.ContainsFunc(seq.Content, func(n *yaml.Node) bool { return n.Value == label }) ||
			slices.ContainsFunc(content, func(n *yaml.Node) bool { return n.Value == label })
		if exists {
			continue
		}

		content = append(content, newString(label))
	}

	seq.Content = append(content, seq.Content...)
}

func prependMappingLabels(mapping *yaml.Node, labels []string) {
	var content []*yaml.Node
	for _, label := range labels {
		key, value, _ := strings.Cut(label, "=")

		if _, existing := lookup(mapping, key); existing != nil {
			rename(existing, value)

			continue
		}

		replaced := false
		for i := 0; i+1 < len(content); i += 2 {
			if content[i].Value == key {
				content[i+1] = newString(value)
				replaced = true
			}
		}
		if !replaced {
			content = append(content, newString(key), newString(value))
		}
	}

	mapping.Content = append(content, mapping.Content...)
}
