package compose

import (
	"context"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/jspdown/deckhand/internal/network"
)

// AddNetworkToRoot returns a copy of doc declaring name as an external network.
func AddNetworkToRoot(doc *Document, name string) (*Document, error) {
	d := doc.Clone()
	if err := d.DeclareExternalNetwork(name, name); err != nil {
		return nil, err
	}

	return d, nil
}

// AddNetworkToServices returns a copy of doc where every service is attached to
// the network name. Services keep the shape their network list was written in.
func AddNetworkToServices(doc *Document, name string) (*Document, error) {
	d := doc.Clone()

	m, err := d.Model()
	if err != nil {
		return nil, err
	}

	if err = attachNetwork(m, name); err != nil {
		return nil, err
	}

	return d, nil
}

// AddCustomNetworks returns a copy of doc attached to the networks identified by ids.
// Every id must be known by the registry, otherwise the unknown ids are reported and
// no network is added.
func AddCustomNetworks(ctx context.Context, doc *Document, registry network.Registry, ids []string) (*Document, error) {
	d := doc.Clone()
	if len(ids) == 0 {
		return d, nil
	}

	if _, err := d.section(SectionNetworks); err != nil {
		return nil, err
	}

	networks, err := registry.FindNetworksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving networks: %w", err)
	}

	m, err := d.Model()
	if err != nil {
		return nil, err
	}

	for _, n := range networks {
		if err = d.DeclareExternalNetwork(n.Name, n.Name); err != nil {
			return nil, err
		}
		if err = attachNetwork(m, n.Name); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// DeclareExternalNetwork declares the network key as external in the root networks
// section, replacing any existing declaration. The engine-side name is only set when
// name is not empty.
func (d *Document) DeclareExternalNetwork(key, name string) error {
	networks, err := d.section(SectionNetworks)
	if err != nil {
		return err
	}

	def := newMapping()
	if name != "" {
		set(def, "name", newString(name))
	}
	set(def, "external", newBool(true))

	set(networks, key, def)

	return nil
}

// AttachNetwork attaches a service to the network name.
func (d *Document) AttachNetwork(service, name string) error {
	node := d.serviceNode(service)
	if node == nil {
		return fmt.Errorf("%w: %q", ErrUnknownService, service)
	}

	networks, err := parseServiceNetworks(SectionServices+"."+service+".networks", valueOf(node, "networks"))
	if err != nil {
		return err
	}

	addAttachment(node, networks, name)

	return nil
}

func attachNetwork(m *Model, name string) error {
	for _, s := range m.Services {
		addAttachment(s.Node, s.Networks, name)

		// The model is reused when attaching several networks.
		networks, err := parseServiceNetworks(SectionServices+"."+s.Name()+".networks", valueOf(s.Node, "networks"))
		if err != nil {
			return err
		}
		s.Networks = networks
	}

	return nil
}

// addAttachment attaches the service to the network, unless already attached.
func addAttachment(service *yaml.Node, networks ServiceNetworks, name string) {
	attached := slices.ContainsFunc(networks.Attachments, func(a NetworkAttachment) bool {
		return a.Name.Value == name
	})
	if attached {
		return
	}

	switch networks.Shape {
	case ShapeSequence:
		networks.node.Content = append(networks.node.Content, newString(name))
	case ShapeMapping:
		networks.node.Content = append(networks.node.Content, newString(name), newMapping())
	default:
		set(service, "networks", newSequence(name))
	}
}

func valueOf(mapping *yaml.Node, key string) *yaml.Node {
	_, value := lookup(mapping, key)

	return value
}
