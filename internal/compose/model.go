package compose

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Shape is the representation a polymorphic Compose field was written in.
type Shape int

// List of field shapes.
const (
	ShapeAbsent Shape = iota
	ShapeSequence
	ShapeMapping
)

// Model is a typed view over a Document. Every reference site points at the YAML
// node holding the name, so rewriting a name is a matter of updating that node.
// A Model is only valid until the Document it was built from is modified.
type Model struct {
	Services []*Service
	Networks []*Definition
	Volumes  []*Definition
	Configs  []*Definition
	Secrets  []*Definition

	services *yaml.Node
}

// Definition is a named entry of a root-level section.
type Definition struct {
	Key   *yaml.Node
	Value *yaml.Node
}

// Name returns the definition name.
func (d *Definition) Name() string {
	return d.Key.Value
}

// Service is a service definition and the reference sites it holds.
type Service struct {
	Key  *yaml.Node
	Node *yaml.Node

	// ContainerName is a display label, rewritten but never looked up.
	ContainerName *yaml.Node

	Networks    ServiceNetworks
	Volumes     []VolumeMount
	DependsOn   DependsOn
	Links       []*yaml.Node
	VolumesFrom []*yaml.Node
	Extends     *Extends
	Configs     []FileReference
	Secrets     []FileReference
}

// Name returns the service name.
func (s *Service) Name() string {
	return s.Key.Value
}

// ServiceNetworks holds the networks a service is attached to.
type ServiceNetworks struct {
	Shape       Shape
	Attachments []NetworkAttachment

	node *yaml.Node
}

// NetworkAttachment is an entry of a service network list. Aliases are only
// available in the mapping shape.
type NetworkAttachment struct {
	Name    *yaml.Node
	Aliases []*yaml.Node
}

// DependsOn holds the services a service depends on. In the mapping shape, the
// reference is the key and the condition object is left untouched.
type DependsOn struct {
	Shape    Shape
	Services []*yaml.Node
}

// MountKind is the notation a volume mount was written in.
type MountKind int

// List of mount notations.
const (
	// MountShort is the "source:target[:mode]" notation.
	MountShort MountKind = iota
	// MountLong is the structured {type, source, target} notation.
	MountLong
)

// VolumeMount is an entry of a service volume list.
type VolumeMount struct {
	Kind MountKind

	// Type is the mount type of long mounts ("volume", "bind", "tmpfs", ...).
	Type string
	// Source is the whole string of short mounts, and the source node of long mounts.
	// It is nil for long mounts without source (anonymous volumes).
	Source *yaml.Node
}

// Extends is the base a service extends.
type Extends struct {
	Service *yaml.Node
	// File is set when the base service lives in another file.
	File string
}

// FileReference is an entry of a service config or secret list.
type FileReference struct {
	Source *yaml.Node
}

// Model builds the typed view of the Document. Every malformed reference site found
// is reported, aggregated in a single error.
func (d *Document) Model() (*Model, error) {
	var (
		m    Model
		errs *multierror.Error
	)

	var err error
	if m.Networks, err = d.definitions(SectionNetworks); err != nil {
		errs = multierror.Append(errs, err)
	}
	if m.Volumes, err = d.definitions(SectionVolumes); err != nil {
		errs = multierror.Append(errs, err)
	}
	if m.Configs, err = d.definitions(SectionConfigs); err != nil {
		errs = multierror.Append(errs, err)
	}
	if m.Secrets, err = d.definitions(SectionSecrets); err != nil {
		errs = multierror.Append(errs, err)
	}

	defs, err := d.definitions(SectionServices)
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	_, m.services = lookup(d.root, SectionServices)

	for _, def := range defs {
		service, serviceErr := parseService(def)
		if serviceErr != nil {
			errs = multierror.Append(errs, serviceErr)

			continue
		}

		m.Services = append(m.Services, service)
	}

	if err = errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &m, nil
}

func (d *Document) definitions(section string) ([]*Definition, error) {
	_, value := lookup(d.root, section)
	if isNull(value) {
		return nil, nil
	}
	if value.Kind != yaml.MappingNode {
		return nil, malformed(section, "must be a mapping, got %s", kindName(value))
	}

	defs := make([]*Definition, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i]
		if !isScalar(key) {
			return nil, malformed(section, "keys must be names, got %s", kindName(key))
		}

		defs = append(defs, &Definition{Key: key, Value: value.Content[i+1]})
	}

	return defs, nil
}

func parseService(def *Definition) (*Service, error) {
	path := SectionServices + "." + def.Name()

	ensureMapping(def.Value)
	if def.Value.Kind != yaml.MappingNode {
		return nil, malformed(path, "must be a mapping, got %s", kindName(def.Value))
	}

	s := &Service{Key: def.Key, Node: def.Value}

	var errs *multierror.Error
	for i := 0; i+1 < len(def.Value.Content); i += 2 {
		key, value := def.Value.Content[i].Value, def.Value.Content[i+1]
		fieldPath := path + "." + key

		var err error
		switch key {
		case "container_name":
			if !isScalar(value) {
				err = malformed(fieldPath, "must be a string, got %s", kindName(value))
			}
			s.ContainerName = value
		case "networks":
			s.Networks, err = parseServiceNetworks(fieldPath, value)
		case "volumes":
			s.Volumes, err = parseVolumeMounts(fieldPath, value)
		case "depends_on":
			s.DependsOn, err = parseDependsOn(fieldPath, value)
		case "links":
			s.Links, err = parseNames(fieldPath, value)
		case "volumes_from":
			s.VolumesFrom, err = parseNames(fieldPath, value)
		case "extends":
			s.Extends, err = parseExtends(fieldPath, value)
		case "configs":
			s.Configs, err = parseFileReferences(fieldPath, value)
		case "secrets":
			s.Secrets, err = parseFileReferences(fieldPath, value)
		}

		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return s, nil
}

func parseServiceNetworks(path string, value *yaml.Node) (ServiceNetworks, error) {
	networks := ServiceNetworks{node: value}

	switch {
	case isNull(value):
		networks.Shape = ShapeAbsent
	case value.Kind == yaml.SequenceNode:
		networks.Shape = ShapeSequence
		for i, item := range value.Content {
			if !isScalar(item) {
				return ServiceNetworks{}, malformed(fmt.Sprintf("%s[%d]", path, i), "must be a network name, got %s", kindName(item))
			}

			networks.Attachments = append(networks.Attachments, NetworkAttachment{Name: item})
		}
	case value.Kind == yaml.MappingNode:
		networks.Shape = ShapeMapping
		for i := 0; i+1 < len(value.Content); i += 2 {
			name, config := value.Content[i], value.Content[i+1]
			attachmentPath := path + "." + name.Value

			attachment := NetworkAttachment{Name: name}
			if !isNull(config) {
				if config.Kind != yaml.MappingNode {
					return ServiceNetworks{}, malformed(attachmentPath, "must be a mapping, got %s", kindName(config))
				}

				_, aliases := lookup(config, "aliases")
				if !isNull(aliases) {
					var err error
					if attachment.Aliases, err = parseNames(attachmentPath+".aliases", aliases); err != nil {
						return ServiceNetworks{}, err
					}
				}
			}

			networks.Attachments = append(networks.Attachments, attachment)
		}
	default:
		return ServiceNetworks{}, malformed(path, "must be a sequence or a mapping, got %s", kindName(value))
	}

	return networks, nil
}

func parseVolumeMounts(path string, value *yaml.Node) ([]VolumeMount, error) {
	if isNull(value) {
		return nil, nil
	}
	if value.Kind != yaml.SequenceNode {
		return nil, malformed(path, "must be a sequence, got %s", kindName(value))
	}

	mounts := make([]VolumeMount, 0, len(value.Content))
	for i, item := range value.Content {
		itemPath := fmt.Sprintf("%s[%d]", path, i)

		switch {
		case isScalar(item):
			mounts = append(mounts, VolumeMount{Kind: MountShort, Source: item})
		case item.Kind == yaml.MappingNode:
			mount := VolumeMount{Kind: MountLong}

			_, typ := lookup(item, "type")
			if !isNull(typ) {
				if !isScalar(typ) {
					return nil, malformed(itemPath+".type", "must be a string, got %s", kindName(typ))
				}
				mount.Type = typ.Value
			}

			_, source := lookup(item, "source")
			if !isNull(source) {
				if !isScalar(source) {
					return nil, malformed(itemPath+".source", "must be a string, got %s", kindName(source))
				}
				mount.Source = source
			}

			mounts = append(mounts, mount)
		default:
			return nil, malformed(itemPath, "must be a string or a mapping, got %s", kindName(item))
		}
	}

	return mounts, nil
}

func parseDependsOn(path string, value *yaml.Node) (DependsOn, error) {
	switch {
	case isNull(value):
		return DependsOn{}, nil
	case value.Kind == yaml.SequenceNode:
		names, err := parseNames(path, value)
		if err != nil {
			return DependsOn{}, err
		}

		return DependsOn{Shape: ShapeSequence, Services: names}, nil
	case value.Kind == yaml.MappingNode:
		deps := DependsOn{Shape: ShapeMapping}
		for i := 0; i+1 < len(value.Content); i += 2 {
			deps.Services = append(deps.Services, value.Content[i])
		}

		return deps, nil
	default:
		return DependsOn{}, malformed(path, "must be a sequence or a mapping, got %s", kindName(value))
	}
}

func parseExtends(path string, value *yaml.Node) (*Extends, error) {
	switch {
	case isNull(value):
		return nil, nil
	case isScalar(value):
		return &Extends{Service: value}, nil
	case value.Kind == yaml.MappingNode:
		_, service := lookup(value, "service")
		if !isScalar(service) {
			return nil, malformed(path+".service", "must be a service name, got %s", kindName(service))
		}

		extends := &Extends{Service: service}

		_, file := lookup(value, "file")
		if !isNull(file) {
			if !isScalar(file) {
				return nil, malformed(path+".file", "must be a string, got %s", kindName(file))
			}
			extends.File = file.Value
		}

		return extends, nil
	default:
		return nil, malformed(path, "must be a service name or a mapping, got %s", kindName(value))
	}
}

func parseFileReferences(path string, value *yaml.Node) ([]FileReference, error) {
	if isNull(value) {
		return nil, nil
	}
	if value.Kind != yaml.SequenceNode {
		return nil, malformed(path, "must be a sequence, got %s", kindName(value))
	}

	refs := make([]FileReference, 0, len(value.Content))
	for i, item := range value.Content {
		itemPath := fmt.Sprintf("%s[%d]", path, i)

		switch {
		case isScalar(item):
			refs = append(refs, FileReference{Source: item})
		case item.Kind == yaml.MappingNode:
			_, source := lookup(item, "source")
			if !isScalar(source) {
				return nil, malformed(itemPath+".source", "must be a name, got %s", kindName(source))
			}

			refs = append(refs, FileReference{Source: source})
		default:
			return nil, malformed(itemPath, "must be a string or a mapping, got %s", kindName(item))
		}
	}

	return refs, nil
}

func parseNames(path string, value *yaml.Node) ([]*yaml.Node, error) {
	if isNull(value) {
		return nil, nil
	}
	if value.Kind != yaml.SequenceNode {
		return nil, malformed(path, "must be a sequence, got %s", kindName(value))
	}

	for i, item := range value.Content {
		if !isScalar(item) || strings.TrimSpace(item.Value) == "" {
			return nil, malformed(fmt.Sprintf("%s[%d]", path, i), "must be a name, got %s", kindName(item))
		}
	}

	return value.Content, nil
}
