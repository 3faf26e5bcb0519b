package compose

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// PlatformNetwork is the shared ingress network every deployment can reach.
const PlatformNetwork = "dokploy-network"

// protectedNetworks lists the network names never renamed, whatever the token.
var protectedNetworks = map[string]struct{}{
	PlatformNetwork: {},
}

// tokenPattern matches the characters Docker accepts in object names.
var tokenPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Mode selects how Rewrite keeps deployments of the same project apart.
type Mode int

// List of rewrite modes.
const (
	// ModeSuffix appends the token to every name of every namespace.
	ModeSuffix Mode = iota
	// ModeIsolated keeps names and attaches every service to a network named after the token.
	ModeIsolated
	// ModeIsolatedVolumes behaves like ModeIsolated and also suffixes volume names.
	ModeIsolatedVolumes
)

var modeNames = map[Mode]string{
	ModeSuffix:          "suffix",
	ModeIsolated:        "isolated",
	ModeIsolatedVolumes: "isolated-volumes",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}

	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode from its name.
func ParseMode(s string) (Mode, error) {
	for mode, name := range modeNames {
		if name == s {
			return mode, nil
		}
	}

	return 0, fmt.Errorf("unknown rewrite mode %q", s)
}

// GenerateToken returns a random 8 characters token.
func GenerateToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// RenameTable maps the names of one namespace to their rewritten form.
type RenameTable map[string]string

func newRenameTable(defs []*Definition, token string, protected map[string]struct{}) RenameTable {
	table := make(RenameTable, len(defs))
	for _, def := range defs {
		name := def.Name()
		if _, ok := protected[name]; ok {
			continue
		}

		table[name] = suffix(name, token)
	}

	return table
}

// Lookup returns the rewritten form of name, if name belongs to the namespace.
func (t RenameTable) Lookup(name string) (string, bool) {
	newName, ok := t[name]

	return newName, ok
}

// Tables holds a rename table per namespace. A nil table renames nothing.
type Tables struct {
	Services RenameTable
	Networks RenameTable
	Volumes  RenameTable
	Configs  RenameTable
	Secrets  RenameTable
}

// NewTables builds the rename tables of the given sections of a model.
func NewTables(m *Model, token string, sections ...string) Tables {
	var t Tables
	for _, section := range sections {
		switch section {
		case SectionServices:
			defs := make([]*Definition, 0, len(m.Services))
			for _, s := range m.Services {
				defs = append(defs, &Definition{Key: s.Key, Value: s.Node})
			}
			t.Services = newRenameTable(defs, token, nil)
		case SectionNetworks:
			t.Networks = newRenameTable(m.Networks, token, protectedNetworks)
		case SectionVolumes:
			t.Volumes = newRenameTable(m.Volumes, token, nil)
		case SectionConfigs:
			t.Configs = newRenameTable(m.Configs, token, nil)
		case SectionSecrets:
			t.Secrets = newRenameTable(m.Secrets, token, nil)
		}
	}

	return t
}

// Rewrite returns a copy of doc where the deployment identified by token cannot
// collide with other deployments of the same project.
func Rewrite(doc *Document, token string, mode Mode) (*Document, error) {
	switch mode {
	case ModeSuffix:
		return RewriteAll(doc, token)
	case ModeIsolated, ModeIsolatedVolumes:
		return transform(doc, token, func(d *Document, m *Model) error {
			if mode == ModeIsolatedVolumes {
				rewriteVolumes(m, NewTables(m, token, SectionVolumes))
			}

			if err := d.DeclareExternalNetwork(token, token); err != nil {
				return err
			}

			return attachNetwork(m, token)
		})
	default:
		return nil, fmt.Errorf("unknown rewrite mode %d", int(mode))
	}
}

// RewriteAll suffixes the names of every namespace and updates every reference.
func RewriteAll(doc *Document, token string) (*Document, error) {
	return transform(doc, token, func(_ *Document, m *Model) error {
		t := NewTables(m, token, SectionServices, SectionNetworks, SectionVolumes, SectionConfigs, SectionSecrets)

		rewriteServices(m, t, token)
		rewriteVolumes(m, t)
		rewriteNetworks(m, t)
		rewriteConfigsAndSecrets(m, t)

		return nil
	})
}

// RewriteServiceNames suffixes service names and container names, and updates
// depends_on, links, volumes_from and extends references.
func RewriteServiceNames(doc *Document, token string) (*Document, error) {
	return transform(doc, token, func(_ *Document, m *Model) error {
		rewriteServices(m, NewTables(m, token, SectionServices), token)

		return nil
	})
}

// RewriteVolumeNames suffixes root volume names and updates the named volume
// mounts of every service. Host paths are left untouched.
func RewriteVolumeNames(doc *Document, token string) (*Document, error) {
	return transform(doc, token, func(_ *Document, m *Model) error {
		rewriteVolumes(m, NewTables(m, token, SectionVolumes))

		return nil
	})
}

// RewriteNetworkNames suffixes root network names, except the platform network,
// and updates the networks of every service. Aliases are only rewritten against
// service names, which are left untouched here.
func RewriteNetworkNames(doc *Document, token string) (*Document, error) {
	return transform(doc, token, func(_ *Document, m *Model) error {
		rewriteNetworks(m, NewTables(m, token, SectionNetworks))

		return nil
	})
}

// RewriteConfigsAndSecrets suffixes root config and secret names and updates the
// config and secret sources of every service.
func RewriteConfigsAndSecrets(doc *Document, token string) (*Document, error) {
	return transform(doc, token, func(_ *Document, m *Model) error {
		rewriteConfigsAndSecrets(m, NewTables(m, token, SectionConfigs, SectionSecrets))

		return nil
	})
}

// transform applies fn on a copy of doc. The copy is discarded when fn fails.
func transform(doc *Document, token string, fn func(*Document, *Model) error) (*Document, error) {
	if err := ValidateToken(token); err != nil {
		return nil, err
	}

	d := doc.Clone()

	m, err := d.Model()
	if err != nil {
		return nil, err
	}

	if err = fn(d, m); err != nil {
		return nil, err
	}

	return d, nil
}

// ValidateToken checks that token can be appended to Docker object names.
func ValidateToken(token string) error {
	if !tokenPattern.MatchString(token) {
		return fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}

	return nil
}

func rewriteServices(m *Model, t Tables, token string) {
	for _, s := range m.Services {
		if isScalar(s.ContainerName) {
			rename(s.ContainerName, suffix(s.ContainerName.Value, token))
		}

		for _, dep := range s.DependsOn.Services {
			renameRef(dep, t.Services)
		}

		for _, link := range s.Links {
			renamePrefix(link, ":", t.Services)
		}

		for _, from := range s.VolumesFrom {
			// Containers outside the project are referenced with the "container:" prefix.
			if strings.HasPrefix(from.Value, "container:") {
				continue
			}

			renamePrefix(from, ":", t.Services)
		}

		// Bases living in another file are out of the document.
		if s.Extends != nil && s.Extends.File == "" {
			renameRef(s.Extends.Service, t.Services)
		}
	}

	for _, s := range m.Services {
		renameRef(s.Key, t.Services)
	}
}

func rewriteVolumes(m *Model, t Tables) {
	for _, def := range m.Volumes {
		renameRef(def.Key, t.Volumes)
	}

	for _, s := range m.Services {
		for _, mount := range s.Volumes {
			switch mount.Kind {
			case MountShort:
				renameShortMount(mount.Source, t.Volumes)
			case MountLong:
				if mount.Type == "volume" && mount.Source != nil {
					renameRef(mount.Source, t.Volumes)
				}
			}
		}
	}
}

func rewriteNetworks(m *Model, t Tables) {
	for _, def := range m.Networks {
		renameRef(def.Key, t.Networks)
	}

	for _, s := range m.Services {
		for _, attachment := range s.Networks.Attachments {
			renameRef(attachment.Name, t.Networks)

			for _, alias := range attachment.Aliases {
				renameRef(alias, t.Services)
			}
		}
	}
}

func rewriteConfigsAndSecrets(m *Model, t Tables) {
	for _, def := range m.Configs {
		renameRef(def.Key, t.Configs)
	}
	for _, def := range m.Secrets {
		renameRef(def.Key, t.Secrets)
	}

	for _, s := range m.Services {
		for _, ref := range s.Configs {
			renameRef(ref.Source, t.Configs)
		}
		for _, ref := range s.Secrets {
			renameRef(ref.Source, t.Secrets)
		}
	}
}

// renameRef renames a reference site when it names an entry of the table.
func renameRef(n *yaml.Node, table RenameTable) {
	if !isScalar(n) {
		return
	}

	if newName, ok := table.Lookup(n.Value); ok {
		rename(n, newName)
	}
}

// renamePrefix renames the part of a reference site found before sep, as in
// "service:alias" links or "service:ro" volumes_from entries.
func renamePrefix(n *yaml.Node, sep string, table RenameTable) {
	name, rest, found := strings.Cut(n.Value, sep)
	if found {
		rest = sep + rest
	}

	if newName, ok := table.Lookup(name); ok {
		rename(n, newName+rest)
	}
}

// renameShortMount renames the volume referenced by a "source:target[:mode]" mount.
// A source may point to a sub-directory of a volume, as in "data/logs:/logs".
func renameShortMount(n *yaml.Node, table RenameTable) {
	source, target, found := strings.Cut(n.Value, ":")
	if !found || isHostPath(source) {
		return
	}

	name, subPath, _ := strings.Cut(source, "/")
	if subPath != "" || strings.HasSuffix(source, "/") {
		subPath = "/" + subPath
	}

	if newName, ok := table.Lookup(name); ok {
		rename(n, newName+subPath+":"+target)
	}
}

func isHostPath(source string) bool {
	return source == "" || strings.HasPrefix(source, ".") ||
		strings.HasPrefix(source, "/") || strings.HasPrefix(source, "~")
}

func suffix(name, token string) string {
	return name + "-" + token
}
