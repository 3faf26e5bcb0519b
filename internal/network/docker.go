package network

import (
	"context"
	"fmt"

	dockernetwork "github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

// Inspector inspects networks of a Docker engine.
type Inspector interface {
	NetworkInspect(ctx context.Context, networkID string, options dockernetwork.InspectOptions) (dockernetwork.Inspect, error)
}

// Docker resolves network identifiers against a Docker engine. Identifiers are
// engine network IDs or names.
type Docker struct {
	inspector Inspector
}

// NewDocker creates a Docker registry talking to the engine configured by the
// DOCKER_* environment variables.
func NewDocker() (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	return NewDockerWithInspector(cli), nil
}

// NewDockerWithInspector creates a Docker registry using the given Inspector.
func NewDockerWithInspector(inspector Inspector) *Docker {
	return &Docker{inspector: inspector}
}

// FindNetworksByIDs inspects every network identified by ids.
func (d *Docker) FindNetworksByIDs(ctx context.Context, ids []string) ([]Network, error) {
	found := make(map[string]Network, len(ids))
	for _, id := range ids {
		if _, ok := found[id]; ok {
			continue
		}

		res, err := d.inspector.NetworkInspect(ctx, id, dockernetwork.InspectOptions{})
		if errdefs.IsNotFound(err) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("inspecting network %q: %w", id, err)
		}

		found[id] = Network{
			ID:       id,
			Name:     res.Name,
			Driver:   res.Driver,
			Internal: res.Internal,
		}
	}

	return orderByIDs(ids, found)
}
