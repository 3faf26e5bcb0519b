// Package network resolves the shared networks deployments can be attached to.
package network

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrNotFound indicates that a network does not exist.
var ErrNotFound = errors.New("network not found")

// Network is a network deployments can join.
type Network struct {
	// ID is the opaque identifier users refer to the network with.
	ID string `json:"id"`
	// Name is the name of the network on the Docker engine.
	Name     string `json:"name"`
	Driver   string `json:"driver,omitempty"`
	Internal bool   `json:"internal,omitempty"`
}

// Registry resolves network identifiers.
type Registry interface {
	// FindNetworksByIDs returns the networks identified by ids, in the same order.
	// Unknown identifiers are reported with a MissingError.
	FindNetworksByIDs(ctx context.Context, ids []string) ([]Network, error)
}

// MissingError lists the network identifiers a Registry could not resolve.
type MissingError struct {
	IDs []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("networks not found: %s", strings.Join(e.IDs, ", "))
}

// Is makes every MissingError match ErrNotFound.
func (e *MissingError) Is(target error) bool {
	return target == ErrNotFound
}

// orderByIDs returns the networks found in the order of ids, skipping duplicated ids.
func orderByIDs(ids []string, found map[string]Network) ([]Network, error) {
	var (
		networks = make([]Network, 0, len(ids))
		missing  []string
		seen     = make(map[string]struct{}, len(ids))
	)
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		n, ok := found[id]
		if !ok {
			missing = append(missing, id)

			continue
		}

		networks = append(networks, n)
	}

	if len(missing) > 0 {
		return nil, &MissingError{IDs: missing}
	}

	return networks, nil
}

// Chain resolves identifiers with each registry in turn, asking the next registry only
// for the identifiers the previous ones could not resolve.
type Chain []Registry

// FindNetworksByIDs returns the networks identified by ids, in the same order.
func (c Chain) FindNetworksByIDs(ctx context.Context, ids []string) ([]Network, error) {
	found := make(map[string]Network, len(ids))

	remaining := ids
	for _, registry := range c {
		if len(remaining) == 0 {
			break
		}

		networks, err := registry.FindNetworksByIDs(ctx, remaining)

		var missingErr *MissingError
		switch {
		case errors.As(err, &missingErr):
			resolved := make([]string, 0, len(remaining))
			for _, id := range remaining {
				if !slices.Contains(missingErr.IDs, id) && !slices.Contains(resolved, id) {
					resolved = append(resolved, id)
				}
			}

			if len(resolved) > 0 {
				if networks, err = registry.FindNetworksByIDs(ctx, resolved); err != nil {
					return nil, err
				}
			}

			remaining = missingErr.IDs
		case err != nil:
			return nil, err
		default:
			remaining = nil
		}

		for _, n := range networks {
			found[n.ID] = n
		}
	}

	return orderByIDs(ids, found)
}
