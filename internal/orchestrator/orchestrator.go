// Package orchestrator hands deployments over to the container engine.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/jspdown/deckhand/internal/domain"
)

// ErrUnsupported indicates that no adapter handles a compose type.
var ErrUnsupported = errors.New("unsupported compose type")

// Spec is a deployment ready to be handed to an orchestrator.
type Spec struct {
	// Project is the name the deployment is known as by the engine.
	Project string
	// Compose is the serialized, already rewritten, compose document.
	Compose []byte
}

// Adapter exposes the lifecycle operations of deployments.
type Adapter interface {
	Deploy(ctx context.Context, spec Spec) error
	Remove(ctx context.Context, project string) error
	Scale(ctx context.Context, spec Spec, service string, replicas int) error
	Logs(ctx context.Context, project, service string) ([]byte, error)
}

// Runner runs a process to completion and returns its standard output.
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// Adapters selects the adapter of a compose type.
type Adapters map[domain.ComposeType]Adapter

// NewAdapters returns the Docker Compose and Docker Swarm adapters sharing a runner.
func NewAdapters(runner Runner) Adapters {
	return Adapters{
		domain.ComposeTypeCompose: NewCompose(runner),
		domain.ComposeTypeStack:   NewStack(runner),
	}
}

// For returns the adapter of the given compose type. Docker Compose is the default.
func (a Adapters) For(composeType domain.ComposeType) (Adapter, error) {
	if composeType == "" {
		composeType = domain.ComposeTypeCompose
	}

	adapter, ok := a[composeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, composeType)
	}

	return adapter, nil
}
