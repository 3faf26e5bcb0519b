package deploy

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jspdown/deckhand/internal/compose"
	"github.com/jspdown/deckhand/internal/domain"
	"github.com/jspdown/deckhand/internal/network"
	"github.com/jspdown/deckhand/internal/orchestrator"
)

// Deployer prepares deployments and hands them over to the orchestrator of their compose type.
type Deployer struct {
	registry network.Registry
	adapters orchestrator.Adapters

	// validate loads prepared documents with the compose loader before deploying them.
	validate bool
}

// NewDeployer creates a new Deployer.
func NewDeployer(registry network.Registry, adapters orchestrator.Adapters, validate bool) *Deployer {
	return &Deployer{
		registry: registry,
		adapters: adapters,
		validate: validate,
	}
}

// Deploy prepares and deploys the project of the given input.
func (d *Deployer) Deploy(ctx context.Context, in Input) (*Result, error) {
	adapter, err := d.adapters.For(in.ComposeType)
	if err != nil {
		return nil, err
	}

	res, err := Prepare(ctx, in, d.registry)
	if err != nil {
		return nil, err
	}

	if d.validate {
		if err = compose.Validate(ctx, res.Document, in.AppName); err != nil {
			return nil, err
		}
	}

	data, err := res.Document.Marshal()
	if err != nil {
		return nil, fmt.Errorf("serializing compose file: %w", err)
	}

	if err = adapter.Deploy(ctx, orchestrator.Spec{Project: in.AppName, Compose: data}); err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("app", in.AppName).
		Str("composeType", string(in.ComposeType)).
		Int("domains", len(in.Domains)).
		Msg("Project deployed")

	return res, nil
}

// Remove removes the project of an application.
func (d *Deployer) Remove(ctx context.Context, appName string, composeType domain.ComposeType) error {
	adapter, err := d.adapters.For(composeType)
	if err != nil {
		return err
	}

	return adapter.Remove(ctx, appName)
}

// Scale sets the number of replicas of a service of a deployed project. The input must be
// the one the project was deployed with, including its suffix, and service is the name
// written in its compose file.
func (d *Deployer) Scale(ctx context.Context, in Input, service string, replicas int) error {
	if replicas < 0 {
		return fmt.Errorf("%w: replicas must be positive", ErrInvalidInput)
	}
	if in.Randomize && in.Suffix == "" {
		return fmt.Errorf("%w: suffix is required to scale a randomized project", ErrInvalidInput)
	}

	adapter, err := d.adapters.For(in.ComposeType)
	if err != nil {
		return err
	}

	res, err := Prepare(ctx, in, d.registry)
	if err != nil {
		return err
	}

	name := service
	if in.Randomize && !in.Isolated {
		name += "-" + res.Suffix
	}
	if !res.Document.HasService(name) {
		return fmt.Errorf("%w: %q", compose.ErrUnknownService, service)
	}

	data, err := res.Document.Marshal()
	if err != nil {
		return fmt.Errorf("serializing compose file: %w", err)
	}

	if err = adapter.Scale(ctx, orchestrator.Spec{Project: in.AppName, Compose: data}, name, replicas); err != nil {
		return err
	}

	log.Ctx(ctx).Info().
		Str("app", in.AppName).
		Str("service", name).
		Int("replicas", replicas).
		Msg("Service scaled")

	return nil
}

// Logs returns the logs of a service of a deployed project, service being its deployed name.
func (d *Deployer) Logs(ctx context.Context, appName string, composeType domain.ComposeType, service string) ([]byte, error) {
	adapter, err := d.adapters.For(composeType)
	if err != nil {
		return nil, err
	}

	return adapter.Logs(ctx, appName, service)
}
