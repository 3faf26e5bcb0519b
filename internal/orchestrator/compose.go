package orchestrator

import (
	"context"
	"fmt"
	"strconv"
)

var _ Adapter = (*Compose)(nil)

// Compose deploys projects with the docker compose CLI. The compose document is
// given on the standard input.
type Compose struct {
	runner Runner
}

// NewCompose creates a new Compose adapter.
func NewCompose(runner Runner) *Compose {
	return &Compose{runner: runner}
}

// Deploy creates or updates the project.
func (c *Compose) Deploy(ctx context.Context, spec Spec) error {
	if _, err := c.runner.Run(ctx, spec.Compose, "docker", "compose", "-p", spec.Project, "-f", "-",
		"up", "--detach", "--remove-orphans", "--quiet-pull"); err != nil {
		return fmt.Errorf("deploying project %q: %w", spec.Project, err)
	}

	return nil
}

// Remove stops and removes the containers and networks of the project.
func (c *Compose) Remove(ctx context.Context, project string) error {
	if _, err := c.runner.Run(ctx, nil, "docker", "compose", "-p", project, "down", "--remove-orphans"); err != nil {
		return fmt.Errorf("removing project %q: %w", project, err)
	}

	return nil
}

// Scale sets the number of containers of a service.
func (c *Compose) Scale(ctx context.Context, spec Spec, service string, replicas int) error {
	if _, err := c.runner.Run(ctx, spec.Compose, "docker", "compose", "-p", spec.Project, "-f", "-",
		"up", "--detach", "--no-recreate", "--scale", service+"="+strconv.Itoa(replicas), service); err != nil {
		return fmt.Errorf("scaling service %q of project %q: %w", service, spec.Project, err)
	}

	return nil
}

// Logs returns the logs of a service.
func (c *Compose) Logs(ctx context.Context, project, service string) ([]byte, error) {
	out, err := c.runner.Run(ctx, nil, "docker", "compose", "-p", project, "logs", "--no-color", "--tail", "1000", service)
	if err != nil {
		return nil, fmt.Errorf("reading logs of service %q of project %q: %w", service, project, err)
	}

	return out, nil
}
