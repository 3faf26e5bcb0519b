package orchestrator

import (
	"context"
	"fmt"
	"strconv"
)

var _ Adapter = (*Stack)(nil)

// Stack deploys projects as Docker Swarm stacks. Swarm services are named "{project}_{service}".
type Stack struct {
	runner Runner
}

// NewStack creates a new Stack adapter.
func NewStack(runner Runner) *Stack {
	return &Stack{runner: runner}
}

// Deploy creates or updates the stack.
func (s *Stack) Deploy(ctx context.Context, spec Spec) error {
	if _, err := s.runner.Run(ctx, spec.Compose, "docker", "stack", "deploy",
		"--compose-file", "-", "--prune", "--with-registry-auth", spec.Project); err != nil {
		return fmt.Errorf("deploying stack %q: %w", spec.Project, err)
	}

	return nil
}

// Remove removes the stack.
func (s *Stack) Remove(ctx context.Context, project string) error {
	if _, err := s.runner.Run(ctx, nil, "docker", "stack", "rm", project); err != nil {
		return fmt.Errorf("removing stack %q: %w", project, err)
	}

	return nil
}

// Scale sets the number of replicas of a service.
func (s *Stack) Scale(ctx context.Context, spec Spec, service string, replicas int) error {
	name := spec.Project + "_" + service
	if _, err := s.runner.Run(ctx, nil, "docker", "service", "scale", "--detach", name+"="+strconv.Itoa(replicas)); err != nil {
		return fmt.Errorf("scaling service %q: %w", name, err)
	}

	return nil
}

// Logs returns the logs of a service.
func (s *Stack) Logs(ctx context.Context, project, service string) ([]byte, error) {
	name := project + "_" + service

	out, err := s.runner.Run(ctx, nil, "docker", "service", "logs", "--no-task-ids", "--tail", "1000", name)
	if err != nil {
		return nil, fmt.Errorf("reading logs of service %q: %w", name, err)
	}

	return out, nil
}
