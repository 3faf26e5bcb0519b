// Package command runs child processes on a bounded pool of workers.
package command

import (
	"context"
	"os/exec"
	"time"
)

// Command can be executed.
type Command interface {
	Exec(ctx context.Context) error
}

// Func adapts a function to the Command interface.
type Func func(ctx context.Context) error

// Exec calls f.
func (f Func) Exec(ctx context.Context) error {
	return f(ctx)
}

// Timeout returns a Command running cmd with a deadline of d.
func Timeout(cmd Command, d time.Duration) Command {
	return Func(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		return cmd.Exec(ctx)
	})
}

// MountPoint is a host directory exposed, read-only, inside a Sandbox.
type MountPoint struct {
	Host   string
	Target string
}

// Sandbox describes a BubbleWrap sandbox. Processes started in it share no namespace
// with the host and see an empty environment.
type Sandbox struct {
	MountPoints []MountPoint
}

func (s *Sandbox) args(name string, args []string) []string {
	bwrapArgs := make([]string, 0, 3*len(s.MountPoints)+4+len(args))
	for _, mountPoint := range s.MountPoints {
		bwrapArgs = append(bwrapArgs, "--ro-bind", mountPoint.Host, mountPoint.Target)
	}
	bwrapArgs = append(bwrapArgs, "--unshare-all", "--clearenv", "--new-session", name)

	return append(bwrapArgs, args...)
}

// NewProcess creates the process running name with args, inside sandbox when not nil.
func NewProcess(ctx context.Context, sandbox *Sandbox, name string, args ...string) *exec.Cmd {
	if sandbox == nil {
		return exec.CommandContext(ctx, name, args...) //nolint:gosec // Args are sanitized.
	}

	return exec.CommandContext(ctx, "bwrap", sandbox.args(name, args)...) //nolint:gosec // Args are sanitized.
}
