package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jspdown/deckhand/internal/command"
)

var _ Runner = (*PoolRunner)(nil)

// PoolRunner runs processes on a worker pool, bounding the number of concurrent
// engine invocations.
type PoolRunner struct {
	workerPool *command.WorkerPool
	timeout    time.Duration
}

// NewPoolRunner creates a new PoolRunner.
// Timeout specifies how long a process may run before being killed.
func NewPoolRunner(workerPool *command.WorkerPool, timeout time.Duration) *PoolRunner {
	return &PoolRunner{
		workerPool: workerPool,
		timeout:    timeout,
	}
}

// Run runs the process and returns its standard output.
func (r *PoolRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := &process{stdin: stdin, name: name, args: args}

	if err := r.workerPool.Spawn(ctx, command.Timeout(cmd, r.timeout)); err != nil {
		return nil, err
	}

	return cmd.stdout.Bytes(), nil
}

var _ command.Command = (*process)(nil)

type process struct {
	stdin []byte
	name  string
	args  []string

	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (p *process) Exec(ctx context.Context) error {
	logger := log.Ctx(ctx).With().Str("command", p.name+" "+strings.Join(p.args, " ")).Logger()

	cmd := command.NewProcess(ctx, nil, p.name, p.args...)
	if p.stdin != nil {
		cmd.Stdin = bytes.NewReader(p.stdin)
	}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	logger.Debug().Msg("Running command")

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Error().Err(err).Str("stderr", p.stderr.String()).Msg("Command has failed")

			return fmt.Errorf("%w: %s", err, strings.TrimSpace(p.stderr.String()))
		}

		return fmt.Errorf("running %s: %w", p.name, err)
	}

	return nil
}
