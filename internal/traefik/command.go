package traefik

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/traefik/traefik/v3/pkg/config/dynamic"

	"github.com/jspdown/deckhand/internal/command"
)

var _ command.Command = (*Command)(nil)

// Executable describes how to spawn the deckhand binary running simulations.
type Executable struct {
	Path string
	// Isolated runs the binary in a BubbleWrap sandbox.
	Isolated bool
}

// Command routes a request through a Simulator running in a child process. The child reads
// the configuration on its standard input and writes the response on its standard output.
type Command struct {
	executable Executable
	config     []byte
	entrypoint string
	request    *http.Request

	stdout bytes.Buffer
	stderr bytes.Buffer
}

// NewCommand creates a new Command.
func NewCommand(executable Executable, config *dynamic.Configuration, entrypoint string, req *http.Request) (*Command, error) {
	var buf bytes.Buffer
	if err := WriteConfig(&buf, config); err != nil {
		return nil, err
	}

	return &Command{
		executable: executable,
		config:     buf.Bytes(),
		entrypoint: entrypoint,
		request:    req,
	}, nil
}

// Exec executes the command.
func (c *Command) Exec(ctx context.Context) error {
	logger := log.Ctx(ctx).With().Str("entrypoint", c.entrypoint).Logger()

	reqBuffer := bytes.NewBuffer(nil)
	if err := c.request.Write(reqBuffer); err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	args := []string{"route",
		"--request", reqBuffer.String(),
		"--entrypoint", c.entrypoint,
		"--log-level=debug",
	}

	var sandbox *command.Sandbox
	if c.executable.Isolated {
		dir := filepath.Dir(c.executable.Path)
		sandbox = &command.Sandbox{MountPoints: []command.MountPoint{{Host: dir, Target: dir}}}
	}

	cmd := command.NewProcess(ctx, sandbox, c.executable.Path, args...)

	cmd.Stdin = bytes.NewReader(c.config)
	cmd.Stdout = &c.stdout
	cmd.Stderr = &c.stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Error().Err(err).
				Str("stderr", c.stderr.String()).
				Str("stdout", c.stdout.String()).
				Msg("Simulation has failed")

			fmt.Fprintf(&c.stderr, "\n\nsimulation failed with status %d", exitErr.ExitCode())

			return nil
		}

		return fmt.Errorf("running simulation: %w", err)
	}

	return nil
}

// Result returns the HTTP response and logs of the previously run command.
func (c *Command) Result() (*http.Response, []Log, error) {
	logs := ParseLogs(c.stderr.String())

	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(c.stdout.Bytes())), c.request)
	if err != nil {
		return nil, logs, fmt.Errorf("reading response: %w", err)
	}

	return res, logs, nil
}
