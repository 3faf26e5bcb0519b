package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/traefik/traefik/v3/pkg/config/dynamic"

	"github.com/jspdown/deckhand/internal/command"
	"github.com/jspdown/deckhand/internal/traefik"
)

// ErrRunTimeout indicates that the simulation has timed out.
var ErrRunTimeout = errors.New("timed out while waiting for response")

// Runner routes requests through a simulated Traefik instance.
type Runner interface {
	Run(ctx context.Context, config *dynamic.Configuration, entrypoint string, req *http.Request) (*http.Response, []traefik.Log, error)
}

// Controller runs Simulations.
type Controller struct {
	runner Runner
}

// NewController creates a new Controller.
func NewController(runner Runner) *Controller {
	return &Controller{runner: runner}
}

// Run runs the given simulation.
func (c *Controller) Run(ctx context.Context, sim Simulation) (Result, error) {
	if err := sim.Validate(); err != nil {
		return Result{}, err
	}

	config, err := sim.Config()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	testReq := httptest.NewRequestWithContext(ctx, sim.Request.Method, sim.Request.URL, strings.NewReader(sim.Request.Body))
	for name, values := range sim.Request.Headers {
		testReq.Header[name] = values
	}

	res, logs, err := c.runner.Run(ctx, config, traefik.EntrypointFor(testReq), testReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Result{}, ErrRunTimeout
		}

		return Result{}, fmt.Errorf("running simulation: %w", err)
	}

	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading simulation response body: %w", err)
	}

	return Result{
		Response: HTTPResponse{
			Proto:      res.Proto,
			StatusCode: res.StatusCode,
			Headers:    res.Header,
			Body:       body,
		},
		Logs: logs,
	}, nil
}

// Process runs simulations in child processes spawned on a worker pool.
type Process struct {
	workerPool *command.WorkerPool
	executable traefik.Executable
	timeout    time.Duration
}

// NewProcess creates a new Process runner.
// Timeout specifies how long to wait before canceling commands.
func NewProcess(workerPool *command.WorkerPool, executable traefik.Executable, timeout time.Duration) *Process {
	return &Process{
		workerPool: workerPool,
		executable: executable,
		timeout:    timeout,
	}
}

// Run routes a request through a Simulator running in a child process.
func (p *Process) Run(ctx context.Context, config *dynamic.Configuration, entrypoint string, req *http.Request) (*http.Response, []traefik.Log, error) {
	cmd, err := traefik.NewCommand(p.executable, config, entrypoint, req)
	if err != nil {
		return nil, nil, fmt.Errorf("creating simulation command: %w", err)
	}

	if err = p.workerPool.Spawn(ctx, command.Timeout(cmd, p.timeout)); err != nil {
		return nil, nil, err
	}

	res, logs, err := cmd.Result()
	if err != nil {
		return nil, logs, fmt.Errorf("getting simulation result: %w", err)
	}

	return res, logs, nil
}

// InProcess runs simulations in the current process. It produces no logs.
type InProcess struct {
	timeout time.Duration
}

// NewInProcess creates a new InProcess runner.
func NewInProcess(timeout time.Duration) *InProcess {
	return &InProcess{timeout: timeout}
}

// Run routes a request through a Simulator.
func (p *InProcess) Run(ctx context.Context, config *dynamic.Configuration, entrypoint string, req *http.Request) (*http.Response, []traefik.Log, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res, err := traefik.Simulate(ctx, config, entrypoint, req)
	if err != nil {
		return nil, nil, err
	}

	return res, nil, nil
}
