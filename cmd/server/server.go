package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver.
	"github.com/rs/zerolog/log"

	"github.com/jspdown/deckhand/app"
	"github.com/jspdown/deckhand/db/migrations"
	"github.com/jspdown/deckhand/internal/command"
	"github.com/jspdown/deckhand/internal/deploy"
	"github.com/jspdown/deckhand/internal/network"
	"github.com/jspdown/deckhand/internal/orchestrator"
	"github.com/jspdown/deckhand/internal/simulation"
	"github.com/jspdown/deckhand/internal/traefik"
)

// Config holds the Server configuration.
type Config struct {
	Addr               string
	DatabaseConnString string

	// SimulationTimeout defines how long a routing simulation is allowed to run.
	SimulationTimeout time.Duration
	// SimulationIsolated runs simulations in a sandbox.
	SimulationIsolated bool

	// MaxPendingCommands defines the size of the spawner command queue.
	MaxPendingCommands int
	// MaxProcesses defines the number of simultaneous processes executing spawner commands.
	MaxProcesses int

	// Deploy enables the deployment endpoints.
	Deploy bool
	// DeployTimeout defines how long a docker command is allowed to run.
	DeployTimeout time.Duration
	// ValidateDeployments loads prepared compose files before deploying them.
	ValidateDeployments bool
}

// Server serves the deckhand API.
type Server struct {
	config Config
}

// New creates a new Server.
func New(config Config) (*Server, error) {
	if config.MaxPendingCommands < config.MaxProcesses {
		return nil, errors.New("max-pending-commands must be greater or equal to max-processes")
	}
	if config.SimulationTimeout < time.Second {
		return nil, errors.New("simulation-timeout must be at least 1s")
	}
	if config.Deploy && config.DeployTimeout < config.SimulationTimeout {
		return nil, errors.New("deploy-timeout must be greater or equal to simulation-timeout")
	}

	return &Server{
		config: config,
	}, nil
}

// Start starts the server.
func (s *Server) Start(ctx context.Context) error {
	// Initialize the database.
	db, err := sql.Open("postgres", s.config.DatabaseConnString)
	if err != nil {
		return fmt.Errorf("opening database connection: %w", err)
	}

	defer func() { _ = db.Close() }()

	version, err := migrations.Migrate(db)
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	log.Info().Uint("version", version).Msg("Database schema up to date")

	// Initialize handlers.
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}

	networks := network.NewStore(db)
	pool := command.NewWorkerPool(s.config.MaxProcesses, s.config.MaxPendingCommands)

	simulationRunner := simulation.NewProcess(pool, traefik.Executable{
		Path:     executable,
		Isolated: s.config.SimulationIsolated,
	}, s.config.SimulationTimeout)
	controller := simulation.NewController(simulationRunner)

	var deployer *deploy.Deployer
	if s.config.Deploy {
		engine, engineErr := network.NewDocker()
		if engineErr != nil {
			return engineErr
		}

		// Custom networks are looked up in the registry, then on the engine.
		registry := network.Chain{networks, engine}

		adapters := orchestrator.NewAdapters(orchestrator.NewPoolRunner(pool, s.config.DeployTimeout))
		deployer = deploy.NewDeployer(registry, adapters, s.config.ValidateDeployments)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", healthHandler(pool))

	app.New(controller, deployer, networks).MountOn(mux)

	// Start the server.
	server := &http.Server{
		Addr:         s.config.Addr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.writeTimeout(),
		IdleTimeout:  60 * time.Second,
		Handler:      withLogger(mux),
	}

	ctx, stopAll := context.WithCancel(ctx)
	defer stopAll()

	serverDoneCh := make(chan struct{})
	go func() {
		log.Info().Msgf("Starting server on %s...", s.config.Addr)
		if listenErr := server.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			log.Error().Err(listenErr).Msg("Failed to start server")
		}

		close(serverDoneCh)
	}()

	// Handle graceful server shutdown.
	select {
	case <-ctx.Done():
		// Attempt to gracefully shut down the server.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		log.Info().Msg("Shutting down server...")

		//nolint:contextcheck // context not inherited to give enough time for the shutdown.
		if err = server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")

			if err = server.Close(); err != nil {
				return fmt.Errorf("forcing shutdown: %w", err)
			}
		}

		log.Info().Msg("Successfully shutdown server...")
	case <-serverDoneCh:
		return errors.New("server stopped")
	}

	return nil
}

// writeTimeout leaves enough time to the slowest child process to complete.
func (s *Server) writeTimeout() time.Duration {
	timeout := s.config.SimulationTimeout
	if s.config.Deploy {
		timeout = s.config.DeployTimeout
	}

	return timeout + 10*time.Second
}

// withLogger attaches the global logger, enriched with the request, to the request context.
func withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		logger := log.With().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Logger()

		next.ServeHTTP(rw, req.WithContext(logger.WithContext(req.Context())))
	})
}

// healthHandler reports the load of the worker pool running child processes.
func healthHandler(pool *command.WorkerPool) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(rw).Encode(pool.Stats()); err != nil {
			log.Ctx(req.Context()).Error().Err(err).Msg("Unable to write health response")
		}
	})
}
