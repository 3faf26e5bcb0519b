package server

import (
	"context"
	"time"

	"github.com/ettle/strcase"
	"github.com/urfave/cli/v3"

	"github.com/jspdown/deckhand/internal/logger"
)

const (
	flagAddr                = "addr"
	flagLogLevel            = "log-level"
	flagLogFormat           = "log-format"
	flagDatabaseConnString  = "db"
	flagSimulationTimeout   = "simulation-timeout"
	flagSimulationIsolated  = "simulation-isolated"
	flagMaxProcesses        = "max-processes"
	flagMaxPendingCommands  = "max-pending-commands"
	flagDeploy              = "deploy"
	flagDeployTimeout       = "deploy-timeout"
	flagValidateDeployments = "validate-deployments"
)

// NewCommand creates the server CLI command.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Starts server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagAddr,
				Usage:    "Address to listen on",
				Sources:  cli.EnvVars(strcase.ToSNAKE(flagAddr)),
				Required: true,
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "Log level (debug, info, error)",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  flagLogFormat,
				Usage: "Log format (console, json)",
				Value: "json",
			},
			&cli.StringFlag{
				Name:     flagDatabaseConnString,
				Usage:    "Database connection string to a PostgreSQL database holding the network registry",
				Sources:  cli.EnvVars(strcase.ToSNAKE(flagDatabaseConnString)),
				Required: true,
			},
			&cli.DurationFlag{
				Name:    flagSimulationTimeout,
				Usage:   "Duration before a routing simulation is canceled",
				Sources: cli.EnvVars(strcase.ToSNAKE(flagSimulationTimeout)),
				Value:   2 * time.Second,
			},
			&cli.BoolFlag{
				Name:    flagSimulationIsolated,
				Usage:   "Run routing simulations in a BubbleWrap sandbox",
				Sources: cli.EnvVars(strcase.ToSNAKE(flagSimulationIsolated)),
			},
			&cli.IntFlag{
				Name:    flagMaxProcesses,
				Usage:   "Maximum number of concurrent child processes",
				Sources: cli.EnvVars(strcase.ToSNAKE(flagMaxProcesses)),
				Value:   100,
			},
			&cli.IntFlag{
				Name:    flagMaxPendingCommands,
				Usage:   "Maximum number commands that can be waiting to be executed",
				Sources: cli.EnvVars(strcase.ToSNAKE(flagMaxPendingCommands)),
				Value:   2000,
			},
			&cli.BoolFlag{
				Name:    flagDeploy,
				Usage:   "Enable the deployment endpoints, driving the local Docker engine",
				Sources: cli.EnvVars(strcase.ToSNAKE(flagDeploy)),
			},
			&cli.DurationFlag{
				Name:    flagDeployTimeout,
				Usage:   "Duration before a docker command is canceled",
				Sources: cli.EnvVars(strcase.ToSNAKE(flagDeployTimeout)),
				Value:   5 * time.Minute,
			},
			&cli.BoolFlag{
				Name:    flagValidateDeployments,
				Usage:   "Load prepared compose files with the Compose loader before deploying them",
				Sources: cli.EnvVars(strcase.ToSNAKE(flagValidateDeployments)),
				Value:   true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := logger.Configure(cmd.String(flagLogLevel), cmd.String(flagLogFormat)); err != nil {
				return err
			}

			s, err := New(Config{
				Addr:                cmd.String(flagAddr),
				DatabaseConnString:  cmd.String(flagDatabaseConnString),
				SimulationTimeout:   cmd.Duration(flagSimulationTimeout),
				SimulationIsolated:  cmd.Bool(flagSimulationIsolated),
				MaxPendingCommands:  cmd.Int(flagMaxPendingCommands),
				MaxProcesses:        cmd.Int(flagMaxProcesses),
				Deploy:              cmd.Bool(flagDeploy),
				DeployTimeout:       cmd.Duration(flagDeployTimeout),
				ValidateDeployments: cmd.Bool(flagValidateDeployments),
			})
			if err != nil {
				return err
			}

			return s.Start(ctx)
		},
	}
}
