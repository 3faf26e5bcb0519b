package route

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ettle/strcase"
	"github.com/traefik/traefik/v3/pkg/config/dynamic"
	"github.com/urfave/cli/v3"

	"github.com/jspdown/deckhand/cmd/flags"
	"github.com/jspdown/deckhand/internal/logger"
	"github.com/jspdown/deckhand/internal/traefik"
)

const (
	flagLogLevel   = "log-level"
	flagRequest    = "request"
	flagEntrypoint = "entrypoint"
	flagTimeout    = "timeout"
)

// NewCommand creates the route CLI command.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name: "route",
		Usage: "Routes a request through the routing of a domain, or through a dynamic configuration " +
			"received on the standard input when no domain is given",
		Flags: append(flags.Domain(false),
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "Log level (debug, info, error)",
				Value: "INFO",
			},
			&cli.StringFlag{
				Name:     flagRequest,
				Usage:    "HTTP request to route",
				Sources:  cli.EnvVars(strcase.ToSNAKE(flagRequest)),
				Required: true,
			},
			&cli.StringFlag{
				Name:  flagEntrypoint,
				Usage: "Entrypoint receiving the request (web, websecure), guessed from the request when empty",
			},
			&cli.DurationFlag{
				Name:  flagTimeout,
				Usage: "Duration before the routing is canceled",
				Value: 2 * time.Second,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := logger.ConfigureTraefik(cmd.String(flagLogLevel)); err != nil {
				return err
			}

			dynamicConfig, err := readConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration(flagTimeout))
			defer cancel()

			req, err := http.ReadRequest(bufio.NewReader(strings.NewReader(cmd.String(flagRequest))))
			if err != nil {
				return fmt.Errorf("reading request: %w", err)
			}

			req = req.WithContext(ctx)

			entrypoint := cmd.String(flagEntrypoint)
			if entrypoint == "" {
				entrypoint = traefik.EntrypointFor(req)
			}

			res, err := traefik.Simulate(ctx, dynamicConfig, entrypoint, req)
			if err != nil {
				return err
			}

			defer func() { _ = res.Body.Close() }()

			return res.Write(os.Stdout)
		},
	}
}

// readConfig builds the configuration from the domain flags when set, otherwise reads
// it from the standard input.
func readConfig(cmd *cli.Command) (*dynamic.Configuration, error) {
	if !flags.IsSet(cmd) {
		dynamicConfig, err := traefik.LoadConfig(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("decoding dynamic configuration: %w", err)
		}

		return dynamicConfig, nil
	}

	app := flags.App(cmd)
	if err := app.Validate(); err != nil {
		return nil, err
	}

	d := flags.ReadDomain(cmd)
	if err := d.Validate(); err != nil {
		return nil, err
	}

	dynamicConfig := traefik.NewConfig()
	if err := traefik.ManageDomain(dynamicConfig, app, d, flags.ComposeType(cmd)); err != nil {
		return nil, err
	}

	return dynamicConfig, nil
}
