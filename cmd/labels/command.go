package labels

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jspdown/deckhand/cmd/flags"
	"github.com/jspdown/deckhand/internal/traefik"
)

const flagEntrypoint = "entrypoint"

// NewCommand creates the labels CLI command.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "labels",
		Usage: "Prints the Traefik labels routing a domain, one per line",
		Flags: append(flags.Domain(true),
			&cli.StringSliceFlag{
				Name:  flagEntrypoint,
				Usage: "Entrypoints to print the labels of, defaults to web and websecure for HTTPS domains",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app := flags.App(cmd)
			if err := app.Validate(); err != nil {
				return err
			}

			d := flags.ReadDomain(cmd)
			if err := d.Validate(); err != nil {
				return err
			}

			entrypoints := cmd.StringSlice(flagEntrypoint)
			if len(entrypoints) == 0 {
				entrypoints = []string{traefik.EntrypointWeb}
				if d.HTTPS {
					entrypoints = append(entrypoints, traefik.EntrypointWebsecure)
				}
			}

			for _, entrypoint := range entrypoints {
				labels, err := traefik.DomainLabels(app, d, entrypoint)
				if err != nil {
					return fmt.Errorf("generating %s labels: %w", entrypoint, err)
				}

				for _, label := range labels {
					if _, err = fmt.Fprintln(os.Stdout, label); err != nil {
						return err
					}
				}
			}

			return nil
		},
	}
}
