package rewrite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	kyaml "sigs.k8s.io/yaml"

	"github.com/jspdown/deckhand/internal/compose"
	"github.com/jspdown/deckhand/internal/logger"
)

const (
	flagLogLevel = "log-level"
	flagFile     = "file"
	flagToken    = "token"
	flagMode     = "mode"
	flagNetwork  = "network"
	flagOutput   = "output"
	flagValidate = "validate"
	flagProject  = "project"
)

// Output formats.
const (
	outputYAML = "yaml"
	outputJSON = "json"
)

// NewCommand creates the rewrite CLI command.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "rewrite",
		Usage: "Rewrites a compose file so it cannot collide with other deployments of the same project",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "Log level (debug, info, error)",
				Value: "error",
			},
			&cli.StringFlag{
				Name:    flagFile,
				Aliases: []string{"f"},
				Usage:   "Compose file to rewrite, the standard input when empty or -",
			},
			&cli.StringFlag{
				Name:  flagToken,
				Usage: "Token appended to names, generated when empty",
			},
			&cli.StringFlag{
				Name:  flagMode,
				Usage: "Rewrite mode (suffix, isolated, isolated-volumes)",
				Value: compose.ModeSuffix.String(),
			},
			&cli.StringFlag{
				Name:  flagNetwork,
				Usage: "External network every service is attached to",
			},
			&cli.StringFlag{
				Name:  flagOutput,
				Usage: "Output format (yaml, json)",
				Value: outputYAML,
			},
			&cli.BoolFlag{
				Name:  flagValidate,
				Usage: "Load the rewritten file with the Compose loader before printing it",
			},
			&cli.StringFlag{
				Name:  flagProject,
				Usage: "Project name used for validation",
				Value: "deckhand",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := logger.Configure(cmd.String(flagLogLevel), logger.FormatConsole); err != nil {
				return err
			}

			mode, err := compose.ParseMode(cmd.String(flagMode))
			if err != nil {
				return err
			}

			output := cmd.String(flagOutput)
			if output != outputYAML && output != outputJSON {
				return fmt.Errorf("unsupported output %q, must be one of [%s, %s]", output, outputYAML, outputJSON)
			}

			data, err := readInput(cmd.String(flagFile))
			if err != nil {
				return err
			}

			token := cmd.String(flagToken)
			if token == "" {
				token = compose.GenerateToken()
			}

			doc, err := rewrite(data, token, mode, cmd.String(flagNetwork))
			if err != nil {
				return err
			}

			if cmd.Bool(flagValidate) {
				if err = compose.Validate(ctx, doc, cmd.String(flagProject)); err != nil {
					return err
				}
			}

			out, err := doc.Marshal()
			if err != nil {
				return err
			}

			if output == outputJSON {
				if out, err = kyaml.YAMLToJSON(out); err != nil {
					return fmt.Errorf("converting to JSON: %w", err)
				}
				out = append(out, '\n')
			}

			log.Debug().Str("token", token).Stringer("mode", mode).Msg("Compose file rewritten")

			_, err = os.Stdout.Write(out)

			return err
		},
	}
}

func rewrite(data []byte, token string, mode compose.Mode, network string) (*compose.Document, error) {
	doc, err := compose.Parse(data)
	if err != nil {
		return nil, err
	}

	if doc, err = compose.Rewrite(doc, token, mode); err != nil {
		return nil, err
	}

	if network == "" {
		return doc, nil
	}

	if doc, err = compose.AddNetworkToRoot(doc, network); err != nil {
		return nil, err
	}

	return compose.AddNetworkToServices(doc, network)
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading standard input: %w", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("compose file %q does not exist", path)
	} else if err != nil {
		return nil, fmt.Errorf("reading compose file: %w", err)
	}

	return data, nil
}
