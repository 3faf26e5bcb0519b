package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/jspdown/deckhand/cmd/labels"
	"github.com/jspdown/deckhand/cmd/rewrite"
	"github.com/jspdown/deckhand/cmd/route"
	"github.com/jspdown/deckhand/cmd/server"
)

func main() {
	app := &cli.Command{
		Name:  "deckhand",
		Usage: "Collision-free compose deployments routed by Traefik",
		Commands: []*cli.Command{
			server.NewCommand(),
			rewrite.NewCommand(),
			labels.NewCommand(),
			route.NewCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if err := app.Run(ctx, os.Args); err != nil {
		stop()
		log.Fatal().Err(err).Send()
	}

	stop()
}
