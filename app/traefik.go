package app

import (
	"bytes"
	"net/http"

	"github.com/jspdown/deckhand/internal/domain"
	"github.com/jspdown/deckhand/internal/simulation"
	"github.com/jspdown/deckhand/internal/traefik"
)

type labelsRequest struct {
	domain.App

	Domain domain.Domain `json:"domain"`
}

type labelsResponse struct {
	Web       []string `json:"web"`
	Websecure []string `json:"websecure,omitempty"`
}

// Labels responds with the Traefik labels routing a domain, per entrypoint.
func (a *App) Labels(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var payload labelsRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeError(ctx, rw, err)

		return
	}

	if err := payload.App.Validate(); err != nil {
		writeError(ctx, rw, err)

		return
	}
	if err := payload.Domain.Validate(); err != nil {
		writeError(ctx, rw, err)

		return
	}

	var (
		res labelsResponse
		err error
	)
	if res.Web, err = traefik.DomainLabels(payload.App, payload.Domain, traefik.EntrypointWeb); err != nil {
		writeError(ctx, rw, err)

		return
	}

	if payload.Domain.HTTPS {
		if res.Websecure, err = traefik.DomainLabels(payload.App, payload.Domain, traefik.EntrypointWebsecure); err != nil {
			writeError(ctx, rw, err)

			return
		}
	}

	writeJSON(ctx, rw, http.StatusOK, res)
}

type routerRequest struct {
	domain.App

	Domains     []domain.Domain    `json:"domains"`
	ComposeType domain.ComposeType `json:"composeType,omitempty"`
}

// Router responds with the file provider configuration routing the domains of an application.
func (a *App) Router(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var payload routerRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeError(ctx, rw, err)

		return
	}

	if err := payload.App.Validate(); err != nil {
		writeError(ctx, rw, err)

		return
	}

	app, err := traefik.HashCredentials(payload.App)
	if err != nil {
		writeError(ctx, rw, err)

		return
	}

	cfg := traefik.NewConfig()
	for _, d := range payload.Domains {
		if err := d.Validate(); err != nil {
			writeError(ctx, rw, err)

			return
		}

		if err := traefik.ManageDomain(cfg, app, d, payload.ComposeType); err != nil {
			writeError(ctx, rw, err)

			return
		}
	}

	var buf bytes.Buffer
	if err := traefik.WriteConfig(&buf, cfg); err != nil {
		writeError(ctx, rw, err)

		return
	}

	writeYAML(ctx, rw, buf.Bytes())
}

// Simulate routes a request through the routing generated for the domains of an application.
func (a *App) Simulate(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var sim simulation.Simulation
	if err := decodeJSON(req, &sim); err != nil {
		writeError(ctx, rw, err)

		return
	}

	res, err := a.controller.Run(ctx, sim)
	if err != nil {
		writeError(ctx, rw, err)

		return
	}

	writeJSON(ctx, rw, http.StatusOK, res)
}
