package app

import (
	"fmt"
	"net/http"

	"github.com/jspdown/deckhand/internal/network"
)

type createNetworkRequest struct {
	Name     string `json:"name"`
	Driver   string `json:"driver,omitempty"`
	Internal bool   `json:"internal,omitempty"`
}

// ListNetworks lists the registered networks.
func (a *App) ListNetworks(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	networks, err := a.networks.List(ctx)
	if err != nil {
		writeError(ctx, rw, err)

		return
	}

	if networks == nil {
		networks = []network.Network{}
	}

	writeJSON(ctx, rw, http.StatusOK, networks)
}

// CreateNetwork registers a network deployments can be attached to.
func (a *App) CreateNetwork(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var payload createNetworkRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeError(ctx, rw, err)

		return
	}

	if payload.Name == "" {
		writeError(ctx, rw, fmt.Errorf("%w: name is required", errBadRequest))

		return
	}
	if payload.Driver == "" {
		payload.Driver = "bridge"
	}

	n, err := a.networks.Create(ctx, payload.Name, payload.Driver, payload.Internal)
	if err != nil {
		writeError(ctx, rw, err)

		return
	}

	writeJSON(ctx, rw, http.StatusCreated, n)
}

// GetNetwork serves a registered network.
func (a *App) GetNetwork(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	n, err := a.networks.Get(ctx, req.PathValue("id"))
	if err != nil {
		writeError(ctx, rw, err)

		return
	}

	writeJSON(ctx, rw, http.StatusOK, n)
}

// DeleteNetwork unregisters a network.
func (a *App) DeleteNetwork(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	if err := a.networks.Delete(ctx, req.PathValue("id")); err != nil {
		writeError(ctx, rw, err)

		return
	}

	rw.WriteHeader(http.StatusNoContent)
}
