package app

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jspdown/deckhand/internal/compose"
	"github.com/jspdown/deckhand/internal/deploy"
	"github.com/jspdown/deckhand/internal/domain"
)

// Response headers reporting the token names were rewritten with.
const (
	headerToken  = "Deckhand-Token"
	headerSuffix = "Deckhand-Suffix"
)

// Rewrite rewrites the compose file sent as body so it cannot collide with other
// deployments of the same project.
func (a *App) Rewrite(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var query struct {
		Token   string `schema:"token"`
		Mode    string `schema:"mode"`
		Network string `schema:"network"`
	}
	if err := decodeQuery(req, &query); err != nil {
		writeError(ctx, rw, err)

		return
	}

	mode := compose.ModeSuffix
	if query.Mode != "" {
		var err error
		if mode, err = compose.ParseMode(query.Mode); err != nil {
			writeError(ctx, rw, fmt.Errorf("%w: %w", errBadRequest, err))

			return
		}
	}

	if query.Token == "" {
		query.Token = compose.GenerateToken()
	}

	body, err := readBody(req)
	if err != nil {
		writeError(ctx, rw, err)

		return
	}

	doc, err := compose.Parse(body)
	if err != nil {
		writeError(ctx, rw, err)

		return
	}

	if doc, err = compose.Rewrite(doc, query.Token, mode); err != nil {
		writeError(ctx, rw, err)

		return
	}

	if query.Network != "" {
		if doc, err = compose.AddNetworkToRoot(doc, query.Network); err != nil {
			writeError(ctx, rw, err)

			return
		}
		if doc, err = compose.AddNetworkToServices(doc, query.Network); err != nil {
			writeError(ctx, rw, err)

			return
		}
	}

	data, err := doc.Marshal()
	if err != nil {
		writeError(ctx, rw, err)

		return
	}

	log.Ctx(ctx).Debug().Str("token", query.Token).Stringer("mode", mode).Msg("Compose file rewritten")

	rw.Header().Set(headerToken, query.Token)
	writeYAML(ctx, rw, data)
}

// Prepare prepares a deployment without deploying it and responds with the resulting compose file.
func (a *App) Prepare(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var in deploy.Input
	if err := decodeJSON(req, &in); err != nil {
		writeError(ctx, rw, err)

		return
	}

	res, err := deploy.Prepare(ctx, in, a.registry())
	if err != nil {
		writeError(ctx, rw, err)

		return
	}

	data, err := res.Document.Marshal()
	if err != nil {
		writeError(ctx, rw, err)

		return
	}

	if res.Suffix != "" {
		rw.Header().Set(headerSuffix, res.Suffix)
	}
	writeYAML(ctx, rw, data)
}

type deployResponse struct {
	Suffix string `json:"suffix,omitempty"`
}

// Deploy prepares and deploys a project.
func (a *App) Deploy(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var in deploy.Input
	if err := decodeJSON(req, &in); err != nil {
		writeError(ctx, rw, err)

		return
	}

	res, err := a.deployer.Deploy(ctx, in)
	if err != nil {
		writeError(ctx, rw, err)

		return
	}

	writeJSON(ctx, rw, http.StatusCreated, deployResponse{Suffix: res.Suffix})
}

// Remove removes the project of an application.
func (a *App) Remove(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var query struct {
		ComposeType domain.ComposeType `schema:"composeType"`
	}
	if err := decodeQuery(req, &query); err != nil {
		writeError(ctx, rw, err)

		return
	}

	if err := a.deployer.Remove(ctx, req.PathValue("appName"), query.ComposeType); err != nil {
		writeError(ctx, rw, err)

		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

type scaleRequest struct {
	deploy.Input

	Service  string `json:"service"`
	Replicas int    `json:"replicas"`
}

// Scale sets the number of replicas of a service of a deployed project.
func (a *App) Scale(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var payload scaleRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeError(ctx, rw, err)

		return
	}

	if err := a.deployer.Scale(ctx, payload.Input, payload.Service, payload.Replicas); err != nil {
		writeError(ctx, rw, err)

		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

// Logs serves the logs of a service of a deployed project.
func (a *App) Logs(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var query struct {
		ComposeType domain.ComposeType `schema:"composeType"`
	}
	if err := decodeQuery(req, &query); err != nil {
		writeError(ctx, rw, err)

		return
	}

	logs, err := a.deployer.Logs(ctx, req.PathValue("appName"), query.ComposeType, req.PathValue("service"))
	if err != nil {
		writeError(ctx, rw, err)

		return
	}

	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.WriteHeader(http.StatusOK)

	if _, err = rw.Write(logs); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Unable to write response")
	}
}
