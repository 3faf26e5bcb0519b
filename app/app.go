// Package app holds the definition of the HTTP API.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/rs/zerolog/log"

	"github.com/jspdown/deckhand/internal/compose"
	"github.com/jspdown/deckhand/internal/deploy"
	"github.com/jspdown/deckhand/internal/domain"
	"github.com/jspdown/deckhand/internal/network"
	"github.com/jspdown/deckhand/internal/orchestrator"
	"github.com/jspdown/deckhand/internal/simulation"
	"github.com/jspdown/deckhand/internal/traefik"
)

// maxBodySize bounds the size of request bodies.
const maxBodySize = 1 << 20

var schemaDecoder = newSchemaDecoder() //nolint:gochecknoglobals // Needed for caching.

func newSchemaDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)

	return d
}

// NetworkStore manages the networks deployments can be attached to.
type NetworkStore interface {
	network.Registry

	Create(ctx context.Context, name, driver string, internal bool) (network.Network, error)
	Get(ctx context.Context, id string) (network.Network, error)
	List(ctx context.Context) ([]network.Network, error)
	Delete(ctx context.Context, id string) error
}

// App is the HTTP API.
type App struct {
	controller *simulation.Controller
	deployer   *deploy.Deployer
	networks   NetworkStore
}

// New creates a new App. The deployer and the network store may be nil, in which
// case their endpoints are not mounted.
func New(controller *simulation.Controller, deployer *deploy.Deployer, networks NetworkStore) *App {
	return &App{
		controller: controller,
		deployer:   deployer,
		networks:   networks,
	}
}

// MountOn mounts the API handlers on the given muxer.
func (a *App) MountOn(mux *http.ServeMux) {
	mux.Handle("POST /compose/rewrite", http.HandlerFunc(a.Rewrite))
	mux.Handle("POST /compose/prepare", http.HandlerFunc(a.Prepare))

	if a.deployer != nil {
		mux.Handle("POST /compose/deploy", http.HandlerFunc(a.Deploy))
		mux.Handle("DELETE /compose/{appName}", http.HandlerFunc(a.Remove))
		mux.Handle("POST /compose/scale", http.HandlerFunc(a.Scale))
		mux.Handle("GET /compose/{appName}/logs/{service}", http.HandlerFunc(a.Logs))
	}

	mux.Handle("POST /traefik/labels", http.HandlerFunc(a.Labels))
	mux.Handle("POST /traefik/router", http.HandlerFunc(a.Router))
	mux.Handle("POST /traefik/simulate", http.HandlerFunc(a.Simulate))

	if a.networks != nil {
		mux.Handle("GET /networks", http.HandlerFunc(a.ListNetworks))
		mux.Handle("POST /networks", http.HandlerFunc(a.CreateNetwork))
		mux.Handle("GET /networks/{id}", http.HandlerFunc(a.GetNetwork))
		mux.Handle("DELETE /networks/{id}", http.HandlerFunc(a.DeleteNetwork))
	}
}

// registry returns the network registry, nil when no network store is configured.
func (a *App) registry() network.Registry {
	if a.networks == nil {
		return nil
	}

	return a.networks
}

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor returns the HTTP status reporting the given error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, compose.ErrMalformed),
		errors.Is(err, compose.ErrInvalidToken),
		errors.Is(err, compose.ErrUnknownService),
		errors.Is(err, compose.ErrInvalidProject),
		errors.Is(err, domain.ErrInvalid),
		errors.Is(err, deploy.ErrInvalidInput),
		errors.Is(err, simulation.ErrInvalid),
		errors.Is(err, orchestrator.ErrUnsupported),
		errors.Is(err, traefik.ErrInvalidRule),
		errors.Is(err, traefik.ErrMissingServiceName),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, network.ErrNotFound):
		var missingErr *network.MissingError
		if errors.As(err, &missingErr) {
			return http.StatusUnprocessableEntity
		}

		return http.StatusNotFound
	case errors.Is(err, simulation.ErrRunTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx context.Context, rw http.ResponseWriter, err error) {
	status := statusFor(err)

	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		log.Ctx(ctx).Error().Err(err).Msg("Unable to handle request")
		msg = "the service is experiencing issues, please retry later"
	case http.StatusServiceUnavailable:
		log.Ctx(ctx).Warn().Err(err).Msg("Request timed out")
		msg = "the service is currently busy, please retry later"
	default:
		log.Ctx(ctx).Debug().Err(err).Int("status", status).Msg("Request rejected")
	}

	writeJSON(ctx, rw, status, errorResponse{Error: msg})
}

func writeJSON(ctx context.Context, rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Unable to write response")
	}
}

func writeYAML(ctx context.Context, rw http.ResponseWriter, data []byte) {
	rw.Header().Set("Content-Type", "application/yaml")
	rw.WriteHeader(http.StatusOK)

	if _, err := rw.Write(data); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Unable to write response")
	}
}

func decodeJSON(req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, req.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding body: %w", errBadRequest, err)
	}

	return nil
}

func readBody(req *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(nil, req.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", errBadRequest, err)
	}

	return data, nil
}

func decodeQuery(req *http.Request, v any) error {
	if err := schemaDecoder.Decode(v, req.URL.Query()); err != nil {
		return fmt.Errorf("%w: decoding query: %w", errBadRequest, err)
	}

	return nil
}
