// Package simulation replays HTTP requests through the routing generated for a deployment.
package simulation

import (
	"errors"
	"fmt"
	"net/http"
	stdurl "net/url"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/traefik/traefik/v3/pkg/config/dynamic"
	"golang.org/x/net/http/httpguts"

	"github.com/jspdown/deckhand/internal/domain"
	"github.com/jspdown/deckhand/internal/traefik"
)

const (
	maxDomains = 20

	maxURLLength  = 1024
	maxBodyLength = 1024

	maxHeaders           = 10
	maxHeaderNameLength  = 100
	maxHeaderValueLength = 200
)

// ErrInvalid indicates that a simulation is rejected before being run.
var ErrInvalid = errors.New("invalid simulation")

// Simulation routes a request through the domains of an application.
type Simulation struct {
	App         domain.App         `json:"app"`
	Domains     []domain.Domain    `json:"domains"`
	ComposeType domain.ComposeType `json:"composeType,omitempty" enum:"docker-compose,stack"`
	Request     HTTPRequest        `json:"request"`
}

// Validate checks the simulation.
func (s Simulation) Validate() error {
	var errs *multierror.Error

	if err := s.App.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}

	switch {
	case len(s.Domains) == 0:
		errs = multierror.Append(errs, fmt.Errorf("%w: at least one domain is required", ErrInvalid))
	case len(s.Domains) > maxDomains:
		errs = multierror.Append(errs, fmt.Errorf("%w: too many domains (max %d)", ErrInvalid, maxDomains))
	}

	for _, d := range s.Domains {
		if err := d.Validate(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := s.Request.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}

	return errs.ErrorOrNil()
}

// Config returns the file provider configuration of the simulated domains.
func (s Simulation) Config() (*dynamic.Configuration, error) {
	app, err := traefik.HashCredentials(s.App)
	if err != nil {
		return nil, err
	}

	cfg := traefik.NewConfig()
	for _, d := range s.Domains {
		if err = traefik.ManageDomain(cfg, app, d, s.ComposeType); err != nil {
			return nil, fmt.Errorf("domain %q: %w", d.Host, err)
		}
	}

	return cfg, nil
}

// Result is the outcome of a simulation.
type Result struct {
	Response HTTPResponse  `json:"response"`
	Logs     []traefik.Log `json:"logs,omitempty"`
}

// HTTPRequest is the request sent through the simulated routing.
type HTTPRequest struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Headers http.Header `json:"headers,omitempty"`
	Body    string      `json:"body,omitempty"`
}

// MakeHTTPRequest makes a valid HTTP request. Headers are given as "name: value" lines.
func MakeHTTPRequest(method, url, headers, body string) (HTTPRequest, error) {
	parsedHeaders, err := parseHeaders(headers)
	if err != nil {
		return HTTPRequest{}, err
	}

	req := HTTPRequest{
		Method:  method,
		URL:     url,
		Headers: parsedHeaders,
		Body:    body,
	}

	if err = req.Validate(); err != nil {
		return HTTPRequest{}, err
	}

	return req, nil
}

// Validate checks the request.
func (r HTTPRequest) Validate() error {
	availableMethods := []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodPatch,
	}

	switch {
	case r.Method == "":
		return fmt.Errorf("%w: method is required", ErrInvalid)
	case !slices.Contains(availableMethods, r.Method):
		return fmt.Errorf("%w: method %s not allowed", ErrInvalid, r.Method)
	case r.URL == "":
		return fmt.Errorf("%w: url is required", ErrInvalid)
	case len(r.URL) > maxURLLength:
		return fmt.Errorf("%w: url is too long (max: %d)", ErrInvalid, maxURLLength)
	case len(r.Body) > maxBodyLength:
		return fmt.Errorf("%w: body is too long (max: %d)", ErrInvalid, maxBodyLength)
	case len(r.Headers) > maxHeaders:
		return fmt.Errorf("%w: too many headers (max %d)", ErrInvalid, maxHeaders)
	}

	u, err := stdurl.ParseRequestURI(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http or https URL", ErrInvalid)
	}

	for name, values := range r.Headers {
		switch {
		case len(name) > maxHeaderNameLength:
			return fmt.Errorf("%w: header name is too long (max %d)", ErrInvalid, maxHeaderNameLength)
		case !httpguts.ValidHeaderFieldName(name):
			return fmt.Errorf("%w: invalid header name %q", ErrInvalid, name)
		}

		for _, value := range values {
			switch {
			case len(value) > maxHeaderValueLength:
				return fmt.Errorf("%w: header value is too long for %q (max %d)", ErrInvalid, name, maxHeaderValueLength)
			case !httpguts.ValidHeaderFieldValue(value):
				return fmt.Errorf("%w: invalid header value for %q", ErrInvalid, name)
			}
		}
	}

	return nil
}

// HTTPResponse is the response obtained from a simulation.
type HTTPResponse struct {
	Proto      string      `json:"proto"`
	StatusCode int         `json:"statusCode"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
}

func parseHeaders(rawHeaders string) (http.Header, error) {
	headers := make(http.Header)

	for line := range strings.Lines(rawHeaders) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf(`%w: invalid header format, want "name: value", got: %q`, ErrInvalid, line)
		}

		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: missing header name on line %q", ErrInvalid, line)
		}

		headers.Add(name, strings.TrimSpace(value))
	}

	return headers, nil
}
