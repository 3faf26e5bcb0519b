// Package deploy prepares compose deployments: collision avoidance, routing labels and
// network attachments, before handing them over to an orchestrator.
package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/jspdown/deckhand/internal/compose"
	"github.com/jspdown/deckhand/internal/domain"
	"github.com/jspdown/deckhand/internal/network"
	"github.com/jspdown/deckhand/internal/traefik"
)

// ErrInvalidInput indicates that a deployment input is rejected.
var ErrInvalidInput = errors.New("invalid deployment input")

// Labels routing the platform Traefik instance through the platform network.
const (
	labelEnable        = "traefik.enable=true"
	labelDockerNetwork = "traefik.docker.network=" + compose.PlatformNetwork
	labelSwarmNetwork  = "traefik.swarm.network=" + compose.PlatformNetwork
)

// Input describes a compose deployment.
type Input struct {
	AppName     string             `json:"appName"`
	ComposeFile string             `json:"composeFile"`
	ComposeType domain.ComposeType `json:"composeType,omitempty" enum:"docker-compose,stack"`

	// Randomize suffixes every name of the project with Suffix, generated when empty.
	Randomize bool   `json:"randomize,omitempty"`
	Suffix    string `json:"suffix,omitempty"`
	// Isolated attaches the project to its own network, named after Suffix or AppName,
	// instead of the platform network.
	Isolated        bool `json:"isolatedDeployment,omitempty"`
	IsolatedVolumes bool `json:"isolatedDeploymentsVolume,omitempty"`

	Domains   []domain.Domain   `json:"domains,omitempty"`
	Redirects []domain.Redirect `json:"redirects,omitempty"`
	Security  []domain.Security `json:"security,omitempty"`

	// CustomNetworkIDs identifies, in the network registry, shared networks to attach.
	CustomNetworkIDs []string `json:"customNetworkIds,omitempty"`
}

// App returns the application the domains belong to.
func (in Input) App() domain.App {
	return domain.App{
		Name:      in.AppName,
		Redirects: in.Redirects,
		Security:  in.Security,
	}
}

// Validate checks the input.
func (in Input) Validate() error {
	var errs *multierror.Error

	if err := in.App().Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if in.ComposeFile == "" {
		errs = multierror.Append(errs, fmt.Errorf("%w: composeFile is required", ErrInvalidInput))
	}

	switch in.ComposeType {
	case "", domain.ComposeTypeCompose, domain.ComposeTypeStack:
	default:
		errs = multierror.Append(errs, fmt.Errorf("%w: composeType must be one of [%s %s]",
			ErrInvalidInput, domain.ComposeTypeCompose, domain.ComposeTypeStack))
	}

	if in.Suffix != "" {
		if err := compose.ValidateToken(in.Suffix); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%w: suffix: %w", ErrInvalidInput, err))
		}
	}

	for i, d := range in.Domains {
		if d.ServiceName == "" {
			errs = multierror.Append(errs, fmt.Errorf("%w: domains[%d].serviceName is required", ErrInvalidInput, i))
		}

		if err := d.Validate(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil()
}

// Result is a prepared deployment.
type Result struct {
	Document *compose.Document
	// Suffix is the token names were suffixed with, empty when names are kept.
	Suffix string
}

// Prepare transforms the compose file of a deployment into the document handed to the
// orchestrator. The registry resolves custom networks and may be nil when none is used.
func Prepare(ctx context.Context, in Input, registry network.Registry) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	logger := log.Ctx(ctx).With().Str("app", in.AppName).Logger()

	doc, err := compose.Parse([]byte(in.ComposeFile))
	if err != nil {
		return nil, fmt.Errorf("parsing compose file: %w", err)
	}

	res := &Result{}
	services := make(map[string]string)
	for _, name := range doc.Names(compose.SectionServices) {
		services[name] = name
	}

	switch {
	case in.Isolated:
		token := in.Suffix
		if token == "" {
			token = in.AppName
		}

		mode := compose.ModeIsolated
		if in.IsolatedVolumes {
			mode = compose.ModeIsolatedVolumes
		}

		if doc, err = compose.Rewrite(doc, token, mode); err != nil {
			return nil, fmt.Errorf("isolating project: %w", err)
		}

		logger.Debug().Str("network", token).Stringer("mode", mode).Msg("Project isolated")
	case in.Randomize:
		res.Suffix = in.Suffix
		if res.Suffix == "" {
			res.Suffix = compose.GenerateToken()
		}

		if doc, err = compose.Rewrite(doc, res.Suffix, compose.ModeSuffix); err != nil {
			return nil, fmt.Errorf("suffixing project: %w", err)
		}

		for name := range services {
			services[name] = name + "-" + res.Suffix
		}

		logger.Debug().Str("suffix", res.Suffix).Msg("Project names suffixed")
	}

	if len(in.CustomNetworkIDs) > 0 {
		if registry == nil {
			return nil, errors.New("custom networks requested without network registry")
		}

		if doc, err = compose.AddCustomNetworks(ctx, doc, registry, in.CustomNetworkIDs); err != nil {
			return nil, err
		}
	}

	target := compose.ServiceLabels
	if in.ComposeType == domain.ComposeTypeStack {
		target = compose.DeployLabels
	}

	app, err := traefik.HashCredentials(in.App())
	if err != nil {
		return nil, err
	}

	for _, d := range in.Domains {
		service, ok := services[d.ServiceName]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a service of the compose file", compose.ErrUnknownService, d.ServiceName)
		}

		labels, err := domainLabels(app, d)
		if err != nil {
			return nil, fmt.Errorf("domain %q: %w", d.Host, err)
		}

		if err = doc.AddLabels(service, target, labelEnable); err != nil {
			return nil, err
		}
		if err = doc.AddLabels(service, target, labels...); err != nil {
			return nil, err
		}

		if !in.Isolated {
			if err = doc.AddLabels(service, target, labelDockerNetwork); err != nil {
				return nil, err
			}
			if err = doc.AddLabels(service, target, labelSwarmNetwork); err != nil {
				return nil, err
			}
			if err = doc.AttachNetwork(service, compose.PlatformNetwork); err != nil {
				return nil, err
			}
		}

		logger.Debug().Str("host", d.Host).Str("service", service).Int("labels", len(labels)).Msg("Domain added")
	}

	if len(in.Domains) > 0 && !in.Isolated {
		if err = doc.DeclareExternalNetwork(compose.PlatformNetwork, ""); err != nil {
			return nil, err
		}
	}

	res.Document = doc

	return res, nil
}

// domainLabels returns the labels of the web entrypoint followed, for HTTPS domains,
// by the labels of the websecure entrypoint.
func domainLabels(app domain.App, d domain.Domain) ([]string, error) {
	labels, err := traefik.DomainLabels(app, d, traefik.EntrypointWeb)
	if err != nil {
		return nil, err
	}

	if !d.HTTPS {
		return labels, nil
	}

	secure, err := traefik.DomainLabels(app, d, traefik.EntrypointWebsecure)
	if err != nil {
		return nil, err
	}

	return append(labels, secure...), nil
}
