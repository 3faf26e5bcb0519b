package traefik

import (
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/traefik/traefik/v3/pkg/config/dynamic"
	"gopkg.in/yaml.v3"

	"github.com/jspdown/deckhand/internal/domain"
)

// ErrMissingServiceName indicates that a compose domain does not name the service it routes to.
var ErrMissingServiceName = errors.New("missing service name")

// File provider names.
func routerName(app string, d domain.Domain) string {
	return fmt.Sprintf("%s-router-%d", app, d.UniqueConfigKey)
}

func secureRouterName(app string, d domain.Domain) string {
	return fmt.Sprintf("%s-router-websecure-%d", app, d.UniqueConfigKey)
}

func serviceName(app string, d domain.Domain) string {
	return fmt.Sprintf("%s-service-%d", app, d.UniqueConfigKey)
}

// ServiceURL returns the URL of the container serving a domain. An empty compose type
// designates a single container application named after the app.
func ServiceURL(app string, d domain.Domain, composeType domain.ComposeType) (string, error) {
	if composeType == "" {
		return fmt.Sprintf("http://%s:%d", app, d.ServerPort()), nil
	}

	if d.ServiceName == "" {
		return "", fmt.Errorf("%w: domain %q of %q", ErrMissingServiceName, d.Host, app)
	}

	host := fmt.Sprintf("%s-%s-1", app, d.ServiceName)
	if composeType == domain.ComposeTypeStack {
		host = app + "_" + d.ServiceName
	}

	return fmt.Sprintf("http://%s:%d", host, d.ServerPort()), nil
}

// NewConfig creates an empty file provider configuration.
func NewConfig() *dynamic.Configuration {
	return &dynamic.Configuration{HTTP: newHTTPConfig()}
}

// ManageDomain adds, or replaces, the routers, service and middlewares exposing a domain.
// The websecure router only exists for HTTPS domains.
func ManageDomain(cfg *dynamic.Configuration, app domain.App, d domain.Domain, composeType domain.ComposeType) error {
	web, err := NewRouterConfig(app, d, EntrypointWeb)
	if err != nil {
		return err
	}

	var websecure *dynamic.Router
	if d.HTTPS {
		if websecure, err = NewRouterConfig(app, d, EntrypointWebsecure); err != nil {
			return err
		}
	}

	url, err := ServiceURL(app.Name, d, composeType)
	if err != nil {
		return err
	}

	appMiddlewares, err := AppMiddlewares(app, d)
	if err != nil {
		return err
	}

	ensureHTTPConfig(cfg)

	cfg.HTTP.Routers[routerName(app.Name, d)] = web
	if websecure != nil {
		cfg.HTTP.Routers[secureRouterName(app.Name, d)] = websecure
	} else {
		delete(cfg.HTTP.Routers, secureRouterName(app.Name, d))
	}

	passHostHeader := true
	cfg.HTTP.Services[serviceName(app.Name, d)] = &dynamic.Service{
		LoadBalancer: &dynamic.ServersLoadBalancer{
			Servers:        []dynamic.Server{{URL: url}},
			PassHostHeader: &passHostHeader,
		},
	}

	delete(cfg.HTTP.Middlewares, stripPrefixName(app.Name, d))
	delete(cfg.HTTP.Middlewares, addPrefixName(app.Name, d))
	maps.Copy(cfg.HTTP.Middlewares, PathMiddlewares(app.Name, d))
	maps.Copy(cfg.HTTP.Middlewares, appMiddlewares)

	return nil
}

// RemoveDomain removes the routers, service and path middlewares of a domain.
// It reports whether the configuration still holds routers.
func RemoveDomain(cfg *dynamic.Configuration, app string, d domain.Domain) bool {
	if cfg.HTTP == nil {
		return false
	}

	delete(cfg.HTTP.Routers, routerName(app, d))
	delete(cfg.HTTP.Routers, secureRouterName(app, d))
	delete(cfg.HTTP.Services, serviceName(app, d))
	delete(cfg.HTTP.Middlewares, stripPrefixName(app, d))
	delete(cfg.HTTP.Middlewares, addPrefixName(app, d))

	return len(cfg.HTTP.Routers) > 0
}

// LoadConfig reads a YAML file provider configuration.
func LoadConfig(r io.Reader) (*dynamic.Configuration, error) {
	var cfg dynamic.Configuration
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	ensureHTTPConfig(&cfg)

	return &cfg, nil
}

// WriteConfig writes a file provider configuration as YAML.
func WriteConfig(w io.Writer, cfg *dynamic.Configuration) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}

	return enc.Close()
}

func newHTTPConfig() *dynamic.HTTPConfiguration {
	return &dynamic.HTTPConfiguration{
		Routers:     make(map[string]*dynamic.Router),
		Services:    make(map[string]*dynamic.Service),
		Middlewares: make(map[string]*dynamic.Middleware),
	}
}

func ensureHTTPConfig(cfg *dynamic.Configuration) {
	if cfg.HTTP == nil {
		cfg.HTTP = newHTTPConfig()

		return
	}

	if cfg.HTTP.Routers == nil {
		cfg.HTTP.Routers = make(map[string]*dynamic.Router)
	}
	if cfg.HTTP.Services == nil {
		cfg.HTTP.Services = make(map[string]*dynamic.Service)
	}
	if cfg.HTTP.Middlewares == nil {
		cfg.HTTP.Middlewares = make(map[string]*dynamic.Middleware)
	}
}
