package traefik

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/traefik/traefik/v3/cmd"
	"github.com/traefik/traefik/v3/pkg/config/dynamic"
	"github.com/traefik/traefik/v3/pkg/config/label"
	"github.com/traefik/traefik/v3/pkg/config/runtime"
	"github.com/traefik/traefik/v3/pkg/config/static"
	"github.com/traefik/traefik/v3/pkg/middlewares/requestdecorator"
	httpmuxer "github.com/traefik/traefik/v3/pkg/muxer/http"
	"github.com/traefik/traefik/v3/pkg/provider/aggregator"
	"github.com/traefik/traefik/v3/pkg/proxy/httputil"
	"github.com/traefik/traefik/v3/pkg/safe"
	"github.com/traefik/traefik/v3/pkg/server"
	"github.com/traefik/traefik/v3/pkg/server/middleware"
	"github.com/traefik/traefik/v3/pkg/server/router"
	"github.com/traefik/traefik/v3/pkg/server/service"
	"github.com/traefik/traefik/v3/pkg/tls"

	"github.com/jspdown/deckhand/internal/domain"
)

// Simulator routes requests through an in-process Traefik loaded with a generated configuration.
// Every load balancer server is replaced by an upstream echoing the request it receives and
// answering with the original server URL in the X-Upstream header.
// TLS is not terminated: a request is routed by the entrypoint its scheme designates.
type Simulator struct {
	staticConfig  static.Configuration
	dynamicConfig *dynamic.Configuration

	upstreams map[string]*httptest.Server
	pool      *safe.Pool

	handlerMu sync.RWMutex
	handlers  map[string]http.Handler

	readyFuncs []func()
}

// NewSimulator creates a new Simulator exposing the web and websecure entrypoints.
func NewSimulator(dynamicConfig *dynamic.Configuration) (*Simulator, error) {
	if dynamicConfig == nil {
		dynamicConfig = NewConfig()
	}

	staticConfig := cmd.NewTraefikConfiguration().Configuration
	staticConfig.EntryPoints = map[string]*static.EntryPoint{
		EntrypointWeb:       newEntryPoint(":80"),
		EntrypointWebsecure: newEntryPoint(":443"),
	}

	if err := staticConfig.ValidateConfiguration(); err != nil {
		return nil, fmt.Errorf("validating static configuration: %w", err)
	}

	return &Simulator{
		staticConfig:  staticConfig,
		dynamicConfig: dynamicConfig,
		upstreams:     make(map[string]*httptest.Server),
	}, nil
}

func newEntryPoint(address string) *static.EntryPoint {
	entryPoint := &static.EntryPoint{Address: address}
	entryPoint.SetDefaults()

	return entryPoint
}

// OnReady registers a function to be called when the simulator is ready to route requests.
func (s *Simulator) OnReady(readyFn func()) {
	s.readyFuncs = append(s.readyFuncs, readyFn)
}

// Start loads the configuration.
func (s *Simulator) Start(ctx context.Context) error {
	parser, err := syntaxParser()
	if err != nil {
		return fmt.Errorf("creating syntax parser: %w", err)
	}

	providerAggregator := aggregator.NewProviderAggregator(static.Providers{})
	if err = providerAggregator.AddProvider(newProvider(s.prepare())); err != nil {
		return fmt.Errorf("adding file provider: %w", err)
	}

	s.pool = safe.NewPool(ctx)
	defaultEntryPoints := []string{EntrypointWeb}
	configWatcher := server.NewConfigurationWatcher(s.pool, providerAggregator, defaultEntryPoints, providerName)

	var firstConfigurationReceived bool
	configWatcher.AddListener(func(config dynamic.Configuration) {
		handlers := buildHandlers(ctx, s.pool, parser, s.staticConfig, config)

		s.handlerMu.Lock()
		s.handlers = handlers
		if !firstConfigurationReceived {
			for _, readyFunc := range s.readyFuncs {
				readyFunc()
			}

			firstConfigurationReceived = true
		}
		s.handlerMu.Unlock()
	})

	configWatcher.Start()

	return nil
}

// Send routes a request through the entrypoint its scheme designates.
func (s *Simulator) Send(req *http.Request) (*http.Response, error) {
	return s.SendTo(EntrypointFor(req), req)
}

// SendTo routes a request through the given entrypoint.
func (s *Simulator) SendTo(entrypoint string, req *http.Request) (*http.Response, error) {
	s.handlerMu.RLock()
	handler, ok := s.handlers[entrypoint]
	s.handlerMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no handler for entrypoint %q", entrypoint)
	}

	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, req)

	return rw.Result(), nil
}

// Close stops the upstreams.
func (s *Simulator) Close() {
	if s.pool != nil {
		s.pool.Stop()
	}

	for _, u := range s.upstreams {
		u.Close()
	}
}

// EntrypointFor returns the entrypoint receiving a request.
func EntrypointFor(req *http.Request) string {
	if req.TLS != nil || req.URL.Scheme == "https" {
		return EntrypointWebsecure
	}

	return EntrypointWeb
}

// prepare returns the configuration actually loaded: default middlewares are added,
// router TLS options are dropped and servers point to upstreams.
func (s *Simulator) prepare() *dynamic.Configuration {
	config := s.dynamicConfig.DeepCopy()
	ensureHTTPConfig(config)

	for name, m := range DefaultMiddlewares() {
		if _, ok := config.HTTP.Middlewares[name]; !ok {
			config.HTTP.Middlewares[name] = m
		}
	}

	for _, r := range config.HTTP.Routers {
		r.TLS = nil
	}

	for _, svc := range config.HTTP.Services {
		if svc.LoadBalancer == nil {
			continue
		}

		for i, srv := range svc.LoadBalancer.Servers {
			u, ok := s.upstreams[srv.URL]
			if !ok {
				u = newUpstream(srv.URL)
				s.upstreams[srv.URL] = u
			}

			svc.LoadBalancer.Servers[i].URL = u.URL
		}
	}

	return config
}

// DecodeLabels converts Docker labels into the configuration the Docker provider would build.
// Services reach the host named after them on the load balancer server port.
func DecodeLabels(labels []string) (*dynamic.Configuration, error) {
	values := make(map[string]string, len(labels))
	for _, l := range labels {
		key, value, ok := strings.Cut(l, "=")
		if !ok {
			return nil, fmt.Errorf("invalid label %q: missing value", l)
		}

		values[key] = strings.ReplaceAll(value, "$$", "$")
	}

	config, err := label.DecodeConfiguration(values)
	if err != nil {
		return nil, fmt.Errorf("decoding labels: %w", err)
	}

	ensureHTTPConfig(config)

	for name, svc := range config.HTTP.Services {
		if svc.LoadBalancer == nil {
			continue
		}

		for i, srv := range svc.LoadBalancer.Servers {
			if srv.URL != "" {
				continue
			}

			port := srv.Port
			if port == "" {
				port = strconv.Itoa(domain.DefaultPort)
			}

			svc.LoadBalancer.Servers[i].URL = fmt.Sprintf("http://%s:%s", name, port)
		}
	}

	return config, nil
}

// Simulate routes a request through the entrypoint of a Simulator loaded with the given configuration.
func Simulate(ctx context.Context, config *dynamic.Configuration, entrypoint string, req *http.Request) (*http.Response, error) {
	simulator, err := NewSimulator(config)
	if err != nil {
		return nil, err
	}
	defer simulator.Close()

	readyCh := make(chan struct{})
	simulator.OnReady(func() {
		close(readyCh)
	})

	if err = simulator.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting simulator: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-readyCh:
	}

	return simulator.SendTo(entrypoint, req)
}

func buildHandlers(ctx context.Context, pool *safe.Pool, parser httpmuxer.SyntaxParser, staticConfig static.Configuration, dynamicConfig dynamic.Configuration) map[string]http.Handler {
	allEntryPointNames := slices.Collect(maps.Keys(staticConfig.EntryPoints))
	runtimeConfig := runtime.NewConfig(dynamicConfig)

	tlsManager := tls.NewManager()

	transportManager := service.NewTransportManager(nil)
	proxyBuilder := httputil.NewProxyBuilder(transportManager, nil)
	transportManager.Update(map[string]*dynamic.ServersTransport{
		"default@internal": {
			InsecureSkipVerify:  staticConfig.ServersTransport.InsecureSkipVerify,
			RootCAs:             staticConfig.ServersTransport.RootCAs,
			MaxIdleConnsPerHost: staticConfig.ServersTransport.MaxIdleConnsPerHost,
		},
	})

	serviceManager := service.NewManager(runtimeConfig.Services, nil, pool, transportManager, proxyBuilder)

	middlewaresBuilder := middleware.NewBuilder(runtimeConfig.Middlewares, serviceManager, nil)
	routerManager := router.NewManager(runtimeConfig, serviceManager, middlewaresBuilder, nil, tlsManager, parser)

	// Host matchers read the canonized host the entrypoint server stores in the request context.
	decorator := requestdecorator.New(nil)

	handlers := routerManager.BuildHandlers(ctx, allEntryPointNames, false)
	for name, handler := range handlers {
		handlers[name] = http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			decorator.ServeHTTP(rw, req, handler.ServeHTTP)
		})
	}

	return handlers
}
