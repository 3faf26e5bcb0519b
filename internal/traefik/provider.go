package traefik

import (
	"github.com/traefik/traefik/v3/pkg/config/dynamic"
	"github.com/traefik/traefik/v3/pkg/safe"
)

// providerName is the provider generated configurations are loaded from.
// Middlewares such as "redirect-to-https@file" resolve against it.
const providerName = "file"

// provider hands a single generated configuration to the simulated Traefik.
type provider struct {
	config *dynamic.Configuration
}

func newProvider(config *dynamic.Configuration) *provider {
	return &provider{config: config}
}

// Init does nothing.
func (p *provider) Init() error { return nil }

// Provide sends the configuration once.
func (p *provider) Provide(configurationChan chan<- dynamic.Message, _ *safe.Pool) error {
	configurationChan <- dynamic.Message{
		ProviderName:  providerName,
		Configuration: p.config,
	}

	return nil
}
