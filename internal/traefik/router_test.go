package traefik

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traefik/traefik/v3/pkg/config/dynamic"

	"github.com/jspdown/deckhand/internal/domain"
)

func TestNewRouterConfig(t *testing.T) {
	t.Parallel()

	redirects := []domain.Redirect{{UniqueConfigKey: 3, Regex: "^/old", Replacement: "/new"}}
	security := []domain.Security{{Username: "admin", Password: "s3cret"}}

	tests := []struct {
		desc       string
		app        domain.App
		domain     domain.Domain
		entrypoint string
		want       *dynamic.Router
	}{
		{
			desc: "web without https",
			app:  domain.App{Name: "app", Redirects: redirects, Security: security},
			domain: domain.Domain{
				Host:            "example.com",
				Path:            "/api",
				StripPath:       true,
				UniqueConfigKey: 1,
			},
			entrypoint: EntrypointWeb,
			want: &dynamic.Router{
				EntryPoints: []string{"web"},
				Rule:        "Host(`example.com`) && PathPrefix(`/api`)",
				Service:     "app-service-1",
				Middlewares: []string{"redirect-app-3", "auth-app", "stripprefix-app-1"},
			},
		},
		{
			desc: "web with https",
			app:  domain.App{Name: "app", Redirects: redirects, Security: security},
			domain: domain.Domain{
				Host:            "example.com",
				HTTPS:           true,
				InternalPath:    "/hello",
				UniqueConfigKey: 1,
				CertificateType: domain.CertificateLetsEncrypt,
			},
			entrypoint: EntrypointWeb,
			want: &dynamic.Router{
				EntryPoints: []string{"web"},
				Rule:        "Host(`example.com`)",
				Service:     "app-service-1",
				Middlewares: []string{"redirect-to-https@file", "addprefix-app-1"},
			},
		},
		{
			desc: "websecure with letsencrypt",
			app:  domain.App{Name: "app", Redirects: redirects},
			domain: domain.Domain{
				Host:            "example.com",
				HTTPS:           true,
				UniqueConfigKey: 1,
				CertificateType: domain.CertificateLetsEncrypt,
			},
			entrypoint: EntrypointWebsecure,
			want: &dynamic.Router{
				EntryPoints: []string{"websecure"},
				Rule:        "Host(`example.com`)",
				Service:     "app-service-1",
				Middlewares: []string{"redirect-app-3"},
				TLS:         &dynamic.RouterTLSConfig{CertResolver: "letsencrypt"},
			},
		},
		{
			desc: "websecure without certificate",
			app:  domain.App{Name: "app"},
			domain: domain.Domain{
				Host:            "example.com",
				HTTPS:           true,
				UniqueConfigKey: 5,
				CertificateType: domain.CertificateNone,
			},
			entrypoint: EntrypointWebsecure,
			want: &dynamic.Router{
				EntryPoints: []string{"websecure"},
				Rule:        "Host(`example.com`)",
				Service:     "app-service-5",
			},
		},
		{
			desc: "preview shares the middlewares of its application",
			app:  domain.App{Name: "preview-blog-x7k2p9", Redirects: redirects, Security: security},
			domain: domain.Domain{
				Host:            "pr-12.example.com",
				UniqueConfigKey: 2,
				Type:            domain.TypePreview,
			},
			entrypoint: EntrypointWeb,
			want: &dynamic.Router{
				EntryPoints: []string{"web"},
				Rule:        "Host(`pr-12.example.com`)",
				Service:     "preview-blog-x7k2p9-service-2",
				Middlewares: []string{"redirect-blog-3", "auth-blog"},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			t.Parallel()

			got, err := NewRouterConfig(test.app, test.domain, test.entrypoint)
			require.NoError(t, err)

			assert.Equal(t, test.want, got)
		})
	}
}

func TestCertResolver(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "letsencrypt", CertResolver(domain.Domain{CertificateType: domain.CertificateLetsEncrypt}))
	assert.Equal(t, "vault", CertResolver(domain.Domain{CertificateType: domain.CertificateCustom, CustomCertResolver: "vault"}))
	assert.Empty(t, CertResolver(domain.Domain{CertificateType: domain.CertificateNone}))
	assert.Empty(t, CertResolver(domain.Domain{}))
}
