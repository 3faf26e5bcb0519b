package deploy

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/jspdown/deckhand/internal/compose"
	"github.com/jspdown/deckhand/internal/domain"
	"github.com/jspdown/deckhand/internal/network"
)

const shopCompose = `
services:
  web:
    image: nginx
    labels:
      - com.example.team=shop
    depends_on:
      - db
  db:
    image: postgres
    volumes:
      - data:/var/lib/postgresql/data
volumes:
  data:
`

var shopDomain = domain.Domain{
	Host:            "shop.example.com",
	ServiceName:     "web",
	Port:            8080,
	HTTPS:           true,
	UniqueConfigKey: 1,
	CertificateType: domain.CertificateLetsEncrypt,
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	res, err := Prepare(context.Background(), Input{
		AppName:     "shop",
		ComposeFile: shopCompose,
		ComposeType: domain.ComposeTypeCompose,
		Domains:     []domain.Domain{shopDomain},
	}, nil)
	require.NoError(t, err)

	assert.Empty(t, res.Suffix)
	assertDocument(t, `
services:
  web:
    image: nginx
    labels:
      - traefik.swarm.network=dokploy-network
      - traefik.docker.network=dokploy-network
      - traefik.http.routers.shop-1-web.rule=Host(`+"`shop.example.com`"+`)
      - traefik.http.routers.shop-1-web.entrypoints=web
      - traefik.http.services.shop-1-web.loadbalancer.server.port=8080
      - traefik.http.routers.shop-1-web.service=shop-1-web
      - traefik.http.routers.shop-1-web.middlewares=redirect-to-https@file
      - traefik.http.routers.shop-1-websecure.rule=Host(`+"`shop.example.com`"+`)
      - traefik.http.routers.shop-1-websecure.entrypoints=websecure
      - traefik.http.services.shop-1-websecure.loadbalancer.server.port=8080
      - traefik.http.routers.shop-1-websecure.service=shop-1-websecure
      - traefik.http.routers.shop-1-websecure.tls.certresolver=letsencrypt
      - traefik.enable=true
      - com.example.team=shop
    depends_on:
      - db
    networks:
      - dokploy-network
  db:
    image: postgres
    volumes:
      - data:/var/lib/postgresql/data
volumes:
  data:
networks:
  dokploy-network:
    external: true
`, res.Document)
}

func TestPrepare_randomize(t *testing.T) {
	t.Parallel()

	res, err := Prepare(context.Background(), Input{
		AppName:     "shop",
		ComposeFile: shopCompose,
		Randomize:   true,
		Suffix:      "a1b2",
		Domains:     []domain.Domain{{Host: "shop.example.com", ServiceName: "web", UniqueConfigKey: 1}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "a1b2", res.Suffix)
	assertDocument(t, `
services:
  web-a1b2:
    image: nginx
    labels:
      - traefik.swarm.network=dokploy-network
      - traefik.docker.network=dokploy-network
      - traefik.http.routers.shop-1-web.rule=Host(`+"`shop.example.com`"+`)
      - traefik.http.routers.shop-1-web.entrypoints=web
      - traefik.http.services.shop-1-web.loadbalancer.server.port=80
      - traefik.http.routers.shop-1-web.service=shop-1-web
      - traefik.enable=true
      - com.example.team=shop
    depends_on:
      - db-a1b2
    networks:
      - dokploy-network
  db-a1b2:
    image: postgres
    volumes:
      - data-a1b2:/var/lib/postgresql/data
volumes:
  data-a1b2:
networks:
  dokploy-network:
    external: true
`, res.Document)
}

func TestPrepare_generatedSuffix(t *testing.T) {
	t.Parallel()

	res, err := Prepare(context.Background(), Input{
		AppName:     "shop",
		ComposeFile: shopCompose,
		Randomize:   true,
	}, nil)
	require.NoError(t, err)

	require.Len(t, res.Suffix, 8)
	assert.True(t, res.Document.HasService("web-"+res.Suffix))
}

func TestPrepare_isolated(t *testing.T) {
	t.Parallel()

	res, err := Prepare(context.Background(), Input{
		AppName:         "shop",
		ComposeFile:     shopCompose,
		ComposeType:     domain.ComposeTypeStack,
		Isolated:        true,
		IsolatedVolumes: true,
		Domains:         []domain.Domain{{Host: "shop.example.com", ServiceName: "web", UniqueConfigKey: 2}},
	}, nil)
	require.NoError(t, err)

	assert.Empty(t, res.Suffix)
	assertDocument(t, `
services:
  web:
    image: nginx
    labels:
      - com.example.team=shop
    depends_on:
      - db
    networks:
      - shop
    deploy:
      labels:
        - traefik.http.routers.shop-2-web.rule=Host(`+"`shop.example.com`"+`)
        - traefik.http.routers.shop-2-web.entrypoints=web
        - traefik.http.services.shop-2-web.loadbalancer.server.port=80
        - traefik.http.routers.shop-2-web.service=shop-2-web
        - traefik.enable=true
  db:
    image: postgres
    volumes:
      - data-shop:/var/lib/postgresql/data
    networks:
      - shop
volumes:
  data-shop:
networks:
  shop:
    name: shop
    external: true
`, res.Document)
}

func TestPrepare_basicAuthSharedByDomains(t *testing.T) {
	t.Parallel()

	res, err := Prepare(context.Background(), Input{
		AppName:     "shop",
		ComposeFile: shopCompose,
		Domains: []domain.Domain{
			{Host: "shop.example.com", ServiceName: "web", UniqueConfigKey: 1},
			{Host: "www.shop.example.com", ServiceName: "web", UniqueConfigKey: 2},
		},
		Security: []domain.Security{{Username: "admin", Password: "s3cret"}},
	}, nil)
	require.NoError(t, err)

	data, err := res.Document.Marshal()
	require.NoError(t, err)

	var project struct {
		Services map[string]struct {
			Labels []string `yaml:"labels"`
		} `yaml:"services"`
	}
	require.NoError(t, yaml.Unmarshal(data, &project))

	const prefix = "traefik.http.middlewares.auth-shop.basicauth.users="

	var definitions []string
	for _, label := range project.Services["web"].Labels {
		if value, ok := strings.CutPrefix(label, prefix); ok {
			definitions = append(definitions, value)
		}
	}

	// Both domains define the same middleware, kept once.
	require.Len(t, definitions, 1)

	user, hash, ok := strings.Cut(strings.ReplaceAll(definitions[0], "$$", "$"), ":")
	require.True(t, ok)
	assert.Equal(t, "admin", user)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestPrepare_customNetworks(t *testing.T) {
	t.Parallel()

	registry := fakeRegistry{"net-1": {ID: "net-1", Name: "shared-db"}}

	res, err := Prepare(context.Background(), Input{
		AppName:          "shop",
		ComposeFile:      "services:\n  web:\n    image: nginx\n",
		CustomNetworkIDs: []string{"net-1"},
	}, registry)
	require.NoError(t, err)

	assertDocument(t, `
services:
  web:
    image: nginx
    networks:
      - shared-db
networks:
  shared-db:
    name: shared-db
    external: true
`, res.Document)

	_, err = Prepare(context.Background(), Input{
		AppName:          "shop",
		ComposeFile:      "services:\n  web:\n    image: nginx\n",
		CustomNetworkIDs: []string{"net-1", "net-2"},
	}, registry)
	require.ErrorIs(t, err, network.ErrNotFound)

	var missingErr *network.MissingError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"net-2"}, missingErr.IDs)

	_, err = Prepare(context.Background(), Input{
		AppName:          "shop",
		ComposeFile:      "services:\n  web:\n    image: nginx\n",
		CustomNetworkIDs: []string{"net-1"},
	}, nil)
	assert.Error(t, err)
}

func TestPrepare_errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc    string
		input   Input
		wantErr error
	}{
		{
			desc: "unknown service",
			input: Input{
				AppName:     "shop",
				ComposeFile: shopCompose,
				Domains:     []domain.Domain{{Host: "shop.example.com", ServiceName: "api"}},
			},
			wantErr: compose.ErrUnknownService,
		},
		{
			desc: "missing service name",
			input: Input{
				AppName:     "shop",
				ComposeFile: shopCompose,
				Domains:     []domain.Domain{{Host: "shop.example.com"}},
			},
			wantErr: ErrInvalidInput,
		},
		{
			desc:    "missing compose file",
			input:   Input{AppName: "shop"},
			wantErr: ErrInvalidInput,
		},
		{
			desc:    "unsupported compose type",
			input:   Input{AppName: "shop", ComposeFile: shopCompose, ComposeType: "kubernetes"},
			wantErr: ErrInvalidInput,
		},
		{
			desc:    "invalid suffix",
			input:   Input{AppName: "shop", ComposeFile: shopCompose, Randomize: true, Suffix: "a b"},
			wantErr: ErrInvalidInput,
		},
		{
			desc: "invalid domain",
			input: Input{
				AppName:     "shop",
				ComposeFile: shopCompose,
				Domains:     []domain.Domain{{Host: "", ServiceName: "web"}},
			},
			wantErr: domain.ErrInvalid,
		},
		{
			desc:    "malformed compose file",
			input:   Input{AppName: "shop", ComposeFile: "services:\n  web:\n    networks: front\n"},
			wantErr: compose.ErrMalformed,
		},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			t.Parallel()

			_, err := Prepare(context.Background(), test.input, nil)
			assert.ErrorIs(t, err, test.wantErr)
		})
	}
}

func assertDocument(t *testing.T, want string, doc *compose.Document) {
	t.Helper()

	data, err := doc.Marshal()
	require.NoError(t, err)

	var wantValue, gotValue map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(want), &wantValue))
	require.NoError(t, yaml.Unmarshal(data, &gotValue))

	assert.Equal(t, wantValue, gotValue, string(data))
}

type fakeRegistry map[string]network.Network

func (f fakeRegistry) FindNetworksByIDs(_ context.Context, ids []string) ([]network.Network, error) {
	var (
		networks []network.Network
		missing  []string
	)
	for _, id := range ids {
		n, ok := f[id]
		if !ok {
			missing = append(missing, id)

			continue
		}

		networks = append(networks, n)
	}

	if len(missing) > 0 {
		return nil, &network.MissingError{IDs: missing}
	}

	return networks, nil
}
