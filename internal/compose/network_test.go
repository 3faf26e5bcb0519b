package compose

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jspdown/deckhand/internal/network"
)

func TestAddNetworkToRoot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc string
		doc  string
		want string
	}{
		{
			desc: "no networks section",
			doc:  "services:\n  web:\n    image: nginx\n",
			want: `
services:
  web:
    image: nginx
networks:
  app-123:
    name: app-123
    external: true
`,
		},
		{
			desc: "existing networks are kept",
			doc: `
networks:
  front:
    driver: bridge
`,
			want: `
networks:
  front:
    driver: bridge
  app-123:
    name: app-123
    external: true
`,
		},
		{
			desc: "empty networks section",
			doc:  "networks:\n",
			want: `
networks:
  app-123:
    name: app-123
    external: true
`,
		},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			t.Parallel()

			got, err := AddNetworkToRoot(mustParse(t, test.doc), "app-123")
			require.NoError(t, err)

			assertDocument(t, test.want, got)
		})
	}
}

func TestAddNetworkToServices(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `
services:
  absent:
    image: a
  empty:
    image: b
    networks:
  sequence:
    networks:
      - front
  sequence-attached:
    networks:
      - app-123
      - front
  mapping:
    networks:
      front:
        aliases:
          - web
  mapping-attached:
    networks:
      app-123:
        ipv4_address: 172.16.238.10
`)

	got, err := AddNetworkToServices(doc, "app-123")
	require.NoError(t, err)

	assertDocument(t, `
services:
  absent:
    image: a
    networks:
      - app-123
  empty:
    image: b
    networks:
      - app-123
  sequence:
    networks:
      - front
      - app-123
  sequence-attached:
    networks:
      - app-123
      - front
  mapping:
    networks:
      front:
        aliases:
          - web
      app-123: {}
  mapping-attached:
    networks:
      app-123:
        ipv4_address: 172.16.238.10
`, got)
}

func TestAddCustomNetworks(t *testing.T) {
	t.Parallel()

	registry := fakeRegistry{
		"id-1": {ID: "id-1", Name: "shared-db"},
		"id-2": {ID: "id-2", Name: "monitoring"},
	}

	doc := mustParse(t, `
services:
  web:
    networks:
      front:
  worker:
    networks:
      - front
networks:
  front:
`)

	got, err := AddCustomNetworks(context.Background(), doc, registry, []string{"id-1", "id-2"})
	require.NoError(t, err)

	assertDocument(t, `
services:
  web:
    networks:
      front:
      shared-db: {}
      monitoring: {}
  worker:
    networks:
      - front
      - shared-db
      - monitoring
networks:
  front:
  shared-db:
    name: shared-db
    external: true
  monitoring:
    name: monitoring
    external: true
`, got)
}

func TestAddCustomNetworks_noIDs(t *testing.T) {
	t.Parallel()

	got, err := AddCustomNetworks(context.Background(), mustParse(t, "services:\n  web: {}\n"), fakeRegistry{}, nil)
	require.NoError(t, err)

	assertDocument(t, "services:\n  web: {}\n", got)

	data, err := got.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "networks")
}

func TestAddCustomNetworks_unknownIDs(t *testing.T) {
	t.Parallel()

	const src = "services:\n  web:\n    image: nginx\n"
	doc := mustParse(t, src)

	registry := fakeRegistry{"id-1": {ID: "id-1", Name: "shared-db"}}

	got, err := AddCustomNetworks(context.Background(), doc, registry, []string{"id-1", "id-9", "id-7"})
	require.ErrorIs(t, err, network.ErrNotFound)
	assert.Nil(t, got)

	var missingErr *network.MissingError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"id-9", "id-7"}, missingErr.IDs)

	assertDocument(t, src, doc)
}

func TestDocument_AttachNetwork(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, "services:\n  web:\n    image: nginx\n  db:\n    image: postgres\n")

	require.NoError(t, doc.AttachNetwork("web", PlatformNetwork))
	require.NoError(t, doc.AttachNetwork("web", PlatformNetwork))
	require.NoError(t, doc.DeclareExternalNetwork(PlatformNetwork, ""))

	assertDocument(t, `
services:
  web:
    image: nginx
    networks:
      - dokploy-network
  db:
    image: postgres
networks:
  dokploy-network:
    external: true
`, doc)

	assert.ErrorIs(t, doc.AttachNetwork("cache", PlatformNetwork), ErrUnknownService)
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
