package traefik

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traefik/traefik/v3/pkg/config/dynamic"
	"golang.org/x/crypto/bcrypt"

	"github.com/jspdown/deckhand/internal/domain"
)

func TestDefaultMiddlewares(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]*dynamic.Middleware{
		"redirect-to-https": {
			RedirectScheme: &dynamic.RedirectScheme{Scheme: "https", Permanent: true},
		},
	}, DefaultMiddlewares())
}

func TestPathMiddlewares(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc   string
		domain domain.Domain
		want   map[string]*dynamic.Middleware
	}{
		{
			desc:   "none",
			domain: domain.Domain{Path: "/api", UniqueConfigKey: 1},
			want:   map[string]*dynamic.Middleware{},
		},
		{
			desc:   "strip path",
			domain: domain.Domain{Path: "/api", StripPath: true, UniqueConfigKey: 1},
			want: map[string]*dynamic.Middleware{
				"stripprefix-app-1": {StripPrefix: &dynamic.StripPrefix{Prefixes: []string{"/api"}}},
			},
		},
		{
			desc:   "internal path",
			domain: domain.Domain{InternalPath: "/hello", UniqueConfigKey: 2},
			want: map[string]*dynamic.Middleware{
				"addprefix-app-2": {AddPrefix: &dynamic.AddPrefix{Prefix: "/hello"}},
			},
		},
		{
			desc:   "root internal path",
			domain: domain.Domain{InternalPath: "/", UniqueConfigKey: 2},
			want:   map[string]*dynamic.Middleware{},
		},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, test.want, PathMiddlewares("app", test.domain))
		})
	}
}

func TestAppMiddlewares(t *testing.T) {
	t.Parallel()

	app := domain.App{
		Name:      "app",
		Redirects: []domain.Redirect{{UniqueConfigKey: 1, Regex: "^/a", Replacement: "/b"}},
	}

	got, err := AppMiddlewares(app, domain.Domain{})
	require.NoError(t, err)

	assert.Equal(t, map[string]*dynamic.Middleware{
		"redirect-app-1": {RedirectRegex: &dynamic.RedirectRegex{Regex: "^/a", Replacement: "/b"}},
	}, got)
}

func TestHashCredentials(t *testing.T) {
	t.Parallel()

	app := domain.App{
		Name:     "app",
		Security: []domain.Security{{Username: "admin", Password: "s3cret"}},
	}

	hashed, err := HashCredentials(app)
	require.NoError(t, err)

	require.Len(t, hashed.Security, 1)
	assert.Equal(t, "admin", hashed.Security[0].Username)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hashed.Security[0].Password), []byte("s3cret")))
	assert.Equal(t, "s3cret", app.Security[0].Password)

	again, err := HashCredentials(hashed)
	require.NoError(t, err)
	assert.Equal(t, hashed, again)
}

func TestDomainLabels_sharedBasicAuth(t *testing.T) {
	t.Parallel()

	app, err := HashCredentials(domain.App{
		Name:     "app",
		Security: []domain.Security{{Username: "admin", Password: "s3cret"}},
	})
	require.NoError(t, err)

	var definitions []string
	for _, d := range []domain.Domain{
		{Host: "a.example.com", UniqueConfigKey: 1},
		{Host: "b.example.com", UniqueConfigKey: 2},
	} {
		labels, err := DomainLabels(app, d, EntrypointWeb)
		require.NoError(t, err)

		for _, label := range labels {
			if strings.HasPrefix(label, "traefik.http.middlewares.auth-app.basicauth.users=") {
				definitions = append(definitions, label)
			}
		}
	}

	require.Len(t, definitions, 2)
	assert.Equal(t, definitions[0], definitions[1])

	middlewares, err := AppMiddlewares(app, domain.Domain{})
	require.NoError(t, err)
	assert.Equal(t, dynamic.Users{"admin:" + app.Security[0].Password}, middlewares["auth-app"].BasicAuth.Users)
}
