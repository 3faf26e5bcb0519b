package simulation_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jspdown/deckhand/internal/domain"
	"github.com/jspdown/deckhand/internal/simulation"
)

func TestMakeHTTPRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		method  string
		url     string
		headers string
		body    string

		want    simulation.HTTPRequest
		wantErr string
	}{
		{
			name:    "valid request",
			method:  http.MethodPost,
			url:     "https://example.com/api",
			headers: "Content-Type: application/json\nX-Trace:  abc \n\n",
			body:    `{"foo":"bar"}`,
			want: simulation.HTTPRequest{
				Method: http.MethodPost,
				URL:    "https://example.com/api",
				Headers: http.Header{
					"Content-Type": {"application/json"},
					"X-Trace":      {"abc"},
				},
				Body: `{"foo":"bar"}`,
			},
		},
		{
			name:    "empty method",
			url:     "http://example.com",
			wantErr: "invalid simulation: method is required",
		},
		{
			name:    "method not allowed",
			method:  http.MethodConnect,
			url:     "http://example.com",
			wantErr: "invalid simulation: method CONNECT not allowed",
		},
		{
			name:    "relative url",
			method:  http.MethodGet,
			url:     "/api",
			wantErr: "invalid simulation: url must be an absolute http or https URL",
		},
		{
			name:    "unsupported scheme",
			method:  http.MethodGet,
			url:     "ftp://example.com",
			wantErr: "invalid simulation: url must be an absolute http or https URL",
		},
		{
			name:    "url too long",
			method:  http.MethodGet,
			url:     "http://example.com/" + strings.Repeat("a", 1024),
			wantErr: "invalid simulation: url is too long (max: 1024)",
		},
		{
			name:    "body too long",
			method:  http.MethodPost,
			url:     "http://example.com",
			body:    strings.Repeat("a", 1025),
			wantErr: "invalid simulation: body is too long (max: 1024)",
		},
		{
			name:    "header without separator",
			method:  http.MethodGet,
			url:     "http://example.com",
			headers: "X-Foo",
			wantErr: `invalid simulation: invalid header format, want "name: value", got: "X-Foo"`,
		},
		{
			name:    "header without name",
			method:  http.MethodGet,
			url:     "http://example.com",
			headers: ": value",
			wantErr: `invalid simulation: missing header name on line ": value"`,
		},
		{
			name:    "invalid header name",
			method:  http.MethodGet,
			url:     "http://example.com",
			headers: "X Foo: value",
			wantErr: `invalid simulation: invalid header name "X Foo"`,
		},
		{
			name:    "too many headers",
			method:  http.MethodGet,
			url:     "http://example.com",
			headers: "A: 1\nB: 1\nC: 1\nD: 1\nE: 1\nF: 1\nG: 1\nH: 1\nI: 1\nJ: 1\nK: 1",
			wantErr: "invalid simulation: too many headers (max 10)",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			got, err := simulation.MakeHTTPRequest(test.method, test.url, test.headers, test.body)
			if test.wantErr != "" {
				require.EqualError(t, err, test.wantErr)
				assert.ErrorIs(t, err, simulation.ErrInvalid)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestSimulation_Validate(t *testing.T) {
	t.Parallel()

	valid := simulation.Simulation{
		App:     domain.App{Name: "app"},
		Domains: []domain.Domain{{Host: "example.com", UniqueConfigKey: 1}},
		Request: simulation.HTTPRequest{Method: http.MethodGet, URL: "http://example.com"},
	}
	require.NoError(t, valid.Validate())

	invalid := valid
	invalid.App.Name = ""
	invalid.Domains = nil
	invalid.Request.Method = ""

	err := invalid.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalid)
	assert.ErrorIs(t, err, simulation.ErrInvalid)
	assert.Contains(t, err.Error(), "appName is required")
	assert.Contains(t, err.Error(), "at least one domain is required")
	assert.Contains(t, err.Error(), "method is required")
}

func TestSimulation_Config(t *testing.T) {
	t.Parallel()

	sim := simulation.Simulation{
		App: domain.App{Name: "shop"},
		Domains: []domain.Domain{
			{Host: "shop.example.com", ServiceName: "web", UniqueConfigKey: 1},
			{Host: "api.example.com", ServiceName: "api", Port: 8080, UniqueConfigKey: 2},
		},
		ComposeType: domain.ComposeTypeCompose,
	}

	cfg, err := sim.Config()
	require.NoError(t, err)

	assert.Len(t, cfg.HTTP.Routers, 2)
	assert.Equal(t, "http://shop-api-1:8080", cfg.HTTP.Services["shop-service-2"].LoadBalancer.Servers[0].URL)

	sim.Domains = append(sim.Domains, domain.Domain{Host: "broken.example.com", UniqueConfigKey: 3})
	_, err = sim.Config()
	assert.ErrorContains(t, err, `domain "broken.example.com"`)
}
