package network

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_FindNetworksByIDs(t *testing.T) {
	t.Parallel()

	registered := mapRegistry{"net-1": {ID: "net-1", Name: "shared-db"}}
	engine := mapRegistry{
		"monitoring": {ID: "monitoring", Name: "monitoring", Driver: "bridge"},
		"net-1":      {ID: "net-1", Name: "engine-net-1"},
	}

	chain := Chain{registered, engine}

	tests := []struct {
		desc        string
		ids         []string
		want        []Network
		wantMissing []string
	}{
		{
			desc: "first registry wins",
			ids:  []string{"monitoring", "net-1"},
			want: []Network{
				{ID: "monitoring", Name: "monitoring", Driver: "bridge"},
				{ID: "net-1", Name: "shared-db"},
			},
		},
		{
			desc: "every id in the first registry",
			ids:  []string{"net-1"},
			want: []Network{{ID: "net-1", Name: "shared-db"}},
		},
		{
			desc:        "ids unknown from every registry",
			ids:         []string{"net-1", "net-2", "net-3"},
			wantMissing: []string{"net-2", "net-3"},
		},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			t.Parallel()

			got, err := chain.FindNetworksByIDs(context.Background(), test.ids)
			if test.wantMissing != nil {
				var missingErr *MissingError
				require.ErrorAs(t, err, &missingErr)
				assert.Equal(t, test.wantMissing, missingErr.IDs)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestChain_FindNetworksByIDs_failure(t *testing.T) {
	t.Parallel()

	chain := Chain{mapRegistry{}, failingRegistry{}}

	_, err := chain.FindNetworksByIDs(context.Background(), []string{"net-1"})
	assert.EqualError(t, err, "engine unreachable")
}

type mapRegistry map[string]Network

func (m mapRegistry) FindNetworksByIDs(_ context.Context, ids []string) ([]Network, error) {
	return orderByIDs(ids, m)
}

type failingRegistry struct{}

func (failingRegistry) FindNetworksByIDs(context.Context, []string) ([]Network, error) {
	return nil, errors.New("engine unreachable")
}
