package network

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jspdown/deckhand/db/migrations"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestStore_Create(t *testing.T) {
	t.Parallel()

	s := NewStore(setupTestDB(t))
	ctx := context.Background()

	created, err := s.Create(ctx, "shared-db", "overlay", true)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "shared-db", created.Name)

	// Registering the same network twice keeps its public ID.
	again, err := s.Create(ctx, "shared-db", "bridge", false)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, Network{ID: created.ID, Name: "shared-db", Driver: "bridge"}, got)
}

func TestStore_FindNetworksByIDs(t *testing.T) {
	t.Parallel()

	s := NewStore(setupTestDB(t))
	ctx := context.Background()

	first, err := s.Create(ctx, "first", "bridge", false)
	require.NoError(t, err)
	second, err := s.Create(ctx, "second", "overlay", false)
	require.NoError(t, err)

	got, err := s.FindNetworksByIDs(ctx, []string{second.ID, first.ID, second.ID})
	require.NoError(t, err)
	assert.Equal(t, []Network{second, first}, got)

	_, err = s.FindNetworksByIDs(ctx, []string{first.ID, "unknown-1", "unknown-2"})

	var missingErr *MissingError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"unknown-1", "unknown-2"}, missingErr.IDs)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	s := NewStore(setupTestDB(t))
	ctx := context.Background()

	n, err := s.Create(ctx, "ephemeral", "bridge", false)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, n.ID))

	_, err = s.Get(ctx, n.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, n.ID), ErrNotFound)

	networks, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, networks)
}

// setupTestDB initializes a PostgreSQL test database inside a container.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container based test in short mode")
	}

	pgContainer, err := postgres.Run(context.Background(), "postgres:16",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(context.Background()))
	})

	dsn, err := pgContainer.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get database connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	_, err = migrations.Migrate(db)
	require.NoError(t, err)

	return db
}
