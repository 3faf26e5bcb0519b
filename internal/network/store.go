package network

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/lithammer/shortuuid/v4"
)

// Store stores Networks in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db: db,
	}
}

// Create registers a network, a unique public ID is assigned to it.
func (s *Store) Create(ctx context.Context, name, driver string, internal bool) (Network, error) {
	n := Network{
		ID:       shortuuid.New(),
		Name:     name,
		Driver:   driver,
		Internal: internal,
	}

	query := `
		INSERT INTO networks (public_id, name, driver, internal)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT(name) DO UPDATE SET driver = EXCLUDED.driver, internal = EXCLUDED.internal
		RETURNING public_id
	`
	err := s.db.QueryRowContext(ctx, query, n.ID, n.Name, n.Driver, n.Internal).Scan(&n.ID)
	if err != nil {
		return Network{}, fmt.Errorf("inserting network: %w", err)
	}

	return n, nil
}

// Get retrieves a Network from its public ID.
func (s *Store) Get(ctx context.Context, id string) (Network, error) {
	query := `
		SELECT public_id, name, driver, internal FROM networks
		WHERE public_id = $1
	`

	var n Network
	err := s.db.QueryRowContext(ctx, query, id).Scan(&n.ID, &n.Name, &n.Driver, &n.Internal)
	if errors.Is(err, sql.ErrNoRows) {
		return Network{}, ErrNotFound
	} else if err != nil {
		return Network{}, err
	}

	return n, nil
}

// List lists every registered Network, ordered by name.
func (s *Store) List(ctx context.Context) ([]Network, error) {
	query := `SELECT public_id, name, driver, internal FROM networks ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing networks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanNetworks(rows)
}

// Delete removes a Network from its public ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM networks WHERE public_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting network: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting deleted networks: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}

	return nil
}

// FindNetworksByIDs returns the networks identified by the given public IDs.
func (s *Store) FindNetworksByIDs(ctx context.Context, ids []string) ([]Network, error) {
	query := `
		SELECT public_id, name, driver, internal FROM networks
		WHERE public_id = ANY($1)
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("finding networks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	networks, err := scanNetworks(rows)
	if err != nil {
		return nil, err
	}

	found := make(map[string]Network, len(networks))
	for _, n := range networks {
		found[n.ID] = n
	}

	return orderByIDs(ids, found)
}

func scanNetworks(rows *sql.Rows) ([]Network, error) {
	var networks []Network
	for rows.Next() {
		var n Network
		if err := rows.Scan(&n.ID, &n.Name, &n.Driver, &n.Internal); err != nil {
			return nil, fmt.Errorf("scanning network: %w", err)
		}

		networks = append(networks, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading networks: %w", err)
	}

	return networks, nil
}
