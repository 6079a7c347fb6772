package component

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository defines the interface for topology loading.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// ListComponents retrieves all provisioned components in stable
	// insertion order.
	ListComponents(ctx context.Context) ([]Component, error)

	// ListConnections retrieves all directed connections in stable
	// insertion order.
	ListConnections(ctx context.Context) ([]Connection, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// ListComponents retrieves all components ordered by their provisioned
// sort order.
func (r *SQLiteRepository) ListComponents(ctx context.Context) ([]Component, error) {
	query := `
		SELECT id, name, category, subtype, manufacturer, model, serial,
			driver, address
		FROM components
		ORDER BY sort_order, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying components: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	var components []Component
	for rows.Next() {
		var c Component
		err := rows.Scan(
			&c.ID, &c.Name, &c.Category, &c.Subtype,
			&c.Manufacturer, &c.Model, &c.Serial,
			&c.Driver, &c.Address,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning component: %w", err)
		}
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating components: %w", err)
	}

	return components, nil
}

// ListConnections retrieves all connections ordered by their provisioned
// sort order.
func (r *SQLiteRepository) ListConnections(ctx context.Context) ([]Connection, error) {
	query := `
		SELECT from_id, to_id
		FROM connections
		ORDER BY sort_order, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	var connections []Connection
	for rows.Next() {
		var conn Connection
		if err := rows.Scan(&conn.Start, &conn.End); err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		connections = append(connections, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connections: %w", err)
	}

	return connections, nil
}
