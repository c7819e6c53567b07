// Package catalog reads the live node set from a running cluster.
//
// When a workflow operates over "all current nodes" rather than a statically
// configured list, one known endpoint is queried for the spock.node catalog
// and the returned rows become the endpoint set. The read happens once,
// before workflow construction, and is not re-validated mid-run: if the
// topology changes concurrently, behavior is undefined.
package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"spockctl/internal/endpoint"
)

const listNodesQuery = `SELECT node_name, dsn, location, country FROM spock.node ORDER BY node_name`

// ListNodes connects to bootstrapDSN and returns the registered Spock nodes
// as endpoints. Location and country may be NULL in the catalog and map to
// empty strings.
func ListNodes(ctx context.Context, bootstrapDSN string) ([]endpoint.Endpoint, error) {
	conn, err := pgx.Connect(ctx, bootstrapDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to bootstrap endpoint: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, listNodesQuery)
	if err != nil {
		return nil, fmt.Errorf("query spock.node: %w", err)
	}
	defer rows.Close()

	var endpoints []endpoint.Endpoint
	for rows.Next() {
		var name, dsn string
		var location, country *string
		if err := rows.Scan(&name, &dsn, &location, &country); err != nil {
			return nil, fmt.Errorf("scan spock.node row: %w", err)
		}
		ep := endpoint.Endpoint{Name: name, DSN: dsn}
		if location != nil {
			ep.Location = *location
		}
		if country != nil {
			ep.Country = *country
		}
		endpoints = append(endpoints, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read spock.node rows: %w", err)
	}

	if err := endpoint.Validate(endpoints); err != nil {
		return nil, fmt.Errorf("node catalog: %w", err)
	}
	return endpoints, nil
}
