// Package endpoint defines the connection targets that workflows run against.
//
// An [Endpoint] is a named PostgreSQL node: a libpq key=value DSN plus
// descriptive metadata (location, country) mirroring the columns of the
// spock.node catalog. Endpoints are built once, from the cluster config
// file or from a live catalog read, and never mutated afterwards.
package endpoint

import (
	"fmt"
	"strings"
)

// Endpoint is a named connection target.
//
// Name must be unique within a single run; it doubles as the Spock node
// name. Source marks the endpoint as a synchronization source when joining
// a new node to the cluster.
type Endpoint struct {
	Name     string
	DSN      string
	Location string
	Country  string
	Source   bool
}

// DSNField extracts a single key's value from a libpq key=value DSN.
// It returns an empty string when the key is absent. Quoted values and
// escapes are not handled; the cluster tooling only ever produces plain
// space-separated DSNs.
func (e Endpoint) DSNField(key string) string {
	for _, part := range strings.Fields(e.DSN) {
		k, v, ok := strings.Cut(part, "=")
		if ok && k == key {
			return v
		}
	}
	return ""
}

// Database returns the dbname component of the DSN. Spock derives
// replication slot names from it.
func (e Endpoint) Database() string {
	return e.DSNField("dbname")
}

// Validate reports the first structural problem with the endpoint set:
// an empty set, an endpoint with no name, or a duplicated name.
func Validate(endpoints []Endpoint) error {
	if len(endpoints) == 0 {
		return fmt.Errorf("no endpoints supplied")
	}
	seen := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		if ep.Name == "" {
			return fmt.Errorf("endpoint with empty name (dsn %q)", ep.DSN)
		}
		if seen[ep.Name] {
			return fmt.Errorf("duplicate endpoint name %q", ep.Name)
		}
		seen[ep.Name] = true
	}
	return nil
}
