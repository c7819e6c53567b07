// Package spock generates the SQL statements behind cluster workflows.
//
// Every statement targets the Spock extension's management functions
// (node_create, sub_create, sync_event, ...) or the PostgreSQL replication
// primitives they rely on. Generation is pure string building; values are
// embedded through [QuoteLiteral] so endpoint names and DSNs containing
// quotes cannot break out of the statement.
package spock

import (
	"fmt"
	"strings"
)

// Timeouts passed to the Spock wait functions, in milliseconds.
const (
	SyncEventTimeout   = 1200000
	ApplyWorkerTimeout = 1000
)

// LagThresholdSeconds is the replication lag below which a newly joined
// node is considered caught up.
const LagThresholdSeconds = 59

// DefaultReplicationSets are the sets a new subscription attaches to.
var DefaultReplicationSets = []string{"default", "default_insert_only", "ddl_sql"}

// QuoteLiteral renders s as a PostgreSQL string literal, doubling any
// embedded single quotes.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// SubName returns the canonical subscription name for a provider/subscriber
// pair: sub_<provider>_<subscriber>.
func SubName(provider, subscriber string) string {
	return fmt.Sprintf("sub_%s_%s", provider, subscriber)
}

// RepsetName returns the per-node replication set name.
func RepsetName(node string) string {
	return node + "r"
}

// SlotName returns the logical replication slot name Spock expects for a
// disabled subscription from provider to subscriber on database dbname.
func SlotName(dbname, provider, subscriber string) string {
	return fmt.Sprintf("spk_%s_%s_%s", dbname, provider, SubName(provider, subscriber))
}

// NodeCreate registers a node in the Spock catalog.
func NodeCreate(name, dsn, location, country string) string {
	return fmt.Sprintf(`SELECT spock.node_create(
    node_name => %s,
    dsn => %s,
    location => %s,
    country => %s
);`, QuoteLiteral(name), QuoteLiteral(dsn), QuoteLiteral(location), QuoteLiteral(country))
}

// SubOptions controls subscription creation. The zero value is not useful;
// start from [NewSubOptions].
type SubOptions struct {
	Name        string
	ProviderDSN string

	// SynchronizeStructure and SynchronizeData control the initial copy.
	// Both are skipped for the disabled reverse subscriptions created
	// while joining a node.
	SynchronizeStructure bool
	SynchronizeData      bool
	Enabled              bool
}

// NewSubOptions returns SubOptions for a regular, enabled subscription with
// full structure and data synchronization.
func NewSubOptions(name, providerDSN string) SubOptions {
	return SubOptions{
		Name:                 name,
		ProviderDSN:          providerDSN,
		SynchronizeStructure: true,
		SynchronizeData:      true,
		Enabled:              true,
	}
}

// SubCreate builds the spock.sub_create call for opts.
func SubCreate(opts SubOptions) string {
	sets := make([]string, len(DefaultReplicationSets))
	for i, s := range DefaultReplicationSets {
		sets[i] = QuoteLiteral(s)
	}
	return fmt.Sprintf(`SELECT spock.sub_create(
    subscription_name => %s,
    provider_dsn => %s,
    replication_sets => ARRAY[%s],
    synchronize_structure => %t,
    synchronize_data => %t,
    forward_origins => ARRAY[]::text[],
    apply_delay => '0'::interval,
    force_text_transfer => false,
    enabled => %t
);`, QuoteLiteral(opts.Name), QuoteLiteral(opts.ProviderDSN), strings.Join(sets, ", "),
		opts.SynchronizeStructure, opts.SynchronizeData, opts.Enabled)
}

// SubDrop drops a subscription.
func SubDrop(name string) string {
	return fmt.Sprintf("SELECT spock.sub_drop(subscription_name => %s);", QuoteLiteral(name))
}

// NodeDrop removes a node from the Spock catalog.
func NodeDrop(name string) string {
	return fmt.Sprintf("SELECT spock.node_drop(node_name => %s);", QuoteLiteral(name))
}

// RepsetCreate creates a replication set replicating all DML.
func RepsetCreate(name string) string {
	return fmt.Sprintf(`SELECT spock.repset_create(
    set_name => %s,
    replicate_insert => true,
    replicate_update => true,
    replicate_delete => true,
    replicate_truncate => true
);`, QuoteLiteral(name))
}

// CreateReplicationSlot creates the logical slot a disabled subscription
// will attach to once enabled.
func CreateReplicationSlot(slot string) string {
	return fmt.Sprintf("SELECT pg_create_logical_replication_slot(%s, 'spock_output');", QuoteLiteral(slot))
}

// SyncEvent triggers a synchronization event on a provider and returns its
// LSN position.
func SyncEvent() string {
	return "SELECT spock.sync_event();"
}

// WaitForSyncEvent blocks until the sync event at lsnExpr from origin has
// been observed locally. lsnExpr is usually a workflow placeholder for a
// previously captured LSN and is cast server-side.
func WaitForSyncEvent(origin, lsnExpr string, timeoutMillis int) string {
	return fmt.Sprintf("CALL spock.wait_for_sync_event(true, %s, %s::pg_lsn, %d);",
		QuoteLiteral(origin), lsnExpr, timeoutMillis)
}

// WaitForApplyWorker blocks until the apply worker for the subscription at
// subIDExpr has started. subIDExpr is usually a workflow placeholder for a
// previously captured subscription id.
func WaitForApplyWorker(subIDExpr string, timeoutMillis int) string {
	return fmt.Sprintf("SELECT spock.wait_for_apply_worker(%s, %d);", subIDExpr, timeoutMillis)
}

// LagCheck builds a DO block that loops server-side, sleeping one second
// per iteration, until replication lag from every origin to receiver drops
// under thresholdSeconds.
func LagCheck(origins []string, receiver string, thresholdSeconds int) string {
	var decls, selects, notices, exits []string
	for _, origin := range origins {
		v := fmt.Sprintf("lag_%s_%s", origin, receiver)
		decls = append(decls, fmt.Sprintf("    %s interval;", v))
		selects = append(selects, fmt.Sprintf(`        SELECT now() - commit_timestamp INTO %s
        FROM spock.lag_tracker
        WHERE origin_name = %s AND receiver_name = %s;`,
			v, QuoteLiteral(origin), QuoteLiteral(receiver)))
		notices = append(notices, fmt.Sprintf("%s -> %s lag: %%", origin, receiver))
		exits = append(exits, fmt.Sprintf("%s IS NOT NULL AND extract(epoch FROM %s) < %d", v, v, thresholdSeconds))
	}

	noticeArgs := make([]string, len(origins))
	for i, origin := range origins {
		noticeArgs[i] = fmt.Sprintf("COALESCE(lag_%s_%s::text, 'NULL')", origin, receiver)
	}

	return fmt.Sprintf(`DO $$
DECLARE
%s
BEGIN
    LOOP
%s

        RAISE NOTICE '%s', %s;

        EXIT WHEN %s;

        PERFORM pg_sleep(1);
    END LOOP;
END
$$;`,
		strings.Join(decls, "\n"),
		strings.Join(selects, "\n\n"),
		strings.Join(notices, ", "),
		strings.Join(noticeArgs, ", "),
		strings.Join(exits, "\n                  AND "))
}
