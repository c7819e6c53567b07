package pgnode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"spockctl/internal/config"
	"spockctl/internal/endpoint"
	"spockctl/internal/pgconf"
	"spockctl/internal/spock"
)

// ReplicaOptions selects the nodes for streaming replica setup.
type ReplicaOptions struct {
	// Primary and Replica name configured nodes. The replica's data
	// directory is recreated from a base backup of the primary.
	Primary string
	Replica string

	// Sync configures synchronous replication with the replica's name as
	// the standby application name.
	Sync bool
}

// primaryConn is the subset of pgx.Conn the replica setup needs; tests
// substitute a scripted implementation.
type primaryConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

var connectPrimary = func(ctx context.Context, dsn string) (primaryConn, error) {
	return pgx.Connect(ctx, dsn)
}

// CreateReplica prepares the primary for streaming replication and seeds
// the replica's data directory with pg_basebackup.
//
// On the primary it creates the replication role and a physical slot,
// rewrites postgresql.conf and pg_hba.conf, and restarts the server. The
// replica's existing data directory is removed before the backup; the
// backup runs with -R so primary_conninfo and standby.signal are written
// by pg_basebackup itself. The replica is left stopped.
func (m *Manager) CreateReplica(ctx context.Context, opts ReplicaOptions) error {
	primary, err := m.cfg.Node(opts.Primary)
	if err != nil {
		return err
	}
	replica, err := m.cfg.Node(opts.Replica)
	if err != nil {
		return err
	}
	if opts.Primary == opts.Replica {
		return fmt.Errorf("replica %q cannot be its own primary", opts.Replica)
	}
	repl := m.cfg.Replication

	conn, err := connectPrimary(ctx, primary.DSN)
	if err != nil {
		return fmt.Errorf("connect to primary %s: %w", opts.Primary, err)
	}
	if err := ensureReplicationRole(ctx, conn, repl.User, repl.Password); err != nil {
		conn.Close(ctx)
		m.printer.Action("Preparing primary for replication", false)
		return err
	}
	if err := ensureReplicationSlot(ctx, conn, repl.Slot); err != nil {
		conn.Close(ctx)
		m.printer.Action("Preparing primary for replication", false)
		return err
	}
	conn.Close(ctx)

	if err := m.configurePrimary(primary, replica, opts.Sync); err != nil {
		m.printer.Action("Preparing primary for replication", false)
		return err
	}
	if err := m.Restart(ctx, opts.Primary); err != nil {
		m.printer.Action("Preparing primary for replication", false)
		return err
	}
	m.printer.Action("Preparing primary for replication", true)

	if err := m.baseBackup(ctx, primary, replica, opts); err != nil {
		m.printer.Action(fmt.Sprintf("Seeding replica %s", opts.Replica), false)
		return err
	}

	if err := m.overrideReplicaPort(opts.Replica, replica.Port); err != nil {
		m.printer.Action(fmt.Sprintf("Seeding replica %s", opts.Replica), false)
		return err
	}
	m.printer.Action(fmt.Sprintf("Seeding replica %s", opts.Replica), true)

	if opts.Sync {
		m.printer.Info(fmt.Sprintf(
			"synchronous replication: primary_conninfo must carry application_name=%s (pg_basebackup -R wrote it from the backup DSN)",
			opts.Replica))
	}
	m.printer.Info(fmt.Sprintf("replica seeded; start it with: spockctl node start %s", opts.Replica))
	return nil
}

// ensureReplicationRole creates the replication role unless it exists.
// Role names cannot be bound as parameters, so the identifier and the
// password literal are quoted explicitly.
func ensureReplicationRole(ctx context.Context, conn primaryConn, user, password string) error {
	if user == "" {
		return fmt.Errorf("replication user is not configured")
	}
	var one int
	err := conn.QueryRow(ctx, "SELECT 1 FROM pg_catalog.pg_roles WHERE rolname = $1", user).Scan(&one)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check replication role %s: %w", user, err)
	}

	stmt := fmt.Sprintf("CREATE USER %s WITH REPLICATION", pgx.Identifier{user}.Sanitize())
	if password != "" {
		stmt += " PASSWORD " + spock.QuoteLiteral(password)
	}
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create replication role %s: %w", user, err)
	}
	return nil
}

// ensureReplicationSlot creates the physical slot unless it exists.
func ensureReplicationSlot(ctx context.Context, conn primaryConn, slot string) error {
	if slot == "" {
		return fmt.Errorf("replication slot is not configured")
	}
	var one int
	err := conn.QueryRow(ctx, "SELECT 1 FROM pg_catalog.pg_replication_slots WHERE slot_name = $1", slot).Scan(&one)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check replication slot %s: %w", slot, err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_catalog.pg_create_physical_replication_slot($1, false, false)", slot); err != nil {
		return fmt.Errorf("create replication slot %s: %w", slot, err)
	}
	return nil
}

// overrideReplicaPort pins the replica's port in postgresql.auto.conf on
// top of whatever pg_basebackup carried over from the primary.
func (m *Manager) overrideReplicaPort(name string, port int) error {
	auto := filepath.Join(m.cfg.NodeDataDir(name), "postgresql.auto.conf")
	contents, err := os.ReadFile(auto)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", auto, err)
	}
	updated, _ := pgconf.SetSettings(string(contents), map[string]string{
		"port":        fmt.Sprintf("%d", port),
		"hot_standby": "on",
	}, nil)
	if err := os.WriteFile(auto, []byte(updated), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", auto, err)
	}
	return nil
}

// configurePrimary rewrites the primary's postgresql.conf and pg_hba.conf
// for streaming replication.
func (m *Manager) configurePrimary(primary, replica config.NodeConfig, sync bool) error {
	settings := map[string]string{
		"listen_addresses": "*",
		"wal_level":        "replica",
		"max_wal_senders":  "10",
		"wal_keep_size":    "512MB",
		"hot_standby":      "on",
	}
	var unset []string
	if sync {
		settings["synchronous_commit"] = "on"
		settings["synchronous_standby_names"] = replica.Name
	} else {
		settings["synchronous_commit"] = "local"
		unset = append(unset, "synchronous_standby_names")
	}

	dataDir := m.cfg.NodeDataDir(primary.Name)
	err := pgconf.EditFile(filepath.Join(dataDir, "postgresql.conf"), func(contents string) (string, bool) {
		return pgconf.SetSettings(contents, settings, unset)
	})
	if err != nil {
		return err
	}

	addr := endpoint.Endpoint{DSN: replica.DSN}.DSNField("host")
	if addr == "" {
		addr = "127.0.0.1"
	}
	return pgconf.EditFile(filepath.Join(dataDir, "pg_hba.conf"), func(contents string) (string, bool) {
		return pgconf.EnsureReplicationHBA(contents, m.cfg.Replication.User, addr+"/32")
	})
}

// baseBackup clears the replica's data directory and streams a base backup
// from the primary.
func (m *Manager) baseBackup(ctx context.Context, primary, replica config.NodeConfig, opts ReplicaOptions) error {
	dataDir := m.cfg.NodeDataDir(opts.Replica)
	if err := os.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("clear replica data directory %s: %w", dataDir, err)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("create replica data directory %s: %w", dataDir, err)
	}

	repl := m.cfg.Replication
	pep := endpoint.Endpoint{DSN: primary.DSN}
	parts := []string{
		"host=" + orDefault(pep.DSNField("host"), "127.0.0.1"),
		fmt.Sprintf("port=%d", primary.Port),
		"user=" + repl.User,
	}
	if repl.Password != "" {
		parts = append(parts, "password="+repl.Password)
	}
	if db := pep.Database(); db != "" {
		parts = append(parts, "dbname="+db)
	}
	if opts.Sync {
		parts = append(parts, "application_name="+opts.Replica)
	}

	args := []string{
		"-d", strings.Join(parts, " "),
		"-D", dataDir,
		"-X", "stream",
		"-P", "-R",
		"-l", "spockctl_replica_" + opts.Replica,
	}
	res, err := m.runner.Run(ctx, m.binPath(replica, "pg_basebackup"), args, RunOptions{})
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("pg_basebackup for %s: %s", opts.Replica, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
