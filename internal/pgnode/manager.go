package pgnode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"spockctl/internal/config"
	"spockctl/internal/output"
)

// Manager sequences PostgreSQL binaries for one configured cluster.
type Manager struct {
	cfg     *config.Config
	runner  Runner
	printer *output.Printer
}

// NewManager returns a Manager using runner for external commands and
// printer for status messages.
func NewManager(cfg *config.Config, runner Runner, printer *output.Printer) *Manager {
	return &Manager{cfg: cfg, runner: runner, printer: printer}
}

func (m *Manager) binPath(node config.NodeConfig, binary string) string {
	return filepath.Join(m.cfg.BinDir(m.cfg.NodeVersion(node)), binary)
}

// Init initializes the node's data directory (when not already present),
// writes the Spock configuration overrides, and starts the server.
func (m *Manager) Init(ctx context.Context, name string) error {
	node, err := m.cfg.Node(name)
	if err != nil {
		return err
	}
	dataDir := m.cfg.NodeDataDir(name)

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("create data directory %s: %w", dataDir, err)
	}
	if err := os.MkdirAll(m.cfg.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	if _, err := os.Stat(filepath.Join(dataDir, "PG_VERSION")); os.IsNotExist(err) {
		res, err := m.runner.Run(ctx, m.binPath(node, "initdb"), []string{"-D", dataDir}, RunOptions{})
		if err != nil {
			return err
		}
		if !res.OK() {
			m.printer.Action(fmt.Sprintf("Initializing node %s", name), false)
			return fmt.Errorf("initdb failed for %s: %s", name, strings.TrimSpace(res.Stderr))
		}
	}

	if err := m.WriteAutoConf(name); err != nil {
		return err
	}

	if err := m.Start(ctx, name); err != nil {
		m.printer.Action(fmt.Sprintf("Initializing node %s", name), false)
		return err
	}
	m.printer.Action(fmt.Sprintf("Initializing node %s", name), true)
	return nil
}

// Start starts the node's server via pg_ctl, logging to the node log file.
func (m *Manager) Start(ctx context.Context, name string) error {
	node, err := m.cfg.Node(name)
	if err != nil {
		return err
	}
	args := []string{
		"-D", m.cfg.NodeDataDir(name),
		"-o", fmt.Sprintf("-p %d", node.Port),
		"-l", m.cfg.NodeLogFile(name),
		"start",
	}
	res, err := m.runner.Run(ctx, m.binPath(node, "pg_ctl"), args, RunOptions{})
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("start %s: %s", name, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Stop stops the node's server in fast mode.
func (m *Manager) Stop(ctx context.Context, name string) error {
	node, err := m.cfg.Node(name)
	if err != nil {
		return err
	}
	args := []string{"-D", m.cfg.NodeDataDir(name), "stop", "-m", "fast"}
	res, err := m.runner.Run(ctx, m.binPath(node, "pg_ctl"), args, RunOptions{})
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("stop %s: %s", name, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Restart restarts the node in fast mode, starting it when not running.
func (m *Manager) Restart(ctx context.Context, name string) error {
	// A stop failure means the node was not running; start it regardless.
	_ = m.Stop(ctx, name)
	return m.Start(ctx, name)
}

// Destroy stops the node (best effort) and removes its data directory.
func (m *Manager) Destroy(ctx context.Context, name string) error {
	if _, err := m.cfg.Node(name); err != nil {
		return err
	}
	_ = m.Stop(ctx, name)

	dataDir := m.cfg.NodeDataDir(name)
	if err := os.RemoveAll(dataDir); err != nil {
		m.printer.Action(fmt.Sprintf("Destroying node %s", name), false)
		return fmt.Errorf("remove %s: %w", dataDir, err)
	}
	m.printer.Action(fmt.Sprintf("Destroying node %s", name), true)
	return nil
}

// Cleanup resets the node's database: drop and recreate it, reinstall the
// spock and dblink extensions, and drop leftover logical replication slots
// and replication origins.
func (m *Manager) Cleanup(ctx context.Context, name string) error {
	node, err := m.cfg.Node(name)
	if err != nil {
		return err
	}
	dbname := "pgedge"
	for _, e := range m.cfg.Endpoints() {
		if e.Name == name && e.Database() != "" {
			dbname = e.Database()
		}
	}
	port := fmt.Sprintf("-p%d", node.Port)

	type cmd struct {
		bin  string
		args []string
	}
	plain := []cmd{
		{"dropdb", []string{dbname, port, "--if-exists"}},
		{"createdb", []string{dbname, port}},
		{"psql", []string{dbname, port, "-c", "create extension if not exists spock"}},
		{"psql", []string{dbname, port, "-c", "create extension if not exists dblink"}},
	}
	for _, c := range plain {
		res, err := m.runner.Run(ctx, m.binPath(node, c.bin), c.args, RunOptions{})
		if err != nil {
			return err
		}
		if !res.OK() {
			m.printer.Action(fmt.Sprintf("Cleaning node %s", name), false)
			return fmt.Errorf("cleanup %s: %s %s: %s", name, c.bin, strings.Join(c.args, " "),
				strings.TrimSpace(res.Stderr))
		}
	}

	// Slot and origin teardown: the first psql emits DROP statements, the
	// second executes them.
	generators := []string{
		"SELECT 'SELECT pg_drop_replication_slot(' || quote_literal(slot_name) || ');' FROM pg_replication_slots WHERE slot_type = 'logical';",
		"SELECT 'SELECT pg_replication_origin_drop(' || quote_literal(roname) || ');' FROM pg_replication_origin;",
	}
	for _, gen := range generators {
		res, err := m.runner.Run(ctx, m.binPath(node, "psql"),
			[]string{dbname, port, "-t", "-A", "-c", gen}, RunOptions{})
		if err != nil {
			return err
		}
		if !res.OK() {
			m.printer.Action(fmt.Sprintf("Cleaning node %s", name), false)
			return fmt.Errorf("cleanup %s: %s", name, strings.TrimSpace(res.Stderr))
		}
		sql := strings.TrimSpace(res.Stdout)
		if sql == "" {
			continue
		}
		res, err = m.runner.Run(ctx, m.binPath(node, "psql"),
			[]string{dbname, port}, RunOptions{Stdin: sql})
		if err != nil {
			return err
		}
		if !res.OK() {
			m.printer.Action(fmt.Sprintf("Cleaning node %s", name), false)
			return fmt.Errorf("cleanup %s: %s", name, strings.TrimSpace(res.Stderr))
		}
	}

	res, err := m.runner.Run(ctx, m.binPath(node, "psql"),
		[]string{dbname, port, "-c", "drop extension if exists spock; create extension spock"}, RunOptions{})
	if err != nil {
		return err
	}
	if !res.OK() {
		m.printer.Action(fmt.Sprintf("Cleaning node %s", name), false)
		return fmt.Errorf("cleanup %s: %s", name, strings.TrimSpace(res.Stderr))
	}

	m.printer.Action(fmt.Sprintf("Cleaning node %s", name), true)
	return nil
}

// WriteAutoConf writes the node's postgresql.auto.conf with the Spock
// settings block the cluster expects.
func (m *Manager) WriteAutoConf(name string) error {
	node, err := m.cfg.Node(name)
	if err != nil {
		return err
	}
	content := fmt.Sprintf(`spock.enable_ddl_replication = 'on'
spock.include_ddl_repset = 'on'
spock.allow_ddl_from_functions = 'on'
spock.node = '%s'
port = %d
shared_preload_libraries = 'spock'
wal_level = logical
max_wal_senders = 20
max_replication_slots = 20
max_worker_processes = 20
track_commit_timestamp = on
wal_sender_timeout = 4s
DateStyle = 'ISO, DMY'
log_line_prefix = '[%%m] [%%p] [%%d] '
fsync = off
spock.exception_behaviour = 'sub_disable'
client_min_messages = log
`, name, node.Port)

	path := filepath.Join(m.cfg.NodeDataDir(name), "postgresql.auto.conf")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		m.printer.Action(fmt.Sprintf("Configuring node %s", name), false)
		return fmt.Errorf("write %s: %w", path, err)
	}
	m.printer.Action(fmt.Sprintf("Configuring node %s", name), true)
	return nil
}
