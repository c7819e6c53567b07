package pgnode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// sourceDir locates the PostgreSQL source tree for version under root.
// It tries postgresql-<version> exactly, then postgresql-<major>, then the
// newest directory with the postgresql-<version> prefix.
func sourceDir(root, version string) (string, error) {
	exact := filepath.Join(root, "postgresql-"+version)
	if fi, err := os.Stat(exact); err == nil && fi.IsDir() {
		return exact, nil
	}

	major, _, _ := strings.Cut(version, ".")
	if major != version {
		p := filepath.Join(root, "postgresql-"+major)
		if fi, err := os.Stat(p); err == nil && fi.IsDir() {
			return p, nil
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("read source root %s: %w", root, err)
	}
	prefix := "postgresql-" + version
	var best string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) && e.Name() > best {
			best = e.Name()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no postgresql-%s source under %s", version, root)
	}
	return filepath.Join(root, best), nil
}

// Compile builds PostgreSQL version from source and installs it under the
// configured bin root. Assertions and debug symbols are enabled since these
// installs back development clusters.
func (m *Manager) Compile(ctx context.Context, version string) error {
	src, err := sourceDir(m.cfg.Paths.SourceDir, version)
	if err != nil {
		return err
	}
	prefix := filepath.Join(m.cfg.Paths.BinDir, "pgsql-"+version)

	steps := []struct {
		desc string
		bin  string
		args []string
	}{
		{"configure", "./configure", []string{
			"--prefix=" + prefix,
			"--enable-cassert",
			"CFLAGS=-g3 -O0",
		}},
		{"make", "make", []string{fmt.Sprintf("-j%d", makeJobs())}},
		{"make install", "make", []string{"install"}},
	}
	for _, s := range steps {
		res, err := m.runner.Run(ctx, s.bin, s.args, RunOptions{Dir: src})
		if err != nil {
			return err
		}
		if !res.OK() {
			m.printer.Action(fmt.Sprintf("Compiling PostgreSQL %s", version), false)
			return fmt.Errorf("%s failed in %s: %s", s.desc, src, strings.TrimSpace(res.Stderr))
		}
	}
	m.printer.Action(fmt.Sprintf("Compiling PostgreSQL %s", version), true)
	return nil
}

func makeJobs() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 2
}
