// Package pgconf performs line-oriented edits on PostgreSQL configuration
// files.
//
// The file formats are owned by PostgreSQL; this package only rewrites
// "key = value" lines in postgresql.conf and appends host entries to
// pg_hba.conf. Edits are text transforms over the full file contents so
// they can be tested on literal fixtures, with a thin file wrapper that
// writes atomically (temp file plus rename).
package pgconf

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// bareKeywords are values written unquoted in postgresql.conf.
var bareKeywords = map[string]bool{
	"on": true, "off": true, "true": true, "false": true,
	"replica": true, "logical": true, "minimal": true, "hot_standby": true,
	"md5": true, "scram-sha-256": true, "trust": true, "local": true,
	"remote_write": true, "remote_apply": true,
}

var numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// FormatValue renders a setting value the way postgresql.conf expects:
// numbers, booleans and known keywords stay bare, everything else is
// single-quoted unless already quoted.
func FormatValue(value string) string {
	if numberRe.MatchString(value) || bareKeywords[strings.ToLower(value)] {
		return value
	}
	if strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'") && len(value) >= 2 {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func settingPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`^\s*(#\s*)?` + regexp.QuoteMeta(key) + `\s*=\s*(.*)$`)
}

// SetSettings rewrites contents so each settings key holds the given value.
//
// Keys in unset are commented out first. For each setting, an existing line
// (commented or not) is replaced in place; keys with no line are appended.
// The returned boolean reports whether the contents changed.
func SetSettings(contents string, settings map[string]string, unset []string) (string, bool) {
	lines := strings.Split(contents, "\n")
	changed := false

	for _, key := range unset {
		pat := settingPattern(key)
		for i, line := range lines {
			trimmed := strings.TrimSpace(line)
			if pat.MatchString(trimmed) && !strings.HasPrefix(trimmed, "#") {
				lines[i] = "# " + trimmed
				changed = true
			}
		}
	}

	pending := make(map[string]string, len(settings))
	order := make([]string, 0, len(settings))
	for k, v := range settings {
		pending[k] = v
		order = append(order, k)
	}
	// Deterministic append order for settings absent from the file.
	sort.Strings(order)

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for key, value := range pending {
			pat := settingPattern(key)
			m := pat.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			formatted := FormatValue(value)
			if m[1] != "" || strings.TrimSpace(m[2]) != formatted {
				lines[i] = key + " = " + formatted
				changed = true
			}
			delete(pending, key)
			break
		}
	}

	for _, key := range order {
		value, ok := pending[key]
		if !ok {
			continue
		}
		lines = append(lines, key+" = "+FormatValue(value))
		changed = true
	}

	return strings.Join(lines, "\n"), changed
}

// HBAEntry renders a pg_hba.conf host line permitting replication
// connections for user from addr with scram-sha-256 auth.
func HBAEntry(database, user, addr string) string {
	return fmt.Sprintf("host    %s    %s    %s    scram-sha-256", database, user, addr)
}

// EnsureReplicationHBA appends a replication entry for user/addr unless an
// uncommented equivalent already exists. Returns the new contents and
// whether anything was added.
func EnsureReplicationHBA(contents, user, addr string) (string, bool) {
	for _, line := range strings.Split(contents, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) >= 4 && fields[0] == "host" && fields[1] == "replication" &&
			fields[2] == user && fields[3] == addr {
			return contents, false
		}
	}

	out := contents
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	out += HBAEntry("replication", user, addr) + "\n"
	return out, true
}

// EditFile applies edit to the file at path, writing the result atomically.
// Nothing is written when edit reports no change.
func EditFile(path string, edit func(contents string) (string, bool)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	updated, changed := edit(string(data))
	if !changed {
		return nil
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
