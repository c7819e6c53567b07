package workflow

import (
	"regexp"
	"strings"
)

// funcNameRe recovers the invoked function's bare name from a command like
// "SELECT spock.sub_create(...)" or "CALL spock.wait_for_sync_event(...)".
// psql echoes that name as a column header, which must not be mistaken for
// a result value.
var funcNameRe = regexp.MustCompile(`(?i)\b(?:SELECT|CALL)\s+(?:[a-z_][a-z0-9_]*\.)?([a-z_][a-z0-9_]*)\s*\(`)

var dashesRe = regexp.MustCompile(`^-+$`)

// capture extracts the step's captured value from raw psql stdout.
//
// Scanning lines from the end, it skips empty lines, row-count footers
// (lines starting with "("), column separator lines, and echoes of the
// invoked function name. The last remaining line is the value. Values that
// look like WAL positions (containing "/") are quoted as string literals
// so they can be re-embedded in a later command.
func capture(command, stdout string) string {
	header := ""
	if m := funcNameRe.FindStringSubmatch(command); m != nil {
		header = m[1]
	}

	lines := strings.Split(stdout, "\n")
	value := ""
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "(") || dashesRe.MatchString(line) {
			continue
		}
		if header != "" && line == header {
			continue
		}
		value = line
		break
	}

	if strings.Contains(value, "/") {
		return "'" + value + "'"
	}
	return value
}
