// Package compiledb resolves a source file's compiler command from a
// compile_commands.json database, as produced by CMake and similar build
// generators.
package compiledb

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// entry mirrors one compile_commands.json record. Either Command (a shell
// string) or Arguments (a pre-split vector) is present; Command wins when
// both are.
type entry struct {
	File      string   `json:"file"`
	Command   string   `json:"command"`
	Arguments []string `json:"arguments"`
}

// DB is a loaded, cached compile_commands.json database.
type DB struct {
	entries []entry
	logger  *slog.Logger
}

// Load reads and parses dir/compile_commands.json. On any failure to read
// or parse, it logs and returns an empty DB — per spec, a missing or
// malformed database degrades fingerprinting, it does not fail the wrapper.
func Load(dir string, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	path := filepath.Join(dir, "compile_commands.json")

	raw, err := os.ReadFile(path) //nolint:gosec // path is operator-configured, not user input
	if err != nil {
		logger.Warn("compiledb: failed to read database", "path", path, "error", err)
		return &DB{logger: logger}
	}

	var entries []entry
	if err := json.Unmarshal(sanitize(raw), &entries); err != nil {
		logger.Warn("compiledb: failed to parse database", "path", path, "error", err)
		return &DB{logger: logger}
	}
	return &DB{entries: entries, logger: logger}
}

// sanitize works around malformed databases emitted by some upstream
// generators that escape quotes as \\\" instead of \". This is a narrow,
// deliberately unextended workaround (see DESIGN NOTES): \\\" becomes a
// literal ', then every remaining backslash is doubled so the JSON decoder
// doesn't choke on a dangling escape.
func sanitize(raw []byte) []byte {
	s := strings.ReplaceAll(string(raw), `\\\"`, `'`)
	s = strings.ReplaceAll(s, `\`, `\\`)
	return []byte(s)
}

// Resolve recovers the compiler-arg vector for sourceFile, matching
// database entries by real-path equality. At most one match is used;
// Command (shell-split) is preferred over Arguments[0] (already split).
// Entries whose File no longer exists on disk are skipped without error.
func (db *DB) Resolve(_ string, sourceFile string) ([]string, bool) {
	wantReal, err := realPath(sourceFile)
	if err != nil {
		return nil, false
	}

	for _, e := range db.entries {
		if _, err := os.Stat(e.File); err != nil {
			continue
		}
		entryReal, err := realPath(e.File)
		if err != nil {
			continue
		}
		if entryReal != wantReal {
			continue
		}
		if e.Command != "" {
			return shellSplit(e.Command), true
		}
		if len(e.Arguments) > 0 {
			return e.Arguments, true
		}
	}
	return nil, false
}

func realPath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			return "", fmt.Errorf("resolving path %q: %w", path, err)
		}
		return abs, nil
	}
	return resolved, nil
}

// shellSplit splits a shell command line on unquoted whitespace, honoring
// single and double quotes. It does not interpret shell escapes beyond
// quote matching — compile_commands.json commands are expected to be
// simple argv joins, not arbitrary shell scripts.
func shellSplit(s string) []string {
	var args []string
	var cur strings.Builder
	var quote rune

	flush := func() {
		if cur.Len() > 0 {
			args = append(args, cur.String())
			cur.Reset()
		}
	}

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return args
}
