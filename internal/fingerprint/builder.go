// Package fingerprint combines preprocessed source text, the applicable
// .clang-tidy configuration, and normalized argument sets into the single
// 40-hex SHA-1 digest that drives cache lookups.
package fingerprint

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// sourceExtensions are the extensions (case-insensitive) recognized when
// locating the translation unit inside the analyzer args.
var sourceExtensions = map[string]struct{}{
	".c": {}, ".cc": {}, ".cpp": {}, ".cxx": {}, ".h": {}, ".hpp": {},
}

// Build computes the fingerprint digest for one invocation. analyzerArgs
// and compilerArgs are the raw (unnormalized) vectors including argv[0];
// configDirs is the operator's allowed-directories list from
// --directories_with_clang_tidy. dump/dumpDir enable the hasher's
// byte-for-byte audit log.
func Build(
	preprocessed []byte,
	analyzerArgs []string,
	compilerArgs []string,
	configDirs []string,
	strip []string,
	exclude *regexp.Regexp,
	dump bool,
	dumpDir string,
) (string, error) {
	h, err := NewHasher(dump, dumpDir)
	if err != nil {
		return "", err
	}
	defer h.Close()

	h.Update(preprocessed)

	for _, path := range activeConfigFiles(analyzerArgs, configDirs) {
		if err := feedConfigFile(h, path, strip); err != nil {
			return "", err
		}
	}

	analyzerSet := normalizeArgSet(dropExportFixes(tail(analyzerArgs)), strip, exclude)
	for _, a := range analyzerSet {
		h.Update([]byte(a))
	}

	compilerSet := normalizeArgSet(tail(compilerArgs), strip, exclude)
	for _, a := range compilerSet {
		h.Update([]byte(a))
	}

	return h.HexDigest(), nil
}

func tail(args []string) []string {
	if len(args) <= 1 {
		return nil
	}
	return args[1:]
}

// feedConfigFile streams one .clang-tidy file's non-comment, normalized,
// whitespace-split tokens into the hasher, concatenated with no separator
// — the sequence is fixed entirely by iteration order.
func feedConfigFile(h *Hasher, path string, strip []string) error {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator's configured directory list
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "# ") {
			continue
		}
		for _, tok := range strings.Fields(line) {
			norm, ok := normalizeToken(tok, strip)
			if !ok {
				continue
			}
			h.Update([]byte(norm))
		}
	}
	return scanner.Err()
}

// activeConfigFiles returns the .clang-tidy files that contribute to the
// digest: one per configDirs entry that is an ancestor of the translation
// unit, in lexicographic path order.
func activeConfigFiles(analyzerArgs, configDirs []string) []string {
	source := sourceFile(analyzerArgs)
	if source == "" {
		return nil
	}
	sourceAbs, err := filepath.Abs(source)
	if err != nil {
		return nil
	}

	var files []string
	for _, dir := range configDirs {
		dirAbs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if filepath.Dir(sourceAbs) == dirAbs || isAncestor(dirAbs, sourceAbs) {
			path := filepath.Join(dirAbs, ".clang-tidy")
			if _, statErr := os.Stat(path); statErr == nil {
				files = append(files, path)
			}
		}
	}
	sort.Strings(files)
	return files
}

// isAncestor reports whether dir is an ancestor (inclusive) of path, i.e.
// commonpath(path, dir) == dir.
func isAncestor(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// sourceFile returns the first path in analyzerArgs (past argv[0]) that
// exists and carries a recognized source extension.
func sourceFile(analyzerArgs []string) string {
	for _, a := range tail(analyzerArgs) {
		ext := strings.ToLower(filepath.Ext(a))
		if _, ok := sourceExtensions[ext]; !ok {
			continue
		}
		if _, err := os.Stat(a); err != nil {
			continue
		}
		return a
	}
	return ""
}
