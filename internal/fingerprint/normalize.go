package fingerprint

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// normalizeToken applies the token-normalization rules from spec.md §4.5:
// trim whitespace/quotes, resolve an existing path to its real-path, strip
// operator-configured substrings, and discard the result if it becomes
// empty.
func normalizeToken(token string, strip []string) (string, bool) {
	token = strings.TrimSpace(token)
	token = strings.Trim(token, `"`)

	if resolved, ok := resolveExistingPath(token); ok {
		token = resolved
	}

	for _, s := range strip {
		if s == "" {
			continue
		}
		token = strings.ReplaceAll(token, s, "")
	}

	if token == "" {
		return "", false
	}
	return token, true
}

func resolveExistingPath(token string) (string, bool) {
	real, err := filepath.EvalSymlinks(token)
	if err != nil {
		return "", false
	}
	return real, true
}

// normalizeArgSet normalizes every token in args, drops empties, applies
// the exclude regex, then deduplicates and sorts the result — reorderings
// and duplicates that don't change tool behavior must not cause cache
// misses.
func normalizeArgSet(args []string, strip []string, exclude *regexp.Regexp) []string {
	seen := make(map[string]struct{}, len(args))
	var out []string
	for _, a := range args {
		norm, ok := normalizeToken(a, strip)
		if !ok {
			continue
		}
		if exclude != nil && exclude.MatchString(norm) {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	sort.Strings(out)
	return out
}

// dropExportFixes removes -export-fixes and its following value from an
// arg vector. Fix-it emission changes filesystem side effects, not
// diagnostics, and a transient output path must not perturb the digest.
func dropExportFixes(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "-export-fixes" {
			i++ // also skip the value
			continue
		}
		out = append(out, args[i])
	}
	return out
}
