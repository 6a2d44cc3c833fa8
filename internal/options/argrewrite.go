package options

import "strings"

// directoriesFlagPrefix is the synthetic flag extracted before anything
// else inspects the analyzer args. "*" is used as the directory separator
// because it cannot appear in filesystem paths on the platforms ctcache
// targets.
const directoriesFlagPrefix = "--directories_with_clang_tidy="

// extractDirectoriesFlag removes the --directories_with_clang_tidy=... flag
// from args, if present, and returns the remaining args plus the decoded
// directory list. A pure transform: the input slice is never mutated.
func extractDirectoriesFlag(args []string) (remaining, dirs []string) {
	remaining = make([]string, 0, len(args))
	for _, a := range args {
		if strings.HasPrefix(a, directoriesFlagPrefix) {
			value := strings.TrimPrefix(a, directoriesFlagPrefix)
			if value != "" {
				dirs = strings.Split(value, "*")
			}
			continue
		}
		remaining = append(remaining, a)
	}
	return remaining, dirs
}

// splitInline splits args on a standalone "--" separator into analyzer args
// and compiler args. ok is false if no separator is present.
func splitInline(args []string) (analyzerArgs, compilerArgs []string, ok bool) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:], true
		}
	}
	return nil, nil, false
}

// normalizeDashP rewrites a standalone "-p=DIR" token into two tokens
// "-p" "DIR", matching the shape a standalone "-p DIR" pair already has.
// This is required so compile-DB detection only needs to look for "-p".
func normalizeDashP(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if strings.HasPrefix(a, "-p=") {
			out = append(out, "-p", strings.TrimPrefix(a, "-p="))
			continue
		}
		out = append(out, a)
	}
	return out
}

// findCompileDB scans normalized args for exactly one "-p <dir>" pair and
// the first non-flag token following it (the source file). ok is false if
// there isn't exactly one "-p".
func findCompileDB(args []string) (dbDir, sourceFile string, ok bool) {
	pIndex := -1
	pCount := 0
	for i, a := range args {
		if a == "-p" && i+1 < len(args) {
			pIndex = i
			pCount++
		}
	}
	if pCount != 1 {
		return "", "", false
	}
	dbDir = args[pIndex+1]
	for _, a := range args[pIndex+2:] {
		if !strings.HasPrefix(a, "-") {
			sourceFile = a
			break
		}
	}
	if sourceFile == "" {
		return "", "", false
	}
	return dbDir, sourceFile, true
}

// RewriteForPreprocess applies the canonical preprocess-output transforms to
// a raw compiler-arg vector, expressed as successive pure transforms rather
// than in-place mutation. The result is suitable for internal/preprocess.Run
// but no longer matches the original invocation — callers that need the
// analyzer's real compiler args (e.g. internal/fingerprint) must use the
// Options.CompilerArgs value directly, before this rewrite is applied.
func RewriteForPreprocess(compilerArgs []string) []string {
	if len(compilerArgs) == 0 {
		return compilerArgs
	}
	args := insertAfterArgv0(compilerArgs, "-D__clang_analyzer__=1")
	args = substituteOutputTarget(args)
	args = mapCompileToPreprocess(args)
	args = insertAfterFlag(args, "-E", "-P")
	return args
}

func insertAfterArgv0(args []string, token string) []string {
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0], token)
	out = append(out, args[1:]...)
	return out
}

func substituteOutputTarget(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i, a := range out {
		if (a == "-o" || a == "--output") && i+1 < len(out) {
			out[i+1] = "-"
		}
	}
	return out
}

func mapCompileToPreprocess(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a == "-c" {
			out[i] = "-E"
			continue
		}
		out[i] = a
	}
	return out
}

func insertAfterFlag(args []string, flag, token string) []string {
	out := make([]string, 0, len(args)+1)
	for _, a := range args {
		out = append(out, a)
		if a == flag {
			out = append(out, token)
		}
	}
	return out
}
