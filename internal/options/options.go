// Package options parses a ctcache invocation — the management-mode
// sentinels, the wrapped analyzer's argument vector, and the
// environment-sourced configuration — into a single immutable Options
// value.
package options

// Mode classifies a ctcache invocation.
type Mode int

const (
	// ModeRun wraps an analyzer invocation: build a fingerprint, consult
	// the cache, run the analyzer on a miss.
	ModeRun Mode = iota
	// ModePrintCacheDir prints the resolved cache directory and exits.
	ModePrintCacheDir
	// ModeClean recursively removes the cache directory and exits.
	ModeClean
	// ModeShowStats prints cache statistics and exits.
	ModeShowStats
	// ModeZeroStats deletes the local stats file and exits.
	ModeZeroStats
)

// CompileDBResolver recovers a source file's compiler command from a
// compile_commands.json database rooted at dbDir. Implemented by
// internal/compiledb; kept as an interface here to avoid a dependency
// cycle between the two packages.
type CompileDBResolver interface {
	Resolve(dbDir, sourceFile string) ([]string, bool)
}

// Options is an immutable record of one ctcache invocation.
type Options struct {
	// RawArgs is the full outgoing argument vector used to re-invoke the
	// analyzer on a cache miss: the original invocation args with only the
	// ctcache-private --directories_with_clang_tidy= flag removed. In
	// inline mode this still carries the "-- <compiler args>" tail verbatim
	// — clang-tidy itself needs that tail to see include paths and defines,
	// so it must never be trimmed down to AnalyzerArgs for re-invocation.
	RawArgs      []string
	AnalyzerArgs []string
	CompilerArgs []string // raw compiler args (argv[0] included); empty if unrecoverable
	ConfigDirs   []string
	Mode         Mode
	CacheDir     string
	Env          Env
}

// recognizedModeFlags maps args[0] to a management mode. Any other leading
// token means "wrap this analyzer invocation."
var recognizedModeFlags = map[string]Mode{
	"--cache-dir":  ModePrintCacheDir,
	"--show-stats": ModeShowStats,
	"--clean":      ModeClean,
	"--zero-stats": ModeZeroStats,
}

// Parse builds Options from the argument vector (minus the program name)
// and the process environment. resolver may be nil; compile-DB mode then
// always fails to recover compiler args.
func Parse(args []string, env Env, resolver CompileDBResolver) *Options {
	opts := &Options{
		RawArgs:  args,
		Mode:     ModeRun,
		CacheDir: env.CacheDir,
		Env:      env,
	}

	if len(args) == 0 {
		return opts
	}
	if mode, ok := recognizedModeFlags[args[0]]; ok {
		opts.Mode = mode
		return opts
	}

	withoutDirs, dirs := extractDirectoriesFlag(args)
	opts.ConfigDirs = dirs
	opts.RawArgs = withoutDirs

	analyzerArgs, compilerArgs, ok := splitInline(withoutDirs)
	if ok {
		opts.AnalyzerArgs = analyzerArgs
		opts.CompilerArgs = compilerArgs
		return opts
	}

	normalized := normalizeDashP(withoutDirs)
	dbDir, sourceFile, ok := findCompileDB(normalized)
	if !ok || resolver == nil {
		opts.AnalyzerArgs = normalized
		return opts
	}

	opts.AnalyzerArgs = normalized
	recovered, found := resolver.Resolve(dbDir, sourceFile)
	if !found {
		return opts
	}
	opts.CompilerArgs = recovered
	return opts
}
