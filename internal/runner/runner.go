// Package runner drives one wrapped analyzer invocation: fingerprint it,
// consult the cache, and only fall back to actually running the analyzer on
// a miss.
package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"

	"github.com/ctcache/ctcache/internal/fingerprint"
	"github.com/ctcache/ctcache/internal/options"
	"github.com/ctcache/ctcache/internal/preprocess"
)

// Cache is the subset of internal/coordinator.Coordinator's API the runner
// needs, declared here so this package never imports the concrete
// coordinator type.
type Cache interface {
	IsCached(ctx context.Context, digest string) bool
	GetCacheData(ctx context.Context, digest string) ([]byte, bool)
	StoreInCache(ctx context.Context, digest string)
	StoreInCacheWithData(ctx context.Context, digest string, data []byte)
}

// Runner wraps one analyzer invocation against a Cache.
type Runner struct {
	cache  Cache
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger attaches a structured logger; defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New builds a Runner against the given cache.
func New(cache Cache, opts ...Option) *Runner {
	r := &Runner{cache: cache, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the full cache-or-invoke decision for one wrapped
// invocation and returns the process exit code to propagate. stdout and
// stderr receive whatever the analyzer would have written directly, or a
// cached payload replay on a payload-mode hit.
func (r *Runner) Run(ctx context.Context, opts *options.Options, stdout, stderr io.Writer) int {
	digest := r.fingerprint(ctx, opts)

	if digest != "" {
		if opts.Env.SaveOutput {
			if data, ok := r.cache.GetCacheData(ctx, digest); ok {
				_, _ = stdout.Write(data)
				return 0
			}
		} else if r.cache.IsCached(ctx, digest) {
			return 0
		}
	}

	exitCode, captured := r.invokeAnalyzer(ctx, opts, stdout, stderr)

	tidySuccess := exitCode == 0 && (len(captured) == 0 || opts.Env.IgnoreOutput || opts.Env.SaveOutput)
	if tidySuccess && digest != "" {
		if opts.Env.SaveOutput {
			r.cache.StoreInCacheWithData(ctx, digest, captured)
		} else {
			r.cache.StoreInCache(ctx, digest)
		}
	}

	return exitCode
}

// fingerprint builds the cache-lookup digest for this invocation. Any
// failure along the way — no recovered compiler args, a preprocessing
// error, or a fingerprint-builder error — means the invocation proceeds
// uncached rather than aborting: cache operations must never mask an
// analyzer result.
func (r *Runner) fingerprint(ctx context.Context, opts *options.Options) string {
	if len(opts.CompilerArgs) == 0 {
		return ""
	}

	rewritten := options.RewriteForPreprocess(opts.CompilerArgs)
	preprocessed, err := preprocess.Run(ctx, rewritten)
	if err != nil {
		r.logger.Warn("runner: preprocessing failed, proceeding uncached", "error", err)
		return ""
	}

	digest, err := fingerprint.Build(
		preprocessed,
		opts.AnalyzerArgs,
		opts.CompilerArgs,
		opts.ConfigDirs,
		opts.Env.Strip,
		opts.Env.ExcludeHashRegex,
		opts.Env.Dump,
		opts.Env.DumpDir,
	)
	if err != nil {
		r.logger.Warn("runner: fingerprint build failed, proceeding uncached", "error", err)
		return ""
	}
	return digest
}

// invokeAnalyzer runs the original analyzer command — the full outgoing
// args, including the inline mode's "-- <compiler args>" tail the analyzer
// itself needs — streaming its stdout and stderr live while also capturing
// the stdout bytes for possible cache storage.
func (r *Runner) invokeAnalyzer(ctx context.Context, opts *options.Options, stdout, stderr io.Writer) (int, []byte) {
	if len(opts.RawArgs) == 0 {
		r.logger.Error("runner: no analyzer command to invoke")
		return 1, nil
	}

	var captured bytes.Buffer
	cmd := exec.CommandContext(ctx, opts.RawArgs[0], opts.RawArgs[1:]...) //nolint:gosec // analyzer command recovered from the wrapped invocation
	cmd.Stdout = io.MultiWriter(stdout, &captured)
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return 0, captured.Bytes()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), captured.Bytes()
	}

	r.logger.Error("runner: failed to invoke analyzer", "error", err)
	return 1, captured.Bytes()
}
