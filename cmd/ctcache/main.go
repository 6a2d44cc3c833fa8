// Command ctcache wraps a static-analyzer invocation (clang-tidy by
// default) with a fingerprint-keyed cache, so CI and local builds skip
// re-running the analyzer on inputs it has already seen.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ctcache/ctcache/internal/cachetier"
	"github.com/ctcache/ctcache/internal/compiledb"
	"github.com/ctcache/ctcache/internal/coordinator"
	"github.com/ctcache/ctcache/internal/localcache"
	"github.com/ctcache/ctcache/internal/options"
	"github.com/ctcache/ctcache/internal/remote/gcscache"
	"github.com/ctcache/ctcache/internal/remote/httpcache"
	"github.com/ctcache/ctcache/internal/remote/rediscache"
	"github.com/ctcache/ctcache/internal/remote/s3cache"
	"github.com/ctcache/ctcache/internal/runner"
	"github.com/ctcache/ctcache/internal/statsclient"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// dbResolver adapts internal/compiledb to internal/options.CompileDBResolver,
// loading (and implicitly caching nothing beyond) the database for whichever
// directory a given invocation names.
type dbResolver struct {
	logger *slog.Logger
}

func (r dbResolver) Resolve(dbDir, sourceFile string) ([]string, bool) {
	return compiledb.Load(dbDir, r.logger).Resolve(dbDir, sourceFile)
}

func run(args []string) int {
	env := options.ResolveEnv()
	logger := newLogger(env.Debug)
	opts := options.Parse(args, env, dbResolver{logger: logger})

	local, err := localcache.New(opts.CacheDir,
		localcache.WithCompression(env.CompressCache),
		localcache.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ctcache: cannot open cache directory:", err)
		return 1
	}

	switch opts.Mode {
	case options.ModePrintCacheDir:
		fmt.Println(local.Dir())
		return 0
	case options.ModeClean:
		if err := local.Clean(); err != nil {
			fmt.Fprintln(os.Stderr, "ctcache: clean failed:", err)
			return 1
		}
		return 0
	case options.ModeZeroStats:
		if err := local.ZeroStats(); err != nil {
			fmt.Fprintln(os.Stderr, "ctcache: zero-stats failed:", err)
			return 1
		}
		return 0
	case options.ModeShowStats:
		ctx := context.Background()
		coord := buildCoordinator(ctx, env, local, logger)
		stats, err := coord.QueryStats(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ctcache: show-stats failed:", err)
			return 1
		}
		stats.Render(os.Stdout)
		return 0
	default:
		ctx := context.Background()
		coord := buildCoordinator(ctx, env, local, logger)
		r := runner.New(coord, runner.WithLogger(logger))
		return r.Run(ctx, opts, os.Stdout, os.Stderr)
	}
}

// buildCoordinator wires in every remote tier whose environment
// configuration is present, leaving the rest nil so the coordinator's read
// chains and write fan-out simply skip them.
func buildCoordinator(ctx context.Context, env options.Env, local *localcache.Cache, logger *slog.Logger) *coordinator.Coordinator {
	var http cachetier.Tier
	if httpcache.Configured(env) {
		http = httpcache.New(env, httpcache.WithLogger(logger))
	}

	var s3 cachetier.Tier
	if s3cache.Configured(env) {
		tier, err := s3cache.New(ctx, env, s3cache.WithLogger(logger))
		if err != nil {
			logger.Error("ctcache: s3 cache unavailable, skipping tier", "error", err)
		} else {
			s3 = tier
		}
	}

	var gcs cachetier.PayloadTier
	if gcscache.Configured(env) {
		tier, err := gcscache.New(ctx, env, gcscache.WithLogger(logger))
		if err != nil {
			logger.Error("ctcache: gcs cache unavailable, skipping tier", "error", err)
		} else {
			gcs = tier
		}
	}

	var redis cachetier.PayloadTier
	if rediscache.Configured(env) {
		redis = rediscache.New(env, rediscache.WithLogger(logger), rediscache.WithCompression(env.CompressCache))
	}

	if httpcache.Configured(env) {
		stats := statsclient.New(env)
		return coordinator.New(local, http, s3, gcs, redis, stats, coordinator.WithLogger(logger))
	}
	return coordinator.New(local, http, s3, gcs, redis, nil, coordinator.WithLogger(logger))
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
