// Package localcache is the filesystem-backed presence/payload cache tier,
// adapted from the teacher's sharded disk.Cache: two-hex-character shard
// directories, atomic temp-file-then-rename writes, plus the stats file and
// advisory lock that sit alongside it on disk.
package localcache

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	shardPrefixLen = 2
	dirPerm        = 0o700
)

// Cache implements cachetier.PayloadTier against a local directory tree.
type Cache struct {
	dir      string
	compress bool
	logger   *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithCompression zstd-compresses payload bytes before they hit disk.
// Presence-only entries (empty files) are unaffected.
func WithCompression(enabled bool) Option {
	return func(c *Cache) { c.compress = enabled }
}

// WithLogger attaches a structured logger; defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Cache rooted at dir, creating it if necessary.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("localcache: cache dir is empty")
	}
	c := &Cache{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, err
	}
	return c, nil
}

// Name identifies this tier for logging and tier-ordering diagnostics.
func (c *Cache) Name() string { return "local" }

// Dir returns the resolved cache root, for --cache-dir.
func (c *Cache) Dir() string { return c.dir }

// IsCached stats the sharded path for digest. A hit touches the entry's
// mtime and bumps the hit counter; a miss bumps the miss counter. Stats
// updates that themselves fail are logged, not propagated — a broken stats
// file must never turn a cache hit into a wrapper error.
func (c *Cache) IsCached(_ context.Context, digest string) bool {
	path, err := c.path(digest)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(path)
	hit := statErr == nil
	if hit {
		now := time.Now()
		_ = os.Chtimes(path, now, now)
	}
	if err := updateStats(c.dir, hit); err != nil {
		c.logger.Warn("localcache: stats update failed", "error", err)
	}
	return hit
}

// GetCacheData returns the stored payload for digest, transparently
// decompressing it if this cache was opened with compression enabled.
func (c *Cache) GetCacheData(_ context.Context, digest string) ([]byte, bool) {
	path, err := c.path(digest)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a validated digest, not user input
	if err != nil {
		return nil, false
	}
	if !c.compress || len(data) == 0 {
		return data, true
	}
	plain, err := decompress(data)
	if err != nil {
		c.logger.Warn("localcache: decompress failed, treating as miss", "error", err)
		return nil, false
	}
	return plain, true
}

// StoreInCache creates an empty presence-only entry for digest, idempotently.
func (c *Cache) StoreInCache(ctx context.Context, digest string) error {
	return c.store(ctx, digest, nil)
}

// StoreInCacheWithData stores digest's payload bytes, compressing them
// first if this cache was opened with compression enabled.
func (c *Cache) StoreInCacheWithData(ctx context.Context, digest string, data []byte) error {
	return c.store(ctx, digest, data)
}

func (c *Cache) store(_ context.Context, digest string, data []byte) error {
	path, err := c.path(digest)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	payload := data
	if c.compress && len(data) > 0 {
		compressed, err := compress(data)
		if err != nil {
			return err
		}
		payload = compressed
	}

	tmp, err := os.CreateTemp(dir, "entry-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			_ = os.Remove(tmpPath)
			return nil
		}
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Clean recursively removes the cache directory. A missing directory is
// not an error.
func (c *Cache) Clean() error {
	return os.RemoveAll(c.dir)
}

// UpdateStats records a hit or miss directly, outside of IsCached's own
// bookkeeping.
func (c *Cache) UpdateStats(hit bool) error {
	return updateStats(c.dir, hit)
}

// ZeroStats deletes the local stats file.
func (c *Cache) ZeroStats() error {
	return zeroStats(c.dir)
}

// QueryStats returns the local-only stats view.
func (c *Cache) QueryStats() (Stats, error) {
	return queryStats(c.dir)
}

func (c *Cache) path(digest string) (string, error) {
	if len(digest) <= shardPrefixLen {
		return "", errors.New("localcache: digest too short to shard")
	}
	return filepath.Join(c.dir, digest[:shardPrefixLen], digest[shardPrefixLen:]), nil
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
