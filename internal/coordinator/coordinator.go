// Package coordinator orders the configured cache tiers for reads, fans
// writes out to all of them, and aggregates stats — delegating to the
// companion HTTP server when one is configured.
package coordinator

import (
	"context"
	"log/slog"

	"github.com/ctcache/ctcache/internal/cachetier"
	"github.com/ctcache/ctcache/internal/localcache"
)

// Coordinator holds the ordered read chains and the unordered write set
// built once at startup from whichever tiers are configured.
type Coordinator struct {
	local *localcache.Cache

	// presenceOrder is the is_cached read order: local, HTTP, S3, GCS,
	// Redis. Fixed per the design notes' "preserve the orderings verbatim."
	presenceOrder []cachetier.Tier

	// payloadOrder is the get_cache_data read order: local, GCS, Redis.
	// HTTP and S3 are presence-only and excluded here.
	payloadOrder []cachetier.PayloadTier

	// writeTiers receives every store, in no particular order — writes
	// fan out unconditionally and independently of each other.
	writeTiers []cachetier.Tier

	statsClient statsQuerier // non-nil only when an HTTP server is configured

	logger *slog.Logger
}

// statsQuerier is satisfied by internal/statsclient.Client; declared here
// to avoid an import of the concrete HTTP client from this package.
type statsQuerier interface {
	QueryStats(ctx context.Context) (localcache.Stats, error)
}

// New builds a Coordinator from the already-constructed local cache and
// whichever remote tiers the caller determined are configured. Passing
// nil for a remote tier means "not configured" and it is omitted from
// every chain. statsClient is non-nil only when an HTTP server is
// configured (spec.md §4.8: "if an HTTP server is configured, delegate
// query_stats to it").
func New(local *localcache.Cache, http cachetier.Tier, s3 cachetier.Tier, gcs cachetier.PayloadTier, redis cachetier.PayloadTier, statsClient statsQuerier, opts ...Option) *Coordinator {
	c := &Coordinator{local: local, statsClient: statsClient, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	c.presenceOrder = []cachetier.Tier{local}
	c.writeTiers = []cachetier.Tier{local}
	if http != nil {
		c.presenceOrder = append(c.presenceOrder, http)
		c.writeTiers = append(c.writeTiers, http)
	}
	if s3 != nil {
		c.presenceOrder = append(c.presenceOrder, s3)
		c.writeTiers = append(c.writeTiers, s3)
	}
	if gcs != nil {
		c.presenceOrder = append(c.presenceOrder, gcs)
		c.writeTiers = append(c.writeTiers, gcs)
	}
	if redis != nil {
		c.presenceOrder = append(c.presenceOrder, redis)
		c.writeTiers = append(c.writeTiers, redis)
	}

	c.payloadOrder = []cachetier.PayloadTier{local}
	if gcs != nil {
		c.payloadOrder = append(c.payloadOrder, gcs)
	}
	if redis != nil {
		c.payloadOrder = append(c.payloadOrder, redis)
	}

	return c
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger attaches a structured logger; defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// IsCached queries the presence-read chain in order, short-circuiting on
// the first hit.
func (c *Coordinator) IsCached(ctx context.Context, digest string) bool {
	for _, tier := range c.presenceOrder {
		if tier.IsCached(ctx, digest) {
			return true
		}
	}
	return false
}

// GetCacheData queries the payload-read chain in order, short-circuiting
// on the first hit.
func (c *Coordinator) GetCacheData(ctx context.Context, digest string) ([]byte, bool) {
	for _, tier := range c.payloadOrder {
		if data, ok := tier.GetCacheData(ctx, digest); ok {
			return data, true
		}
	}
	return nil, false
}

// StoreInCache fans a presence-only store out to every configured tier.
// A failure in one tier is logged and does not block the others.
func (c *Coordinator) StoreInCache(ctx context.Context, digest string) {
	for _, tier := range c.writeTiers {
		if err := tier.StoreInCache(ctx, digest); err != nil {
			c.logger.Error("coordinator: store failed", "tier", tier.Name(), "error", err)
		}
	}
}

// StoreInCacheWithData fans a payload store out to every configured tier.
// Tiers that implement cachetier.PayloadTier receive the bytes, even those
// (S3) that the payload read chain never consults; tiers without payload
// support (HTTP) receive a presence-only store instead.
func (c *Coordinator) StoreInCacheWithData(ctx context.Context, digest string, data []byte) {
	for _, tier := range c.writeTiers {
		var err error
		if payloadTier, ok := tier.(cachetier.PayloadTier); ok {
			err = payloadTier.StoreInCacheWithData(ctx, digest, data)
		} else {
			err = tier.StoreInCache(ctx, digest)
		}
		if err != nil {
			c.logger.Error("coordinator: store failed", "tier", tier.Name(), "error", err)
		}
	}
}

// QueryStats delegates to the companion HTTP server when one is
// configured (it can report age histograms and uptime the local backend
// never tracks); otherwise it falls back to the local-only view.
func (c *Coordinator) QueryStats(ctx context.Context) (localcache.Stats, error) {
	if c.statsClient != nil {
		stats, err := c.statsClient.QueryStats(ctx)
		if err == nil {
			return stats, nil
		}
		c.logger.Error("coordinator: stats server query failed, falling back to local", "error", err)
	}
	return c.local.QueryStats()
}
