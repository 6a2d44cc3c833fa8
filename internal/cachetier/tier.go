// Package cachetier defines the uniform contract every cache backend —
// local disk, HTTP, Redis, S3, GCS — implements, so the coordinator can
// treat them interchangeably in its ordered read/write chains.
package cachetier

import "context"

// Tier is satisfied by every cache backend: presence-only lookups and
// presence-only stores.
type Tier interface {
	Name() string
	IsCached(ctx context.Context, digest string) bool
	StoreInCache(ctx context.Context, digest string) error
}

// PayloadTier is a Tier that can also round-trip the analyzer's stdout
// payload bytes, not just record presence.
type PayloadTier interface {
	Tier
	GetCacheData(ctx context.Context, digest string) ([]byte, bool)
	StoreInCacheWithData(ctx context.Context, digest string, data []byte) error
}
