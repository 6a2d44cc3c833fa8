// Package gcscache is the Google Cloud Storage cache tier. Out-of-pack:
// no repo in the corpus touches GCS, so cloud.google.com/go/storage is
// adopted as the ecosystem-standard client.
package gcscache

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ctcache/ctcache/internal/options"
)

const shardPrefixLen = 2

// Tier stores cache entries as GCS objects at <folder>/<digest[0:2]>/<digest[2:]>.
type Tier struct {
	client    *storage.Client
	bucket    string
	folder    string
	anonymous bool
	logger    *slog.Logger
}

// Option configures a Tier.
type Option func(*Tier)

// WithLogger attaches a structured logger; defaults to a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tier) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func (t *Tier) log() *slog.Logger {
	if t.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.logger
}

// Configured reports whether the environment selects this tier.
func Configured(env options.Env) bool {
	return env.GCSBucket != ""
}

// New constructs a Tier from resolved environment config. Callers should
// gate construction on Configured first.
func New(ctx context.Context, env options.Env, opts ...Option) (*Tier, error) {
	t := &Tier{
		bucket:    env.GCSBucket,
		folder:    env.GCSFolder,
		anonymous: env.GCSNoCredentials,
	}
	for _, opt := range opts {
		opt(t)
	}

	var clientOpts []option.ClientOption
	if env.GCSNoCredentials {
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}
	t.client = client
	return t, nil
}

// Name identifies this tier for diagnostics.
func (t *Tier) Name() string { return "gcs" }

func (t *Tier) objectKey(digest string) string {
	shard := digest[:shardPrefixLen] + "/" + digest[shardPrefixLen:]
	if t.folder == "" {
		return shard
	}
	return t.folder + "/" + shard
}

func (t *Tier) object(digest string) *storage.ObjectHandle {
	return t.client.Bucket(t.bucket).Object(t.objectKey(digest))
}

// IsCached reports whether the object for digest exists.
func (t *Tier) IsCached(ctx context.Context, digest string) bool {
	_, err := t.object(digest).Attrs(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotExist) {
			t.log().Error("gcscache: attrs failed", "error", err)
		}
		return false
	}
	return true
}

// GetCacheData fetches the object body for digest.
func (t *Tier) GetCacheData(ctx context.Context, digest string) ([]byte, bool) {
	r, err := t.object(digest).NewReader(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotExist) {
			t.log().Error("gcscache: new reader failed", "error", err)
		}
		return nil, false
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.log().Error("gcscache: read object failed", "error", err)
		return nil, false
	}
	return data, true
}

// StoreInCache stores the digest string itself as a presence-only marker.
func (t *Tier) StoreInCache(ctx context.Context, digest string) error {
	return t.store(ctx, digest, []byte(digest))
}

// StoreInCacheWithData stores digest's payload bytes.
func (t *Tier) StoreInCacheWithData(ctx context.Context, digest string, data []byte) error {
	return t.store(ctx, digest, data)
}

func (t *Tier) store(ctx context.Context, digest string, data []byte) error {
	if t.anonymous {
		return nil
	}
	w := t.object(digest).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		t.log().Error("gcscache: write object failed", "error", err)
		return nil
	}
	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			t.log().Error("gcscache: close writer failed", "error", apiErr)
		} else {
			t.log().Error("gcscache: close writer failed", "error", err)
		}
	}
	return nil
}
