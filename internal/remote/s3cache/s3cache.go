// Package s3cache is the S3-backed cache tier, presence-only for reads per
// spec's tier-ordering table but still a full PayloadTier for write
// fan-out. Out-of-pack: no repo in the corpus touches AWS, so the
// standard aws-sdk-go-v2 is adopted as the ecosystem default.
package s3cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/ctcache/ctcache/internal/options"
)

const shardPrefixLen = 2

// Tier stores cache entries in an S3 bucket at <folder>/<digest[0:2]>/<digest[2:]>.
type Tier struct {
	client *s3.Client
	bucket string
	folder string
	// anonymous mode accepts unsigned reads; writes in this mode are
	// silently skipped per spec §4.7, since the bucket cannot accept them.
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

// WithClient overrides the constructed S3 client, for tests against a
// local endpoint (e.g. localstack).
func WithClient(client *s3.Client) Option {
	return func(t *Tier) { t.client = client }
}

func (t *Tier) log() *slog.Logger {
	if t.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.logger
}

// Configured reports whether the environment selects this tier.
func Configured(env options.Env) bool {
	return env.S3Bucket != ""
}

// New constructs a Tier from resolved environment config. Callers should
// gate construction on Configured first.
func New(ctx context.Context, env options.Env, opts ...Option) (*Tier, error) {
	t := &Tier{
		bucket:    env.S3Bucket,
		folder:    env.S3Folder,
		anonymous: env.S3NoCredentials,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.client == nil {
		var optFns []func(*awsconfig.LoadOptions) error
		if env.S3NoCredentials {
			optFns = append(optFns, awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			return nil, err
		}
		t.client = s3.NewFromConfig(cfg)
	}
	return t, nil
}

// Name identifies this tier for diagnostics.
func (t *Tier) Name() string { return "s3" }

func (t *Tier) objectKey(digest string) string {
	shard := digest[:shardPrefixLen] + "/" + digest[shardPrefixLen:]
	if t.folder == "" {
		return shard
	}
	return t.folder + "/" + shard
}

// IsCached reports whether the object for digest exists.
func (t *Tier) IsCached(ctx context.Context, digest string) bool {
	_, err := t.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.objectKey(digest)),
	})
	if err != nil {
		if !isNotFound(err) {
			t.log().Error("s3cache: head object failed", "error", err)
		}
		return false
	}
	return true
}

// GetCacheData fetches the object body for digest.
func (t *Tier) GetCacheData(ctx context.Context, digest string) ([]byte, bool) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.objectKey(digest)),
	})
	if err != nil {
		if !isNotFound(err) {
			t.log().Error("s3cache: get object failed", "error", err)
		}
		return nil, false
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		t.log().Error("s3cache: read object body failed", "error", err)
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
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.objectKey(digest)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		t.log().Error("s3cache: put object failed", "error", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *smithyhttp.ResponseError
	if errors.As(err, &nf) {
		return nf.HTTPStatusCode() == 404
	}
	var noSuchKey *s3.NoSuchKey
	return errors.As(err, &noSuchKey)
}
