// Package statsclient queries the optional companion stats HTTP server
// (spec.md §1's "out of scope external collaborator") for the enriched
// stats object — age histograms, uptime, cleanup history — that the local
// backend alone never produces.
package statsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ctcache/ctcache/internal/localcache"
	"github.com/ctcache/ctcache/internal/options"
	"github.com/ctcache/ctcache/internal/remote/httpcache"
)

const requestTimeout = 3 * time.Second

// Client fetches /stats from the companion server.
type Client struct {
	baseURL string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default timeout-bound client, for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// New constructs a Client from resolved environment config. Callers
// should gate construction on httpcache.Configured first.
func New(env options.Env, opts ...Option) *Client {
	c := &Client{
		baseURL: httpcache.BaseURL(env),
		client:  &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryStats fetches /stats and decodes it into localcache.Stats.
func (c *Client) QueryStats(ctx context.Context) (localcache.Stats, error) {
	url := fmt.Sprintf("%s/stats", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return localcache.Stats{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return localcache.Stats{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return localcache.Stats{}, fmt.Errorf("statsclient: stats request returned status %d", resp.StatusCode)
	}

	var wire wireStats
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return localcache.Stats{}, err
	}
	return wire.toStats(), nil
}

// wireStats matches the /stats JSON object shape from spec §6.
type wireStats struct {
	HitCount          int64            `json:"hit_count"`
	MissCount         int64            `json:"miss_count"`
	HitRate           float64          `json:"hit_rate"`
	MissRate          float64          `json:"miss_rate"`
	TotalHitRate      float64          `json:"total_hit_rate"`
	CachedCount       int64            `json:"cached_count"`
	CleanedCount      int64            `json:"cleaned_count"`
	CleanedSecondsAgo float64          `json:"cleaned_seconds_ago"`
	SavedSecondsAgo   float64          `json:"saved_seconds_ago"`
	SavedSizeBytes    int64            `json:"saved_size_bytes"`
	UptimeSeconds     float64          `json:"uptime_seconds"`
	AgeDaysHistogram  map[string]int64 `json:"age_days_histogram"`
	HitCountHistogram map[string]int64 `json:"hit_count_histogram"`
}

func (w wireStats) toStats() localcache.Stats {
	totalHitRate := w.TotalHitRate
	cleanedCount := w.CleanedCount
	cleanedSecondsAgo := w.CleanedSecondsAgo
	savedSecondsAgo := w.SavedSecondsAgo
	savedSizeBytes := w.SavedSizeBytes
	uptimeSeconds := w.UptimeSeconds

	return localcache.Stats{
		HitCount:          w.HitCount,
		MissCount:         w.MissCount,
		HitRate:           w.HitRate,
		MissRate:          w.MissRate,
		TotalHitRate:      &totalHitRate,
		CachedCount:       w.CachedCount,
		CleanedCount:      &cleanedCount,
		CleanedSecondsAgo: &cleanedSecondsAgo,
		SavedSecondsAgo:   &savedSecondsAgo,
		SavedSizeBytes:    &savedSizeBytes,
		UptimeSeconds:     &uptimeSeconds,
		AgeDaysHistogram:  intKeyedHistogram(w.AgeDaysHistogram),
		HitCountHistogram: int64KeyedHistogram(w.HitCountHistogram),
	}
}

func intKeyedHistogram(src map[string]int64) map[int]int64 {
	if src == nil {
		return nil
	}
	out := make(map[int]int64, len(src))
	for k, v := range src {
		if n, err := strconv.Atoi(k); err == nil {
			out[n] = v
		}
	}
	return out
}

func int64KeyedHistogram(src map[string]int64) map[int64]int64 {
	if src == nil {
		return nil
	}
	out := make(map[int64]int64, len(src))
	for k, v := range src {
		if n, err := strconv.ParseInt(k, 10, 64); err == nil {
			out[n] = v
		}
	}
	return out
}
