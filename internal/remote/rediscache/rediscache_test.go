//go:build integration

package rediscache

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/ctcache/ctcache/internal/options"
)

func startRedis(t *testing.T) options.Env {
	t.Helper()
	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		t.Skip("SKIP_DOCKER_TESTS is set")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	return options.Env{
		RedisHost:      host,
		RedisPort:      strconv.Itoa(port.Int()),
		RedisNamespace: "ctcache-test/",
	}
}

func TestRedisPresenceAndPayloadRoundTrip(t *testing.T) {
	env := startRedis(t)
	tier := New(env)
	ctx := context.Background()

	const digest = "0123456789abcdef0123456789abcdef01234567"
	require.False(t, tier.IsCached(ctx, digest))

	require.NoError(t, tier.StoreInCacheWithData(ctx, digest, []byte("payload")))
	require.True(t, tier.IsCached(ctx, digest))

	data, ok := tier.GetCacheData(ctx, digest)
	require.True(t, ok)
	require.Equal(t, "payload", string(data))
}

func TestRedisCompressedPayloadRoundTrip(t *testing.T) {
	env := startRedis(t)
	tier := New(env, WithCompression(true))
	ctx := context.Background()

	const digest = "fedcba9876543210fedcba9876543210fedcba9"
	require.NoError(t, tier.StoreInCacheWithData(ctx, digest, []byte("payload")))

	data, ok := tier.GetCacheData(ctx, digest)
	require.True(t, ok)
	require.Equal(t, "payload", string(data))
}
