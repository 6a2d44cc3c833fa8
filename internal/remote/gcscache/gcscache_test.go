package gcscache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ctcache/ctcache/internal/options"
)

func TestConfigured(t *testing.T) {
	t.Parallel()
	assert.False(t, Configured(options.Env{}))
	assert.True(t, Configured(options.Env{GCSBucket: "bucket"}))
}

func TestObjectKeyShardsWithFolder(t *testing.T) {
	t.Parallel()
	tier := &Tier{folder: "entries"}
	assert.Equal(t, "entries/01/23456789abcdef0123456789abcdef01234567",
		tier.objectKey("0123456789abcdef0123456789abcdef01234567"))
}

func TestObjectKeyShardsWithoutFolder(t *testing.T) {
	t.Parallel()
	tier := &Tier{}
	assert.Equal(t, "01/23456789abcdef0123456789abcdef01234567",
		tier.objectKey("0123456789abcdef0123456789abcdef01234567"))
}
