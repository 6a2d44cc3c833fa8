package options

import (
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strings"
)

// Env holds every environment-variable-sourced configuration knob
// recognized by ctcache. It is resolved once from the process environment
// and is read-only after construction.
type Env struct {
	CacheDir string

	Strip             []string
	SaveOutput        bool
	IgnoreOutput      bool
	ExcludeHashRegex   *regexp.Regexp
	Debug             bool
	CompressCache     bool

	Dump    bool
	DumpDir string

	HTTPHost  string
	HTTPProto string
	HTTPPort  string

	S3Bucket        string
	S3Folder        string
	S3NoCredentials bool

	GCSBucket        string
	GCSFolder        string
	GCSNoCredentials bool

	RedisHost      string
	RedisPort      string
	RedisUsername  string
	RedisPassword  string
	RedisNamespace string
}

// ResolveEnv reads the environment variables documented in ctcache's
// external-interfaces table into an Env. Unset variables resolve to zero
// values (and, for CacheDir, a computed default).
func ResolveEnv() Env {
	e := Env{
		CacheDir: envOr("CTCACHE_DIR", defaultCacheDir()),

		SaveOutput:    os.Getenv("CTCACHE_SAVE_OUTPUT") == "1",
		IgnoreOutput:  os.Getenv("CTCACHE_IGNORE_OUTPUT") != "",
		Debug:         os.Getenv("CTCACHE_DEBUG") != "",
		CompressCache: os.Getenv("CTCACHE_COMPRESS_CACHE") != "",

		Dump:    os.Getenv("CTCACHE_DUMP") != "",
		DumpDir: os.Getenv("CTCACHE_DUMP_DIR"),

		HTTPHost:  os.Getenv("CTCACHE_HOST"),
		HTTPProto: envOr("CTCACHE_PROTO", "http"),
		HTTPPort:  envOr("CTCACHE_PORT", "5000"),

		S3Bucket:        os.Getenv("CTCACHE_S3_BUCKET"),
		S3Folder:        os.Getenv("CTCACHE_S3_FOLDER"),
		S3NoCredentials: os.Getenv("CTCACHE_S3_NO_CREDENTIALS") != "",

		GCSBucket:        os.Getenv("CTCACHE_GCS_BUCKET"),
		GCSFolder:        os.Getenv("CTCACHE_GCS_FOLDER"),
		GCSNoCredentials: os.Getenv("CTCACHE_GCS_NO_CREDENTIALS") != "",

		RedisHost:      os.Getenv("CTCACHE_REDIS_HOST"),
		RedisPort:      envOr("CTCACHE_REDIS_PORT", "6379"),
		RedisUsername:  os.Getenv("CTCACHE_REDIS_USERNAME"),
		RedisPassword:  os.Getenv("CTCACHE_REDIS_PASSWORD"),
		RedisNamespace: envOr("CTCACHE_REDIS_NAMESPACE", "ctcache/"),
	}

	if strip := os.Getenv("CTCACHE_STRIP"); strip != "" {
		e.Strip = strings.Split(strip, ":")
	}
	if pattern := os.Getenv("CTCACHE_EXCLUDE_HASH_REGEX"); pattern != "" {
		if re, err := regexp.Compile(pattern); err == nil {
			e.ExcludeHashRegex = re
		}
	}

	return e
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// defaultCacheDir computes <tmp>/ctcache-<username>, falling back to
// "unknown" when the current user cannot be resolved.
func defaultCacheDir() string {
	name := "unknown"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	return filepath.Join(os.TempDir(), "ctcache-"+name)
}
